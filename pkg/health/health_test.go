package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	status string
	checks map[string]string
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response {
	t.Helper()
	var r response
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			r.status = s
			return err
		case "checks":
			r.checks = map[string]string{}
			return d.Obj(func(d *jx.Decoder, name string) error {
				msg, err := d.Str()
				r.checks[name] = msg
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return r
}

func serve(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func passing(context.Context) error { return nil }

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		runs       int
		wantCode   int
		wantStatus string
	}{
		{name: "fresh checks are healthy", runs: 0, wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "below failure threshold", runs: FailureThreshold - 1, wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "at failure threshold", runs: FailureThreshold, wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(nil)
			h.Register(Liveness, "db", time.Second, failing("connection refused"))
			for range tt.runs {
				h.checks[0].run(context.Background())
			}

			w := serve(h.LiveEndpoint)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			body := decode(t, w)
			assert.Equal(t, tt.wantStatus, body.status)
			if tt.wantCode != http.StatusOK {
				assert.Equal(t, "connection refused", body.checks["db"])
			}
		})
	}
}

func TestCheckRecovers(t *testing.T) {
	fail := true
	h := New(nil)
	h.Register(Liveness, "flaky", time.Second, func(context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	})
	c := h.checks[0]

	for range FailureThreshold - 1 {
		assert.False(t, c.run(context.Background()))
	}
	assert.True(t, c.run(context.Background()), "flips to unhealthy")

	fail = false
	assert.True(t, c.run(context.Background()), "flips back after one success")
	assert.Equal(t, http.StatusOK, serve(h.LiveEndpoint).Code)
}

func TestReadyEndpoint(t *testing.T) {
	h := New(nil)
	h.Register(Readiness, "store", time.Second, passing)
	h.Register(Liveness, "broken", time.Second, failing("ignored by readiness"))
	for range FailureThreshold {
		h.checks[1].run(context.Background())
	}

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "service is not ready", body.checks["_readiness"])
	assert.NotContains(t, body.checks, "broken")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint).Code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.ReadyEndpoint).Code)
}

func TestStartRunsChecks(t *testing.T) {
	h := New(nil)
	h.Register(Readiness, "db", 50*time.Millisecond, failing("timeout"))
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	t.Cleanup(h.Stop)

	assert.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestCheckTimeout(t *testing.T) {
	h := New(nil)
	h.Register(Liveness, "slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	for range FailureThreshold {
		h.checks[0].run(context.Background())
	}

	body := decode(t, serve(h.LiveEndpoint))
	assert.Contains(t, body.checks["slow"], "deadline exceeded")
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	require.NoError(t, PingCheck(pinger{})(context.Background()))
	err := PingCheck(pinger{err: errors.New("refused")})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")

	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}
