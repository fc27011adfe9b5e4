package handler

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/internal/domain/order"
)

const (
	maxBodyBytes = 64 << 10
	dateLayout   = "2006-01-02"
)

var errBadBody = errors.New("malformed request body")

func badBody(err error) error {
	return fmt.Errorf("%w: %v", errBadBody, err)
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// decodeObject feeds every top-level field of a JSON object body to fn.
// An empty body is treated as an empty object.
func decodeObject(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return badBody(err)
	}
	if len(body) == 0 {
		return nil
	}
	d := jx.DecodeBytes(body)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	}); err != nil {
		return badBody(err)
	}
	return nil
}

// readCouponCode returns the CouponCode field of a JSON or form body.
func readCouponCode(w http.ResponseWriter, r *http.Request) (string, error) {
	if !isJSON(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return "", badBody(err)
		}
		return r.PostForm.Get("CouponCode"), nil
	}

	var code string
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "CouponCode" {
			return d.Skip()
		}
		v, err := optString(d)
		code = v
		return err
	})
	return code, err
}

func optString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.New("expected number")
	}
}

func decodeCouponInput(w http.ResponseWriter, r *http.Request) (coupon.Input, error) {
	var in coupon.Input
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "title":
			in.Title, err = optString(d)
		case "code":
			in.Code, err = optString(d)
		case "type":
			var s string
			s, err = optString(d)
			in.Type = coupon.DiscountType(s)
		case "discount":
			in.Discount, err = decodeDecimal(d)
		case "minimumSpend":
			in.MinimumSpend, err = decodeDecimal(d)
		case "maxCustomerUses":
			if d.Next() == jx.Null {
				return d.Null()
			}
			in.MaxCustomerUses, err = d.Int()
		case "expiry":
			var s string
			if s, err = optString(d); err != nil || s == "" {
				return err
			}
			in.Expiry, err = time.Parse(dateLayout, s)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return in, err
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("title")
	e.Str(c.Title)
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("type")
	e.Str(string(c.Type))
	e.FieldStart("discount")
	e.Str(c.Discount.String())
	e.FieldStart("summary")
	e.Str(c.Summary())
	e.FieldStart("minimumSpend")
	e.Str(c.MinimumSpend.StringFixed(2))
	e.FieldStart("maxCustomerUses")
	e.Int(c.MaxCustomerUses)
	e.FieldStart("expiry")
	e.Str(c.Expiry.Format(dateLayout))
	e.FieldStart("createdAt")
	e.Str(c.CreatedAt.UTC().Format(time.RFC3339))
	e.FieldStart("updatedAt")
	e.Str(c.UpdatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}

func encodeModification(e *jx.Encoder, m *coupon.Modification, symbol string) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(m.ID)
	e.FieldStart("couponId")
	e.Str(m.CouponID)
	e.FieldStart("orderId")
	e.Str(m.OrderID)
	e.FieldStart("price")
	e.Str(m.Price.StringFixed(2))
	e.FieldStart("nice")
	e.Str(coupon.Money{Amount: m.Price, Currency: m.Currency, Symbol: symbol}.Nice())
	e.FieldStart("currency")
	e.Str(m.Currency)
	e.FieldStart("description")
	e.Str(m.Description)
	e.ObjEnd()
}

func encodeOrderLines(e *jx.Encoder, mods []order.Modification) {
	e.ArrStart()
	for _, m := range mods {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(m.ID)
		e.FieldStart("kind")
		e.Str(string(m.Kind))
		e.FieldStart("price")
		e.Str(m.Price.StringFixed(2))
		e.FieldStart("description")
		e.Str(m.Description)
		e.ObjEnd()
	}
	e.ArrEnd()
}
