package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shop-coupons/internal/domain/coupon"
)

func writeGz(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseCSV(t *testing.T) {
	input := `code,title,type,discount,minimum_spend,max_customer_uses,expiry
SAVE10, 10% off, Percentage, 10, 50, 2, 2030-01-31

FLAT5,Five off,Flat,5.005,,,2030-06-30
`
	rows, err := parseCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "SAVE10", rows[0].Code)
	assert.Equal(t, "10% off", rows[0].Title)
	assert.Equal(t, coupon.DiscountPercentage, rows[0].Type)
	assert.True(t, decimal.NewFromInt(50).Equal(rows[0].MinimumSpend))
	assert.Equal(t, 2, rows[0].MaxCustomerUses)
	assert.Equal(t, time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC), rows[0].Expiry)

	assert.Equal(t, coupon.DiscountFlat, rows[1].Type)
	assert.Equal(t, "5.01", rows[1].Discount.StringFixed(2))
	assert.True(t, rows[1].MinimumSpend.IsZero())
	assert.Zero(t, rows[1].MaxCustomerUses)
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		row     string
		wantErr string
	}{
		{"missing code", ",t,Flat,1,0,0,2030-01-01", "code is required"},
		{"missing title", "C,,Flat,1,0,0,2030-01-01", "title is required"},
		{"bad type", "C,t,Fixed,1,0,0,2030-01-01", "unknown discount type"},
		{"bad discount", "C,t,Flat,abc,0,0,2030-01-01", "discount"},
		{"negative spend", "C,t,Flat,1,-5,0,2030-01-01", "minimum_spend"},
		{"percentage above 100", "C,t,Percentage,101,0,0,2030-01-01", "percentage above 100"},
		{"bad uses", "C,t,Flat,1,0,-1,2030-01-01", "max_customer_uses"},
		{"bad expiry", "C,t,Flat,1,0,0,01/01/2030", "expiry"},
		{"wrong column count", "C,t,Flat", "wrong number of fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCSV(context.Background(), strings.NewReader("OK,t,Flat,1,0,0,2030-01-01\n"+tt.row+"\n"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseFiles(t *testing.T) {
	a := writeGz(t, "a.csv.gz", "A1,t,Flat,1,0,0,2030-01-01\nA2,t,Flat,2,0,0,2030-01-01\n")
	b := writeGz(t, "b.csv.gz", "code,title,type,discount,minimum_spend,max_customer_uses,expiry\nB1,t,Percentage,5,0,0,2030-01-01\n")

	rows, err := parseFiles(context.Background(), []string{a, b})
	require.NoError(t, err)

	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.Code)
	}
	assert.Equal(t, []string{"A1", "A2", "B1"}, codes)
}

func TestParseFilesReportsPath(t *testing.T) {
	bad := writeGz(t, "bad.csv.gz", "X,t,Nope,1,0,0,2030-01-01\n")
	_, err := parseFiles(context.Background(), []string{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.csv.gz")
	assert.Contains(t, err.Error(), "line 1")
}
