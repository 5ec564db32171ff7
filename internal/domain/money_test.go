package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    Amount
		wantErr bool
	}{
		{in: "40", want: 4000},
		{in: "40.5", want: 4050},
		{in: " 0.01 ", want: 1},
		{in: "100.00", want: 10000},
		{in: "1.234", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
		{in: "92233720368547758.07", want: math.MaxInt64},
		{in: "-92233720368547758.08", want: math.MinInt64},
		{in: "92233720368547758.08", wantErr: true},
		{in: "184467440737095521.16", wantErr: true},
		{in: "-92233720368547758.09", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ParseAmount(%q) error = %v, want validation error", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAmountString(t *testing.T) {
	if got := Coins(40).String(); got != "40.00" {
		t.Fatalf("Coins(40).String() = %q", got)
	}
	if got := Amount(5).String(); got != "0.05" {
		t.Fatalf("Amount(5).String() = %q", got)
	}
}

func TestAmountCheckedArithmetic(t *testing.T) {
	if got, err := Coins(40).Times(2); err != nil || got != Coins(80) {
		t.Fatalf("40 × 2 = %s, %v", got, err)
	}
	if _, err := Amount(1 << 62).Times(2); !errors.Is(err, ErrValidation) {
		t.Fatalf("2^62 × 2 error = %v, want validation", err)
	}
	if _, err := Amount(math.MaxInt64 / 3).Times(4); !errors.Is(err, ErrValidation) {
		t.Fatalf("overflowing product error = %v, want validation", err)
	}
	if got, err := Coins(1).Plus(Coins(2)); err != nil || got != Coins(3) {
		t.Fatalf("1 + 2 = %s, %v", got, err)
	}
	if _, err := Amount(math.MaxInt64).Plus(1); !errors.Is(err, ErrValidation) {
		t.Fatalf("max + 1 error = %v, want validation", err)
	}
}

func TestWalletCreditRejectsOverflow(t *testing.T) {
	w := Wallet{Available: Amount(math.MaxInt64 - 100), Locked: 50}
	if err := w.Credit(BucketAvailable, 51); !errors.Is(err, ErrValidation) {
		t.Fatalf("overflowing credit error = %v, want validation", err)
	}
	if w.Available != Amount(math.MaxInt64-100) {
		t.Fatalf("wallet changed on rejected credit: %+v", w)
	}
	if err := w.Credit(BucketLocked, 50); err != nil {
		t.Fatalf("credit up to the limit: %v", err)
	}
}

func TestAmountMulRate(t *testing.T) {
	rate := decimal.RequireFromString("0.20")
	if got := Coins(40).MulRate(rate); got != Coins(8) {
		t.Fatalf("40 * 0.20 = %s, want 8.00", got)
	}
	// 0.33 * 0.20 = 0.066 rounds to 0.07
	if got := Amount(33).MulRate(rate); got != 7 {
		t.Fatalf("0.33 * 0.20 = %s, want 0.07", got)
	}
}

func TestAmountJSON(t *testing.T) {
	var payload struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":"12.50","b":3}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.A != 1250 || payload.B != 300 {
		t.Fatalf("unexpected amounts %d %d", payload.A, payload.B)
	}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":"12.50","b":"3.00"}` {
		t.Fatalf("marshal = %s", out)
	}
}
