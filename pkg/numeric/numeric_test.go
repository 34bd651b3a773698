package numeric

import "testing"

func TestToIntRoundTrip(t *testing.T) {
	cases := []struct {
		in    string
		scale int
	}{
		{"100.00", 2},
		{"0.01", 2},
		{"25000.00000", 5},
		{"0", 3},
		{"0.300", 3},
		{"1", 0},
	}

	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			v, err := ToPriceInt(c.in, c.scale)
			if err != nil {
				t.Fatalf("ToPriceInt(%q, %d) failed: %v", c.in, c.scale, err)
			}
			got := FromPriceInt(v, c.scale)
			want := canonical(c.in, c.scale)
			if got != want {
				t.Errorf("round trip mismatch: got %q want %q", got, want)
			}
			// Re-parsing the canonical form at the same scale must
			// reproduce the identical Int (the round-trip law).
			v2, err := ToPriceInt(got, c.scale)
			if err != nil {
				t.Fatalf("re-parse of canonical form %q failed: %v", got, err)
			}
			if Cmp(v, v2) != 0 {
				t.Errorf("toPriceInt(fromPriceInt(p)) != p for %q", c.in)
			}
		})
	}
}

// canonical mirrors the canonicalization rule described in the spec: at
// most one trailing zero after the point, at most one leading zero
// before it.
func canonical(s string, scale int) string {
	v, err := ToInt(s, scale, true)
	if err != nil {
		panic(err)
	}
	return FromInt(v, scale)
}

func TestToIntRejectsInvalid(t *testing.T) {
	bad := []string{
		"1.2.3",
		"1e5",
		"1.234",  // exceeds scale below
		" 1.0",
		"1.0 ",
		"+1.0",
		"abc",
		"",
		"-1.0",
	}
	for _, s := range bad {
		t.Run(s, func(t *testing.T) {
			if _, err := ToPriceInt(s, 2); err == nil {
				t.Errorf("expected error for %q", s)
			}
		})
	}
}

func TestSubUnderflow(t *testing.T) {
	a, _ := ToPriceInt("1.00", 2)
	b, _ := ToPriceInt("2.00", 2)
	if _, err := Sub(a, b); err == nil {
		t.Fatal("expected underflow error")
	}
}

func TestMulDivFloors(t *testing.T) {
	// 99.00 * 0.300 / 1 (qtyScale 3) => floor(99.00 * 300 / 1000) in raw units
	price, _ := ToPriceInt("99.00", 2) // 9900
	qty, _ := ToQtyInt("0.300", 3)     // 300
	scaleDiv := FromInt64(1000)       // 10^qtyScale
	notional := MulDiv(price, qty, scaleDiv)
	if FromInt(notional, 2) != "29.7" {
		t.Fatalf("got %s want 29.7", FromInt(notional, 2))
	}
}

func TestFeeFloor(t *testing.T) {
	notional := FromInt64(2970) // 29.70 at scale 2
	bps := FromInt64(10)
	tenThousand := FromInt64(10000)
	fee := MulDiv(notional, bps, tenThousand)
	if fee.DecimalString() != "2" {
		t.Fatalf("got %s want 2", fee.DecimalString())
	}
}
