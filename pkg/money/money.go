package money

import "fmt"

// Cents is a monetary amount in integer minor units. All arithmetic and
// comparisons in the settlement core happen on this type; floats never touch
// persisted or compared amounts.
type Cents int64

// FromMajor builds an amount from whole major units plus remaining cents.
func FromMajor(units int64, cents int64) Cents {
	return Cents(units*100 + cents)
}

func (c Cents) Int64() int64 { return int64(c) }

func (c Cents) Positive() bool { return c > 0 }

// Major splits the amount into whole major units and the remaining cents.
// The split is lossless: units*100+rem == c.
func (c Cents) Major() (units int64, rem int64) {
	units = int64(c) / 100
	rem = int64(c) % 100
	if rem < 0 {
		units--
		rem += 100
	}
	return units, rem
}

// String renders the amount for display and logs, e.g. "500.00".
func (c Cents) String() string {
	neg := ""
	v := int64(c)
	if v < 0 {
		neg = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", neg, v/100, v%100)
}
