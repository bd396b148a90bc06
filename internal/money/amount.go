package money

import (
	"fmt"
	"math/big"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// BpsDenominator is the scale for basis-point rates (10000 = 100%).
const BpsDenominator = 10000

// Amount is an exact monetary value in atomic token units. Arithmetic is
// arbitrary-precision; floating point is never involved. The zero value is
// a valid amount of zero.
//
// Amounts are stored in BSON and JSON as base-10 strings so that values
// beyond int64 range survive a round trip unchanged.
type Amount struct {
	i big.Int
}

// New returns an Amount holding v atomic units.
func New(v int64) Amount {
	var a Amount
	a.i.SetInt64(v)
	return a
}

// Parse converts a base-10 string into an Amount.
func Parse(s string) (Amount, error) {
	var a Amount
	if _, ok := a.i.SetString(s, 10); !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return a, nil
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	var r Amount
	r.i.Add(&a.i, &b.i)
	return r
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	var r Amount
	r.i.Sub(&a.i, &b.i)
	return r
}

// MulInt64 returns a × n.
func (a Amount) MulInt64(n int64) Amount {
	var r Amount
	r.i.Mul(&a.i, big.NewInt(n))
	return r
}

// MulBps applies a basis-point rate, rounding down: a × bps / 10000.
func (a Amount) MulBps(bps int64) Amount {
	var r Amount
	r.i.Mul(&a.i, big.NewInt(bps))
	r.i.Quo(&r.i, big.NewInt(BpsDenominator))
	return r
}

// DivMod returns the quotient and remainder of a / n (floor division,
// n must be positive).
func (a Amount) DivMod(n int64) (Amount, Amount) {
	var q, r Amount
	q.i.QuoRem(&a.i, big.NewInt(n), &r.i)
	return q, r
}

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int {
	return a.i.Cmp(&b.i)
}

// Sign reports the sign of a: -1, 0 or +1.
func (a Amount) Sign() int {
	return a.i.Sign()
}

// IsZero reports whether a is exactly zero.
func (a Amount) IsZero() bool {
	return a.i.Sign() == 0
}

// String returns the base-10 representation.
func (a Amount) String() string {
	return a.i.String()
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (a Amount) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(a.i.String())
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (a *Amount) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var s string
	if err := bson.UnmarshalValue(t, data, &s); err != nil {
		return fmt.Errorf("unmarshal amount: %w", err)
	}
	if s == "" {
		a.i.SetInt64(0)
		return nil
	}
	if _, ok := a.i.SetString(s, 10); !ok {
		return fmt.Errorf("invalid amount %q", s)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.i.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		a.i.SetInt64(0)
		return nil
	}
	if _, ok := a.i.SetString(s, 10); !ok {
		return fmt.Errorf("invalid amount %q", s)
	}
	return nil
}
