package floodmap

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Int is an integer property that may be absent or null.
// Integral floats (1.0), numeric strings and booleans are accepted.
type Int struct {
	Int64 int64
	Valid bool
}

// Float is a numeric property that may be absent or null.
type Float struct {
	Float64 float64
	Valid   bool
}

func NewInt(v int64) Int       { return Int{Int64: v, Valid: true} }
func NewFloat(v float64) Float { return Float{Float64: v, Valid: true} }

func (i *Int) UnmarshalJSON(b []byte) error {
	s, isNull := literal(b)
	if isNull {
		*i = Int{}
		return nil
	}
	switch s {
	case "true":
		*i = NewInt(1)
		return nil
	case "false":
		*i = NewInt(0)
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*i = NewInt(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return fmt.Errorf("not an integer: %s", b)
	}
	*i = NewInt(int64(f))
	return nil
}

func (i Int) Or(fallback int64) int64 {
	if i.Valid {
		return i.Int64
	}
	return fallback
}

func (i Int) Value() (driver.Value, error) {
	if !i.Valid {
		return nil, nil
	}
	return i.Int64, nil
}

func (i Int) String() string {
	if !i.Valid {
		return "null"
	}
	return strconv.FormatInt(i.Int64, 10)
}

func (f *Float) UnmarshalJSON(b []byte) error {
	s, isNull := literal(b)
	if isNull {
		*f = Float{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return fmt.Errorf("not a number: %s", b)
	}
	*f = NewFloat(v)
	return nil
}

func (f Float) Value() (driver.Value, error) {
	if !f.Valid {
		return nil, nil
	}
	return f.Float64, nil
}

func (f Float) String() string {
	if !f.Valid {
		return "null"
	}
	return strconv.FormatFloat(f.Float64, 'g', -1, 64)
}

// literal unwraps a JSON scalar. Quoted numbers are unquoted, empty strings count as null.
func literal(b []byte) (s string, isNull bool) {
	s = strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
		if s == "" {
			return s, true
		}
		return s, false
	}
	return s, s == "" || s == "null"
}
