package methods

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMissingNumber = errors.New("value is required")
	ErrNotNumeric    = errors.New("must be a number")
	ErrNotFinite     = errors.New("must be a finite number")
)

// ParseFinite converts a decoded JSON or form value to a finite float64.
// Numeric strings are accepted; NaN, infinities and non-numeric text are not.
func ParseFinite(v interface{}) (float64, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, ErrMissingNumber
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case json.Number:
		return ParseFiniteString(t.String())
	case string:
		return ParseFiniteString(t)
	case bool:
		return 0, ErrNotNumeric
	default:
		return 0, fmt.Errorf("%w (got %T)", ErrNotNumeric, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotFinite
	}
	return f, nil
}

// ParseFiniteString parses s as a finite float64 after trimming whitespace.
func ParseFiniteString(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMissingNumber
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, ErrNotFinite
		}
		return 0, ErrNotNumeric
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotFinite
	}
	return f, nil
}
