package validate

import (
	"errors"
	"fmt"
	"math"
)

// ValidationError reports an input that is outside the calculator domain.
// Field is the JSON key of the offending input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

func Errorf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// As unwraps err into a *ValidationError if it is one.
func As(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Prefix returns a copy of err with field prefixed, e.g. "power[3].line_voltage".
// Errors that are not validation errors are returned unchanged.
func Prefix(prefix string, err error) error {
	ve, ok := As(err)
	if !ok {
		return err
	}
	return &ValidationError{Field: prefix + "." + ve.Field, Reason: ve.Reason}
}

func finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Errorf(field, "must be a finite number")
	}
	return nil
}

// Positive requires v to be finite and > 0.
func Positive(field string, v float64) error {
	if err := finite(field, v); err != nil {
		return err
	}
	if v <= 0 {
		return Errorf(field, "must be > 0")
	}
	return nil
}

// Fraction requires 0 < v <= 1.
func Fraction(field string, v float64) error {
	if err := finite(field, v); err != nil {
		return err
	}
	if v <= 0 || v > 1 {
		return Errorf(field, "must be in (0, 1]")
	}
	return nil
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Finite reports field as out of range when any computed value is NaN or
// ±Inf. Inputs that pass Positive can still overflow a product or quotient.
func Finite(field string, vs ...float64) error {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Errorf(field, "is out of range")
		}
	}
	return nil
}

// from 2^53 up every float64 is an integer
const roundLimit = 1 << 53

// Round2 rounds to two decimal places for display.
func Round2(v float64) float64 {
	if math.Abs(v) >= roundLimit || math.IsNaN(v) {
		return v
	}
	return math.Round(v*100) / 100
}
