package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// ParamFunc assigns one decoded hyperparameter value.
type ParamFunc func(v interface{}) error

// ApplyParams dispatches every key of params to its setter. Keys are visited
// in sorted order; a key without a setter is rejected with a ValidationError
// listing the supported names.
func ApplyParams(modelName string, params map[string]interface{}, setters map[string]ParamFunc) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fn, ok := setters[k]
		if !ok {
			supported := make([]string, 0, len(setters))
			for name := range setters {
				supported = append(supported, name)
			}
			sort.Strings(supported)
			return errors.NewValidationError(k,
				fmt.Sprintf("unknown parameter for %s (supported: %s)", modelName, strings.Join(supported, ", ")),
				params[k])
		}
		if err := fn(params[k]); err != nil {
			return errors.NewValidationError(k, err.Error(), params[k])
		}
	}
	return nil
}

// FloatParam decodes numbers and numeric strings.
func FloatParam(dst *float64) ParamFunc {
	return func(v interface{}) error {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return fmt.Errorf("expected a number")
		}
		*dst = f
		return nil
	}
}

// IntParam accepts whole numbers only; 2.5 is rejected.
func IntParam(dst *int) ParamFunc {
	return func(v interface{}) error {
		f, err := cast.ToFloat64E(v)
		if err != nil || f != float64(int(f)) {
			return fmt.Errorf("expected an integer")
		}
		*dst = int(f)
		return nil
	}
}

func BoolParam(dst *bool) ParamFunc {
	return func(v interface{}) error {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("expected a boolean")
		}
		*dst = b
		return nil
	}
}

// StringParam restricts the value to allowed when allowed is non-empty.
func StringParam(dst *string, allowed ...string) ParamFunc {
	return func(v interface{}) error {
		s, err := cast.ToStringE(v)
		if err != nil {
			return fmt.Errorf("expected a string")
		}
		if len(allowed) > 0 {
			found := false
			for _, a := range allowed {
				if a == s {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
			}
		}
		*dst = s
		return nil
	}
}

// Int64Param is used for random_state.
func Int64Param(dst *int64) ParamFunc {
	return func(v interface{}) error {
		f, err := cast.ToFloat64E(v)
		if err != nil || f != float64(int64(f)) {
			return fmt.Errorf("expected an integer")
		}
		*dst = int64(f)
		return nil
	}
}

// Positive wraps a setter and rejects values <= 0 after decoding.
func Positive(dst *float64) ParamFunc {
	set := FloatParam(dst)
	return func(v interface{}) error {
		prev := *dst
		if err := set(v); err != nil {
			return err
		}
		if *dst <= 0 {
			*dst = prev
			return fmt.Errorf("must be > 0")
		}
		return nil
	}
}
