package models

import (
	"fmt"
	"math"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
)

// DecodeRecord decodes rec into out, a pointer to a struct with mapstructure
// tags. Numeric strings and whole floats convert to integer fields; values
// that would be truncated or zero-filled are rejected with ErrInvalidValue.
func DecodeRecord(rec Record, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(exactNumber),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(rec))
}

// RecordID returns the product id carried by v under the same rules as
// DecodeRecord.
func RecordID(v any) (int64, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: id is null", ErrInvalidValue)
	}
	if _, err := exactNumber(reflect.TypeOf(v), reflect.TypeOf(int64(0)), v); err != nil {
		return 0, err
	}
	return cast.ToInt64E(v)
}

func exactNumber(from, to reflect.Type, data any) (any, error) {
	switch {
	case isInteger(to.Kind()):
		switch from.Kind() {
		case reflect.Float32, reflect.Float64:
			f := reflect.ValueOf(data).Float()
			if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
				return nil, fmt.Errorf("%w: %v is not a whole number", ErrInvalidValue, data)
			}
		case reflect.String:
			if reflect.ValueOf(data).String() == "" {
				return nil, fmt.Errorf("%w: empty string is not a number", ErrInvalidValue)
			}
		}
	case to.Kind() == reflect.Float32 || to.Kind() == reflect.Float64:
		if from.Kind() == reflect.String && reflect.ValueOf(data).String() == "" {
			return nil, fmt.Errorf("%w: empty string is not a number", ErrInvalidValue)
		}
	}
	return data, nil
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
