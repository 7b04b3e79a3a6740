package decode

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Struct decodes a dynamic payload map into a typed struct T. Field names
// are matched through `json` tags. Decoding is weakly typed on purpose:
// JSON numbers arrive as float64 and are narrowed to the target int type.
func Struct[T any](m map[string]any) (*T, error) {
	if m == nil {
		return nil, errors.New("payload is nil")
	}
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: true,
		DecodeHook:       floatToIntHook(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "new decoder")
	}
	if err := dec.Decode(m); err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}
	return &out, nil
}

// floatToIntHook narrows float64 JSON numbers into integer fields, but only
// when the value is integral; 1.5 into an int64 is still an error.
func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.Float64 {
			return data, nil
		}
		switch to.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f := data.(float64)
			i := int64(f)
			if float64(i) != f {
				return nil, errors.Errorf("value %v is not an integer", f)
			}
			return i, nil
		default:
			return data, nil
		}
	}
}
