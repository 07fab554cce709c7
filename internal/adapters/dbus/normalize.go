// Package dbus adapts the session bus to the application ports.
package dbus

import (
	"reflect"

	godbus "github.com/godbus/dbus/v5"
)

// Normalize converts a decoded D-Bus value into plain Go values: variants
// are unwrapped, object paths become strings, structs and typed slices
// become []any and string-keyed maps become map[string]any. Byte arrays
// are kept as []byte.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case godbus.Variant:
		return Normalize(x.Value())
	case godbus.ObjectPath:
		return string(x)
	case godbus.Signature:
		return x.String()
	case []byte:
		return x
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case map[string]godbus.Variant:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Struct:
		out := make([]any, 0, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			if rv.Type().Field(i).IsExported() {
				out = append(out, Normalize(rv.Field(i).Interface()))
			}
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	}
	return v
}

// NormalizeBody normalizes every element of a message body.
func NormalizeBody(body []any) []any {
	out := make([]any, len(body))
	for i, v := range body {
		out[i] = Normalize(v)
	}
	return out
}
