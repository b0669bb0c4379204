package builtin

import "github.com/kiln-build/kiln/internal/vars"

// Size returns the element count of a list value, or the length of a
// string/path value in bytes. Any scalar of neither kind is a
// TypeMismatchError — size() is about containers, not about measuring
// an arbitrary value's printed width.
func Size(v vars.Value) (vars.UInt64, error) {
	switch t := v.(type) {
	case vars.List:
		return vars.UInt64(len(t.Vals)), nil
	case vars.String:
		return vars.UInt64(len(t)), nil
	case vars.Path:
		return vars.UInt64(len(t)), nil
	default:
		return 0, &vars.TypeMismatchError{Want: vars.KindListString, Got: v.Kind(), Detail: "size() expects a list, string, or path"}
	}
}
