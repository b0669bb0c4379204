package builtin

import (
	"fmt"
	"strconv"

	"github.com/kiln-build/kiln/internal/vars"
)

// NotPureError reports an attempt to call a non-pure function (getenv,
// path_search) somewhere that requires purity, such as a cached
// incremental-rebuild decision.
type NotPureError struct {
	Name string
}

func (e *NotPureError) Error() string {
	return fmt.Sprintf("function %s is not pure", e.Name)
}

// String converts a bool, int64, or uint64 value to its string
// representation; a String is returned as is and a Path is converted to
// its string form. Any other argument type is a TypeMismatchError.
func String(v vars.Value) (vars.String, error) {
	switch t := v.(type) {
	case vars.Bool:
		return vars.String(strconv.FormatBool(bool(t))), nil
	case vars.Int64:
		return vars.String(strconv.FormatInt(int64(t), 10)), nil
	case vars.UInt64:
		return vars.String(strconv.FormatUint(uint64(t), 10)), nil
	case vars.String:
		return t, nil
	case vars.Path:
		return vars.String(t), nil
	default:
		return "", &vars.TypeMismatchError{Want: vars.KindString, Got: v.Kind(), Detail: "string() does not accept this type"}
	}
}
