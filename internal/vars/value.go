// Package vars implements the typed, overridable variable model: a sealed
// value hierarchy (null, typed, or untyped name list), a single interning
// pool of variable declarations, pattern-based typing, and an override
// chain resolved at lookup time.
//
// The sealed interface shape mirrors a tagged-sum value model: a private
// marker method restricts implementers to the types declared in this
// package, the same discipline a closed set of JSON-like value kinds uses
// to prevent callers from inventing new variants outside the engine.
package vars

import (
	"fmt"

	"github.com/kiln-build/kiln/internal/pool"
)

// Kind names a declared variable type.
type Kind int

const (
	KindUntyped Kind = iota
	KindBool
	KindUInt64
	KindInt64
	KindString
	KindPath
	KindDirPath
	KindAbsDirPath
	KindProjectName
	KindName
	KindListName
	KindListString
	KindListPath
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindUInt64:
		return "uint64"
	case KindInt64:
		return "int64"
	case KindString:
		return "string"
	case KindPath:
		return "path"
	case KindDirPath:
		return "dir_path"
	case KindAbsDirPath:
		return "abs_dir_path"
	case KindProjectName:
		return "project_name"
	case KindName:
		return "name"
	case KindListName:
		return "name[]"
	case KindListString:
		return "string[]"
	case KindListPath:
		return "path[]"
	default:
		return "untyped"
	}
}

// elementKind returns the scalar kind carried by a list kind, or
// KindUntyped if k is not a list kind.
func (k Kind) elementKind() Kind {
	switch k {
	case KindListName:
		return KindName
	case KindListString:
		return KindString
	case KindListPath:
		return KindPath
	default:
		return KindUntyped
	}
}

func (k Kind) isList() bool {
	switch k {
	case KindListName, KindListString, KindListPath:
		return true
	default:
		return false
	}
}

// Value is the sealed tagged-sum value type. Null and "unset" are
// distinguished: a Go nil Value means unset (never looked up); Null{}
// means explicitly assigned null.
type Value interface {
	Kind() Kind
	value()
}

// Null is an explicitly assigned null value, distinct from "unset".
type Null struct{}

func (Null) Kind() Kind { return KindUntyped }
func (Null) value()     {}

// Bool is a typed boolean value.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) value()     {}

// UInt64 is a typed unsigned-64 value.
type UInt64 uint64

func (UInt64) Kind() Kind { return KindUInt64 }
func (UInt64) value()     {}

// Int64 is a typed signed-64 value.
type Int64 int64

func (Int64) Kind() Kind { return KindInt64 }
func (Int64) value()     {}

// String is a typed string value.
type String string

func (String) Kind() Kind { return KindString }
func (String) value()     {}

// Path is a typed filesystem path value.
type Path string

func (Path) Kind() Kind { return KindPath }
func (Path) value()     {}

// DirPath is a typed directory path; its external representation always
// carries a trailing separator, enforced by String.
type DirPath string

func (DirPath) Kind() Kind { return KindDirPath }
func (DirPath) value()     {}

// String renders the directory path with its mandatory trailing slash.
func (d DirPath) String() string {
	s := string(d)
	if s == "" || s[len(s)-1] == '/' {
		return s
	}
	return s + "/"
}

// ProjectName is a typed project-name value referencing the interned pool.
type ProjectName struct{ Ref pool.ProjectName }

func (ProjectName) Kind() Kind { return KindProjectName }
func (ProjectName) value()     {}

// Name is a typed name value: a logical identifier with optional project
// qualifier, optional directory, optional type tag, a value, and the pair
// marker used for build2-style "a@b c@b" prerequisite pairs.
type Name struct {
	Project   string
	Dir       string
	Qualifier string
	Value     string
	Pair      bool
}

func (Name) Kind() Kind { return KindName }
func (Name) value()     {}

// List is a typed homogeneous list value (list-of-name, list-of-string,
// list-of-path).
type List struct {
	Elem Kind
	Vals []Value
}

func (l List) Kind() Kind {
	switch l.Elem {
	case KindName:
		return KindListName
	case KindPath:
		return KindListPath
	default:
		return KindListString
	}
}
func (List) value() {}

// Untyped is a raw sequence of names, the form a value has before
// Typify promotes it to a declared type.
type Untyped struct {
	Names []Name
}

func (Untyped) Kind() Kind { return KindUntyped }
func (Untyped) value()     {}

// Typify promotes an Untyped value to kind, performing element-wise
// conversion. Returns a *TypeMismatchError wrapping "value-type-mismatch"
// on ambiguity.
func Typify(v Value, kind Kind) (Value, error) {
	u, ok := v.(Untyped)
	if !ok {
		if v.Kind() == kind {
			return v, nil
		}
		return nil, &TypeMismatchError{Want: kind, Got: v.Kind()}
	}
	if kind.isList() {
		elem := kind.elementKind()
		vals := make([]Value, 0, len(u.Names))
		for _, n := range u.Names {
			ev, err := typifyName(n, elem)
			if err != nil {
				return nil, err
			}
			vals = append(vals, ev)
		}
		return List{Elem: elem, Vals: vals}, nil
	}
	if len(u.Names) != 1 {
		return nil, &TypeMismatchError{Want: kind, Got: KindUntyped, Detail: fmt.Sprintf("expected exactly one name, got %d", len(u.Names))}
	}
	return typifyName(u.Names[0], kind)
}

func typifyName(n Name, kind Kind) (Value, error) {
	switch kind {
	case KindName:
		return n, nil
	case KindString:
		return String(n.Value), nil
	case KindPath:
		return Path(n.Dir + n.Value), nil
	case KindDirPath, KindAbsDirPath:
		return DirPath(n.Dir + n.Value), nil
	case KindBool:
		switch n.Value {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return nil, &TypeMismatchError{Want: kind, Got: KindName, Detail: "not a boolean literal: " + n.Value}
	case KindUInt64, KindInt64:
		var iv int64
		if _, err := fmt.Sscanf(n.Value, "%d", &iv); err != nil {
			return nil, &TypeMismatchError{Want: kind, Got: KindName, Detail: "not an integer literal: " + n.Value}
		}
		if kind == KindUInt64 {
			return UInt64(iv), nil
		}
		return Int64(iv), nil
	default:
		return nil, &TypeMismatchError{Want: kind, Got: KindName, Detail: "unsupported scalar promotion"}
	}
}

// TypeMismatchError reports a failed Typify or a redeclaration conflict.
type TypeMismatchError struct {
	Want, Got Kind
	Detail    string
}

func (e *TypeMismatchError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("value-type-mismatch: want %s, got %s: %s", e.Want, e.Got, e.Detail)
	}
	return fmt.Sprintf("value-type-mismatch: want %s, got %s", e.Want, e.Got)
}

// Append combines base and other per type: string concatenation, list
// catenation, or path join. Returns an error if the two operands have
// incompatible kinds.
func Append(base, other Value) (Value, error) {
	switch b := base.(type) {
	case String:
		o, ok := other.(String)
		if !ok {
			return nil, &TypeMismatchError{Want: KindString, Got: other.Kind()}
		}
		return b + o, nil
	case Path:
		o, ok := other.(Path)
		if !ok {
			return nil, &TypeMismatchError{Want: KindPath, Got: other.Kind()}
		}
		return Path(string(b) + "/" + string(o)), nil
	case List:
		o, ok := other.(List)
		if !ok || o.Elem != b.Elem {
			return nil, &TypeMismatchError{Want: b.Kind(), Got: other.Kind()}
		}
		merged := make([]Value, 0, len(b.Vals)+len(o.Vals))
		merged = append(merged, b.Vals...)
		merged = append(merged, o.Vals...)
		return List{Elem: b.Elem, Vals: merged}, nil
	case Null:
		return other, nil
	default:
		return nil, &TypeMismatchError{Want: base.Kind(), Got: other.Kind(), Detail: "append not defined for this type"}
	}
}

// Prepend is Append with operands reversed, matching "=+" semantics.
func Prepend(base, other Value) (Value, error) {
	return Append(other, base)
}
