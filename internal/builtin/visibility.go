package builtin

import (
	"github.com/kiln-build/kiln/internal/scope"
	"github.com/kiln-build/kiln/internal/vars"
)

// Defined reports whether name has any declaration visible from sc,
// walking sc's ancestor chain exactly as an ordinary lookup would —
// without requiring that it currently holds a (non-null) value.
func Defined(sc *scope.Scope, name string) vars.Bool {
	_, ok := sc.FindDecl(name)
	return vars.Bool(ok)
}

// Visibility returns name's declared visibility as a lowercase string
// (target, prerequisite, scope, project, global), or vars.Null{} if name
// is undeclared anywhere visible from sc.
func Visibility(sc *scope.Scope, name string) vars.Value {
	decl, ok := sc.FindDecl(name)
	if !ok || decl == nil {
		return vars.Null{}
	}
	return vars.String(decl.Visibility.String())
}
