package builtin

import (
	"os"

	"github.com/kiln-build/kiln/internal/vars"
)

// Getenv returns the process environment variable name as a
// vars.String, or vars.Null{} if it is unset. It is not pure: two calls
// in the same process can observe different results if the environment
// changes between them, so callers must never fold its result into a
// cached incremental-rebuild decision.
func Getenv(name string) vars.Value {
	v, ok := os.LookupEnv(name)
	if !ok {
		return vars.Null{}
	}
	return vars.String(v)
}
