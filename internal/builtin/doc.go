// Package builtin implements the core function namespace available to
// buildfiles: string, quote, size, sort, getenv, path_search, defined,
// and visibility. Each is a small pure function over internal/vars
// values (getenv and path_search excepted — they consult the process
// environment and the filesystem respectively, and are never safe to
// memoize across a configuration change).
//
// Overload resolution happens by declared argument type, the same way a
// caller picks which internal/vars.Value constructor applies to a raw
// literal: a function tries the types its signature accepts, in order,
// and fails closed (TypeMismatchError) if none match.
package builtin
