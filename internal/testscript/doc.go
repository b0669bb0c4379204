// Package testscript implements the test-script runner: a small
// shell-like sub-language for writing build-output conformance tests.
//
// A script is a sequence of lines grouped into nested scopes. Each scope
// gets its own working directory, its own cleanup stack, and its own
// local variables; commands run with redirected stdin/stdout/stderr and
// an expected exit status, and register cleanup paths that are removed
// (in reverse order, deduplicated) when the scope is left.
//
// # Script syntax
//
//	out_dir = output
//	mkdir $out_dir &$out_dir
//	cat <<EOO >=$out_dir/greeting.txt
//	hello, world
//	EOO
//	test -f $out_dir/greeting.txt
//	if ($config.verbose)
//	    echo verbose >>EOO
//	    verbose
//	    EOO
//	end
//
// Commands are piped with `|` and pipelines chained with `&&`/`||`
// (short-circuiting). Redirects:
//
//	<path        read stdin from path
//	<<TERM       stdin from a literal here-document, terminated by TERM
//	<<:TERM      stdin from a regex here-document
//	<<<str       stdin from a literal here-string
//	<<<:str      stdin from a regex here-string
//	>path        compare stdout against path (fails the test on mismatch)
//	>=path       overwrite path with stdout
//	>+path       append stdout to path
//	>-           assert stdout produced no output
//	>>TERM       compare stdout against a literal here-document
//	>>:TERM      compare stdout against a regex here-document
//	>>>str       compare stdout against a literal here-string
//	>>>:str      compare stdout against a regex here-string
//
// `2>...` redirects stderr using the same forms as `>...`; `2>&1` and
// `1>&2` merge one stream into the other. Trailing `&path`, `&?path`,
// `&!path` register a cleanup path as always/maybe/never: `always` fails
// if the path is missing when the scope is left, `maybe` ignores a
// missing path, `never` skips the removal but still checks presence
// unless maybe. Exit is expected to be `== 0` unless a trailing `== N`
// or `!= N` is given.
//
// A here-document's terminator may be written %term% instead of a bare
// word, for a terminator whose body legitimately needs to contain the
// default spelling (EOO) as ordinary content. A script file may also
// open with a run of "+"-prefixed lines: a shared setup block, parsed
// once and replayed into every scenario that follows it (see
// ParseWithSetup, SharedSetup).
package testscript
