package builtin

import (
	"os"
	"path/filepath"

	"github.com/kiln-build/kiln/internal/vars"
)

// PathSearch resolves pattern (a filepath.Glob pattern) relative to
// start (if start is empty, pattern is used as given, so a relative
// pattern resolves against the process working directory), returning every
// matching path as a vars.Path. Symlinks are followed when deciding
// whether a match exists; a symlink whose target doesn't resolve is
// still reported as a match (its presence, not its target, is what the
// glob found) but is also surfaced as a warning so the caller can
// report it without failing the whole search.
func PathSearch(pattern, start string) (vars.List, []string, error) {
	full := pattern
	if start != "" {
		full = filepath.Join(start, pattern)
	}

	matches, err := filepath.Glob(full)
	if err != nil {
		return vars.List{}, nil, err
	}

	vals := make([]vars.Value, 0, len(matches))
	var warnings []string
	for _, m := range matches {
		if _, err := os.Stat(m); err != nil {
			if os.IsNotExist(err) {
				warnings = append(warnings, "dangling symlink: "+m)
			}
		}
		vals = append(vals, vars.Path(m))
	}
	return vars.List{Elem: vars.KindPath, Vals: vals}, warnings, nil
}
