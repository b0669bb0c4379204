package builtin

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/kiln-build/kiln/internal/vars"
)

var collator = collate.New(language.Und)

// Sort returns a new list with list's elements ordered by
// golang.org/x/text/collate's locale-aware string comparison (rather
// than a byte-wise strings.Compare, so accented and non-ASCII names
// still sort the way a human expects). If dedup is set, adjacent equal
// elements (by the same collation key) are removed after sorting.
func Sort(list vars.List, dedup bool) (vars.List, error) {
	keys := make([]string, len(list.Vals))
	for i, v := range list.Vals {
		k, err := sortKey(v)
		if err != nil {
			return vars.List{}, err
		}
		keys[i] = k
	}

	idx := make([]int, len(list.Vals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return collator.CompareString(keys[idx[i]], keys[idx[j]]) < 0
	})

	out := make([]vars.Value, 0, len(list.Vals))
	var lastKey string
	haveLast := false
	for _, i := range idx {
		if dedup && haveLast && collator.CompareString(lastKey, keys[i]) == 0 {
			continue
		}
		out = append(out, list.Vals[i])
		lastKey = keys[i]
		haveLast = true
	}
	return vars.List{Elem: list.Elem, Vals: out}, nil
}

func sortKey(v vars.Value) (string, error) {
	switch t := v.(type) {
	case vars.String:
		return string(t), nil
	case vars.Path:
		return string(t), nil
	case vars.Name:
		return t.Value, nil
	default:
		return "", &vars.TypeMismatchError{Want: vars.KindString, Got: v.Kind(), Detail: "sort() needs a string, path, or name element"}
	}
}
