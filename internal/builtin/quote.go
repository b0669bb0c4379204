package builtin

import (
	"strconv"
	"strings"

	"github.com/kiln-build/kiln/internal/vars"
)

// defaultQuoteSet is the set of characters that, if present, force the
// value to be single-quoted: whitespace and the shell metacharacters a
// buildfile line splitter treats specially.
const defaultQuoteSet = " \t\n'\"$()|&;<>\\"

// Quote renders v as a string literal safe to paste back into a
// buildfile line: single-quoted, each embedded single quote written as
// close quote, backslash, quote, reopen quote, if it contains any
// character in defaultQuoteSet or in the
// caller-supplied extra escape set; otherwise returned unquoted. escape
// may be empty.
func Quote(v vars.Value, escape string) (vars.String, error) {
	raw, err := quoteSource(v)
	if err != nil {
		return "", err
	}
	if !needsQuoting(raw, escape) {
		return vars.String(raw), nil
	}
	return vars.String(quoteLiteral(raw)), nil
}

func quoteSource(v vars.Value) (string, error) {
	switch t := v.(type) {
	case vars.String:
		return string(t), nil
	case vars.Path:
		return string(t), nil
	case vars.DirPath:
		return t.String(), nil
	case vars.Name:
		return t.Value, nil
	case vars.Bool:
		return strconv.FormatBool(bool(t)), nil
	case vars.Int64:
		return strconv.FormatInt(int64(t), 10), nil
	case vars.UInt64:
		return strconv.FormatUint(uint64(t), 10), nil
	default:
		return "", &vars.TypeMismatchError{Want: vars.KindString, Got: v.Kind(), Detail: "quote() does not accept this type"}
	}
}

func needsQuoting(s, extra string) bool {
	return strings.ContainsAny(s, defaultQuoteSet) || (extra != "" && strings.ContainsAny(s, extra))
}

func quoteLiteral(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		if r == '\'' {
			b.WriteString(`'\''`)
			continue
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}
