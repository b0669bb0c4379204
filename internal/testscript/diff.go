package testscript

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// compareBytes reports whether want and got are byte-identical once
// trailing carriage returns are stripped from each line, shelling out
// to DiffBin to produce a unified diff on mismatch exactly the way a
// shell invocation of "diff --strip-trailing-cr -u" would. If DiffBin
// can't be found on PATH, it falls back to an equivalent diff computed
// in-process with go-difflib so a missing binary doesn't just hide the
// mismatch.
func (r *Runner) compareBytes(want, got []byte) (string, bool, error) {
	wantLines := splitStripCR(want)
	gotLines := splitStripCR(got)
	if equalLines(wantLines, gotLines) {
		return "", true, nil
	}

	if diff, err := r.externalDiff(want, got); err == nil {
		return diff, false, nil
	}

	ud := difflib.UnifiedDiff{
		A:        wantLines,
		B:        gotLines,
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", false, fmt.Errorf("testscript: diff: %w", err)
	}
	return text, false, nil
}

func (r *Runner) externalDiff(want, got []byte) (string, error) {
	bin := r.DiffBin
	if bin == "" {
		bin = "diff"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return "", err
	}

	wantFile, err := os.CreateTemp("", "testscript-want-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(wantFile.Name())
	defer wantFile.Close()
	if _, err := wantFile.Write(want); err != nil {
		return "", err
	}

	gotFile, err := os.CreateTemp("", "testscript-got-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(gotFile.Name())
	defer gotFile.Close()
	if _, err := gotFile.Write(got); err != nil {
		return "", err
	}

	out, runErr := exec.Command(bin, "--strip-trailing-cr", "-u", wantFile.Name(), gotFile.Name()).CombinedOutput()
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			return "", runErr
		}
		// diff exits 1 when inputs differ — that's the expected case here.
	}
	return string(out), nil
}

func splitStripCR(b []byte) []string {
	lines := strings.Split(string(b), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// matchRegexLines matches got's lines against rd's per-line
// literal/regex alternatives. Flag "i" makes every regex
// case-insensitive; "n" allows got to have more trailing lines than rd
// specifies (got must still have at least as many lines as rd).
func matchRegexLines(rd Redirect, got []byte) (bool, string) {
	var body RegexLines
	var lines []string
	if rd.Kind == RedirectHereStrRegex {
		body = RegexLines{Lines: []RegexLine{{Regex: true, Value: rd.HereStr}}}
		lines = splitStripCR(got)
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
	} else {
		body = rd.HereDoc
		lines = splitStripCR(got)
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
	}

	noFullMatch := strings.Contains(body.Flags, "n")
	if !noFullMatch && len(lines) != len(body.Lines) {
		return false, fmt.Sprintf("expected %d line(s), got %d", len(body.Lines), len(lines))
	}
	if len(lines) < len(body.Lines) {
		return false, fmt.Sprintf("expected at least %d line(s), got %d", len(body.Lines), len(lines))
	}

	for i, want := range body.Lines {
		got := lines[i]
		if !want.Regex {
			if got != want.Value {
				return false, fmt.Sprintf("line %d: expected %q, got %q", want.Line, want.Value, got)
			}
			continue
		}
		pattern := want.Value
		flags := body.Flags + want.Flags
		if strings.Contains(flags, "i") {
			pattern = "(?i)" + pattern
		}
		full := !strings.Contains(flags, "d")
		if full {
			pattern = "^(?:" + pattern + ")$"
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Sprintf("line %d: invalid regex %q: %v", want.Line, want.Value, err)
		}
		if !re.MatchString(got) {
			return false, fmt.Sprintf("line %d: %q doesn't match /%s/", want.Line, got, want.Value)
		}
	}
	return true, ""
}
