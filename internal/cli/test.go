package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kiln-build/kiln/internal/testscript"
)

// TestOptions holds flags for "kiln test".
type TestOptions struct {
	*RootOptions
	WorkDir string
}

// TestResult is the JSON payload for "kiln test".
type TestResult struct {
	Scripts []ScriptResult `json:"scripts"`
}

// ScriptResult reports one script's outcome.
type ScriptResult struct {
	Path   string `json:"path"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// NewTestCommand creates "kiln test [script...]", which drives
// internal/testscript directly rather than going through the
// dependency executor — the same separation the teacher keeps between
// the command that drives its engine and the one that drives its test
// harness.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [script...]",
		Short: "Run one or more test scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, args, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.WorkDir, "work-dir", "", "base directory scripts run in (default: a temp dir per script)")
	return cmd
}

func runTest(opts *TestOptions, scripts []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if len(scripts) == 0 {
		found, err := discoverScripts(opts.SrcRoot)
		if err != nil {
			return abortPerform(formatter, err)
		}
		scripts = found
	}

	result := TestResult{}
	failed := false
	for _, path := range scripts {
		sr := ScriptResult{Path: path}
		if err := runOneScript(opts, path); err != nil {
			sr.Error = err.Error()
			failed = true
		} else {
			sr.Passed = true
		}
		result.Scripts = append(result.Scripts, sr)
	}

	if failed {
		_ = formatter.Success(result)
		return WrapExitError(ExitFailure, "one or more test scripts failed", fmt.Errorf("test failures"))
	}
	opts.Log.Info().Int("scripts", len(scripts)).Msg("all scripts passed")
	return formatter.Success(result)
}

func runOneScript(opts *TestOptions, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	setup, script, err := testscript.ParseWithSetup(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir, err = os.MkdirTemp("", "kiln-test-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(workDir)
	}

	r := testscript.NewRunner()
	sc := testscript.NewScope(filepath.Join(workDir, filepath.Base(path)))
	if err := r.Enter(sc); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	runErr := r.RunScenario(setup, script, sc)
	if leaveErr := r.Leave(sc); leaveErr != nil && runErr == nil {
		runErr = leaveErr
	}
	if runErr != nil {
		return fmt.Errorf("%s: %w", path, runErr)
	}
	return nil
}

// discoverScripts walks root for *.testscript files, the convention the
// teacher's own golden-trace scenarios use for discoverable test files.
func discoverScripts(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".testscript" {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
