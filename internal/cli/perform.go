package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kiln-build/kiln/internal/action"
	"github.com/kiln-build/kiln/internal/engine"
	"github.com/kiln-build/kiln/internal/history"
	"github.com/kiln-build/kiln/internal/target"
)

// PerformOptions holds flags for "kiln perform".
type PerformOptions struct {
	*RootOptions
	Jobs            int
	FailFast        bool
	PostponeRetries int
}

// PerformResult is the JSON payload for a successful perform run.
type PerformResult struct {
	Operation string        `json:"operation"`
	Targets   []TargetState `json:"targets"`
}

// TargetState reports one target's terminal state.
type TargetState struct {
	Target string `json:"target"`
	State  string `json:"state"`
}

// NewPerformCommand creates "kiln perform <op> [target...] [config.var=value...]".
func NewPerformCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PerformOptions{RootOptions: rootOpts, PostponeRetries: 1}

	cmd := &cobra.Command{
		Use:   "perform <op> [target...] [config.var=value...]",
		Short: "Run an operation (default/update/clean/...) over targets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPerform(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "maximum concurrent recipes (0 = unbounded)")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "abort the whole run on the first failure")
	cmd.Flags().IntVar(&opts.PostponeRetries, "postpone-retries", 1, "retries allowed before a postponed action becomes fatal")

	return cmd
}

func runPerform(opts *PerformOptions, opName string, rest []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	targetNames, configArgs := splitArgs(rest)

	h, err := openProject(opts.OutRoot, opts.SrcRoot, configArgs)
	if err != nil {
		return abortPerform(formatter, err)
	}

	table := h.Loader.Table(h.Root)
	opID, ok := table.OpByName(opName)
	if !ok {
		return abortPerform(formatter, fmt.Errorf("unknown-operation: %q is not a registered operation", opName))
	}

	roots, err := h.resolveTargets(targetNames)
	if err != nil {
		return abortPerform(formatter, err)
	}

	set := h.Loader.Targets
	eng := engine.New(h.Loader.Types["file"], set,
		engine.WithWorkers(opts.Jobs),
		engine.WithFailFast(opts.FailFast),
		engine.WithPostponeRetries(opts.PostponeRetries),
		engine.WithTargetSet(set),
	)

	a := action.Pack(action.MetaPerform, opID, 0)

	store, run := openHistory(opts.OutRoot, a, opts.Log)
	if store != nil {
		defer store.Close()
	}
	if run != nil {
		eng.OnTransition = func(t *target.Target, act uint32, s target.State) {
			if !s.Terminal() {
				return
			}
			_ = run.RecordTarget(context.Background(), t.String(), action.ID(act), s, "")
		}
	}

	opts.Log.Info().Str("operation", opName).Int("targets", len(roots)).Msg("perform starting")
	states, runErr := eng.Run(a, roots)
	if run != nil {
		_ = run.End(context.Background(), runErr == nil)
	}

	result := PerformResult{Operation: opName}
	for i, t := range roots {
		result.Targets = append(result.Targets, TargetState{Target: t.String(), State: states[i].String()})
	}

	if runErr != nil {
		opts.Log.Error().Err(runErr).Msg("perform failed")
		_ = formatter.Error("E_PERFORM", runErr.Error())
		return WrapExitError(ExitFailure, "perform failed", runErr)
	}

	opts.Log.Info().Msg("perform complete")
	return formatter.Success(result)
}

func abortPerform(f *OutputFormatter, err error) error {
	_ = f.Error("E_COMMAND", err.Error())
	return WrapExitError(ExitCommandError, "perform aborted", err)
}

// openHistory opens the run-history database under outRoot and begins a
// new run row, logging and continuing without history on any failure —
// per internal/history's package doc, a missing or corrupt history.db
// must never affect a build's outcome.
func openHistory(outRoot string, a action.ID, log zerolog.Logger) (*history.Store, *history.Run) {
	dir := filepath.Join(outRoot, ".kiln")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Err(err).Msg("history unavailable, continuing without it")
		return nil, nil
	}
	store, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		log.Warn().Err(err).Msg("history unavailable, continuing without it")
		return nil, nil
	}
	run, err := store.BeginRun(context.Background(), uuid.New().String(), a)
	if err != nil {
		log.Warn().Err(err).Msg("history unavailable, continuing without it")
		store.Close()
		return nil, nil
	}
	return store, run
}
