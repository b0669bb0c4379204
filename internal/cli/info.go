package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kiln-build/kiln/internal/action"
	"github.com/kiln-build/kiln/internal/history"
	"github.com/kiln-build/kiln/internal/rule"
)

// InfoResult is the JSON payload for "kiln info".
type InfoResult struct {
	OutRoot   string         `json:"out_root"`
	SrcRoot   string         `json:"src_root"`
	Operation string         `json:"operation,omitempty"`
	Targets   []InfoTarget   `json:"targets,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
}

// InfoTarget reports one target's resolved match, for the "info"
// meta-operation's diagnostic trace of what would run, without running
// it.
type InfoTarget struct {
	Target  string               `json:"target"`
	Rule    string               `json:"rule,omitempty"`
	Error   string               `json:"error,omitempty"`
	Prereqs []string             `json:"prerequisites,omitempty"`
	History []history.TargetEvent `json:"history,omitempty"`
}

// InfoOptions holds flags for "kiln info".
type InfoOptions struct {
	*RootOptions
	History bool
}

// NewInfoCommand creates "kiln info [op] [target...]": prints the
// resolved scope tree's configuration, and, for a given operation, which
// rule would match each target, without executing any recipe.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InfoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "info [op] [target...]",
		Short: "Show configuration and resolved rule matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(opts, args, cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.History, "history", false, "include recorded run history for each named target")
	return cmd
}

func runInfo(opts *InfoOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	h, err := openProject(opts.OutRoot, opts.SrcRoot, nil)
	if err != nil {
		return abortPerform(formatter, err)
	}

	result := InfoResult{OutRoot: opts.OutRoot, SrcRoot: opts.SrcRoot, Config: h.Config.AllSettings()}

	if len(args) == 0 {
		return formatter.Success(result)
	}

	opName := args[0]
	table := h.Loader.Table(h.Root)
	opID, ok := table.OpByName(opName)
	if !ok {
		return abortPerform(formatter, fmt.Errorf("unknown-operation: %q is not a registered operation", opName))
	}
	result.Operation = opName

	targets, err := h.resolveTargets(args[1:])
	if err != nil {
		return abortPerform(formatter, err)
	}

	var histStore *history.Store
	if opts.History {
		if s, err := history.Open(filepath.Join(opts.OutRoot, ".kiln", "history.db")); err == nil {
			histStore = s
			defer histStore.Close()
		} else {
			opts.Log.Warn().Err(err).Msg("history unavailable")
		}
	}

	a := action.Pack(action.MetaPerform, opID, 0)
	for _, t := range targets {
		it := InfoTarget{Target: t.String()}
		r, md, matchErr := rule.Match(t.BaseScope, a, t, "")
		if matchErr != nil {
			it.Error = matchErr.Error()
			result.Targets = append(result.Targets, it)
			continue
		}
		it.Rule = fmt.Sprintf("%T", r)
		if _, err := rule.Apply(r, a, t, md); err != nil {
			it.Error = err.Error()
		}
		for _, p := range t.Prereqs {
			it.Prereqs = append(it.Prereqs, p.Name)
		}
		if histStore != nil {
			events, err := histStore.EventsForTarget(context.Background(), t.String())
			if err != nil {
				opts.Log.Warn().Err(err).Str("target", t.String()).Msg("history query failed")
			} else {
				it.History = events
			}
		}
		result.Targets = append(result.Targets, it)
	}

	return formatter.Success(result)
}
