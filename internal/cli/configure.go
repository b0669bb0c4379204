package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiln-build/kiln/internal/action"
	"github.com/kiln-build/kiln/internal/engine"
	"github.com/kiln-build/kiln/internal/target"
)

// kilnDir returns the private state directory a configured out_root
// keeps its config.build, install manifest, and history database under.
func kilnDir(outRoot string) string {
	return filepath.Join(outRoot, ".kiln")
}

// NewConfigureCommand creates "kiln configure [config.var=value...]".
func NewConfigureCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure [config.var=value...]",
		Short: "Bootstrap a build configuration in out-root",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runConfigure(opts *RootOptions, configArgs []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	h, err := openProject(opts.OutRoot, opts.SrcRoot, configArgs)
	if err != nil {
		return abortPerform(formatter, err)
	}

	dir := kilnDir(opts.OutRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return abortPerform(formatter, err)
	}
	for _, arg := range configArgs {
		name, value, _ := strings.Cut(arg, "=")
		h.Config.Set(name, value)
	}
	if err := h.Config.WriteTo(dir); err != nil {
		return abortPerform(formatter, err)
	}

	opts.Log.Info().Str("out_root", opts.OutRoot).Msg("configured")
	return formatter.Success(map[string]any{"out_root": opts.OutRoot, "src_root": opts.SrcRoot})
}

// NewDisfigureCommand creates "kiln disfigure", the configure inverse:
// runs a clean over the default target then removes the private state
// directory, mirroring the teacher's forwarding-recipe clean semantics
// for a project-wide teardown.
func NewDisfigureCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disfigure",
		Short: "Tear down a build configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisfigure(rootOpts, cmd)
		},
	}
	return cmd
}

func runDisfigure(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	h, err := openProject(opts.OutRoot, opts.SrcRoot, nil)
	if err != nil {
		return abortPerform(formatter, err)
	}

	table := h.Loader.Table(h.Root)
	cleanID, _ := table.OpByName("clean")
	eng := engine.New(h.Loader.Types["file"], h.Loader.Targets, engine.WithTargetSet(h.Loader.Targets))
	if _, err := eng.Run(action.Pack(action.MetaPerform, cleanID, 0), []*target.Target{h.defaultTarget()}); err != nil {
		opts.Log.Warn().Err(err).Msg("clean before disfigure reported an error")
	}

	if err := os.RemoveAll(kilnDir(opts.OutRoot)); err != nil {
		return abortPerform(formatter, err)
	}

	opts.Log.Info().Str("out_root", opts.OutRoot).Msg("disfigured")
	return formatter.Success(map[string]any{"out_root": opts.OutRoot, "disfigured": true})
}
