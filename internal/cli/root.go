package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// RootOptions holds the global flags shared by every kiln subcommand.
type RootOptions struct {
	Verbose int    // repeatable -v; 0=warn, 1=info, 2=debug, 3+=trace
	Format  string // "text" | "json"
	SrcRoot string // project source directory; defaults to the working directory
	OutRoot string // build output directory; defaults to SrcRoot (in-tree build)
	Log     zerolog.Logger
}

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand builds the kiln root command and wires every
// subcommand under it, mirroring the way the teacher's NewRootCommand
// composes its own subcommand set from a single shared RootOptions.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kiln",
		Short: "kiln - a build2-style dependency executor",
		Long: `kiln drives buildfile-declared targets through the perform/
configure/disfigure/dist/info meta-operations using a two-phase
match/apply rule protocol, the same shape build2 itself uses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
				With().Timestamp().Logger().Level(levelForVerbosity(opts.Verbose))
			if opts.SrcRoot == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("determine working directory: %w", err)
				}
				opts.SrcRoot = wd
			}
			if opts.OutRoot == "" {
				opts.OutRoot = opts.SrcRoot
			}
			return nil
		},
	}

	cmd.PersistentFlags().CountVarP(&opts.Verbose, "verbose", "v", "increase log verbosity (repeatable)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.SrcRoot, "directory", "C", "", "project source directory (default: working directory)")
	cmd.PersistentFlags().StringVar(&opts.OutRoot, "out", "", "build output directory (default: source directory)")

	cmd.AddCommand(NewPerformCommand(opts))
	cmd.AddCommand(NewConfigureCommand(opts))
	cmd.AddCommand(NewDisfigureCommand(opts))
	cmd.AddCommand(NewDistCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// levelForVerbosity maps -v's repeat count onto zerolog's level scale,
// the way spec.md's trace/info/warn/error/fail scale maps onto it
// (warn is the default, quiet floor; -vvv and beyond is trace).
func levelForVerbosity(v int) zerolog.Level {
	switch {
	case v <= 0:
		return zerolog.WarnLevel
	case v == 1:
		return zerolog.InfoLevel
	case v == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
