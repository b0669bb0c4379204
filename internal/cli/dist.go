package cli

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kiln-build/kiln/internal/action"
	"github.com/kiln-build/kiln/internal/engine"
	"github.com/kiln-build/kiln/internal/target"
)

// DistOptions holds flags for "kiln dist".
type DistOptions struct {
	*RootOptions
	Output string
}

// NewDistCommand creates "kiln dist".
func NewDistCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DistOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dist",
		Short: "Produce a source distribution tarball",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDist(opts, cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output tarball path (default: <project>.tar.gz)")
	return cmd
}

func runDist(opts *DistOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	h, err := openProject(opts.OutRoot, opts.SrcRoot, nil)
	if err != nil {
		return abortPerform(formatter, err)
	}

	// The dist meta-operation still runs update-for-dist across the
	// default target first, so generated sources are current before
	// they are archived.
	table := h.Loader.Table(h.Root)
	updateID, _ := table.OpByName("update")
	eng := engine.New(h.Loader.Types["file"], h.Loader.Targets, engine.WithTargetSet(h.Loader.Targets))
	if _, err := eng.Run(action.Pack(action.MetaDist, updateID, 0), []*target.Target{h.defaultTarget()}); err != nil {
		return abortPerform(formatter, err)
	}

	out := opts.Output
	if out == "" {
		out = filepath.Base(opts.SrcRoot) + ".tar.gz"
	}
	if err := archiveDir(opts.SrcRoot, out); err != nil {
		return abortPerform(formatter, err)
	}

	opts.Log.Info().Str("output", out).Msg("dist complete")
	return formatter.Success(map[string]any{"output": out})
}

// archiveDir writes a gzip-compressed tar of src to dst, skipping the
// private .kiln state directory the way a distribution never ships a
// consumer's own build output.
func archiveDir(src, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() && info.Name() == ".kiln" {
			return filepath.SkipDir
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		sf, err := os.Open(path)
		if err != nil {
			return err
		}
		defer sf.Close()
		_, err = io.Copy(tw, sf)
		return err
	})
}
