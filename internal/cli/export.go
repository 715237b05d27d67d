package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"reqflow/internal/store"
)

// ErrUnsafePath is returned for generated file names that would escape the
// export directory.
var ErrUnsafePath = errors.New("unsafe file path")

func newExportCommand(app *App) *cobra.Command {
	var (
		dir    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export <workflow-id>",
		Short: "Export generated code or the workflow state",
		Long: `With --dir, write the generated code files into a directory.
Otherwise print the full workflow state as JSON or YAML.

Examples:
  reqflow export 6f1c1b7e-5d8a-4c1e-9f8e-0c2b9a7d4e11 --dir ./out
  reqflow export 6f1c1b7e-5d8a-4c1e-9f8e-0c2b9a7d4e11 --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if dir != "" {
				written, err := ExportFiles(dir, st.CodeGeneration.Files)
				if err != nil {
					return err
				}
				for _, path := range written {
					app.Printer.Text("wrote %s", path)
				}
				return nil
			}

			data, err := store.Encode(st, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory to write generated code into")
	cmd.Flags().StringVar(&format, "format", "json", "state format when --dir is not set (json or yaml)")
	return cmd
}

// ExportFiles writes files under dir and returns the written paths in name
// order. Every name is checked before anything is written.
func ExportFiles(dir string, files map[string]string) ([]string, error) {
	if len(files) == 0 {
		return nil, errors.New("workflow has no generated code")
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	targets := make(map[string]string, len(files))
	for _, name := range names {
		target, err := safeJoin(dir, name)
		if err != nil {
			return nil, err
		}
		targets[name] = target
	}

	written := make([]string, 0, len(names))
	for _, name := range names {
		if err := store.WriteAtomic(targets[name], []byte(files[name])); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, targets[name])
	}
	return written, nil
}

func safeJoin(dir, name string) (string, error) {
	if strings.TrimSpace(name) == "" || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" ||
		clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(dir, clean), nil
}
