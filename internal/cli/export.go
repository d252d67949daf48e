package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sadopc/habitlab/internal/export"
	"github.com/sadopc/habitlab/internal/tracker"
)

func newExportCmd(env func() *env) *cobra.Command {
	var (
		experimentID string
		format       string
		out          string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an experiment's daily records as CSV or JSON",
		Long: `Export writes one row per daily record of an experiment.

Without --experiment the active experiment is exported, or the newest one
when none is running. Without --out the file is written to the home
directory as habitlab-export-YYYY-MM-DD.<format>; use --out - for stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			e := env()
			s, err := e.session(cmd.Context())
			if err != nil {
				return err
			}
			defer s.SignOut()

			id := experimentID
			if id == "" {
				list, err := s.ListExperiments(cmd.Context())
				if err != nil {
					return err
				}
				id = tracker.DefaultSelection(list, s.Now())
				if id == "" {
					return errors.New("no experiments to export")
				}
			}

			rows, err := s.ExportRows(cmd.Context(), id)
			if err != nil {
				return err
			}

			if out == "-" {
				return export.Write(cmd.OutOrStdout(), f, rows)
			}
			if out == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				out = filepath.Join(home, export.FileName(f, s.Now().In(e.loc)))
			}
			if err := export.ToFile(f, rows, out); err != nil {
				return err
			}
			e.log.Info("exported", "experiment_id", id, "format", f, "rows", len(rows), "path", out)
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(rows), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&experimentID, "experiment", "", "experiment id (default: active or newest)")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv or json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path, - for stdout")
	return cmd
}
