package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/export"
)

var (
	importProject string
	importFile    string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from a CSV or XLSX sheet into a project",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(importFile), "."))
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := st.GetProject(ctx, importProject); err != nil {
			return eris.Wrap(err, "import")
		}

		f, err := os.Open(importFile)
		if err != nil {
			return eris.Wrap(err, "import: open file")
		}
		defer f.Close() //nolint:errcheck

		leads, err := export.ReadLeads(f, format)
		if err != nil {
			return eris.Wrap(err, "import")
		}
		if len(leads) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No leads found in file.")
			return nil
		}

		now := time.Now().UTC()
		for i := range leads {
			leads[i].ID = uuid.New().String()
			leads[i].ProjectID = importProject
			if leads[i].GeneratedDate.IsZero() {
				leads[i].GeneratedDate = now
			}
		}

		if err := st.CreateLeads(ctx, leads); err != nil {
			return eris.Wrap(err, "import: save leads")
		}

		zap.L().Info("import complete",
			zap.Int("created", len(leads)),
			zap.String("file", importFile),
		)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d leads.\n", len(leads))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importProject, "project", "", "project ID (required)")
	importCmd.Flags().StringVar(&importFile, "file", "", "path to a .csv or .xlsx file (required)")
	_ = importCmd.MarkFlagRequired("project")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
