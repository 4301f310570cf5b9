package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/export"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/store"
)

var (
	exportProject string
	exportStage   string
	exportFormat  string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a project's leads as CSV, XLSX, JSON or to the webhook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := store.LeadFilter{ProjectID: exportProject, Limit: 100000}
		if exportStage != "" {
			stage, ok := model.ParseStage(exportStage)
			if !ok {
				return eris.Errorf("export: unknown stage %q", exportStage)
			}
			filter.Stage = stage
		}

		p, err := st.GetProject(ctx, exportProject)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		leads, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "export: list leads")
		}
		if len(leads) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No leads to export.")
			return nil
		}

		return exportLeads(ctx, cmd, exportFormat, exportOut, p.Name, leads)
	},
}

// exportLeads writes leads in format to path, or posts them to the
// configured webhook. An empty path derives a file name from base inside
// export.dir.
func exportLeads(ctx context.Context, cmd *cobra.Command, format, path, base string, leads []model.Lead) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}

	if f == export.FormatWebhook {
		wh := export.NewWebhook(cfg.Export.WebhookURL, nil, retryConfig())
		if err := wh.Send(ctx, leads); err != nil {
			return eris.Wrap(err, "export: webhook")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Sent %d leads to webhook.\n", len(leads))
		return nil
	}

	if path == "" {
		path = filepath.Join(cfg.Export.Dir, export.Filename(slug(base), f))
	}

	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := export.Write(file, f, leads); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}

	zap.L().Info("leads exported", zap.String("path", path), zap.String("format", string(f)), zap.Int("leads", len(leads)))
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d leads to %s\n", len(leads), path)
	return nil
}

// slug turns a project name into a file-name-safe base.
func slug(s string) string {
	s = model.NormalizeKey(s)
	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func init() {
	exportCmd.Flags().StringVar(&exportProject, "project", "", "project ID (required)")
	exportCmd.Flags().StringVar(&exportStage, "stage", "", "only export leads in this stage")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "csv, xlsx, json or webhook")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default derived from the project name)")
	_ = exportCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(exportCmd)
}
