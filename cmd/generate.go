package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/discovery"
	"github.com/sells-group/prospect-cli/internal/enrich"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/pipeline"
	"github.com/sells-group/prospect-cli/internal/store"
)

var (
	generateFlags      searchFlags
	generateProject    string
	generateStrategy   string
	generateCampaign   string
	generateExport     string
	generateOut        string
	generateProduct    string
	generateValueProp  string
	generateJSONOutput bool
)

// generatePlan is everything a generate run needs once flags, campaign file
// and saved strategy have been merged.
type generatePlan struct {
	ProjectID   string
	ProjectName string
	Request     discovery.Request
	Outreach    *enrich.Outreach
	ExportFmt   string
	ExportPath  string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Discover and enrich leads, save them to a project and optionally export them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		plan, err := buildGeneratePlan(ctx, cmd, env.Store)
		if err != nil {
			return err
		}

		sess := env.NewSession(plan.ProjectID)
		cands, err := sess.Submit(ctx, plan.Request)
		if err != nil {
			return eris.Wrap(err, "generate: discover")
		}
		if len(cands) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No businesses found.")
			return nil
		}

		leads, err := sess.Enrich(ctx, plan.Outreach)
		if err != nil {
			return eris.Wrap(err, "generate: enrich")
		}

		if err := env.Store.CreateLeads(ctx, leads); err != nil {
			return eris.Wrap(err, "generate: save leads")
		}

		snap := sess.Snapshot()
		zap.L().Info("generate complete",
			zap.String("project", plan.ProjectID),
			zap.Int("leads", len(leads)),
			zap.Int("degraded", snap.Summary.Degraded),
		)

		out := cmd.OutOrStdout()
		if generateJSONOutput {
			if err := writeJSON(out, leads); err != nil {
				return err
			}
		} else {
			_, _ = fmt.Fprintf(out, "Project %s (%s)\n\n", plan.ProjectName, plan.ProjectID)
			formatLeads(out, leads)
			_, _ = fmt.Fprintln(out)
			formatSummary(out, snap.Summary)
		}

		if plan.ExportFmt != "" {
			return exportLeads(ctx, cmd, plan.ExportFmt, plan.ExportPath, plan.ProjectName, leads)
		}
		return nil
	},
}

// buildGeneratePlan merges the campaign file, the saved strategy and the
// flags, in that order of increasing precedence, and resolves the project.
func buildGeneratePlan(ctx context.Context, cmd *cobra.Command, st store.Store) (*generatePlan, error) {
	plan := &generatePlan{}
	projectRef := generateProject
	strategyID := generateStrategy
	outreach := &enrich.Outreach{}

	if generateCampaign != "" {
		c, err := pipeline.LoadCampaign(generateCampaign)
		if err != nil {
			return nil, err
		}
		plan.Request = c.Search.Request()
		*outreach = c.Outreach
		plan.ExportFmt = c.Export.Format
		plan.ExportPath = c.Export.Path
		if projectRef == "" {
			projectRef = c.Project
		}
		if strategyID == "" {
			strategyID = c.Strategy
		}
	}

	if strategyID != "" {
		saved, err := st.GetStrategy(ctx, strategyID)
		if err != nil {
			return nil, eris.Wrap(err, "generate: load strategy")
		}
		outreach = enrich.OutreachFromStrategy(*saved)
		if plan.Request.SearchQuery == "" {
			plan.Request.SearchQuery = saved.SearchQuery
		}
		if projectRef == "" {
			projectRef = saved.ProjectID
		}
	}

	flags := generateFlags.request(cmd)
	if flags.SearchQuery != "" {
		plan.Request.SearchQuery = flags.SearchQuery
	}
	if flags.City != "" {
		plan.Request.City = flags.City
	}
	if flags.Country != "" {
		plan.Request.Country = flags.Country
	}
	if cmd.Flags().Changed("count") || plan.Request.NumberOfLeads == 0 {
		plan.Request.NumberOfLeads = flags.NumberOfLeads
	}
	if flags.Location != nil {
		plan.Request.Location = flags.Location
	}
	if generateProduct != "" {
		outreach.ProductName = generateProduct
	}
	if generateValueProp != "" {
		outreach.ValueProposition = generateValueProp
	}
	if generateExport != "" {
		plan.ExportFmt = generateExport
	}
	if generateOut != "" {
		plan.ExportPath = generateOut
	}

	if err := plan.Request.Validate(); err != nil {
		return nil, err
	}
	if !outreach.IsEmpty() {
		plan.Outreach = outreach
	}

	p, err := resolveProject(ctx, st, projectRef, plan.Request)
	if err != nil {
		return nil, err
	}
	plan.ProjectID = p.ID
	plan.ProjectName = p.Name
	return plan, nil
}

// resolveProject finds a project by ID or name, creating one named after
// the search when ref matches nothing.
func resolveProject(ctx context.Context, st store.Store, ref string, req discovery.Request) (*model.Project, error) {
	if ref != "" {
		if p, err := st.GetProject(ctx, ref); err == nil {
			return p, nil
		} else if !eris.Is(err, store.ErrNotFound) {
			return nil, err
		}

		projects, err := st.ListProjects(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			if strings.EqualFold(p.Name, ref) {
				return &p.Project, nil
			}
		}
	}

	name := ref
	if name == "" {
		name = fmt.Sprintf("%s in %s", req.SearchQuery, req.City)
	}
	if errs := model.ValidateProject(name, ""); len(errs) > 0 {
		return nil, eris.Errorf("generate: invalid project: %s", formatFieldErrors(errs))
	}
	p, err := st.CreateProject(ctx, name, "")
	if err != nil {
		return nil, eris.Wrap(err, "generate: create project")
	}
	zap.L().Info("created project", zap.String("id", p.ID), zap.String("name", p.Name))
	return p, nil
}

func init() {
	generateFlags.register(generateCmd)
	generateCmd.Flags().StringVar(&generateProject, "project", "", "project ID or name (created when missing)")
	generateCmd.Flags().StringVar(&generateStrategy, "strategy", "", "saved strategy ID to take query and outreach context from")
	generateCmd.Flags().StringVar(&generateCampaign, "campaign", "", "campaign YAML file")
	generateCmd.Flags().StringVar(&generateExport, "export", "", "export format: csv, xlsx, json or webhook")
	generateCmd.Flags().StringVar(&generateOut, "out", "", "export file path")
	generateCmd.Flags().StringVar(&generateProduct, "product", "", "product name used in icebreakers")
	generateCmd.Flags().StringVar(&generateValueProp, "value-prop", "", "value proposition used in icebreakers")
	generateCmd.Flags().BoolVar(&generateJSONOutput, "json", false, "print leads as JSON")
	rootCmd.AddCommand(generateCmd)
}
