package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "Generate and manage ideal-customer outreach strategies",
}

// -- strategy generate --

var (
	strategyProfile model.ICPProfile
	strategyProject string
	strategySave    bool
)

var strategyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate outreach personas for a product",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if strategySave && strategyProject == "" {
			return eris.New("strategy generate: --project is required with --save")
		}

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		strategies, err := env.Strategy.Strategies(ctx, strategyProfile)
		if err != nil {
			return eris.Wrap(err, "strategy generate")
		}

		out := cmd.OutOrStdout()
		if !strategySave {
			return writeJSON(out, strategies)
		}

		if _, err := env.Store.GetProject(ctx, strategyProject); err != nil {
			return eris.Wrap(err, "strategy generate")
		}

		saved := make([]model.SavedStrategy, 0, len(strategies))
		for _, s := range strategies {
			ss, err := env.Store.SaveStrategy(ctx, model.SavedStrategy{
				ICPStrategy: s,
				ProjectID:   strategyProject,
				Profile:     strategyProfile,
			})
			if err != nil {
				return eris.Wrap(err, "strategy generate: save")
			}
			saved = append(saved, *ss)
		}
		zap.L().Info("strategies saved", zap.String("project", strategyProject), zap.Int("count", len(saved)))
		formatStrategies(out, saved)
		return nil
	},
}

// -- strategy list --

var strategyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved strategies",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		project, _ := cmd.Flags().GetString("project")
		strategies, err := st.ListStrategies(ctx, project)
		if err != nil {
			return eris.Wrap(err, "strategy list")
		}
		if len(strategies) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No strategies found.")
			return nil
		}
		formatStrategies(cmd.OutOrStdout(), strategies)
		return nil
	},
}

// -- strategy delete --

var strategyDeleteCmd = &cobra.Command{
	Use:   "delete <strategy-id>",
	Short: "Delete a saved strategy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteStrategy(ctx, args[0]); err != nil {
			return eris.Wrap(err, "strategy delete")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted strategy %s\n", args[0])
		return nil
	},
}

// -- categories --

var categoriesCmd = &cobra.Command{
	Use:   "categories <topic>",
	Short: "Suggest business categories to search for within a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		cats, err := env.Strategy.Categories(ctx, model.Sanitize(args[0]))
		if err != nil {
			return eris.Wrap(err, "categories")
		}
		for _, c := range cats {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

func init() {
	f := strategyGenerateCmd.Flags()
	f.StringVar(&strategyProfile.ProductName, "product", "", "product name")
	f.StringVar(&strategyProfile.ProductDescription, "description", "", "product description (10-500 characters)")
	f.StringVar(&strategyProfile.TargetAudience, "audience", "", "target audience")
	f.StringVar(&strategyProfile.ValueProposition, "value-prop", "", "value proposition")
	f.StringVar(&strategyProfile.Location, "location", "", "target location")
	f.StringVar(&strategyProject, "project", "", "project to save strategies under")
	f.BoolVar(&strategySave, "save", false, "save the generated strategies")

	strategyListCmd.Flags().String("project", "", "only list strategies of this project")

	strategyCmd.AddCommand(strategyGenerateCmd, strategyListCmd, strategyDeleteCmd)
	rootCmd.AddCommand(strategyCmd, categoriesCmd)
}
