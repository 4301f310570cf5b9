package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/discovery"
	"github.com/sells-group/prospect-cli/internal/llm"
)

type searchFlags struct {
	query   string
	city    string
	country string
	count   int
	lat     float64
	lng     float64
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.query, "query", "", "what to search for, e.g. \"artisan bakery\"")
	cmd.Flags().StringVar(&f.city, "city", "", "city to search in")
	cmd.Flags().StringVar(&f.country, "country", "", "country to search in")
	cmd.Flags().IntVar(&f.count, "count", discovery.DefaultLeads, "number of leads to find (1-50)")
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "latitude to bias the search toward")
	cmd.Flags().Float64Var(&f.lng, "lng", 0, "longitude to bias the search toward")
}

func (f *searchFlags) request(cmd *cobra.Command) discovery.Request {
	req := discovery.Request{
		SearchQuery:   f.query,
		City:          f.city,
		Country:       f.country,
		NumberOfLeads: f.count,
	}
	if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
		req.Location = llm.LatLng(f.lat, f.lng)
	}
	return req
}

var (
	discoverFlags searchFlags
	discoverJSON  bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find businesses matching a search without enriching them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		cands, err := env.Discovery.Discover(ctx, discoverFlags.request(cmd))
		if err != nil {
			return eris.Wrap(err, "discover")
		}

		zap.L().Info("discovery complete", zap.Int("candidates", len(cands)))

		if discoverJSON {
			return writeJSON(cmd.OutOrStdout(), cands)
		}
		formatCandidates(cmd.OutOrStdout(), cands)
		return nil
	},
}

func init() {
	discoverFlags.register(discoverCmd)
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "print candidates as JSON")
	_ = discoverCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(discoverCmd)
}
