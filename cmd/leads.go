package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and update leads in the sales pipeline",
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a project's leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		project, _ := cmd.Flags().GetString("project")
		stageName, _ := cmd.Flags().GetString("stage")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		board, _ := cmd.Flags().GetBool("board")

		filter := store.LeadFilter{ProjectID: project, Limit: limit}
		if stageName != "" {
			stage, ok := model.ParseStage(stageName)
			if !ok {
				return eris.Errorf("leads list: unknown stage %q", stageName)
			}
			filter.Stage = stage
		}

		leads, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		out := cmd.OutOrStdout()
		switch {
		case asJSON:
			return writeJSON(out, leads)
		case len(leads) == 0:
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No leads found.")
		case board:
			formatBoard(out, leads)
		default:
			formatLeads(out, leads)
		}
		return nil
	},
}

// -- leads show --

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show every field of a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		l, err := st.GetLead(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "leads show")
		}
		return writeJSON(cmd.OutOrStdout(), l)
	},
}

// -- leads stage --

var leadsStageCmd = &cobra.Command{
	Use:   "stage <lead-id> <stage>",
	Short: "Move a lead to a pipeline stage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		stage, ok := model.ParseStage(args[1])
		if !ok {
			return eris.Errorf("leads stage: unknown stage %q", args[1])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.UpdateLeadStage(ctx, args[0], stage); err != nil {
			return eris.Wrap(err, "leads stage")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Lead %s moved to %s\n", args[0], stage)
		return nil
	},
}

// -- leads update --

var leadsUpdateCmd = &cobra.Command{
	Use:   "update <lead-id>",
	Short: "Update a lead's deal value, owner, notes or contacted flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		l, err := st.GetLead(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "leads update")
		}

		flags := cmd.Flags()
		if flags.Changed("deal") {
			l.DealValue, _ = flags.GetFloat64("deal")
		}
		if flags.Changed("owner") {
			owner, _ := flags.GetString("owner")
			l.Owner = model.Sanitize(owner)
		}
		if flags.Changed("notes") {
			notes, _ := flags.GetString("notes")
			l.Notes = model.Sanitize(notes)
		}
		if flags.Changed("contacted") {
			l.Contacted, _ = flags.GetBool("contacted")
		}
		if flags.Changed("email") {
			email, _ := flags.GetString("email")
			if email != "" && !model.IsValidEmail(email) {
				return eris.Errorf("leads update: invalid email %q", email)
			}
			l.Email = email
		}

		if err := st.UpdateLead(ctx, *l); err != nil {
			return eris.Wrap(err, "leads update")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Lead %s updated\n", l.ID)
		return nil
	},
}

// -- leads comment --

var leadsCommentCmd = &cobra.Command{
	Use:   "comment <lead-id> <text>",
	Short: "Add a comment to a lead",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		text := model.Sanitize(args[1])
		if text == "" {
			return eris.New("leads comment: comment text is required")
		}
		author, _ := cmd.Flags().GetString("author")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		c, err := st.AddComment(ctx, args[0], text, model.Sanitize(author))
		if err != nil {
			return eris.Wrap(err, "leads comment")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Comment %s added by %s\n", c.ID, c.Author)
		return nil
	},
}

// -- leads delete --

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete <lead-id>",
	Short: "Delete a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteLead(ctx, args[0]); err != nil {
			return eris.Wrap(err, "leads delete")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted lead %s\n", args[0])
		return nil
	},
}

// -- leads duplicates --

var leadsDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "List leads that name the same business at the same address",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		project, _ := cmd.Flags().GetString("project")
		leads, err := st.ListLeads(ctx, store.LeadFilter{ProjectID: project, Limit: 100000})
		if err != nil {
			return eris.Wrap(err, "leads duplicates")
		}

		groups := model.FindDuplicates(leads)
		if len(groups) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No duplicates found.")
			return nil
		}

		out := cmd.OutOrStdout()
		for i, g := range groups {
			_, _ = fmt.Fprintf(out, "Group %d: %s\n", i+1, g[0].CompanyName)
			formatLeads(out, g)
			_, _ = fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	leadsListCmd.Flags().String("project", "", "project ID (required)")
	leadsListCmd.Flags().String("stage", "", "filter by pipeline stage")
	leadsListCmd.Flags().Int("limit", 500, "maximum leads to list")
	leadsListCmd.Flags().Bool("json", false, "print leads as JSON")
	leadsListCmd.Flags().Bool("board", false, "print per-stage counts and deal value")
	_ = leadsListCmd.MarkFlagRequired("project")

	leadsUpdateCmd.Flags().Float64("deal", 0, "deal value")
	leadsUpdateCmd.Flags().String("owner", "", "lead owner")
	leadsUpdateCmd.Flags().String("notes", "", "notes")
	leadsUpdateCmd.Flags().Bool("contacted", false, "mark the lead as contacted")
	leadsUpdateCmd.Flags().String("email", "", "contact email")

	leadsCommentCmd.Flags().String("author", "me", "comment author")

	leadsDuplicatesCmd.Flags().String("project", "", "project ID (required)")
	_ = leadsDuplicatesCmd.MarkFlagRequired("project")

	leadsCmd.AddCommand(leadsListCmd, leadsShowCmd, leadsStageCmd, leadsUpdateCmd, leadsCommentCmd, leadsDeleteCmd, leadsDuplicatesCmd)
	rootCmd.AddCommand(leadsCmd)
}
