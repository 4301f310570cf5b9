package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/model"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage lead projects",
}

// -- projects create --

var projectDescription string

var projectsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		name := model.Sanitize(args[0])
		desc := model.Sanitize(projectDescription)
		if errs := model.ValidateProject(name, desc); len(errs) > 0 {
			return eris.Errorf("projects create: %s", formatFieldErrors(errs))
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := st.CreateProject(ctx, name, desc)
		if err != nil {
			return eris.Wrap(err, "projects create")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", p.Name, p.ID)
		return nil
	},
}

// -- projects list --

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects with lead and strategy counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		projects, err := st.ListProjects(ctx)
		if err != nil {
			return eris.Wrap(err, "projects list")
		}
		if len(projects) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No projects found.")
			return nil
		}
		formatProjects(cmd.OutOrStdout(), projects)
		return nil
	},
}

// -- projects delete --

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project with its leads and strategies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteProject(ctx, args[0]); err != nil {
			return eris.Wrap(err, "projects delete")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
		return nil
	},
}

func init() {
	projectsCreateCmd.Flags().StringVar(&projectDescription, "description", "", "project description")
	projectsCmd.AddCommand(projectsCreateCmd, projectsListCmd, projectsDeleteCmd)
	rootCmd.AddCommand(projectsCmd)
}
