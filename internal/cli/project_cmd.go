package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"staffplan/internal/cli/formatter"
	"staffplan/internal/core"
)

func newProjectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(
		newProjectAddCmd(app),
		newProjectListCmd(app),
		newProjectArchiveCmd(app, true),
		newProjectArchiveCmd(app, false),
		newProjectDeleteCmd(app),
		newProjectMemberCmd(app),
		newProjectRateCmd(app),
	)

	return cmd
}

func newProjectAddCmd(app *App) *cobra.Command {
	var name, status, projectType, budget, budgetNet, start, end, color string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := core.Project{
				Name:        name,
				Status:      core.ProjectStatus(status),
				ProjectType: core.ProjectType(projectType),
				Color:       color,
				StartDate:   start,
				EndDate:     end,
			}
			var err error
			if p.BudgetWithVAT, err = parseOptionalAmount("budget", budget); err != nil {
				return err
			}
			if p.BudgetWithoutVAT, err = parseOptionalAmount("budget-net", budgetNet); err != nil {
				return err
			}

			stored, err := app.State.AddProject(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s [%s]\n", stored.Name, stored.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name")
	cmd.Flags().StringVar(&status, "status", string(core.StatusActive), "active, onhold, done or planned")
	cmd.Flags().StringVar(&projectType, "type", string(core.ProjectExternal), "internal or external")
	cmd.Flags().StringVar(&budget, "budget", "", "Budget including VAT")
	cmd.Flags().StringVar(&budgetNet, "budget-net", "", "Budget excluding VAT")
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "End date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&color, "color", "", "Display color")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newProjectListCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := app.State.Snapshot()
			var rows [][]string
			for _, p := range snap.Projects {
				if p.IsArchived && !all {
					continue
				}
				name := p.Name
				if p.IsArchived {
					name = formatter.StyleDim.Render(name + " (archived)")
				}
				var sold core.Amount
				for _, c := range p.Contracts {
					sold = sold.Add(c.Amount)
				}
				rows = append(rows, []string{
					p.ID,
					name,
					string(p.Status),
					string(p.ProjectType),
					formatter.Amount(p.BudgetWithVAT),
					formatter.Amount(sold),
					strconv.Itoa(len(snap.ProjectTeams[p.ID])),
				})
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable(
				[]string{"ID", "Name", "Status", "Type", "Budget", "Contracts", "Team"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include archived projects")

	return cmd
}

func newProjectArchiveCmd(app *App, archived bool) *cobra.Command {
	use, verb := "archive", "Archived"
	if !archived {
		use, verb = "unarchive", "Restored"
	}
	return &cobra.Command{
		Use:   use + " <project>",
		Short: verb + " a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveProjectID(app, args[0])
			if err != nil {
				return err
			}
			if err := app.State.SetProjectArchived(id, archived); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s project %s\n", verb, args[0])
			return nil
		},
	}
}

func newProjectDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project>",
		Short: "Delete a project with its plan and teams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveProjectID(app, args[0])
			if err != nil {
				return err
			}
			if err := app.State.DeleteProject(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", id)
			return nil
		},
	}
}

func newProjectMemberCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage the planning team of a project",
	}

	var hours int
	add := &cobra.Command{
		Use:   "add <project> <person>",
		Short: "Add a person to the team",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, personID, err := resolvePair(app, args[0], args[1])
			if err != nil {
				return err
			}
			if err := app.State.AddProjectMember(projectID, personID); err != nil {
				return err
			}
			if cmd.Flags().Changed("hours") {
				if err := app.State.SetMemberHours(projectID, personID, core.Hours(hours)); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", args[1], args[0])
			return nil
		},
	}
	add.Flags().IntVar(&hours, "hours", 0, "Hours planned for the person on the project")

	remove := &cobra.Command{
		Use:   "remove <project> <person>",
		Short: "Remove a person from the team",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, personID, err := resolvePair(app, args[0], args[1])
			if err != nil {
				return err
			}
			if err := app.State.RemoveProjectMember(projectID, personID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[1], args[0])
			return nil
		},
	}

	cmd.AddCommand(add, remove)

	return cmd
}

func newProjectRateCmd(app *App) *cobra.Command {
	var unset bool

	cmd := &cobra.Command{
		Use:   "rate <project> <person> [rate]",
		Short: "Override the hourly rate of a person on a project",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, personID, err := resolvePair(app, args[0], args[1])
			if err != nil {
				return err
			}
			if unset {
				if err := app.State.RemoveCustomRate(projectID, personID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared rate of %s on %s\n", args[1], args[0])
				return nil
			}
			if len(args) < 3 {
				return fmt.Errorf("rate is required unless --clear is set")
			}
			rate, err := core.ParseMoney(args[2])
			if err != nil {
				return fmt.Errorf("invalid rate %q: %w", args[2], err)
			}
			if err := app.State.SetCustomRate(projectID, personID, rate); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set rate of %s on %s to %s\n", args[1], args[0], formatter.Money(rate))
			return nil
		},
	}

	cmd.Flags().BoolVar(&unset, "clear", false, "Remove the override")

	return cmd
}

func newContractCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Manage project contracts",
	}

	var date, amount, vat string
	add := &cobra.Command{
		Use:   "add <project>",
		Short: "Record a contract on a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := resolveProjectID(app, args[0])
			if err != nil {
				return err
			}
			value, err := core.ParseAmount(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}
			c, err := app.State.AddContract(projectID, core.Contract{Date: date, Amount: value, VATMode: core.VATMode(vat)})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added contract %s of %s (%s) on %s\n", c.ID, formatter.Amount(c.Amount), c.VATMode, c.Date)
			return nil
		},
	}
	add.Flags().StringVar(&date, "date", "", "Contract date (YYYY-MM-DD, default: today)")
	add.Flags().StringVar(&amount, "amount", "", "Contract amount")
	add.Flags().StringVar(&vat, "vat", string(core.VATNet), "net or gross")
	_ = add.MarkFlagRequired("amount")

	list := &cobra.Command{
		Use:   "list <project>",
		Short: "List the contracts of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := resolveProjectID(app, args[0])
			if err != nil {
				return err
			}
			for _, p := range app.State.Snapshot().Projects {
				if p.ID != projectID {
					continue
				}
				rows := make([][]string, 0, len(p.Contracts))
				for _, c := range p.Contracts {
					rows = append(rows, []string{c.ID, c.Date, formatter.Amount(c.Amount), string(c.VATMode)})
				}
				fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable([]string{"ID", "Date", "Amount", "VAT"}, rows))
			}
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "delete <project> <contract-id>",
		Short: "Delete a contract",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := resolveProjectID(app, args[0])
			if err != nil {
				return err
			}
			if err := app.State.DeleteContract(projectID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted contract %s\n", args[1])
			return nil
		},
	}

	cmd.AddCommand(add, list, remove)

	return cmd
}

func resolvePair(app *App, project, person string) (projectID, personID string, err error) {
	if projectID, err = resolveProjectID(app, project); err != nil {
		return "", "", err
	}
	if personID, err = resolvePersonID(app, person); err != nil {
		return "", "", err
	}
	return projectID, personID, nil
}

func parseOptionalAmount(flag, v string) (core.Amount, error) {
	if v == "" {
		return core.Amount{}, nil
	}
	a, err := core.ParseAmount(v)
	if err != nil {
		return core.Amount{}, fmt.Errorf("invalid --%s %q: %w", flag, v, err)
	}
	return a, nil
}
