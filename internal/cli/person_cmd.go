package cli

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"staffplan/internal/cli/formatter"
	"staffplan/internal/core"
)

func newPersonCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Manage people",
	}

	cmd.AddCommand(
		newPersonAddCmd(app),
		newPersonListCmd(app),
		newPersonUpdateCmd(app),
		newPersonDeleteCmd(app),
	)

	return cmd
}

// personFlags are the editable person fields shared by add and update.
type personFlags struct {
	name, role, rateInternal, rateExternal string
	capacity                               float64
	external, inactive                     bool
}

func (f *personFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Full name")
	cmd.Flags().StringVar(&f.role, "role", "", "Role (default: other)")
	cmd.Flags().Float64Var(&f.capacity, "capacity", 1, "Capacity per week as FTE")
	cmd.Flags().StringVar(&f.rateInternal, "rate-internal", "0", "Hourly rate on internal projects")
	cmd.Flags().StringVar(&f.rateExternal, "rate-external", "0", "Hourly rate on external projects")
	cmd.Flags().BoolVar(&f.external, "external", false, "Contractor outside the staff")
	cmd.Flags().BoolVar(&f.inactive, "inactive", false, "Exclude from workload and capacity")
}

// apply copies the flags the user set onto p.
func (f *personFlags) apply(cmd *cobra.Command, p *core.Person) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		p.Name = f.name
	}
	if changed("role") {
		p.Role = f.role
	}
	if changed("capacity") {
		if f.capacity < 0 {
			return fmt.Errorf("invalid --capacity %v: must not be negative", f.capacity)
		}
		p.CapacityPerWeek = f.capacity
	}
	if changed("rate-internal") {
		rate, err := core.ParseMoney(f.rateInternal)
		if err != nil {
			return fmt.Errorf("invalid --rate-internal %q: %w", f.rateInternal, err)
		}
		p.RateInternal = rate
	}
	if changed("rate-external") {
		rate, err := core.ParseMoney(f.rateExternal)
		if err != nil {
			return fmt.Errorf("invalid --rate-external %q: %w", f.rateExternal, err)
		}
		p.RateExternal = rate
	}
	if changed("external") {
		p.External = f.external
	}
	if changed("inactive") {
		p.Active = !f.inactive
	}
	return nil
}

func newPersonAddCmd(app *App) *cobra.Command {
	var f personFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a person",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := core.Person{CapacityPerWeek: f.capacity, Active: true}
			if err := f.apply(cmd, &p); err != nil {
				return err
			}
			if p.Role != "" && !slices.Contains(app.State.Snapshot().Roles, p.Role) {
				return fmt.Errorf("unknown role %q", p.Role)
			}
			stored, err := app.State.AddPerson(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s [%s]\n", stored.Name, stored.ID)
			return nil
		},
	}

	f.register(cmd)
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newPersonListCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List people in team order",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows [][]string
			for _, p := range app.State.OrderedPeople() {
				if !p.Active && !all {
					continue
				}
				kind := "staff"
				if p.External {
					kind = "external"
				}
				name := p.Name
				if !p.Active {
					name = formatter.StyleDim.Render(name)
				}
				rows = append(rows, []string{
					p.ID,
					name,
					p.Role,
					kind,
					strconv.FormatFloat(p.CapacityPerWeek, 'f', -1, 64),
					formatter.Money(p.RateInternal),
					formatter.Money(p.RateExternal),
				})
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No people found.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable(
				[]string{"ID", "Name", "Role", "Kind", "FTE", "Rate int", "Rate ext"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include inactive people")

	return cmd
}

func newPersonUpdateCmd(app *App) *cobra.Command {
	var f personFlags

	cmd := &cobra.Command{
		Use:   "update <person>",
		Short: "Change fields of a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePersonID(app, args[0])
			if err != nil {
				return err
			}
			snap := app.State.Snapshot()
			i := slices.IndexFunc(snap.People, func(p core.Person) bool { return p.ID == id })
			p := snap.People[i]
			if err := f.apply(cmd, &p); err != nil {
				return err
			}
			if !slices.Contains(snap.Roles, p.Role) {
				return fmt.Errorf("unknown role %q", p.Role)
			}
			if err := app.State.UpdatePerson(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", p.Name)
			return nil
		},
	}

	f.register(cmd)

	return cmd
}

func newPersonDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <person>",
		Short: "Delete a person with their plan, vacations and memberships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePersonID(app, args[0])
			if err != nil {
				return err
			}
			if err := app.State.DeletePerson(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted person %s\n", id)
			return nil
		},
	}
}

func newRoleCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage roles",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List roles",
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, r := range app.State.Snapshot().Roles {
					fmt.Fprintln(cmd.OutOrStdout(), r)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <name>",
			Short: "Add a role",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := app.State.AddRole(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added role %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "rename <from> <to>",
			Short: "Rename a role and move its people along",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := app.State.RenameRole(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed role %s to %s\n", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a role; its people fall back to " + core.FallbackRole,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := app.State.DeleteRole(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted role %s\n", args[0])
				return nil
			},
		},
	)

	return cmd
}

func newTeamCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Show and reorder the team",
	}

	var to int
	move := &cobra.Command{
		Use:   "move <person>",
		Short: "Move a person to a position of the team order (1-based)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePersonID(app, args[0])
			if err != nil {
				return err
			}
			from := slices.Index(app.State.Snapshot().TeamOrder, id)
			if from < 0 {
				return fmt.Errorf("person %s is not in the team order", id)
			}
			if err := app.State.MovePerson(from, to-1); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to position %d\n", args[0], to)
			return nil
		},
	}
	move.Flags().IntVar(&to, "to", 0, "Target position, starting at 1")
	_ = move.MarkFlagRequired("to")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the team order",
		RunE: func(cmd *cobra.Command, args []string) error {
			for i, p := range app.State.OrderedPeople() {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", i+1, p.Name)
			}
			return nil
		},
	}

	cmd.AddCommand(list, move)

	return cmd
}
