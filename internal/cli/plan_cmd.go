package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"staffplan/internal/calendar"
	"staffplan/internal/cli/formatter"
	"staffplan/internal/core"
)

// weekOf returns the Monday of the week containing day.
func weekOf(day string) (string, error) {
	d, err := calendar.ParseISODateLocal(day)
	if err != nil {
		return "", fmt.Errorf("invalid week %q: %w", day, err)
	}
	return calendar.FormatISO(calendar.StartOfISOWeek(d)), nil
}

func newPlanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Edit the weekly planning grid",
	}

	var week, hours string
	var fact bool
	set := &cobra.Command{
		Use:   "set <person> <project>",
		Short: "Set planned (or with --fact, recorded) hours for a week",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, personID, err := resolvePair(app, args[1], args[0])
			if err != nil {
				return err
			}
			monday, err := weekOf(week)
			if err != nil {
				return err
			}
			kind := core.KindPlan
			if fact {
				kind = core.KindFact
			}
			if err := app.State.SetAssignmentCell(personID, projectID, monday, hours, kind); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s hours of %s on %s for week %s to %s\n",
				kind, args[0], args[1], monday, strings.TrimSpace(hours))
			return nil
		},
	}
	set.Flags().StringVar(&week, "week", "", "Any day of the week (YYYY-MM-DD)")
	set.Flags().StringVar(&hours, "hours", "", "Whole hours; empty or 0 clears the cell")
	set.Flags().BoolVar(&fact, "fact", false, "Set recorded hours instead of planned hours")
	_ = set.MarkFlagRequired("week")
	_ = set.MarkFlagRequired("hours")

	cmd.AddCommand(set)

	return cmd
}

func newVacationCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vacation",
		Short: "Manage vacation weeks",
	}

	var week string
	toggle := &cobra.Command{
		Use:   "toggle <person>",
		Short: "Mark or unmark a week as vacation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			personID, err := resolvePersonID(app, args[0])
			if err != nil {
				return err
			}
			monday, err := weekOf(week)
			if err != nil {
				return err
			}
			if err := app.State.ToggleVacation(personID, monday); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Toggled vacation of %s for week %s\n", args[0], monday)
			return nil
		},
	}
	toggle.Flags().StringVar(&week, "week", "", "Any day of the week (YYYY-MM-DD)")
	_ = toggle.MarkFlagRequired("week")

	var from, to string
	rng := &cobra.Command{
		Use:   "range <person>",
		Short: "Mark every week touched by a date range as vacation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			personID, err := resolvePersonID(app, args[0])
			if err != nil {
				return err
			}
			if err := app.State.AddVacationRange(personID, from, to); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added vacation of %s from %s to %s\n", args[0], from, to)
			return nil
		},
	}
	rng.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	rng.Flags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD)")
	_ = rng.MarkFlagRequired("from")
	_ = rng.MarkFlagRequired("to")

	list := &cobra.Command{
		Use:   "list <person>",
		Short: "List vacation weeks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			personID, err := resolvePersonID(app, args[0])
			if err != nil {
				return err
			}
			for _, w := range app.State.VacationWeeks(personID) {
				fmt.Fprintln(cmd.OutOrStdout(), w)
			}
			return nil
		},
	}

	cmd.AddCommand(toggle, rng, list)

	return cmd
}

func newWriteOffCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "writeoff",
		Short: "Book monthly hours against projects",
	}

	var month, hours, kind string
	set := &cobra.Command{
		Use:   "set <project> <person>",
		Short: "Set the hours a person writes off on a project for a month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, personID, err := resolvePair(app, args[0], args[1])
			if err != nil {
				return err
			}
			if err := app.State.SetWriteOff(projectID, personID, month, hours, core.WriteOffKind(kind)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s write-off of %s on %s for %s\n", kind, args[1], args[0], month)
			return nil
		},
	}
	set.Flags().StringVar(&month, "month", "", "Month (YYYY-MM)")
	set.Flags().StringVar(&hours, "hours", "", "Whole hours; 0 removes the entry")
	set.Flags().StringVar(&kind, "type", string(core.KindFact), "plan or fact")
	_ = set.MarkFlagRequired("month")
	_ = set.MarkFlagRequired("hours")

	var rate string
	member := &cobra.Command{
		Use:   "member <project> <person>",
		Short: "Put a person on the write-off table of a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, personID, err := resolvePair(app, args[0], args[1])
			if err != nil {
				return err
			}
			value, err := core.ParseMoney(rate)
			if err != nil {
				return fmt.Errorf("invalid --rate %q: %w", rate, err)
			}
			if err := app.State.AddWriteOffMember(projectID, personID, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to the write-offs of %s at %s\n", args[1], args[0], formatter.Money(value))
			return nil
		},
	}
	member.Flags().StringVar(&rate, "rate", "0", "Hourly rate on this project")

	unmember := &cobra.Command{
		Use:   "unmember <project> <person>",
		Short: "Take a person off the write-off table; entries are kept",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, personID, err := resolvePair(app, args[0], args[1])
			if err != nil {
				return err
			}
			if err := app.State.RemoveWriteOffMember(projectID, personID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from the write-offs of %s\n", args[1], args[0])
			return nil
		},
	}

	cmd.AddCommand(set, member, unmember)

	return cmd
}
