package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the top-level "staffplan" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "staffplan",
		Short:         "Resource planning and project finance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newReportCmd(app),
		newPersonCmd(app),
		newRoleCmd(app),
		newTeamCmd(app),
		newProjectCmd(app),
		newContractCmd(app),
		newPlanCmd(app),
		newVacationCmd(app),
		newWriteOffCmd(app),
	)

	return root
}
