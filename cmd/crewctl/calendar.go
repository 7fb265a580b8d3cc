package main

import (
	"github.com/spf13/cobra"

	"github.com/warp/crew-engine/calendar"
	"github.com/warp/crew-engine/costs"
	"github.com/warp/crew-engine/domain"
)

func newCalendarCmd(root *rootOptions) *cobra.Command {
	var (
		projectID string
		outPath   string
		uidDomain string
	)
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Export the dated phases of a project as iCalendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, release, err := root.open(ctx)
			if err != nil {
				return err
			}
			defer release()

			project, err := repo.GetProject(ctx, domain.ProjectID(projectID))
			if err != nil {
				return err
			}
			phases, err := repo.ListPhases(ctx, project.ID)
			if err != nil {
				return err
			}
			sum, err := costs.NewService(repo).ProjectSummary(ctx, project.ID)
			if err != nil {
				return err
			}

			ics, err := calendar.Format(phases, costs.ByPhase(sum.Phases), calendar.Options{
				Domain: uidDomain,
				Name:   project.Name,
			})
			if err != nil {
				return err
			}
			return writeOutput(cmd, outPath, []byte(ics))
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project id")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&uidDomain, "uid-domain", "", "Domain part of event UIDs")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
