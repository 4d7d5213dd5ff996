package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/series"
	"github.com/trezcool/tazama/core/user"
)

func (cli *commandLine) locksCommand() *cobra.Command {
	var seriesID, uname string

	cmd := &cobra.Command{
		Use:   "locks",
		Short: "Show which episodes of a series are locked for a user (anonymous if none given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if seriesID == "" {
				_ = cmd.Usage()
				return errHelp
			}
			out, err := cli.locks(cmd.Context(), seriesID, uname)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&seriesID, "series", "", "The series ID")
	cmd.Flags().StringVar(&uname, "user", "", "The viewer's username or email")
	return cmd
}

// locks renders the series' episodes as a table, flagged locked or not for the user named uname.
func (cli *commandLine) locks(ctx context.Context, seriesID, uname string) (string, error) {
	viewer := series.AnonymousViewer()
	if uname != "" {
		usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
		if err != nil {
			return "", err
		}
		viewer = series.ViewerFromUser(usr)
	}

	access, err := cli.seriesSvc.GetWithLocks(ctx, seriesID, viewer)
	if err != nil {
		return "", err
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(access.Title + " (" + viewerLabel(viewer, uname) + ")")
	tw.AppendHeader(table.Row{"#", "Episode", "Locked by default", "Unlocks next with", "Locked"})
	for _, ep := range access.Episodes {
		gate := ""
		if ep.RequiresExamToUnlock && ep.Exam != nil {
			gate = ep.Exam.Title
		}
		tw.AppendRow(table.Row{
			strconv.Itoa(ep.OrderInSeries),
			ep.Title,
			yesNo(ep.IsLockedByDefault),
			gate,
			yesNo(ep.IsLocked),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})
	return tw.Render(), nil
}

func viewerLabel(viewer series.Viewer, uname string) string {
	role, ok := viewer.Role()
	if !ok {
		return "anonymous"
	}
	return uname + ", " + role.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
