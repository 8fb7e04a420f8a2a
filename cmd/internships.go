package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zdunecki/internnav/pkg/cli"
	"github.com/zdunecki/internnav/pkg/ranking"
)

var (
	sortKey     string
	interactive bool
)

var internshipsCmd = &cobra.Command{
	Use:   "internships",
	Short: "List internships ranked for you",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listInternships(cmd, false)
	},
}

var applicationsCmd = &cobra.Command{
	Use:   "applications",
	Short: "List internships you have applied to",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listInternships(cmd, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{internshipsCmd, applicationsCmd} {
		c.Flags().StringVarP(&sortKey, "sort", "s", string(ranking.ByMatch), "Sort by match, stipend or company")
		c.Flags().BoolVarP(&interactive, "interactive", "i", false, "Browse in the dashboard")
	}

	rootCmd.AddCommand(internshipsCmd)
	rootCmd.AddCommand(applicationsCmd)
}

func listInternships(cmd *cobra.Command, applications bool) error {
	key, err := ranking.ParseKey(sortKey)
	if err != nil {
		return err
	}
	sess, err := current()
	if err != nil {
		return err
	}
	postings, err := fetchInternships(cmd.Context(), sess)
	if err != nil {
		return err
	}

	if interactive {
		return cli.RunDashboard(postings, key)
	}
	sorted := ranking.Sort(postings, key)
	if applications {
		sorted = ranking.Applications(sorted)
	}
	cli.PrintPostings(cmd.OutOrStdout(), sorted)
	return nil
}
