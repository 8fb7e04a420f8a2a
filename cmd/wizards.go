package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zdunecki/internnav/pkg/api"
	"github.com/zdunecki/internnav/pkg/cli"
	"github.com/zdunecki/internnav/pkg/session"
	"github.com/zdunecki/internnav/pkg/wizard"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Complete your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNamedCatalog(cmd, wizard.OnboardingCatalog)
	},
}

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Take the preference quiz",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNamedCatalog(cmd, wizard.QuizCatalog)
	},
}

var catalogsCmd = &cobra.Command{
	Use:   "catalogs",
	Short: "List available question catalogs",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSTEPS\tSKIPPABLE\tTITLE")
		for _, name := range wizard.Names() {
			c, err := wizard.Get(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%d\t%t\t%s\n", c.Name(), c.Len(), c.IsSkippable(), c.Title())
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(catalogsCmd)
}

func runNamedCatalog(cmd *cobra.Command, name string) error {
	sess, err := current()
	if err != nil {
		return err
	}
	out, err := runCatalog(cmd.Context(), sess, name)
	if err != nil {
		return err
	}

	switch out.State.(type) {
	case wizard.Completed:
		cmd.Println("Saved. Your matches have been updated.")
	case wizard.Skipped:
		cmd.Println("Skipped. You can run `internnav onboard` any time.")
	case wizard.Cancelled:
		cmd.Println("Cancelled. Nothing was saved.")
	}
	return nil
}

// runCatalog drives the named wizard in the terminal and records a
// finished one in the saved session.
func runCatalog(ctx context.Context, sess *session.Session, name string) (wizard.Outcome, error) {
	catalog, err := wizard.Get(name)
	if err != nil {
		return wizard.Outcome{}, err
	}
	c := authorized(sess)
	gw, err := api.NewWizardGateway(c, catalog, sess.Email)
	if err != nil {
		return wizard.Outcome{}, err
	}

	ctrl := wizard.New(catalog, gw, wizard.WithLogger(logger))
	out, err := cli.RunWizard(ctx, ctrl, cli.WithResumeScanner(scanResume(c), "skills"))
	if err != nil {
		return out, err
	}
	if sess.Record(name, out.State) {
		if err := store.Save(sess); err != nil {
			return out, err
		}
	}
	return out, nil
}

func scanResume(c *api.Client) cli.ResumeScanner {
	return func(ctx context.Context, path string) (string, error) {
		res, err := c.UploadResume(ctx, path)
		if err != nil {
			return "", err
		}
		return res.SkillList(), nil
	}
}
