package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zdunecki/internnav/pkg/api"
	"github.com/zdunecki/internnav/pkg/cli"
	"github.com/zdunecki/internnav/pkg/config"
	"github.com/zdunecki/internnav/pkg/logging"
	"github.com/zdunecki/internnav/pkg/ranking"
	"github.com/zdunecki/internnav/pkg/session"
	"github.com/zdunecki/internnav/pkg/wizard"
)

var (
	// Global flags
	apiURL  string
	envFile string
	verbose bool

	logger *zap.Logger
	client *api.Client
	store  *session.Store
)

var rootCmd = &cobra.Command{
	Use:   "internnav",
	Short: "Find internships that match your profile",
	Long: `internnav signs you in to the internship matching service, walks you
through onboarding and the preference quiz, and shows internships ranked
by how well they match you.

Run without arguments to continue where you left off.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runHome,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (overrides "+config.EnvAPIURL+")")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file to read settings from")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if apiURL != "" {
		c.APIURL = apiURL
	}
	if verbose {
		c.LogLevel = zapcore.DebugLevel
	}

	logger, err = logging.New(c.LogLevel, c.LogFile)
	if err != nil {
		return err
	}
	if c.CatalogDir != "" {
		if err := wizard.LoadDir(c.CatalogDir); err != nil {
			return fmt.Errorf("load catalogs from %s: %w", c.CatalogDir, err)
		}
	}

	client, err = api.New(c.APIURL, api.WithLogger(logger))
	if err != nil {
		return err
	}
	store = session.NewStore(c.SessionFile)
	logger.Debug("configured", zap.String("api", c.APIURL), zap.String("session", c.SessionFile))
	return nil
}

// runHome logs in if needed, onboards an incomplete profile and then
// opens the dashboard.
func runHome(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sess, err := store.Load()
	if errors.Is(err, session.ErrNoSession) {
		sess, err = loginInteractive(ctx, "")
	}
	if err != nil {
		return err
	}

	if !sess.ProfileComplete {
		out, err := runCatalog(ctx, sess, wizard.OnboardingCatalog)
		if err != nil {
			return err
		}
		if _, ok := out.State.(wizard.Cancelled); ok {
			return nil
		}
	}

	postings, err := fetchInternships(ctx, sess)
	if err != nil {
		return err
	}
	if err := cli.RunDashboard(postings, ranking.ByMatch); err != nil {
		return err
	}
	if !sess.QuizTaken {
		cmd.Println("Run `internnav quiz` to sharpen your matches.")
	}
	return nil
}

// current loads the saved session or fails with session.ErrNoSession.
func current() (*session.Session, error) {
	return store.Load()
}

// authorized returns a client acting for sess.
func authorized(sess *session.Session) *api.Client {
	return client.Authorized(sess.Token)
}

// expired adds a relogin hint to errors the backend raised for a
// rejected token. The saved session is kept.
func expired(err error) error {
	if !api.IsUnauthorized(err) {
		return err
	}
	logger.Debug("backend rejected the session token", zap.Error(err))
	return fmt.Errorf("%w (run `internnav login` if your session has expired)", err)
}

func fetchInternships(ctx context.Context, sess *session.Session) ([]api.Internship, error) {
	postings, err := authorized(sess).Internships(ctx)
	if err != nil {
		return nil, expired(err)
	}
	return postings, nil
}
