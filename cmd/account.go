package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zdunecki/internnav/pkg/auth"
	"github.com/zdunecki/internnav/pkg/cli"
	"github.com/zdunecki/internnav/pkg/session"
)

var loginEmail string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loginInteractive(cmd.Context(), loginEmail)
		if err != nil {
			return err
		}
		cmd.Printf("Welcome back, %s.\n", greeting(sess))
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE:  runSignup,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.Destroy(); err != nil {
			return err
		}
		cmd.Println("Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Email to prefill")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(logoutCmd)
}

func loginInteractive(ctx context.Context, email string) (*session.Session, error) {
	fields, validate := cli.CredentialsForm(email)
	values, err := cli.RunForm("Log in to internnav", validate, fields...)
	if err != nil {
		return nil, err
	}

	sess, err := auth.NewService(client, logger).Login(ctx, values[0], values[1])
	if err != nil {
		return nil, err
	}
	if err := store.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	validate := func(v []string) string {
		if strings.TrimSpace(v[0]) == "" || strings.TrimSpace(v[1]) == "" {
			return auth.IncompleteMessage
		}
		if unmet := auth.ValidatePassword(v[2]); len(unmet) > 0 {
			return "Password needs " + strings.Join(unmet, ", ") + "."
		}
		return ""
	}
	values, err := cli.RunForm("Create your account", validate,
		cli.Field{Label: "Name", Placeholder: "Your full name"},
		cli.Field{Label: "Email", Placeholder: "you@example.com"},
		cli.Field{Label: "Password", Secret: true},
	)
	if err != nil {
		return err
	}

	svc := auth.NewService(client, logger)
	if err := svc.Signup(cmd.Context(), values[0], values[1], values[2]); err != nil {
		return err
	}
	cmd.Println("Account created. Please log in.")

	sess, err := loginInteractive(cmd.Context(), strings.TrimSpace(values[1]))
	if err != nil {
		return err
	}
	cmd.Printf("Welcome, %s.\n", greeting(sess))
	return nil
}

func greeting(sess *session.Session) string {
	if strings.TrimSpace(sess.Name) == "" {
		return sess.Email
	}
	return sess.Name
}
