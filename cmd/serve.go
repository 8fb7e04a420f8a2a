package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zdunecki/internnav/pkg/server"
)

var (
	serveAddr string
	serveOpen bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the wizards and internships over a local web API",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := server.New(client, store, server.WithLogger(logger))
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.Printf("Serving on http://%s (Ctrl+C to stop)\n", serveAddr)
		return srv.ListenAndServe(ctx, serveAddr, serveOpen)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "Address to listen on")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "Open the system browser")
	rootCmd.AddCommand(serveCmd)
}
