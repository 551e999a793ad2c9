package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lusakalabs/kwachaflow/internal/common"
	"github.com/lusakalabs/kwachaflow/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the SMS webhook server",
		Long: `Start the HTTP webhook server. Each POST /ingest request carries one SMS
record and runs the full ingestion pipeline against the configured ledger.`,
		RunE: runServe,
	}

	cmd.Flags().String("listen", ":8787", "listen address")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	secret := viper.GetString("server.secret")
	if secret == "" {
		return common.NewUserError("server.secret must be configured", common.ErrMissingConfig)
	}

	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	ctx := cmd.Context()
	go p.sweeper.Run(ctx)

	srv := server.New(viper.GetString("server.listen"), secret, p.engine, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
