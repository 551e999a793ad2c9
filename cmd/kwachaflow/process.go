package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lusakalabs/kwachaflow/internal/common"
	"github.com/lusakalabs/kwachaflow/internal/model"
)

func processCmd() *cobra.Command {
	var (
		sender     string
		body       string
		receivedAt string
		source     string
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process a single SMS from the command line",
		Long: `Run one message through the ingestion pipeline and print the result as
JSON. Useful for replaying a message or testing fee configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sender == "" || body == "" {
				return common.NewUserError("--sender and --body are required", common.ErrMissingConfig)
			}

			when := time.Now()
			if receivedAt != "" {
				parsed, err := time.Parse(time.RFC3339, receivedAt)
				if err != nil {
					return common.NewUserError("--received-at must be RFC 3339", err)
				}
				when = parsed
			}

			p, err := buildPipeline()
			if err != nil {
				return err
			}
			defer p.close()

			msg := model.Message{
				ReceivedAt: when,
				Sender:     sender,
				Body:       body,
				Source:     source,
			}

			result, procErr := p.engine.Process(cmd.Context(), msg)
			if result != nil {
				out, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return procErr
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "SMS sender ID (required)")
	cmd.Flags().StringVar(&body, "body", "", "SMS body text (required)")
	cmd.Flags().StringVar(&receivedAt, "received-at", "", "receipt timestamp, RFC 3339 (default now)")
	cmd.Flags().StringVar(&source, "source", "cli", "message source label")

	return cmd
}
