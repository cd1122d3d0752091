package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paymentops/copilot/internal/app"
	"github.com/paymentops/copilot/internal/config"
	"github.com/paymentops/copilot/internal/pipeline"
)

var (
	askChatID  string
	askShowSQL bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question about the transaction data",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askChatID, "chat", "", "conversation ID to continue")
	askCmd.Flags().BoolVar(&askShowSQL, "sql", false, "print the generated SQL statement")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	resp := a.Pipeline.Ask(ctx, pipeline.Request{
		Question:       strings.Join(args, " "),
		ConversationID: askChatID,
	})

	if !resp.Success {
		return fmt.Errorf("%s: %s", resp.ErrorKind, resp.Error)
	}

	out := cmd.OutOrStdout()
	if askShowSQL && resp.Statement != "" {
		fmt.Fprintf(out, "SQL: %s\n\n", resp.Statement)
	}
	fmt.Fprintln(out, resp.Summary)
	for _, insight := range resp.Insights {
		fmt.Fprintf(out, "  - %s\n", insight)
	}
	if resp.Recommendation != "" {
		fmt.Fprintf(out, "\nRecommendation: %s\n", resp.Recommendation)
	}
	fmt.Fprintf(out, "\n(%d records, %dms, chat %s)\n",
		resp.RecordCount, resp.ExecutionTimeMs, resp.ConversationID)
	return nil
}
