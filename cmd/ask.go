package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/koopa0/anchor/internal/app"
	"github.com/koopa0/anchor/internal/config"
	"github.com/koopa0/anchor/internal/orchestrator"
)

var (
	askConversation string
	askDocument     string
	askWebFallback  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question against a conversation's documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "conversation UUID scoping retrieval (required)")
	askCmd.Flags().StringVar(&askDocument, "document", "", "pin retrieval to a single document by name")
	askCmd.Flags().BoolVar(&askWebFallback, "web", false, "allow web search when local evidence is insufficient")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	conversationID, err := uuid.Parse(askConversation)
	if err != nil {
		return fmt.Errorf("invalid --conversation %q: %w", askConversation, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	logger := newLogger()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	answer, err := a.Orchestrator.Answer(ctx, orchestrator.Request{
		Query:          question,
		ConversationID: conversationID,
		DocumentName:   askDocument,
		WebFallback:    askWebFallback,
	})
	if err != nil {
		return fmt.Errorf("answering: %w", err)
	}

	fmt.Println(answer.Text)
	if len(answer.Citations) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for i, c := range answer.Citations {
			label := c.Title
			if label == "" {
				label = c.SourceID
			}
			fmt.Printf("  [%d] %s\n", i+1, label)
		}
	}
	fmt.Printf("\n(mode: %s)\n", answer.Mode)

	return nil
}
