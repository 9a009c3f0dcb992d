package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/legallens/internal/ai"
	"github.com/spigell/legallens/internal/ai/gemini"
	"github.com/spigell/legallens/internal/logger"
	"github.com/spigell/legallens/internal/tender"
)

const exitWord = "exit"

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask follow-up questions about a saved analysis",
	Run: func(cmd *cobra.Command, _ []string) {
		ask(cmd)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringP("result", "r", "", "result file written by analyze --save")
	askCmd.Flags().StringP("archive-key", "k", "", "archived result key, requires archive.minio settings")
}

func ask(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(app, viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	deps, err := newComponents(ctx, config, nil, logger)
	if err != nil {
		logger.Fatal("preparing the assistant", zap.Error(err))
	}
	defer deps.Close(context.Background())

	result, err := resultFromFlags(ctx, cmd, deps)
	if err != nil {
		logger.Fatal("loading the analysis", zap.Error(err))
	}

	logger.Info("starting the assistant",
		zap.String("entity", result.EntityName),
		zap.String("hint", "type "+exitWord+" or press ctrl+c to leave"),
	)

	if err := chat(ctx, deps.assistant, ai.ResultTurns(result), logger); err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}
}

func resultFromFlags(ctx context.Context, cmd *cobra.Command, deps *components) (tender.Result, error) {
	file := strings.TrimSpace(cmd.Flag("result").Value.String())
	key := strings.TrimSpace(cmd.Flag("archive-key").Value.String())

	switch {
	case file != "" && key != "":
		return tender.Result{}, errors.New("--result and --archive-key are mutually exclusive")
	case file != "":
		return loadResult(file)
	case key != "":
		if deps.archive == nil {
			return tender.Result{}, errors.New("archive is not configured (set archive.minio.endpoint and archive.minio.bucket)")
		}
		return deps.archive.Load(ctx, key)
	default:
		return tender.Result{}, errors.New("either --result or --archive-key is required")
	}
}

// chat runs the question loop. The history keeps every answered exchange.
func chat(ctx context.Context, assistant ai.Assistant, history []tender.Turn, logger *zap.Logger) error {
	questionPrompt := promptui.Prompt{Label: "Question"}

	for {
		query, err := questionPrompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return err
		}

		query = strings.TrimSpace(query)
		switch {
		case query == "":
			continue
		case strings.EqualFold(query, exitWord):
			return nil
		}

		answer, err := assistant.Answer(ctx, history, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("assistant request failed", zap.Error(err))
			fmt.Println(gemini.AssistantFallbackAnswer)
			continue
		}

		fmt.Println(answer)
		history = append(history,
			tender.Turn{Role: tender.RoleUser, Text: query},
			tender.Turn{Role: tender.RoleModel, Text: answer},
		)
	}
}
