package cmd

import (
	"context"
	"encoding/json"
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

	"github.com/spigell/legallens/internal/document"
	"github.com/spigell/legallens/internal/logger"
	"github.com/spigell/legallens/internal/pipeline"
	"github.com/spigell/legallens/internal/report"
	"github.com/spigell/legallens/internal/tender"
)

const PromptCompany = "Evaluate a company by name"

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.pdf>",
	Short: "Analyze a tender document for a company or a catalog solution",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		analyze(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("entity", "e", "", "company to evaluate; market context is retrieved for it")
	analyzeCmd.Flags().StringP("solution", "s", "", "catalog solution id to evaluate instead of a company")
	analyzeCmd.Flags().StringP("output", "o", string(report.FormatText), "output format: text, json or yaml")
	analyzeCmd.Flags().String("save", "", "write the result as JSON to this file for the ask command")
}

func analyze(cmd *cobra.Command, path string) {
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

	format, err := report.ParseFormat(cmd.Flag("output").Value.String())
	if err != nil {
		logger.Fatal("parsing flags", zap.Error(err))
	}

	req, err := requestFromFlags(cmd, config.Solutions)
	if err != nil {
		logger.Fatal("building the analysis request", zap.Error(err))
	}

	logger.Info("starting the analysis",
		zap.String("version", version),
		zap.String("document", path),
		zap.String("variant", req.Variant.String()),
		zap.String("subject", req.Subject()),
	)

	deps, err := newComponents(ctx, config, nil, logger)
	if err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}
	defer deps.Close(context.Background())

	in, file, err := document.FromFile(path)
	if err != nil {
		logger.Fatal("opening the document", zap.Error(err))
	}
	defer file.Close()

	run, err := deps.pipeline.Analyze(ctx, req, in)
	if err != nil {
		logger.Fatal(tender.UserMessage(err), zap.String("run_id", run.ID), zap.Error(err))
	}

	logFinishedRun(logger, run)

	if save := cmd.Flag("save").Value.String(); save != "" {
		if err := saveResult(save, *run.Result); err != nil {
			logger.Fatal("saving the result", zap.Error(err))
		}
		logger.Info("result saved", zap.String("filename", save))
	}

	if err := report.Write(os.Stdout, format, *run.Result); err != nil {
		logger.Fatal("rendering the result", zap.Error(err))
	}
}

// requestFromFlags builds the request from --entity or --solution and falls
// back to an interactive selection when neither is given.
func requestFromFlags(cmd *cobra.Command, catalog []tender.Solution) (tender.Request, error) {
	entity := strings.TrimSpace(cmd.Flag("entity").Value.String())
	solutionID := strings.TrimSpace(cmd.Flag("solution").Value.String())

	switch {
	case entity != "" && solutionID != "":
		return tender.Request{}, errors.New("--entity and --solution are mutually exclusive")
	case entity != "":
		return tender.NewGroundedRequest(entity)
	case solutionID != "":
		solution, ok := tender.FindSolution(catalog, solutionID)
		if !ok {
			return tender.Request{}, fmt.Errorf("unknown solution: %s", solutionID)
		}
		return tender.NewSolutionRequest(solution)
	default:
		return selectRequest(catalog)
	}
}

func selectRequest(catalog []tender.Solution) (tender.Request, error) {
	items := make([]string, 0, len(catalog)+1)
	for _, s := range catalog {
		items = append(items, s.Label())
	}
	items = append(items, PromptCompany)

	selectPrompt := promptui.Select{
		Label: "What should the tender be evaluated against?",
		Items: items,
		Size:  len(items),
	}

	idx, _, err := selectPrompt.Run()
	if err != nil {
		return tender.Request{}, err
	}

	if idx < len(catalog) {
		return tender.NewSolutionRequest(catalog[idx])
	}

	entityPrompt := promptui.Prompt{
		Label: "Company name",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("company name is required")
			}
			return nil
		},
	}

	entity, err := entityPrompt.Run()
	if err != nil {
		return tender.Request{}, err
	}

	return tender.NewGroundedRequest(entity)
}

func logFinishedRun(logger *zap.Logger, run *pipeline.Run) {
	fields := []zap.Field{
		zap.String("run_id", run.ID),
		zap.String("state", string(run.State)),
		zap.Duration("duration", run.FinishedAt.Sub(run.StartedAt)),
		zap.Int("feasibility", run.Result.FeasibilityScore),
	}
	if run.Context.Fallback {
		fields = append(fields, zap.Bool("fallback_context", true))
	}
	if run.ArchiveKey != "" {
		fields = append(fields, zap.String("archive_key", run.ArchiveKey))
	}
	logger.Info("analysis finished", fields...)
}

func saveResult(path string, result tender.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func loadResult(path string) (tender.Result, error) {
	var result tender.Result

	data, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("read result file: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("decode result file %s: %w", path, err)
	}
	return result, nil
}
