package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/legallens/internal/logger"
	"github.com/spigell/legallens/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "listen address (default "+server.DefaultListen+")")

	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
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

	cfg := server.Config{}
	if config.Server != nil {
		cfg = *config.Server
	}

	m, reg := newMetrics()

	deps, err := newComponents(ctx, config, m, logger)
	if err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}
	defer deps.Close(context.Background())

	srv, err := server.New(cfg, server.Deps{
		Pipeline:        deps.pipeline,
		Assistant:       deps.assistant,
		Solutions:       config.Solutions,
		MaxDocumentSize: config.Document.MaxSizeMB << 20,
		Logger:          logger,
		Metrics:         m,
		Gatherer:        reg,
	})
	if err != nil {
		logger.Fatal("creating the server", zap.Error(err))
	}

	logger.Info("starting the legallens server", zap.String("version", version))

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}
}
