package cmd

import (
	"errors"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/legallens/internal/archive"
	"github.com/spigell/legallens/internal/cache"
	"github.com/spigell/legallens/internal/server"
	"github.com/spigell/legallens/internal/tender"
)

const (
	app = "legallens"
)

type Config struct {
	AI        *AIConfig         `mapstructure:"ai"`
	Document  *DocumentConfig   `mapstructure:"document"`
	Solutions []tender.Solution `mapstructure:"solutions"`
	Cache     *struct {
		Redis *cache.Config `mapstructure:"redis"`
	} `mapstructure:"cache"`
	Archive *struct {
		Minio *archive.Config `mapstructure:"minio"`
	} `mapstructure:"archive"`
	Server *server.Config `mapstructure:"server"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	ContextModel   string `mapstructure:"context-model"`
	AnalysisModel  string `mapstructure:"analysis-model"`
	AssistantModel string `mapstructure:"assistant-model"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

type DocumentConfig struct {
	MaxSizeMB       int64 `mapstructure:"max-size-mb"`
	VerifyStructure bool  `mapstructure:"verify-structure"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "legallens analyzes tender documents and answers follow-up questions about them",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load()

	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key", "GEMINI_API_KEY"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY environment variable: %v", err)
	}

	viper.SetDefault("document.verify-structure", true)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is legallens.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every setting has a default, so a missing implicit config is fine.
	// An explicit --config or a broken file is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Document == nil {
		config.Document = &DocumentConfig{VerifyStructure: viper.GetBool("document.verify-structure")}
	}
	if len(config.Solutions) == 0 {
		config.Solutions = tender.DefaultSolutions()
	}

	return config, nil
}
