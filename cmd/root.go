package cmd

import (
	"log"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hiring-bias-lab/resume-eval/internal/extract"
)

const (
	app = "resume-eval"
)

type Config struct {
	ResumeDir  string           `mapstructure:"resume-dir"`
	OutputDir  string           `mapstructure:"output-dir"`
	Iterations int              `mapstructure:"iterations"`
	Workers    int              `mapstructure:"workers"`
	Retry      *RetryConfig     `mapstructure:"retry"`
	Providers  *ProvidersConfig `mapstructure:"providers"`
	Extract    *ExtractConfig   `mapstructure:"extract"`
}

type RetryConfig struct {
	MaxRetries      int     `mapstructure:"max-retries"`
	DelaySeconds    int     `mapstructure:"delay-seconds"`
	BackoffBase     float64 `mapstructure:"backoff-base"`
	MaxDelaySeconds int     `mapstructure:"max-delay-seconds"`
}

type ProvidersConfig struct {
	OpenAI    *OpenAIConfig   `mapstructure:"openai"`
	Anthropic *ProviderConfig `mapstructure:"anthropic"`
	Mistral   *ProviderConfig `mapstructure:"mistral"`
	Gemini    *ProviderConfig `mapstructure:"gemini"`
}

// OpenAIConfig differs from the generic provider configuration by taking a
// list of API keys: backup keys are used when the current one runs out of
// quota.
type OpenAIConfig struct {
	Models       []string `mapstructure:"models"`
	APIKeys      []string `mapstructure:"api-keys"`
	APIKeyFiles  []string `mapstructure:"api-key-files"`
	MaxLogLength int      `mapstructure:"max-log-length"`
}

type ProviderConfig struct {
	Models       []string `mapstructure:"models"`
	APIKey       string   `mapstructure:"api-key"`
	APIKeyFile   string   `mapstructure:"api-key-file"`
	BaseURL      string   `mapstructure:"base-url"`
	MaxLogLength int      `mapstructure:"max-log-length"`
}

type ExtractConfig struct {
	Source  string              `mapstructure:"source"`
	PDFDir  string              `mapstructure:"pdf-dir"`
	TextDir string              `mapstructure:"text-dir"`
	Groups  []extract.PageGroup `mapstructure:"groups"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-eval sends resumes to LLM providers for standardized evaluation and records the scores",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// A .env file is optional; environment variables win over config values.
	_ = godotenv.Load()

	envBindings := map[string]string{
		"providers.openai.api-keys":   "OPENAI_API_KEYS",
		"providers.anthropic.api-key": "ANTHROPIC_API_KEY",
		"providers.mistral.api-key":   "MISTRAL_API_KEY",
		"providers.gemini.api-key":    "GEMINI_API_KEY",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-eval.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the run and extract commands.
	if runCmd.CalledAs() == "" && extractCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config

	// OPENAI_API_KEYS carries multiple keys as a comma-separated string.
	err := viper.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return config, err
	}

	return config, nil
}
