package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hiring-bias-lab/resume-eval/internal/ai"
	"github.com/hiring-bias-lab/resume-eval/internal/ai/anthropic"
	"github.com/hiring-bias-lab/resume-eval/internal/ai/gemini"
	"github.com/hiring-bias-lab/resume-eval/internal/ai/mistral"
	"github.com/hiring-bias-lab/resume-eval/internal/ai/openai"
	"github.com/hiring-bias-lab/resume-eval/internal/logger"
	"github.com/hiring-bias-lab/resume-eval/internal/runner"
	"github.com/hiring-bias-lab/resume-eval/internal/secrets"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	defaultIterations = 100
	defaultWorkers    = 5
	defaultOutputDir  = "."
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the evaluation: every resume file against every configured model",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before starting the run")
	runCmd.Flags().Bool("dry-run", false, "list the planned tasks and exit without calling any provider")
	runCmd.Flags().IntP("iterations", "n", 0, "iterations per (file, model) pair, overrides the config value")
	runCmd.Flags().IntP("workers", "w", 0, "concurrent tasks, overrides the config value")

	viper.BindPFlag("iterations", runCmd.Flags().Lookup("iterations"))
	viper.BindPFlag("workers", runCmd.Flags().Lookup("workers"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the resume-eval", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	if config.ResumeDir == "" {
		logger.Fatal("resume directory is required under resume-dir")
	}

	evaluators, err := buildEvaluators(ctx, config, logger)
	if err != nil {
		logger.Fatal("building evaluators", zap.Error(err))
	}

	if len(evaluators) == 0 {
		logger.Fatal("no models configured",
			zap.String("hint", "configure at least one model under the providers section"),
		)
	}

	files, err := resumeFiles(config.ResumeDir)
	if err != nil {
		logger.Fatal("listing resume files", zap.Error(err))
	}

	if len(files) == 0 {
		logger.Fatal("no resume files found",
			zap.String("resume_dir", config.ResumeDir),
			zap.String("hint", "run the extract command first or point resume-dir at a directory with .txt files"),
		)
	}

	tasks := make([]runner.Task, 0, len(files)*len(evaluators))
	for _, file := range files {
		for _, evaluator := range evaluators {
			tasks = append(tasks, runner.Task{File: file, Evaluator: evaluator})
		}
	}

	iterations := config.Iterations
	if v := viper.GetInt("iterations"); v > 0 {
		iterations = v
	}
	if iterations <= 0 {
		iterations = defaultIterations
	}

	workers := config.Workers
	if v := viper.GetInt("workers"); v > 0 {
		workers = v
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	logger.Info("planned run",
		zap.Int("resume_files", len(files)),
		zap.Int("models", len(evaluators)),
		zap.Int("tasks", len(tasks)),
		zap.Int("iterations_per_task", iterations),
		zap.Int("workers", workers),
	)

	if cmd.Flag("dry-run").Value.String() == "true" {
		for _, task := range tasks {
			logger.Info("planned task",
				zap.String("file", filepath.Base(task.File)),
				zap.String("provider", task.Evaluator.Provider()),
				zap.String("model", task.Evaluator.Model()),
			)
		}
		return
	}

	if cmd.Flag("auto-approve").Value.String() == "false" {
		confirm := promptui.Select{
			Label: fmt.Sprintf("Start %d tasks with %d iterations each?", len(tasks), iterations),
			Items: []string{PromptYes, PromptNo},
		}

		_, action, err := confirm.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	outputDir := config.OutputDir
	if outputDir == "" {
		outputDir = defaultOutputDir
	}

	r := runner.New(runner.Config{
		RunID:      uuid.NewString(),
		Iterations: iterations,
		Workers:    workers,
	}, runner.NewCSVSink(outputDir), logger)

	summary, err := r.Run(ctx, tasks)
	if err != nil {
		logger.Fatal("run aborted", zap.Error(err))
	}

	if summary.FailedTasks > 0 {
		logger.Warn("run finished with failed tasks", zap.Int64("failed_tasks", summary.FailedTasks))
		os.Exit(1)
	}
}

// buildEvaluators creates one evaluator per configured (provider, model) pair.
func buildEvaluators(ctx context.Context, config *Config, logger *zap.Logger) ([]ai.Evaluator, error) {
	if config.Providers == nil {
		return nil, nil
	}

	policy := retryPolicy(config.Retry)
	evaluators := make([]ai.Evaluator, 0)

	if cfg := config.Providers.OpenAI; cfg != nil {
		keys, err := openaiKeys(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w (set providers.openai.api-keys or OPENAI_API_KEYS)", err)
		}

		for _, model := range cfg.Models {
			client, err := openai.New(openai.Config{
				Model:        model,
				APIKeys:      keys,
				Retry:        policy,
				MaxLogLength: cfg.MaxLogLength,
			}, logger)
			if err != nil {
				return nil, err
			}
			evaluators = append(evaluators, client)
		}
	}

	if cfg := config.Providers.Anthropic; cfg != nil {
		apiKey, err := providerKey(cfg, "anthropic api key")
		if err != nil {
			return nil, fmt.Errorf("%w (set providers.anthropic.api-key or ANTHROPIC_API_KEY)", err)
		}

		for _, model := range cfg.Models {
			client, err := anthropic.New(anthropic.Config{
				Model:        model,
				APIKey:       apiKey,
				Retry:        policy,
				MaxLogLength: cfg.MaxLogLength,
			}, logger)
			if err != nil {
				return nil, err
			}
			evaluators = append(evaluators, client)
		}
	}

	if cfg := config.Providers.Mistral; cfg != nil {
		apiKey, err := providerKey(cfg, "mistral api key")
		if err != nil {
			return nil, fmt.Errorf("%w (set providers.mistral.api-key or MISTRAL_API_KEY)", err)
		}

		for _, model := range cfg.Models {
			client, err := mistral.New(mistral.Config{
				Model:        model,
				APIKey:       apiKey,
				BaseURL:      cfg.BaseURL,
				Retry:        policy,
				MaxLogLength: cfg.MaxLogLength,
			}, logger)
			if err != nil {
				return nil, err
			}
			evaluators = append(evaluators, client)
		}
	}

	if cfg := config.Providers.Gemini; cfg != nil {
		apiKey, err := providerKey(cfg, "gemini api key")
		if err != nil {
			return nil, fmt.Errorf("%w (set providers.gemini.api-key or GEMINI_API_KEY)", err)
		}

		for _, model := range cfg.Models {
			client, err := gemini.New(ctx, gemini.Config{
				Model:        model,
				APIKey:       apiKey,
				Retry:        policy,
				MaxLogLength: cfg.MaxLogLength,
			}, logger)
			if err != nil {
				return nil, err
			}
			evaluators = append(evaluators, client)
		}
	}

	return evaluators, nil
}

func openaiKeys(cfg *OpenAIConfig) ([]string, error) {
	sources := make([]secrets.Source, 0, len(cfg.APIKeyFiles)+len(cfg.APIKeys))

	for i, file := range cfg.APIKeyFiles {
		sources = append(sources, secrets.Source{
			Name: fmt.Sprintf("openai api key file #%d", i+1),
			File: file,
		})
	}
	for i, key := range cfg.APIKeys {
		sources = append(sources, secrets.Source{
			Name:  fmt.Sprintf("openai api key #%d", i+1),
			Value: key,
		})
	}

	return secrets.LoadAll(sources...)
}

func providerKey(cfg *ProviderConfig, name string) (string, error) {
	return secrets.Load(secrets.Source{
		Name:  name,
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
	})
}

// retryPolicy maps the config section onto the retry policy, falling back to
// defaults for unset values.
func retryPolicy(cfg *RetryConfig) ai.RetryPolicy {
	policy := ai.DefaultRetryPolicy()
	if cfg == nil {
		return policy
	}

	if cfg.MaxRetries > 0 {
		policy.MaxRetries = cfg.MaxRetries
	}
	if cfg.DelaySeconds > 0 {
		policy.BaseDelay = time.Duration(cfg.DelaySeconds) * time.Second
	}
	if cfg.BackoffBase > 1 {
		policy.BackoffBase = cfg.BackoffBase
	}
	if cfg.MaxDelaySeconds > 0 {
		policy.MaxDelay = time.Duration(cfg.MaxDelaySeconds) * time.Second
	}

	return policy
}

// resumeFiles lists the text files of a directory in a stable order.
func resumeFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read resume directory: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}

	sort.Strings(files)

	return files, nil
}
