package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hiring-bias-lab/resume-eval/internal/extract"
	"github.com/hiring-bias-lab/resume-eval/internal/logger"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Split the source resume PDF into page-group variants and extract their text",
	Run: func(cmd *cobra.Command, _ []string) {
		runExtract(cmd)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Bool("skip-split", false, "only extract text from existing PDFs, do not split the source")
}

func runExtract(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil || config.Extract == nil {
		logger.Fatal("extract section is required in the configuration file")
	}

	cfg := config.Extract

	pdfDir := cfg.PDFDir
	if pdfDir == "" {
		pdfDir = "pdfs"
	}

	textDir := cfg.TextDir
	if textDir == "" {
		textDir = config.ResumeDir
	}
	if textDir == "" {
		logger.Fatal("text output directory is required under extract.text-dir or resume-dir")
	}

	if cmd.Flag("skip-split").Value.String() == "false" {
		if cfg.Source == "" {
			logger.Fatal("source pdf is required under extract.source")
		}

		if err := extract.Split(cfg.Source, pdfDir, cfg.Groups, logger); err != nil {
			logger.Fatal("splitting source pdf", zap.Error(err))
		}
	}

	if err := extract.Text(pdfDir, textDir, logger); err != nil {
		logger.Fatal("extracting text", zap.Error(err))
	}

	logger.Info("extraction finished", zap.String("text_dir", textDir))
}
