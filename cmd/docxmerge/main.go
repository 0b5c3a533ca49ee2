package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docxmerge/docxmerge/pkg/docxmerge"
)

const version = "0.1.0"

var (
	flagTemplate string
	flagData     string
	flagOut      string
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "docxmerge",
	Short: "Merge DOCX templates with JSON data",
	Long: "docxmerge renders Word templates: single-brace directives in the\n" +
		"document text are replaced with values from a JSON document, loop and\n" +
		"conditional blocks are expanded, and inline images are inserted.",
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a template with JSON data",
	RunE: func(cmd *cobra.Command, args []string) error {
		config := docxmerge.GetGlobalConfig()
		if flagConfig != "" {
			loaded, err := docxmerge.ConfigFromFile(flagConfig)
			if err != nil {
				return err
			}
			config = loaded
		}
		if flagLogLevel != "" {
			config.LogLevel = flagLogLevel
		}
		if err := config.Validate(); err != nil {
			return err
		}
		docxmerge.SetGlobalConfig(config)
		docxmerge.UpdateLoggerFromConfig()

		jsonData, err := os.ReadFile(flagData)
		if err != nil {
			return fmt.Errorf("failed to read data file: %w", err)
		}

		engine := docxmerge.NewWithConfig(config)
		if err := engine.RenderFile(flagTemplate, string(jsonData), flagOut); err != nil {
			return err
		}

		fmt.Printf("rendered %s -> %s\n", flagTemplate, flagOut)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("docxmerge version %s\n", version)
	},
}

func init() {
	renderCmd.Flags().StringVarP(&flagTemplate, "template", "t", "", "template .docx file (required)")
	renderCmd.Flags().StringVarP(&flagData, "data", "d", "", "JSON data file (required)")
	renderCmd.Flags().StringVarP(&flagOut, "out", "o", "", "output .docx file (required)")
	renderCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "YAML config file")
	renderCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error, off)")
	_ = renderCmd.MarkFlagRequired("template")
	_ = renderCmd.MarkFlagRequired("data")
	_ = renderCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
