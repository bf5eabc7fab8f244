package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/JesseHenson/ortho-intel-sub001/internal/competitiveintel"
	"github.com/JesseHenson/ortho-intel-sub001/internal/logging"
	"github.com/JesseHenson/ortho-intel-sub001/internal/telemetry"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a competitive intelligence analysis",
	Long: `analyze researches each competitor (1 to 5), detects the device category,
extracts clinical gaps and market opportunities, and writes the report as
JSON, markdown, or HTML.

Example:
  ortho-intel analyze --competitor "Globus Medical" --competitor NuVasive --focus spine_fusion`,
	RunE: runAnalyze,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Print the device category catalog as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog(viper.GetString("catalog"))
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(catalog)
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.StringSlice("competitor", nil, "competitor name (repeat or comma-separate, 1 to 5)")
	f.String("focus", "", "focus area, e.g. spine_fusion")
	f.String("format", "json", "output format: json, markdown, or html")
	f.StringP("out", "o", "", "write the report to this file instead of stdout")
	f.Bool("progress", false, "print stage progress to stderr")
	f.String("failure-policy", "", "on a failed final search attempt: stop or advance")
	f.Bool("market-share", true, "run the market share analysis stage")
	f.String("record", "", "record search and model traffic to this SQLite file")
	f.String("replay", "", "replay search and model traffic from this SQLite file")
	_ = viper.BindPFlag("research.failure_policy", f.Lookup("failure-policy"))
	_ = viper.BindPFlag("research.market_share", f.Lookup("market-share"))
	_ = viper.BindPFlag("record", f.Lookup("record"))
	_ = viper.BindPFlag("replay", f.Lookup("replay"))

	rootCmd.PersistentFlags().String("catalog", "", "device category catalog YAML (default: built-in)")
	_ = viper.BindPFlag("catalog", rootCmd.PersistentFlags().Lookup("catalog"))

	rootCmd.AddCommand(analyzeCmd, categoriesCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	competitors, _ := cmd.Flags().GetStringSlice("competitor")
	focus, _ := cmd.Flags().GetString("focus")
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")
	showProgress, _ := cmd.Flags().GetBool("progress")
	if err := validateFormat(format); err != nil {
		return err
	}

	log, closer, err := logging.New(logging.Options{Level: viper.GetString("log.level"), File: viper.GetString("log.file")})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := loadSettings()
	shutdown, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: "ortho-intel", ServiceVersion: version, Endpoint: s.OTLPEndpoint})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("telemetry shutdown failed")
		}
	}()

	orch, cleanup, err := buildOrchestrator(ctx, s, log)
	if err != nil {
		return err
	}
	defer cleanup()

	var progress competitiveintel.StageProgressFn
	if showProgress {
		progress = func(stage competitiveintel.Stage, message string) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", stage, message)
		}
	}
	report, err := orch.RunAnalysisWithProgress(ctx, competitiveintel.Request{Competitors: competitors, FocusArea: focus}, progress)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return writeReport(out, report, format)
}

func validateFormat(format string) error {
	switch format {
	case "json", "", "markdown", "md", "html":
		return nil
	default:
		return fmt.Errorf("unknown format %q (want json, markdown, or html)", format)
	}
}

func writeReport(w io.Writer, report *competitiveintel.FinalReport, format string) error {
	env := competitiveintel.BuildResponse(report)
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	case "markdown", "md":
		_, err := io.WriteString(w, env.ReportMarkdown)
		return err
	case "html":
		page, err := competitiveintel.RenderHTML(env.ReportMarkdown)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, page)
		return err
	default:
		return validateFormat(format)
	}
}
