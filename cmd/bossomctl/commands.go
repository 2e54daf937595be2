package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appanalysis "github.com/bossom/bossom/internal/application/analysis"
	"github.com/bossom/bossom/internal/config"
	domain "github.com/bossom/bossom/internal/domain/analysis"
	"github.com/bossom/bossom/internal/infra/ai"
	"github.com/bossom/bossom/internal/infra/ai/prompt"
)

var (
	contentType string
	caseID      string
	timeout     time.Duration
)

// analyzeCmd submits one image through the gateway
var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Submit one image for analysis and print the normalized result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		gw, err := ai.NewGateway(cfg)
		if err != nil {
			return err
		}
		if timeout > 0 {
			gw.Timeout = timeout
		}

		image, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		name := filepath.Base(args[0])
		ct := domain.ContentTypeForFile(name, contentType)

		logger.Debug("submitting",
			zap.String("file", name),
			zap.String("content_type", ct),
			zap.Int("size", len(image)),
			zap.String("provider", cfg.Inference.Provider))

		res, err := gw.Submit(cmd.Context(), image, ct, name)
		if err != nil {
			return describe(cmd.ErrOrStderr(), err)
		}
		if caseID != "" {
			res.CaseID = caseID
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

// validateCmd runs the normalizer over a saved upstream response
var validateCmd = &cobra.Command{
	Use:   "validate <response.json>",
	Short: "Check a saved inference response against the analysis schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			body []byte
			err  error
		)
		if args[0] == "-" {
			body, err = io.ReadAll(cmd.InOrStdin())
		} else {
			body, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}
		res, err := appanalysis.Normalize(body)
		if err != nil {
			return describe(cmd.ErrOrStderr(), err)
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Print the built-in mock analysis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), prompt.SampleAnalysis(caseID))
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&contentType, "content-type", "", "override the content type inferred from the file extension")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 0, "override inference.timeoutSeconds")
	analyzeCmd.Flags().StringVar(&caseID, "case", "", "case id to stamp on the result")
	sampleCmd.Flags().StringVar(&caseID, "case", "", "case id to stamp on the sample")
}

// describe prints the error kind and its details, then returns err for the exit code
func describe(w io.Writer, err error) error {
	var ae *domain.Error
	if !errors.As(err, &ae) {
		return err
	}
	fmt.Fprintf(w, "kind: %s\n", ae.Kind)
	if ae.StatusCode != 0 {
		fmt.Fprintf(w, "upstream status: %d\n", ae.StatusCode)
	}
	for _, f := range ae.Fields {
		fmt.Fprintf(w, "  invalid field: %s\n", f)
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
