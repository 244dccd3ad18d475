package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pantry-receipts/internal/assist"
	"github.com/joseph-ayodele/pantry-receipts/internal/llm/langchain"
	"github.com/joseph-ayodele/pantry-receipts/internal/ocr"
	"github.com/joseph-ayodele/pantry-receipts/internal/parser"
	"github.com/joseph-ayodele/pantry-receipts/internal/taxonomy"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <image>",
	Short: "Run the configured OCR provider over an image and print the text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		cfg := config()

		var x ocr.Extractor
		switch cfg.OCR.Provider {
		case "gcv":
			g, err := ocr.NewGCV(cmd.Context(), ocr.GCVConfig{
				CredentialsFile: cfg.OCR.GCVCredentialsFile,
				APIKey:          cfg.OCR.GCVAPIKey,
			}, logger)
			if err != nil {
				return err
			}
			x = g
		case "tesseract":
			x = ocr.NewTesseract(ocr.TesseractConfig{
				Binary:              cfg.OCR.TesseractBinary,
				Lang:                cfg.OCR.TesseractLang,
				TessdataDir:         cfg.OCR.TessdataDir,
				PSM:                 cfg.OCR.PSM,
				HeicConverter:       cfg.OCR.HeicConverter,
				EnableTSVConfidence: cfg.OCR.TSVConfidence,
			}, logger)
		default:
			return fmt.Errorf("OCR_PROVIDER=%q has no extractor", cfg.OCR.Provider)
		}

		start := time.Now()
		res, err := x.ExtractText(cmd.Context(), image)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{
			"method":      res.Method,
			"language":    res.Language,
			"confidence":  res.Confidence,
			"warnings":    res.Warnings,
			"duration_ms": time.Since(start).Milliseconds(),
			"text":        res.Text,
		})
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse [textfile]",
	Short: "Parse recognized receipt text into items (stdin when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			raw []byte
			err error
		)
		if len(args) == 1 {
			raw, err = os.ReadFile(args[0])
		} else {
			raw, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}
		tax := taxonomy.Default()

		if useAssist, _ := cmd.Flags().GetBool("assist"); useAssist {
			cfg := config()
			c, err := langchain.NewOpenAI(langchain.Config{
				APIKey:      cfg.LLM.APIKey,
				BaseURL:     cfg.LLM.BaseURL,
				Model:       cfg.LLM.Model,
				Temperature: float64(cfg.LLM.Temperature),
			}, logger)
			if err != nil {
				return err
			}
			items, err := assist.NewParser(c, tax, logger).ParseText(cmd.Context(), string(raw))
			if err != nil {
				return err
			}
			return printJSON(cmd, items)
		}
		return printJSON(cmd, parser.New(tax).Parse(string(raw)))
	},
}

func init() {
	parseCmd.Flags().Bool("assist", false, "use the language-model assisted parser instead of the offline one")
}
