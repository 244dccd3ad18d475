package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type TesseractConfig struct {
	Binary        string // binary name or absolute path; if empty -> "tesseract"
	Lang          string // default "kor+eng"
	TessdataDir   string
	PSM           int    // e.g., 6 is good for uniform block of text
	HeicConverter string // "heif-convert" | "magick" | "sips"

	EnableTSVConfidence bool
}

// Tesseract runs the tesseract CLI over a temp copy of the image.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

var _ Extractor = (*Tesseract)(nil)

func NewTesseract(cfg TesseractConfig, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	return newTesseract(cfg, execRunner{logger: logger}, logger)
}

func newTesseract(cfg TesseractConfig, r Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "kor+eng"
	}
	if cfg.HeicConverter == "" {
		cfg.HeicConverter = "magick"
	}
	return &Tesseract{cfg: cfg, runner: r, logger: logger}
}

func (t *Tesseract) ExtractText(ctx context.Context, image []byte) (Result, error) {
	start := time.Now()
	mt, ok := DetectImage(image)
	if !ok {
		return Result{}, fmt.Errorf("tesseract: unsupported content type %q", mt)
	}

	tmpDir, err := os.MkdirTemp("", "pantry-ocr-*")
	if err != nil {
		return Result{}, fmt.Errorf("tesseract: temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	path := filepath.Join(tmpDir, "scan"+extFor(mt))
	if err := os.WriteFile(path, image, 0o600); err != nil {
		return Result{}, fmt.Errorf("tesseract: write temp image: %w", err)
	}

	var warns []string
	if isHEIC(mt) {
		out, w, err := convertHEICtoPNG(ctx, t.runner, t.logger, t.cfg.HeicConverter, path, tmpDir)
		warns = append(warns, w...)
		if err != nil {
			return Result{Warnings: warns}, err
		}
		path = out
	}

	out, err := t.runner.Run(ctx, Command{Name: t.cfg.Binary, Args: t.args(path)})
	if err != nil {
		return Result{Warnings: append(warns, warnings(stderrTail(out.Stderr))...)}, fmt.Errorf("tesseract: %w", err)
	}
	txt := Normalize(reBoxNoise.ReplaceAllString(string(out.Stdout), ""))
	if txt == "" {
		return Result{Warnings: warns}, ErrNoText
	}

	conf := heuristicConfidence(txt)
	if t.cfg.EnableTSVConfidence {
		if c, err := t.tsvConfidence(ctx, path); err == nil && c > 0 {
			// blend: weight OCR higher if present
			conf = 0.7*c + 0.3*conf
		} else if err != nil {
			warns = append(warns, err.Error())
		}
	}
	if conf > 1.0 {
		conf = 1.0
	}

	res := Result{
		Text:       txt,
		Method:     MethodTesseract,
		Language:   t.cfg.Lang,
		Confidence: conf,
		Duration:   time.Since(start),
		Warnings:   warns,
	}
	t.logger.Info("ocr.tesseract.ok", "chars", len(txt), "confidence", conf, "elapsed_ms", res.Duration.Milliseconds())
	return res, nil
}

// tesseract <file> stdout -l <lang> [--psm N] [--tessdata-dir D] [extra...]
func (t *Tesseract) args(path string, extra ...string) []string {
	args := []string{path, "stdout", "-l", t.cfg.Lang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return append(args, extra...)
}

// tsvConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (t *Tesseract) tsvConfidence(ctx context.Context, path string) (float32, error) {
	out, err := t.runner.Run(ctx, Command{Name: t.cfg.Binary, Args: t.args(path, "tsv")})
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w", err)
	}
	var sum, n float64
	for i, ln := range strings.Split(string(out.Stdout), "\n") {
		if i == 0 || ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[len(cols)-2]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float32(sum / n / 100.0), nil
}
