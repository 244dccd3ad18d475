package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// heicConverters builds the argument list for each supported HEIC/HEIF
// converter, keyed by the binary name.
var heicConverters = map[string]func(in, out string) []string{
	"heif-convert": func(in, out string) []string { return []string{in, out} },
	"magick":       func(in, out string) []string { return []string{in, out} },
	"sips":         func(in, out string) []string { return []string{"-s", "format", "png", in, "--out", out} },
}

// HEICConverters lists the accepted OCR_HEIC_CONVERTER values.
func HEICConverters() []string {
	names := make([]string, 0, len(heicConverters))
	for n := range heicConverters {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// convertHEICtoPNG writes dir/page.png from a HEIC/HEIF file. The caller
// owns dir.
func convertHEICtoPNG(ctx context.Context, r Runner, logger *slog.Logger, converter, in, dir string) (string, []string, error) {
	argv, ok := heicConverters[converter]
	if !ok {
		return "", nil, fmt.Errorf("HEIC not supported: set OCR_HEIC_CONVERTER to one of: %s",
			strings.Join(HEICConverters(), " | "))
	}

	out := filepath.Join(dir, "page.png")
	res, err := r.Run(ctx, Command{Name: converter, Args: argv(in, out)})
	if err != nil {
		return "", warnings(stderrTail(res.Stderr)), fmt.Errorf("%s convert failed: %w", converter, err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}
	logger.Debug("ocr.heic.converted", "converter", converter)
	return out, nil, nil
}

func warnings(msgs ...string) []string {
	var out []string
	for _, m := range msgs {
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}
