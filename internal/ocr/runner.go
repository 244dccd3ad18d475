package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Command is one external tool invocation.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Output is what a command printed.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes external tools; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, c Command) (Output, error) {
	if _, err := exec.LookPath(c.Name); err != nil {
		return Output{}, fmt.Errorf("%s is not installed: %w", c.Name, err)
	}

	start := time.Now()
	var out Output
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out.Stdout, out.Stderr = stdout.Bytes(), stderr.Bytes()
	if err != nil {
		r.logger.Error("ocr.exec.failed", "cmd", c.String(), "error", err,
			"stderr", stderrTail(out.Stderr), "elapsed_ms", time.Since(start).Milliseconds())
		return out, err
	}
	r.logger.Debug("ocr.exec.ok", "cmd", c.Name, "stdout_bytes", len(out.Stdout),
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// stderrTail returns the last non-blank stderr line. Tesseract and the image
// converters print the actual failure there after any progress noise.
func stderrTail(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if ln := strings.TrimSpace(lines[i]); ln != "" {
			return ln
		}
	}
	return ""
}
