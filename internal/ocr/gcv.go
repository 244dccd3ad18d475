package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

type GCVConfig struct {
	CredentialsFile string
	APIKey          string
	Endpoint        string // override for tests
}

// GCV uses Google Cloud Vision DOCUMENT_TEXT_DETECTION.
type GCV struct {
	svc    *vision.Service
	logger *slog.Logger
}

var _ Extractor = (*GCV)(nil)

func NewGCV(ctx context.Context, cfg GCVConfig, logger *slog.Logger, extra ...option.ClientOption) (*GCV, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcv: create service: %w", err)
	}
	return &GCV{svc: svc, logger: logger}, nil
}

func (g *GCV) ExtractText(ctx context.Context, image []byte) (Result, error) {
	start := time.Now()
	if mt, ok := DetectImage(image); !ok {
		return Result{}, fmt.Errorf("gcv: unsupported content type %q", mt)
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:        &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features:     []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
			ImageContext: &vision.ImageContext{LanguageHints: LanguageHints},
		}},
	}
	resp, err := g.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		g.logger.Error("ocr.gcv.annotate_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Result{}, fmt.Errorf("gcv: annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return Result{}, ErrNoText
	}
	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return Result{}, fmt.Errorf("gcv: %s (code %d)", r.Error.Message, r.Error.Code)
	}
	if r.FullTextAnnotation == nil {
		return Result{}, ErrNoText
	}
	txt := Normalize(r.FullTextAnnotation.Text)
	if txt == "" {
		return Result{}, ErrNoText
	}

	conf := heuristicConfidence(txt)
	var sum float64
	var n int
	for _, p := range r.FullTextAnnotation.Pages {
		if p.Confidence > 0 {
			sum += p.Confidence
			n++
		}
	}
	if n > 0 {
		conf = 0.7*float32(sum/float64(n)) + 0.3*conf
	}

	res := Result{
		Text:       txt,
		Method:     MethodGCV,
		Language:   "ko,en",
		Confidence: conf,
		Duration:   time.Since(start),
	}
	g.logger.Info("ocr.gcv.ok", "chars", len(txt), "confidence", conf, "elapsed_ms", res.Duration.Milliseconds())
	return res, nil
}
