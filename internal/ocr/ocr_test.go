package ocr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls []call
	out   map[string]string // "tsv" or "stdout"
	err   error
}

func (f *fakeRunner) Run(_ context.Context, c Command) (Output, error) {
	f.calls = append(f.calls, call{name: c.Name, args: c.Args})
	if f.err != nil {
		return Output{Stderr: []byte("progress 10%\nstderr text\n\n")}, f.err
	}
	if c.Name != "tesseract" {
		// converters: create the output file that follows the input
		_ = os.WriteFile(c.Args[len(c.Args)-1], pngBytes, 0o600)
		return Output{}, nil
	}
	mode := "stdout"
	if c.Args[len(c.Args)-1] == "tsv" {
		mode = "tsv"
	}
	return Output{Stdout: []byte(f.out[mode])}, nil
}

func TestNormalize(t *testing.T) {
	in := "  이마트\r\n우유\t\t1L   2,500\f\n\n\n\n|||||\n합계  "
	assert.Equal(t, "이마트\n우유 1L 2,500\n\n합계", Normalize(in))
	assert.Equal(t, "", Normalize(""))
}

func TestHeuristicConfidence(t *testing.T) {
	assert.InDelta(t, 0.2, heuristicConfidence("hello"), 1e-6)
	rich := "2024-03-15 합계 12,400원"
	assert.InDelta(t, 0.8, heuristicConfidence(rich), 1e-6)
	assert.InDelta(t, 0.9, heuristicConfidence(rich+"\n우유 1L 2,500원"), 1e-6)
	assert.InDelta(t, 1.0, heuristicConfidence(rich+"\n양파 1kg 3,000원\n"+strings.Repeat("x", 120)), 1e-6)
}

func TestDetectImage(t *testing.T) {
	mt, ok := DetectImage(pngBytes)
	assert.True(t, ok)
	assert.Equal(t, "image/png", mt)

	_, ok = DetectImage([]byte("%PDF-1.4 not an image"))
	assert.False(t, ok)

	_, ok = DetectImage(nil)
	assert.False(t, ok)
}

func TestTesseract_ExtractText(t *testing.T) {
	r := &fakeRunner{out: map[string]string{"stdout": "우유 1L  2,500원\n\n\n\n합계 2,500원\n"}}
	x := newTesseract(TesseractConfig{PSM: 6, TessdataDir: "/td"}, r, nil)

	res, err := x.ExtractText(context.Background(), pngBytes)
	require.NoError(t, err)
	assert.Equal(t, "우유 1L 2,500원\n\n합계 2,500원", res.Text)
	assert.Equal(t, MethodTesseract, res.Method)
	assert.Equal(t, "kor+eng", res.Language)
	assert.Greater(t, res.Confidence, float32(0.2))

	require.Len(t, r.calls, 1)
	args := r.calls[0].args
	assert.True(t, strings.HasSuffix(args[0], ".png"))
	assert.Equal(t, []string{"stdout", "-l", "kor+eng", "--psm", "6", "--tessdata-dir", "/td"}, args[1:])
}

func TestTesseract_TSVConfidenceBlend(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\t우유\n" +
		"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\t1L\n" +
		"4\t1\t1\t1\t1\t0\t0\t0\t10\t10\t-1\t\n"
	r := &fakeRunner{out: map[string]string{"stdout": "hello", "tsv": tsv}}
	x := newTesseract(TesseractConfig{EnableTSVConfidence: true}, r, nil)

	res, err := x.ExtractText(context.Background(), pngBytes)
	require.NoError(t, err)
	// 0.7*0.8 + 0.3*0.2
	assert.InDelta(t, 0.62, res.Confidence, 1e-5)
	assert.Len(t, r.calls, 2)
}

func TestTesseract_Errors(t *testing.T) {
	_, err := newTesseract(TesseractConfig{}, &fakeRunner{}, nil).ExtractText(context.Background(), []byte("plain text"))
	assert.Error(t, err)

	_, err = newTesseract(TesseractConfig{}, &fakeRunner{out: map[string]string{"stdout": " \n|||\n "}}, nil).
		ExtractText(context.Background(), pngBytes)
	assert.ErrorIs(t, err, ErrNoText)

	boom := errors.New("exit status 1")
	res, err := newTesseract(TesseractConfig{}, &fakeRunner{err: boom}, nil).ExtractText(context.Background(), pngBytes)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, res.Warnings, "stderr text")
}

func TestConvertHEIC(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scan.heic")

	for _, conv := range []string{"heif-convert", "magick", "sips"} {
		t.Run(conv, func(t *testing.T) {
			r := &fakeRunner{}
			out, _, err := convertHEICtoPNG(context.Background(), r, slog.Default(), conv, in, dir)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "page.png"), out)
			require.Len(t, r.calls, 1)
			assert.Equal(t, conv, r.calls[0].name)
		})
	}

	_, _, err := convertHEICtoPNG(context.Background(), &fakeRunner{}, slog.Default(), "paint", in, dir)
	assert.ErrorContains(t, err, "heif-convert | magick | sips")

	_, warns, err := convertHEICtoPNG(context.Background(), &fakeRunner{err: errors.New("exit status 1")}, slog.Default(), "magick", in, dir)
	assert.Error(t, err)
	assert.Equal(t, []string{"stderr text"}, warns)
}

func TestStderrTail(t *testing.T) {
	assert.Equal(t, "Error: cannot open", stderrTail([]byte("Estimating resolution\nError: cannot open\n  \n")))
	assert.Equal(t, "", stderrTail(nil))
	assert.Equal(t, "tesseract a.png stdout -l kor", Command{Name: "tesseract", Args: []string{"a.png", "stdout", "-l", "kor"}}.String())
}

func newTestGCV(t *testing.T, body string) *GCV {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "images:annotate"))
		raw, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(raw), "DOCUMENT_TEXT_DETECTION")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	g, err := NewGCV(context.Background(), GCVConfig{Endpoint: srv.URL + "/"}, nil, option.WithoutAuthentication())
	require.NoError(t, err)
	return g
}

func TestGCV_ExtractText(t *testing.T) {
	g := newTestGCV(t, `{"responses":[{"fullTextAnnotation":{"text":"우유  1L\r\n합계 2,500원","pages":[{"confidence":0.9}]}}]}`)
	res, err := g.ExtractText(context.Background(), pngBytes)
	require.NoError(t, err)
	assert.Equal(t, "우유 1L\n합계 2,500원", res.Text)
	assert.Equal(t, MethodGCV, res.Method)
	assert.Greater(t, res.Confidence, float32(0.6))
}

func TestGCV_NoText(t *testing.T) {
	g := newTestGCV(t, `{"responses":[{}]}`)
	_, err := g.ExtractText(context.Background(), pngBytes)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestGCV_ResponseError(t *testing.T) {
	g := newTestGCV(t, `{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`)
	_, err := g.ExtractText(context.Background(), pngBytes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad image data.")
}
