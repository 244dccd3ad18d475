package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
	"github.com/joseph-ayodele/pantry-receipts/internal/pipeline"
)

type fakeScanner struct {
	mu    sync.Mutex
	err   error
	calls int
	reqs  []pipeline.ScanRequest
}

func (f *fakeScanner) Scan(_ context.Context, req pipeline.ScanRequest) (pipeline.ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return pipeline.ScanResult{}, f.err
	}
	return pipeline.ScanResult{EventID: uuid.New(), Mode: entity.ModeDeterministic, Outcome: entity.OutcomeEmpty, Items: []entity.ExtractedItem{}}, nil
}

func readSidecar(t *testing.T, path string) Sidecar {
	t.Helper()
	raw, err := os.ReadFile(resultPath(path))
	require.NoError(t, err)
	var sc Sidecar
	require.NoError(t, json.Unmarshal(raw, &sc))
	return sc
}

func TestAllowed(t *testing.T) {
	assert.True(t, allowed("/in/r.JPG", defaultExts))
	assert.True(t, allowed("/in/r.heic", defaultExts))
	assert.False(t, allowed("/in/.r.jpg", defaultExts))
	assert.False(t, allowed("/in/r.jpg.scan.json", defaultExts))
	assert.False(t, allowed("/in/r.pdf", defaultExts))
}

func TestScanProcessor_WritesSidecarOnce(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "r.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpegbytes"), 0o600))

	fs := &fakeScanner{}
	p := NewScanProcessor(fs, "u1", true, nil)

	require.NoError(t, p.Process(context.Background(), Job{Path: img}))
	sc := readSidecar(t, img)
	require.NotNil(t, sc.Result)
	assert.Nil(t, sc.Error)
	assert.Equal(t, entity.ModeDeterministic, sc.Result.Mode)
	assert.Equal(t, pipeline.ScanRequest{UserID: "u1", Image: []byte("jpegbytes"), PreferVision: true}, fs.reqs[0])

	require.NoError(t, p.Process(context.Background(), Job{Path: img}))
	assert.Equal(t, 1, fs.calls, "a file with a sidecar is not scanned again")
}

func TestScanProcessor_TerminalErrorsAreRecorded(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "r.png")
	require.NoError(t, os.WriteFile(img, []byte("x"), 0o600))

	p := NewScanProcessor(&fakeScanner{err: &pipeline.ScanError{Code: pipeline.CodeNotAReceipt}}, "u1", false, nil)
	require.NoError(t, p.Process(context.Background(), Job{Path: img}))

	sc := readSidecar(t, img)
	assert.Nil(t, sc.Result)
	require.NotNil(t, sc.Error)
	assert.Equal(t, pipeline.CodeNotAReceipt, sc.Error.Code)
	assert.Equal(t, pipeline.Message(pipeline.CodeNotAReceipt), sc.Error.Message)
}

func TestScanProcessor_TransientErrorsAreRetried(t *testing.T) {
	for _, code := range []pipeline.Code{
		pipeline.CodeServiceUnavailable,
		pipeline.CodeInternal,
		pipeline.CodeQuotaExceeded,
	} {
		t.Run(string(code), func(t *testing.T) {
			dir := t.TempDir()
			img := filepath.Join(dir, "r.png")
			require.NoError(t, os.WriteFile(img, []byte("x"), 0o600))

			fs := &fakeScanner{err: &pipeline.ScanError{Code: code}}
			p := NewScanProcessor(fs, "u1", false, nil)
			err := p.Process(context.Background(), Job{Path: img})
			assert.Equal(t, code, pipeline.CodeOf(err))

			_, statErr := os.Stat(resultPath(img))
			assert.True(t, os.IsNotExist(statErr), "no sidecar for %s", code)

			// the next event scans the file again
			_ = p.Process(context.Background(), Job{Path: img})
			assert.Equal(t, 2, fs.calls)
		})
	}
}

func TestScanProcessor_MissingFile(t *testing.T) {
	p := NewScanProcessor(&fakeScanner{}, "u1", false, nil)
	assert.Error(t, p.Process(context.Background(), Job{Path: filepath.Join(t.TempDir(), "gone.jpg")}))
}

func TestStartWatcher_InitialAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "old.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, existing, p)
	case <-time.After(2 * time.Second):
		t.Fatal("initial file was not emitted")
	}

	fresh := filepath.Join(dir, "new.png")
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o600))
	select {
	case p := <-events:
		assert.Equal(t, fresh, p)
	case <-time.After(2 * time.Second):
		t.Fatal("new file was not emitted")
	}

	cancel()
	for range events {
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}

func TestRun_ProcessesInbox(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "r.jpg")
	require.NoError(t, os.WriteFile(img, []byte("x"), 0o600))

	fs := &fakeScanner{}
	q := NewScanQueue(NewScanProcessor(fs, "u1", true, nil), nil, WithWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true}, q, time.Second, nil)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(resultPath(img))
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, fs.calls)
}
