package batch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rxocr/rxocr/internal/extraction"
	"github.com/rxocr/rxocr/internal/prescription"
	"github.com/rxocr/rxocr/internal/recognition"
)

// textTranscriber treats every file's bytes as its transcription and fails
// on files whose content starts with "FAIL".
type textTranscriber struct {
	calls atomic.Int32
}

func (tt *textTranscriber) Recognize(_ context.Context, doc recognition.Document) (recognition.Result, error) {
	tt.calls.Add(1)
	if strings.HasPrefix(string(doc.Data), "FAIL") {
		return recognition.Result{}, recognition.ErrUnreadableImage
	}
	return recognition.Result{Text: string(doc.Data), Kind: recognition.KindImage}, nil
}

func newTestRunner(t *testing.T, dir string, workers int) (*Runner, *textTranscriber) {
	t.Helper()
	tr := &textTranscriber{}
	svc := prescription.NewService(tr, extraction.New(zerolog.Nop()), nil, zerolog.Nop())
	return NewRunner(svc, Options{Dir: dir, Workers: workers}, zerolog.Nop()), tr
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg", "PATIENT (M) / 45Y\nFollow Up: 12/05/2024")
	writeFile(t, dir, "b.PNG", "Ramesh Kumar, 30/F")
	writeFile(t, dir, "c.bmp", "FAIL unreadable")
	writeFile(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o750); err != nil {
		t.Fatal(err)
	}

	r, tr := newTestRunner(t, dir, 2)
	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sum.Found != 3 || sum.Succeeded != 2 || sum.Failed != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if tr.calls.Load() != 3 {
		t.Errorf("expected 3 recognitions, got %d", tr.calls.Load())
	}
	if filepath.Base(sum.Files[2].Path) != "c.bmp" || !strings.Contains(sum.Files[2].Error, "unreadable") {
		t.Errorf("expected c.bmp to fail, got %+v", sum.Files[2])
	}

	text, err := os.ReadFile(filepath.Join(dir, "outputs", "a_text.txt"))
	if err != nil {
		t.Fatalf("expected text output: %v", err)
	}
	if !strings.HasPrefix(string(text), "PATIENT (M)") {
		t.Errorf("unexpected text output %q", text)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "outputs", "b_structured.json"))
	if err != nil {
		t.Fatalf("expected structured output: %v", err)
	}
	var rec extraction.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if rec.Patient.Age != "30" || rec.Patient.Gender != "F" {
		t.Errorf("unexpected record %+v", rec.Patient)
	}
	if !strings.Contains(string(raw), "\n  \"patient\"") {
		t.Error("expected indented JSON")
	}

	if _, err := os.Stat(filepath.Join(dir, "outputs", "c_structured.json")); !os.IsNotExist(err) {
		t.Error("failed files must not produce outputs")
	}
}

func TestRunner_EmptyDir(t *testing.T) {
	r, _ := newTestRunner(t, t.TempDir(), 1)
	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Found != 0 {
		t.Errorf("expected nothing found, got %d", sum.Found)
	}
}

func TestRunner_BadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "rx.jpg")
	writeFile(t, filepath.Dir(file), "rx.jpg", "x")

	r, _ := newTestRunner(t, file, 1)
	if _, err := r.Run(context.Background()); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("expected ErrNotDirectory, got %v", err)
	}

	r, _ = newTestRunner(t, filepath.Join(t.TempDir(), "missing"), 1)
	if _, err := r.Run(context.Background()); err == nil {
		t.Error("expected error for missing dir")
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg", "Diagnosis: Fever")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, tr := newTestRunner(t, dir, 1)
	if _, err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if tr.calls.Load() != 0 {
		t.Error("expected no work after cancellation")
	}
}

func TestNewRunner_Defaults(t *testing.T) {
	r := NewRunner(nil, Options{Dir: "scans"}, zerolog.Nop())
	if r.opts.Workers != 1 {
		t.Errorf("expected at least one worker, got %d", r.opts.Workers)
	}
	if r.opts.OutputDir != filepath.Join("scans", "outputs") {
		t.Errorf("unexpected output dir %s", r.opts.OutputDir)
	}
}
