package prescription

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rxocr/rxocr/internal/extraction"
	"github.com/rxocr/rxocr/internal/platform/blobstore"
	"github.com/rxocr/rxocr/internal/recognition"
)

func newTestService(tr Transcriber, store blobstore.Store) *Service {
	return NewService(tr, extraction.New(zerolog.Nop()), store, zerolog.Nop())
}

func TestService_Process(t *testing.T) {
	store := blobstore.NewInMemoryStore()
	svc := newTestService(fakeTranscriber{text: sampleText}, store)

	res, err := svc.Process(context.Background(), recognition.Document{Name: "rx.png", Data: pngHeader}, "clinic-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Upload == nil || res.Upload.CreatedBy != "clinic-42" {
		t.Errorf("expected upload owned by clinic-42, got %+v", res.Upload)
	}
	if res.Extraction == nil || res.Extraction.Record.FollowUp.Date != "12/05/2024" {
		t.Errorf("unexpected extraction %+v", res.Extraction)
	}
}

func TestService_Process_WithoutUploads(t *testing.T) {
	svc := newTestService(fakeTranscriber{text: sampleText}, nil)
	res, err := svc.Process(context.Background(), recognition.Document{Name: "rx.txt", Data: []byte(sampleText)}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Upload != nil {
		t.Error("expected no upload without a store")
	}
}

func TestService_Process_Unsupported(t *testing.T) {
	store := blobstore.NewInMemoryStore()
	svc := newTestService(fakeTranscriber{text: sampleText}, store)

	_, err := svc.Process(context.Background(), recognition.Document{Name: "rx.exe", Data: []byte{0, 1}}, "")
	if !errors.Is(err, recognition.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestService_Process_RecognitionFailureKeepsUpload(t *testing.T) {
	store := blobstore.NewInMemoryStore()
	svc := newTestService(fakeTranscriber{err: recognition.ErrEmptyTranscription}, store)

	res, err := svc.Process(context.Background(), recognition.Document{Name: "rx.png", Data: pngHeader}, "")
	if !errors.Is(err, recognition.ErrEmptyTranscription) {
		t.Fatalf("expected ErrEmptyTranscription, got %v", err)
	}
	if res == nil || res.Upload == nil {
		t.Fatal("expected the upload to be kept for inspection")
	}
	if res.Extraction != nil {
		t.Error("expected no extraction without a transcription")
	}
}

func TestService_Parse(t *testing.T) {
	svc := newTestService(fakeTranscriber{}, nil)
	x, err := svc.Parse("BP: 120 / 80 mmHg, Pulse: 72 bpm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if x.Record.Vitals.BP != "120/80" || x.Record.Vitals.Pulse != "72" {
		t.Errorf("unexpected vitals %+v", x.Record.Vitals)
	}
}

func TestIsClientError(t *testing.T) {
	if !IsClientError(recognition.ErrUnreadableImage) {
		t.Error("unreadable image is a client error")
	}
	if IsClientError(recognition.ErrUnavailable) {
		t.Error("missing OCR engine is not a client error")
	}
	if IsClientError(extraction.ErrExtractionFault) {
		t.Error("extraction fault is not a client error")
	}
}
