// Package prescription wires recognition and extraction into the
// operations exposed over HTTP, the CLI and MCP.
package prescription

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rxocr/rxocr/internal/extraction"
	"github.com/rxocr/rxocr/internal/platform/blobstore"
	"github.com/rxocr/rxocr/internal/recognition"
)

// Transcriber turns a document into text.
type Transcriber interface {
	Recognize(ctx context.Context, doc recognition.Document) (recognition.Result, error)
}

// Extractor turns text into a structured record.
type Extractor interface {
	Extract(text string) (*extraction.Extraction, error)
}

// Result is everything known about one processed document. Extraction is
// always set once recognition has succeeded, even on an extraction fault.
type Result struct {
	Upload        *blobstore.Metadata    `json:"upload,omitempty"`
	Transcription recognition.Result     `json:"transcription"`
	Extraction    *extraction.Extraction `json:"extraction,omitempty"`
}

type Service struct {
	recognizer Transcriber
	engine     Extractor
	uploads    blobstore.Store
	logger     zerolog.Logger
}

// NewService creates a Service. uploads may be nil, in which case originals
// are not kept.
func NewService(recognizer Transcriber, engine Extractor, uploads blobstore.Store, logger zerolog.Logger) *Service {
	return &Service{
		recognizer: recognizer,
		engine:     engine,
		uploads:    uploads,
		logger:     logger.With().Str("component", "prescription").Logger(),
	}
}

// Parse extracts a record from an existing transcription.
func (s *Service) Parse(text string) (*extraction.Extraction, error) {
	return s.engine.Extract(text)
}

// Process stores the original, recognises it and extracts the record.
// createdBy is recorded on the stored upload.
func (s *Service) Process(ctx context.Context, doc recognition.Document, createdBy string) (*Result, error) {
	kind := recognition.Detect(doc)
	if kind == recognition.KindUnknown {
		return nil, fmt.Errorf("%w: %s", recognition.ErrUnsupportedType, doc.Name)
	}

	res := &Result{}
	if s.uploads != nil {
		meta, err := s.uploads.Upload(ctx, blobstore.Metadata{
			FileName:    doc.Name,
			ContentType: recognition.ContentType(doc, kind),
			CreatedBy:   createdBy,
		}, bytes.NewReader(doc.Data))
		if err != nil {
			return nil, fmt.Errorf("storing upload: %w", err)
		}
		res.Upload = meta
	}

	tr, err := s.recognizer.Recognize(ctx, doc)
	res.Transcription = tr
	if err != nil {
		s.logger.Warn().Err(err).Str("file", doc.Name).Str("kind", string(kind)).Msg("recognition failed")
		return res, err
	}

	x, err := s.engine.Extract(tr.Text)
	res.Extraction = x
	if err != nil {
		return res, err
	}

	if faulted := x.Faulted(); len(faulted) > 0 {
		s.logger.Warn().Str("file", doc.Name).Int("faulted_fields", len(faulted)).Msg("record is partial")
	}
	return res, nil
}

// IsClientError reports whether err stems from the submitted document rather
// than from the service.
func IsClientError(err error) bool {
	return errors.Is(err, recognition.ErrUnsupportedType) ||
		errors.Is(err, recognition.ErrUnreadableImage) ||
		errors.Is(err, recognition.ErrEmptyTranscription) ||
		errors.Is(err, blobstore.ErrInvalidContentType) ||
		errors.Is(err, blobstore.ErrFileTooLarge) ||
		errors.Is(err, blobstore.ErrMissingFileName)
}
