// Package recognition turns an uploaded prescription (photo, scan, PDF or
// plain text) into the raw transcription the extraction engine consumes.
package recognition

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rxocr/rxocr/internal/platform/cache"
)

var (
	// ErrUnreadableImage means the document could not be decoded.
	ErrUnreadableImage = errors.New("unreadable image")
	// ErrEmptyTranscription means recognition succeeded but found no text.
	ErrEmptyTranscription = errors.New("no text recognised")
	// ErrUnavailable means the configured OCR engine cannot run here.
	ErrUnavailable = errors.New("ocr engine unavailable")
	// ErrUnsupportedType means the document is not an image, PDF or text.
	ErrUnsupportedType = errors.New("unsupported document type")
)

// Kind is the recognition route a document takes.
type Kind string

const (
	KindImage   Kind = "image"
	KindPDF     Kind = "pdf"
	KindText    Kind = "text"
	KindUnknown Kind = "unknown"
)

// Document is an uploaded file awaiting recognition.
type Document struct {
	Name string
	Data []byte
}

// Recognizer transcribes one document.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, data []byte) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true}

// Detect sniffs the content first and falls back to the file extension.
func Detect(doc Document) Kind {
	ct := http.DetectContentType(doc.Data)
	switch ct {
	case "image/jpeg", "image/png", "image/bmp":
		return KindImage
	case "application/pdf":
		return KindPDF
	}

	ext := strings.ToLower(filepath.Ext(doc.Name))
	switch {
	case imageExts[ext]:
		return KindImage
	case ext == ".pdf":
		return KindPDF
	case strings.HasPrefix(ct, "text/plain"):
		return KindText
	}
	return KindUnknown
}

// ContentType returns the MIME type stored alongside a document of kind k.
func ContentType(doc Document, k Kind) string {
	switch k {
	case KindImage:
		ct := http.DetectContentType(doc.Data)
		if strings.HasPrefix(ct, "image/") {
			return ct
		}
		switch strings.ToLower(filepath.Ext(doc.Name)) {
		case ".png":
			return "image/png"
		case ".bmp":
			return "image/bmp"
		default:
			return "image/jpeg"
		}
	case KindPDF:
		return "application/pdf"
	case KindText:
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// Result is a transcription with its provenance.
type Result struct {
	Text   string `json:"text"`
	Kind   Kind   `json:"kind"`
	Hash   string `json:"hash"`
	Cached bool   `json:"cached"`
}

// Options configures a Service.
type Options struct {
	Image      Recognizer
	PDF        Recognizer
	Preprocess bool
	Cache      cache.Store
	CacheTTL   time.Duration
}

// Service routes documents to the right recognizer and caches the results by
// content hash.
type Service struct {
	image      Recognizer
	pdf        Recognizer
	preprocess bool
	cache      cache.Store
	ttl        time.Duration
	logger     zerolog.Logger
}

func NewService(opts Options, logger zerolog.Logger) *Service {
	return &Service{
		image:      opts.Image,
		pdf:        opts.PDF,
		preprocess: opts.Preprocess,
		cache:      opts.Cache,
		ttl:        opts.CacheTTL,
		logger:     logger.With().Str("component", "recognition").Logger(),
	}
}

// Recognize transcribes doc. A document that yields only whitespace returns
// the Result together with ErrEmptyTranscription.
func (s *Service) Recognize(ctx context.Context, doc Document) (Result, error) {
	kind := Detect(doc)
	sum := sha256.Sum256(doc.Data)
	res := Result{Kind: kind, Hash: hex.EncodeToString(sum[:])}

	if kind == KindUnknown {
		return res, fmt.Errorf("%w: %s", ErrUnsupportedType, http.DetectContentType(doc.Data))
	}
	if len(doc.Data) == 0 && kind != KindText {
		return res, ErrUnreadableImage
	}

	key := string(kind) + ":" + res.Hash
	if text, ok := s.cached(ctx, key); ok {
		res.Text, res.Cached = text, true
		return res, checkEmpty(text)
	}

	start := time.Now()
	text, err := s.transcribe(ctx, kind, doc.Data)
	if err != nil {
		return res, err
	}
	res.Text = text

	s.logger.Debug().
		Str("kind", string(kind)).
		Str("hash", res.Hash).
		Int("text_len", len(text)).
		Dur("latency", time.Since(start)).
		Msg("document recognised")

	if err := checkEmpty(text); err != nil {
		return res, err
	}
	s.store(ctx, key, text)
	return res, nil
}

func (s *Service) transcribe(ctx context.Context, kind Kind, data []byte) (string, error) {
	switch kind {
	case KindText:
		return string(data), nil
	case KindPDF:
		if s.pdf == nil {
			return "", fmt.Errorf("%w: no pdf recognizer configured", ErrUnavailable)
		}
		return s.pdf.Recognize(ctx, data)
	default:
		if s.image == nil {
			return "", fmt.Errorf("%w: no image recognizer configured", ErrUnavailable)
		}
		if s.preprocess {
			prepared, err := Preprocess(data)
			if err != nil {
				// Tesseract reads formats the Go decoders do not.
				s.logger.Debug().Err(err).Msg("preprocessing skipped")
			} else {
				data = prepared
			}
		}
		return s.image.Recognize(ctx, data)
	}
}

func (s *Service) cached(ctx context.Context, key string) (string, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return "", false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Msg("transcription cache read failed")
		return "", false
	}
	return string(data), ok
}

func (s *Service) store(ctx context.Context, key, text string) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, []byte(text), s.ttl); err != nil {
		s.logger.Warn().Err(err).Msg("transcription cache write failed")
	}
}

func checkEmpty(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyTranscription
	}
	return nil
}
