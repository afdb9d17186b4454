//go:build gosseract

package recognition

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Gosseract runs Tesseract in-process through libtesseract. A client is not
// safe for concurrent use, so calls are serialised.
type Gosseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewGosseract creates an in-process recognizer for lang.
func NewGosseract(lang string) (Recognizer, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: setting language %q: %v", ErrUnavailable, lang, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: setting page segmentation mode: %v", ErrUnavailable, err)
	}
	return &Gosseract{client: client}, nil
}

func (g *Gosseract) Recognize(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	text, err := g.client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	return text, nil
}

// Close releases the underlying Tesseract handle.
func (g *Gosseract) Close() error {
	return g.client.Close()
}
