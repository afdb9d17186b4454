//go:build !gosseract

package recognition

import "fmt"

// NewGosseract reports ErrUnavailable; build with -tags gosseract to link
// libtesseract.
func NewGosseract(lang string) (Recognizer, error) {
	return nil, fmt.Errorf("%w: binary built without the gosseract tag", ErrUnavailable)
}
