package recognition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Tesseract runs the tesseract binary with the settings used for printed
// prescriptions: LSTM plus legacy engine, single uniform text block.
type Tesseract struct {
	path string
	lang string
	run  func(ctx context.Context, path string, args []string) (stdout []byte, stderr []byte, err error)
}

// NewTesseract resolves path on $PATH. It returns ErrUnavailable when the
// binary cannot be found.
func NewTesseract(path, lang string) (*Tesseract, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	return &Tesseract{path: resolved, lang: lang, run: runCommand}, nil
}

func (t *Tesseract) Args(imagePath string) []string {
	return []string{imagePath, "stdout", "-l", t.lang, "--oem", "3", "--psm", "6"}
}

func (t *Tesseract) Recognize(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "rxocr-*.img")
	if err != nil {
		return "", fmt.Errorf("creating temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing temp image: %w", err)
	}

	stdout, stderr, err := t.run(ctx, t.path, t.Args(tmp.Name()))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s", ErrUnreadableImage, firstLine(stderr))
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return string(stdout), nil
}

func runCommand(ctx context.Context, path string, args []string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "tesseract failed"
	}
	return s
}
