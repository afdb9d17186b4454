package recognition

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"reflect"
	"testing"
)

func TestNewTesseract_MissingBinary(t *testing.T) {
	_, err := NewTesseract("definitely-not-tesseract-binary", "eng")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestTesseract_Args(t *testing.T) {
	tess := &Tesseract{path: "tesseract", lang: "eng+hin"}
	want := []string{"/tmp/x.img", "stdout", "-l", "eng+hin", "--oem", "3", "--psm", "6"}
	if got := tess.Args("/tmp/x.img"); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTesseract_Recognize(t *testing.T) {
	var gotPath string
	var gotImage []byte
	tess := &Tesseract{
		path: "/usr/bin/tesseract",
		lang: "eng",
		run: func(_ context.Context, path string, args []string) ([]byte, []byte, error) {
			gotPath = path
			data, err := os.ReadFile(args[0])
			if err != nil {
				t.Fatalf("temp image not readable: %v", err)
			}
			gotImage = data
			return []byte("BP: 120/80\n"), nil, nil
		},
	}

	text, err := tess.Recognize(context.Background(), []byte("image-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "BP: 120/80\n" {
		t.Errorf("unexpected text %q", text)
	}
	if gotPath != "/usr/bin/tesseract" || string(gotImage) != "image-bytes" {
		t.Errorf("unexpected invocation %s with %q", gotPath, gotImage)
	}
}

func TestTesseract_Failures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"non-zero exit", &exec.ExitError{}, ErrUnreadableImage},
		{"cannot start", errors.New("exec: permission denied"), ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tess := &Tesseract{path: "tesseract", lang: "eng", run: func(context.Context, string, []string) ([]byte, []byte, error) {
				return nil, []byte("Error in pixReadStream: Unknown format\nmore"), tt.err
			}}
			_, err := tess.Recognize(context.Background(), []byte("x"))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTesseract_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tess := &Tesseract{path: "tesseract", lang: "eng", run: func(context.Context, string, []string) ([]byte, []byte, error) {
		return nil, nil, errors.New("signal: killed")
	}}
	if _, err := tess.Recognize(ctx, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine([]byte("  Error one\nError two")); got != "Error one" {
		t.Errorf("unexpected %q", got)
	}
	if got := firstLine(nil); got != "tesseract failed" {
		t.Errorf("unexpected %q", got)
	}
}
