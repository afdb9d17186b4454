// Package batch processes a folder of prescription scans, writing the raw
// transcription and the structured record for each one next to the inputs.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rxocr/rxocr/internal/prescription"
	"github.com/rxocr/rxocr/internal/recognition"
)

// ErrNotDirectory is returned when the input path is not a directory.
var ErrNotDirectory = errors.New("input path is not a directory")

// Extensions lists the file types picked up from the input folder.
var Extensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".pdf":  true,
}

// Processor handles one document.
type Processor interface {
	Process(ctx context.Context, doc recognition.Document, createdBy string) (*prescription.Result, error)
}

type Options struct {
	Dir string
	// OutputDir defaults to Dir/outputs.
	OutputDir string
	Workers   int
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Path     string `json:"path"`
	TextPath string `json:"text_path,omitempty"`
	JSONPath string `json:"json_path,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Summary reports a whole run. Files is in input order.
type Summary struct {
	Found     int          `json:"found"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Files     []FileResult `json:"files"`
}

type Runner struct {
	proc   Processor
	opts   Options
	logger zerolog.Logger
}

func NewRunner(proc Processor, opts Options, logger zerolog.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.OutputDir == "" {
		opts.OutputDir = filepath.Join(opts.Dir, "outputs")
	}
	return &Runner{proc: proc, opts: opts, logger: logger.With().Str("component", "batch").Logger()}
}

// Run processes every matching file. A failing file is logged and recorded
// in the summary; it never stops the run. Run returns an error only when the
// folder cannot be listed or ctx ends.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	paths, err := r.inputs()
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Found: len(paths), Files: make([]FileResult, len(paths))}
	if len(paths) == 0 {
		r.logger.Warn().Str("dir", r.opts.Dir).Msg("no images found")
		return sum, nil
	}
	r.logger.Info().Int("found", len(paths)).Str("dir", r.opts.Dir).Msg("starting batch")

	if err := os.MkdirAll(r.opts.OutputDir, 0o750); err != nil {
		return sum, fmt.Errorf("creating output dir: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.logger.Info().Msgf("processing %d/%d: %s", i+1, len(paths), filepath.Base(path))
			sum.Files[i] = r.processFile(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}

	for _, f := range sum.Files {
		if f.Error == "" {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	r.logger.Info().Int("succeeded", sum.Succeeded).Int("failed", sum.Failed).Msg("batch finished")
	return sum, nil
}

func (r *Runner) inputs() ([]string, error) {
	info, err := os.Stat(r.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading input dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, r.opts.Dir)
	}

	entries, err := os.ReadDir(r.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading input dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !Extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(r.opts.Dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func (r *Runner) processFile(ctx context.Context, path string) FileResult {
	res := FileResult{Path: path}
	name := filepath.Base(path)

	fail := func(err error) FileResult {
		res.Error = err.Error()
		r.logger.Error().Err(err).Str("file", name).Msg("error processing file")
		return res
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}

	out, err := r.proc.Process(ctx, recognition.Document{Name: name, Data: data}, "batch")
	if err != nil {
		return fail(err)
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	res.TextPath = filepath.Join(r.opts.OutputDir, base+"_text.txt")
	res.JSONPath = filepath.Join(r.opts.OutputDir, base+"_structured.json")

	if err := os.WriteFile(res.TextPath, []byte(out.Transcription.Text), 0o640); err != nil {
		return fail(fmt.Errorf("writing text: %w", err))
	}
	structured, err := json.MarshalIndent(out.Extraction.Record, "", "  ")
	if err != nil {
		return fail(fmt.Errorf("encoding record: %w", err))
	}
	if err := os.WriteFile(res.JSONPath, structured, 0o640); err != nil {
		return fail(fmt.Errorf("writing record: %w", err))
	}

	r.logger.Info().Str("file", name).Msg("successfully processed")
	return res
}
