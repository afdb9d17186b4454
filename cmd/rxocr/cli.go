package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rxocr/rxocr/internal/batch"
	"github.com/rxocr/rxocr/internal/prescription"
	"github.com/rxocr/rxocr/internal/recognition"
)

func extractCmd() *cobra.Command {
	var detail bool
	cmd := &cobra.Command{
		Use:   "extract [file|-]",
		Short: "Extract a prescription record from an image, PDF or text",
		Long: "Reads a document and prints its structured record as JSON.\n" +
			"With no argument or \"-\", a transcription is read from stdin.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.close()

			out, err := runExtract(cmd.Context(), a.svc, args, cmd.InOrStdin(), detail)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&detail, "detail", false, "include per-field results and the transcription")
	return cmd
}

// runExtract returns the value printed by the extract command.
func runExtract(ctx context.Context, svc *prescription.Service, args []string, stdin io.Reader, detail bool) (interface{}, error) {
	if len(args) == 0 || args[0] == "-" {
		text, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		x, err := svc.Parse(string(text))
		if err != nil {
			return nil, err
		}
		if detail {
			return x, nil
		}
		return x.Record, nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, err
	}
	res, err := svc.Process(ctx, recognition.Document{Name: filepath.Base(args[0]), Data: data}, "cli")
	if err != nil {
		return nil, err
	}
	if detail {
		return res, nil
	}
	return res.Extraction.Record, nil
}

func batchCmd() *cobra.Command {
	var dir, out string
	var workers int
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Process every image and PDF in a folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = cfg.BatchWorkers
			}
			a, err := newApp(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.close()

			runner := batch.NewRunner(a.svc, batch.Options{Dir: dir, OutputDir: out, Workers: workers}, logger)
			sum, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), sum)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "folder containing prescription images")
	cmd.Flags().StringVar(&out, "out", "", "output folder (default <dir>/outputs)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent files (default BATCH_WORKERS)")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
