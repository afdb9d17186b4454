package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/rxocr/rxocr/internal/prescription"
	"github.com/rxocr/rxocr/internal/recognition"
)

const (
	serverName    = "rxocr"
	serverVersion = "0.1.0"
)

// MCP tool parameter keys.
const (
	argText = "text"
	argPath = "path"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve extraction tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol.
			cfg, logger, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.close()

			s := server.NewMCPServer(serverName, serverVersion)
			registerTools(s, a.svc)
			return server.ServeStdio(s)
		},
	}
}

func registerTools(s *server.MCPServer, svc *prescription.Service) {
	s.AddTool(
		mcp.NewTool("extract_prescription_text",
			mcp.WithDescription("Extract a structured prescription record (patient, vitals, diagnosis, "+
				"medications, investigations, advice, follow-up) from OCR text."),
			mcp.WithString(argText,
				mcp.Required(),
				mcp.Description("Raw transcription of the prescription"),
			),
		),
		textTool(svc),
	)

	s.AddTool(
		mcp.NewTool("extract_prescription_file",
			mcp.WithDescription("Run OCR on a prescription image (JPG, PNG, BMP) or PDF and extract the structured record."),
			mcp.WithString(argPath,
				mcp.Required(),
				mcp.Description("Absolute path of the file to process"),
			),
		),
		fileTool(svc),
	)
}

func textTool(svc *prescription.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, ok := req.Params.Arguments[argText].(string)
		if !ok {
			return mcp.NewToolResultError(argText + " is required"), nil
		}
		x, err := svc.Parse(text)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(x.Record)
	}
}

func fileTool(svc *prescription.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, ok := req.Params.Arguments[argPath].(string)
		if !ok || path == "" {
			return mcp.NewToolResultError(argPath + " is required"), nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res, err := svc.Process(ctx, recognition.Document{Name: filepath.Base(path), Data: data}, "mcp")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(res.Extraction.Record)
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
