package prescription

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rxocr/rxocr/internal/extraction"
	"github.com/rxocr/rxocr/internal/platform/auth"
	"github.com/rxocr/rxocr/internal/platform/blobstore"
	"github.com/rxocr/rxocr/internal/platform/outcome"
	"github.com/rxocr/rxocr/internal/recognition"
)

// ErrNoFile is returned when a multipart request carries no "file" part.
var ErrNoFile = errors.New("file is required")

// maxTextSize bounds the transcription accepted by the parse endpoint.
const maxTextSize = 1 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the browser form and probes on web and the JSON API
// on api.
func (h *Handler) RegisterRoutes(web *echo.Group, api *echo.Group) {
	web.GET("/", h.Form)
	web.POST("/", h.SubmitForm)
	web.GET("/ping", h.Ping)
	web.GET("/health", h.Health)

	api.POST("/prescriptions/extract", h.Extract)
	api.POST("/prescriptions/parse", h.Parse)
}

func (h *Handler) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// detailResponse is returned by the extract endpoint with ?detail=true.
type detailResponse struct {
	*extraction.Extraction
	Transcription recognition.Result  `json:"transcription"`
	Upload        *blobstore.Metadata `json:"upload,omitempty"`
}

// Extract runs OCR and extraction on the uploaded "file" part.
func (h *Handler) Extract(c echo.Context) error {
	doc, err := readUpload(c)
	if err != nil {
		return err
	}

	res, err := h.svc.Process(c.Request().Context(), doc, subject(c))
	if err != nil {
		return httpError(err)
	}

	if detail, _ := strconv.ParseBool(c.QueryParam("detail")); detail {
		return c.JSON(http.StatusOK, detailResponse{
			Extraction:    res.Extraction,
			Transcription: res.Transcription,
			Upload:        res.Upload,
		})
	}
	return c.JSON(http.StatusOK, res.Extraction.Record)
}

type parseRequest struct {
	Text string `json:"text"`
}

// Parse extracts a record from text sent either as a JSON {"text": ...}
// body or as the raw request body.
func (h *Handler) Parse(c echo.Context) error {
	text, err := readText(c)
	if err != nil {
		return err
	}

	x, err := h.svc.Parse(text)
	if err != nil {
		return httpError(err)
	}
	if detail, _ := strconv.ParseBool(c.QueryParam("detail")); detail {
		return c.JSON(http.StatusOK, x)
	}
	return c.JSON(http.StatusOK, x.Record)
}

func readText(c echo.Context) (string, error) {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var body parseRequest
		if err := c.Bind(&body); err != nil {
			return "", echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
		}
		return body.Text, nil
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, maxTextSize+1))
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return "", he
		}
		return "", echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}
	if len(data) > maxTextSize {
		return "", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "text exceeds 1 MB")
	}
	return string(data), nil
}

func readUpload(c echo.Context) (recognition.Document, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return recognition.Document{}, he
		}
		return recognition.Document{}, echo.NewHTTPError(http.StatusBadRequest, ErrNoFile.Error())
	}
	if fh.Filename == "" {
		return recognition.Document{}, echo.NewHTTPError(http.StatusBadRequest, ErrNoFile.Error())
	}

	src, err := fh.Open()
	if err != nil {
		return recognition.Document{}, echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return recognition.Document{}, echo.NewHTTPError(http.StatusBadRequest, "failed to read uploaded file")
	}
	return recognition.Document{Name: fh.Filename, Data: data}, nil
}

func subject(c echo.Context) string {
	sub, _ := c.Get(auth.SubjectKey).(string)
	return sub
}

// StatusFor maps a processing error to the HTTP status reported for it.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNoFile), errors.Is(err, blobstore.ErrMissingFileName):
		return http.StatusBadRequest
	case errors.Is(err, recognition.ErrUnsupportedType), errors.Is(err, blobstore.ErrInvalidContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, recognition.ErrUnreadableImage), errors.Is(err, recognition.ErrEmptyTranscription):
		return http.StatusUnprocessableEntity
	case errors.Is(err, recognition.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// httpError converts err for the error handler. Unclassified errors pass
// through unchanged so the handler logs them and hides their text.
func httpError(err error) error {
	status := StatusFor(err)
	switch {
	case errors.Is(err, extraction.ErrExtractionFault):
		return echo.NewHTTPError(status, "extraction failed; no fields could be extracted")
	case errors.Is(err, recognition.ErrUnreadableImage):
		// Same status as an empty transcription; the issue code tells them apart.
		return outcome.Error(status, outcome.CodeInvalid, err.Error())
	case status == http.StatusInternalServerError:
		return err
	case status == http.StatusServiceUnavailable:
		return echo.NewHTTPError(status, "text recognition is not available on this server")
	default:
		return echo.NewHTTPError(status, err.Error())
	}
}
