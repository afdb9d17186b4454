package blobstore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rxocr/rxocr/internal/platform/auth"
)

// Handler serves stored uploads over HTTP.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts upload routes on the supplied Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/uploads/:id/metadata", h.handleGetMetadata)
	g.GET("/uploads/:id", h.handleDownload)
	g.DELETE("/uploads/:id", h.handleDelete)
}

// owned loads the metadata for the requested upload. Uploads belonging to
// another subject are reported as not found.
func (h *Handler) owned(c echo.Context) (*Metadata, error) {
	meta, err := h.store.GetMetadata(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	sub, _ := c.Get(auth.SubjectKey).(string)
	if meta.CreatedBy != sub {
		return nil, ErrBlobNotFound
	}
	return meta, nil
}

func (h *Handler) handleDownload(c echo.Context) error {
	if _, err := h.owned(c); err != nil {
		return storeError(err)
	}
	rc, meta, err := h.store.Download(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.FileName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *Handler) handleGetMetadata(c echo.Context) error {
	meta, err := h.owned(c)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, meta)
}

func (h *Handler) handleDelete(c echo.Context) error {
	if _, err := h.owned(c); err != nil {
		return storeError(err)
	}
	if err := h.store.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// StatusFor maps a store error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrBlobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrMissingFileName):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidContentType):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

func storeError(err error) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		return err
	}
	return echo.NewHTTPError(status, err.Error())
}
