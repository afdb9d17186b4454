package prescription

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
)

var formTemplate = template.Must(template.New("form").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Prescription OCR</title></head>
<body>
<h2>Upload a prescription image</h2>
<form method="post" enctype="multipart/form-data">
  <input type="file" name="file" accept=".jpg,.jpeg,.png,.bmp,.pdf,.txt">
  <input type="submit" value="Upload">
</form>
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
{{if .Data}}
<h3>Extracted data</h3>
<pre>{{.Data}}</pre>
{{end}}
</body>
</html>
`))

type formView struct {
	Data  string
	Error string
}

// Form renders the upload page.
func (h *Handler) Form(c echo.Context) error {
	return renderForm(c, http.StatusOK, formView{})
}

// SubmitForm processes an upload from the browser form and renders the
// extracted record on the same page.
func (h *Handler) SubmitForm(c echo.Context) error {
	doc, err := readUpload(c)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return renderForm(c, he.Code, formView{Error: fmt.Sprint(he.Message)})
		}
		return err
	}

	res, err := h.svc.Process(c.Request().Context(), doc, subject(c))
	if err != nil {
		status := StatusFor(err)
		msg := http.StatusText(status)
		if IsClientError(err) {
			msg = err.Error()
		}
		return renderForm(c, status, formView{Error: msg})
	}

	data, err := json.MarshalIndent(res.Extraction.Record, "", "  ")
	if err != nil {
		return err
	}
	return renderForm(c, http.StatusOK, formView{Data: string(data)})
}

func renderForm(c echo.Context, status int, v formView) error {
	var buf bytes.Buffer
	if err := formTemplate.Execute(&buf, v); err != nil {
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}
