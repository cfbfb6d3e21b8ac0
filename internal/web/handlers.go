package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/craftbooks/craftbooks/internal/csvio"
	"github.com/craftbooks/craftbooks/internal/export"
	"github.com/craftbooks/craftbooks/internal/importer"
	"github.com/craftbooks/craftbooks/internal/logging"
)

// targetInfo is the JSON shape for one import target in the catalog.
type targetInfo struct {
	Entity string      `json:"entity"`
	Label  string      `json:"label"`
	Fields []fieldInfo `json:"fields"`
}

type fieldInfo struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Required bool   `json:"required"`
}

// handleListTargets returns the catalog of import destinations and their
// field schemas, which the client uses to render mapping UI.
func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	targets := importer.All()

	out := make([]targetInfo, 0, len(targets))
	for _, t := range targets {
		info := targetInfo{Entity: t.Entity, Label: t.Label}
		for _, f := range t.Fields {
			info.Fields = append(info.Fields, fieldInfo{
				Key:      f.Key,
				Label:    f.Label,
				Kind:     f.Kind.String(),
				Required: f.Required,
			})
		}
		out = append(out, info)
	}

	writeJSON(w, out)
}

// readImportInput extracts the delimited text and optional mapping overrides
// from the request. Multipart uploads carry the text in a "file" field and
// overrides as JSON in a "mapping" field; plain requests carry raw text in
// the body.
func (s *Server) readImportInput(w http.ResponseWriter, r *http.Request) (text, fileName string, overrides map[string]string, ok bool) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxSize); err != nil {
			writeError(w, http.StatusBadRequest, "file too large or invalid form")
			return "", "", nil, false
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "no file provided")
			return "", "", nil, false
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read file")
			return "", "", nil, false
		}

		if mappingJSON := r.FormValue("mapping"); mappingJSON != "" {
			if err := json.Unmarshal([]byte(mappingJSON), &overrides); err != nil {
				writeError(w, http.StatusBadRequest, "invalid mapping format")
				return "", "", nil, false
			}
		}

		return string(data), header.Filename, overrides, true
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return "", "", nil, false
	}

	return string(data), "", nil, true
}

// handlePreview analyzes a file and returns the proposed mapping plus a
// coerced sample, without writing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	if entity == "" {
		writeError(w, http.StatusBadRequest, "missing entity")
		return
	}

	text, _, overrides, ok := s.readImportInput(w, r)
	if !ok {
		return
	}

	preview, err := s.imports.Preview(entity, text, overrides)
	if err != nil {
		writeError(w, importStatus(err), err.Error())
		return
	}

	writeJSON(w, preview)
}

// handleImport runs a full import session and responds with its report once
// all batches have reached a terminal state.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	if entity == "" {
		writeError(w, http.StatusBadRequest, "missing entity")
		return
	}

	text, fileName, overrides, ok := s.readImportInput(w, r)
	if !ok {
		return
	}

	logger := logging.WithFields(r.Context(), "entity", entity, "file", fileName)

	id, err := s.imports.Start(r.Context(), entity, fileName, text, overrides)
	if err != nil {
		writeError(w, importStatus(err), err.Error())
		return
	}
	logger.Info("import started", "session_id", id)

	report, err := s.imports.Wait(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("import finished",
		"session_id", id,
		"inserted", report.SuccessCount,
		"errors", report.ErrorCount,
		"duration_ms", report.Duration.Milliseconds(),
	)
	writeJSON(w, report)
}

// handleImportProgress reports a running session's batch progress.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	progress, ok := s.imports.Progress(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown import session")
		return
	}

	writeJSON(w, progress)
}

// handleImportReport returns a finished session's report.
func (s *Server) handleImportReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	report, ok := s.imports.Report(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown import session")
		return
	}
	if report == nil {
		writeError(w, http.StatusConflict, "import still running")
		return
	}

	writeJSON(w, report)
}

// handleCancelImport requests cooperative cancellation of a running session.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	if !s.imports.CancelSession(id) {
		writeError(w, http.StatusNotFound, "unknown import session")
		return
	}

	writeJSON(w, map[string]string{"status": "cancelling"})
}

// handleFailedRows exports a finished session's failed rows as delimited
// text, with the error message in a leading column, so the user can correct
// and re-import just those rows.
func (s *Server) handleFailedRows(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	report, ok := s.imports.Report(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown import session")
		return
	}
	if report == nil {
		writeError(w, http.StatusConflict, "import still running")
		return
	}

	outcome := importer.ImportOutcome{Errors: report.Errors}
	headers := append([]string{"Error"}, report.Headers...)

	w.Header().Set("Content-Type", export.MimeType("csv"))
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.exports.FileName(report.Entity+"-failed", "csv")+`"`)

	if err := csvio.WriteDelimited(w, headers, outcome.FailedRows(), csvio.Options{}); err != nil {
		logging.FromContext(r.Context()).Error("failed-rows export failed", "error", err)
	}
}

// handleDownloadTemplate serves a blank header-only file for an entity.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	s.serveDelimited(w, r, true)
}

// handleExport serves an entity's records as delimited text. The template
// query parameter switches to a header-only file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	template := r.URL.Query().Get("template") == "1" || r.URL.Query().Get("template") == "true"
	s.serveDelimited(w, r, template)
}

func (s *Server) serveDelimited(w http.ResponseWriter, r *http.Request, template bool) {
	entity := chi.URLParam(r, "entity")

	target, ok := importer.Get(entity)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown export target: "+entity)
		return
	}

	name := entity
	if template {
		name = entity + "-template"
	}
	w.Header().Set("Content-Type", export.MimeType("csv"))
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.exports.FileName(name, "csv")+`"`)

	if err := s.exports.WriteDelimited(r.Context(), w, target, template); err != nil {
		logging.FromContext(r.Context()).Error("export failed", "entity", entity, "error", err)
	}
}

// handleBackup serves the full-system JSON backup envelope.
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", export.MimeType("json"))
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.exports.FileName("", "json")+`"`)

	if err := s.exports.WriteBackup(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("backup export failed", "error", err)
	}
}

// importStatus maps pipeline errors to HTTP status codes. Structural and
// mapping failures are client errors; a full limiter maps to 429.
func importStatus(err error) int {
	if errors.Is(err, importer.ErrTooManyImports) {
		return http.StatusTooManyRequests
	}
	return http.StatusBadRequest
}
