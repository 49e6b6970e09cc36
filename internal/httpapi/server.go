// Package httpapi exposes report generation over HTTP: multipart upload of
// instrument documents, retrieval of archived documents, and regeneration.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/joelkehle/otreport/internal/extract"
	"github.com/joelkehle/otreport/internal/patient"
	"github.com/joelkehle/otreport/internal/pdftext"
	"github.com/joelkehle/otreport/internal/pipeline"
	"github.com/joelkehle/otreport/internal/render"
	"github.com/joelkehle/otreport/internal/report"
	"github.com/joelkehle/otreport/internal/store"
)

const (
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeNoInput        = "no_instrument_data"
	CodeInternal       = "internal_error"
)

type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// Archive is the read side of the session store.
type Archive interface {
	LoadRequest(ctx context.Context, id string) (store.Session, error)
	LatestDocument(ctx context.Context, sessionID string) (store.DocumentRecord, error)
	ListSessions(ctx context.Context, limit int) ([]store.SessionSummary, error)
}

type PDFRenderer interface {
	Render(ctx context.Context, doc report.Document) ([]byte, error)
}

type Decoder interface {
	Decode(ctx context.Context, path string) (pdftext.Result, error)
}

type Server struct {
	runner    Runner
	archive   Archive
	decoder   Decoder
	pdf       PDFRenderer
	maxUpload int64
	log       zerolog.Logger
}

type Options struct {
	Runner      Runner
	Archive     Archive
	Decoder     Decoder
	PDF         PDFRenderer
	MaxUploadMB int
	Log         zerolog.Logger
}

func NewServer(opts Options) http.Handler {
	maxUpload := int64(opts.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	s := &Server{
		runner:    opts.Runner,
		archive:   opts.Archive,
		decoder:   opts.Decoder,
		pdf:       opts.PDF,
		maxUpload: maxUpload,
		log:       opts.Log.With().Str("component", "httpapi").Logger(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/reports", s.handleCreate)
	mux.HandleFunc("GET /v1/reports", s.handleList)
	mux.HandleFunc("GET /v1/reports/{id}", s.handleGet)
	mux.HandleFunc("GET /v1/reports/{id}/markdown", s.handleMarkdown)
	mux.HandleFunc("GET /v1/reports/{id}/pdf", s.handlePDF)
	mux.HandleFunc("GET /v1/reports/{id}/xlsx", s.handleWorkbook)
	mux.HandleFunc("POST /v1/reports/{id}/regenerate", s.handleRegenerate)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	})
}

func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNoInstrumentData):
		writeError(w, http.StatusUnprocessableEntity, CodeNoInput, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidSessionID):
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	default:
		s.log.Error().Err(err).Str("stage", pipeline.StageNameFromError(err)).Msg("report run failed")
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}

func parseInt(value string, def int) int {
	if strings.TrimSpace(value) == "" {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return v
}

type createResponse struct {
	OK               bool            `json:"ok"`
	SessionID        string          `json:"session_id"`
	Revision         int             `json:"revision"`
	FallbackSections int             `json:"fallback_sections"`
	Document         report.Document `json:"document"`
}

func created(res pipeline.Result) createResponse {
	return createResponse{
		OK:               true,
		SessionID:        res.Metadata.SessionID,
		Revision:         res.Metadata.Revision,
		FallbackSections: res.Metadata.FallbackSections,
		Document:         res.Document,
	}
}

// handleCreate accepts a multipart form with one file field per instrument
// key and patient fields, or a JSON pipeline.Request.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	var (
		req pipeline.Request
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err = json.NewDecoder(r.Body).Decode(&req)
	} else {
		req, err = s.multipartRequest(r)
	}
	if err == nil {
		err = store.ValidateSessionID(req.SessionID)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	res, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created(res))
}

func (s *Server) multipartRequest(r *http.Request) (pipeline.Request, error) {
	req := pipeline.Request{Texts: map[extract.Instrument]string{}}
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return req, errors.New("invalid multipart form")
	}
	req.SessionID = r.FormValue("session_id")
	req.Patient = patient.Input{
		Name:          r.FormValue("name"),
		DateOfBirth:   r.FormValue("date_of_birth"),
		EncounterDate: r.FormValue("encounter_date"),
		ReportDate:    r.FormValue("report_date"),
		Guardian:      r.FormValue("guardian"),
		UCINumber:     r.FormValue("uci_number"),
		Sex:           r.FormValue("sex"),
		Language:      r.FormValue("language"),
	}
	for _, inst := range extract.Instruments {
		if text := r.FormValue(string(inst) + "_text"); strings.TrimSpace(text) != "" {
			req.Texts[inst] = text
			continue
		}
		file, _, err := r.FormFile(string(inst))
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return req, fmt.Errorf("%s: %w", inst, err)
		}
		text, err := s.decodeUpload(r.Context(), file)
		file.Close()
		if err != nil {
			return req, fmt.Errorf("%s: %w", inst, err)
		}
		req.Texts[inst] = text
	}
	return req, nil
}

// decodeUpload spools the upload to a temp file so the decoder can hand it
// to pdftotext when needed.
func (s *Server) decodeUpload(ctx context.Context, src io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "otreport-upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	res, err := s.decoder.Decode(ctx, tmp.Name())
	if errors.Is(err, pdftext.ErrNoText) {
		return "", nil
	}
	return res.Text, err
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.archive.ListSessions(r.Context(), parseInt(r.URL.Query().Get("limit"), 20))
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": list})
}

func (s *Server) latest(w http.ResponseWriter, r *http.Request) (store.DocumentRecord, bool) {
	rec, err := s.archive.LatestDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeRunError(w, err)
		return rec, false
	}
	return rec, true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.latest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"session_id": rec.SessionID,
		"revision":   rec.Revision,
		"document":   rec.Document,
		"metadata":   rec.Metadata,
	})
}

func (s *Server) handleMarkdown(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.latest(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, render.Markdown(rec.Document))
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.latest(w, r)
	if !ok {
		return
	}
	blob, err := s.pdf.Render(r.Context(), rec.Document)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", rec.SessionID).Msg("pdf render failed")
		writeError(w, http.StatusBadGateway, CodeInternal, "failed to render pdf")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "ot-report-"+rec.SessionID+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

func (s *Server) handleWorkbook(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.latest(w, r)
	if !ok {
		return
	}
	blob, err := render.ScoreWorkbook(rec.Document)
	if err != nil {
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "ot-scores-"+rec.SessionID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.archive.LoadRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	res, err := s.runner.Run(r.Context(), pipeline.Request{SessionID: sess.ID, Patient: sess.Patient, Texts: sess.Texts})
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created(res))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
