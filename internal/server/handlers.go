package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blue-scarf/paystamp/constants"
	"github.com/blue-scarf/paystamp/internal/common"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"catalog_records": s.catalog.Snapshot().Len(),
		"catalog_loaded":  s.catalog.Snapshot().LoadedAt(),
	})
}

// handleCreateSession accepts a multipart upload: one or more "page" file
// parts, page order following part order.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "expected multipart form: "+err.Error())
		return
	}

	files := r.MultipartForm.File["page"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "at least one \"page\" file part is required")
		return
	}

	name := files[0].Filename
	pages := make([][]byte, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "read page: "+err.Error())
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "read page: "+err.Error())
			return
		}
		pages = append(pages, data)
	}

	sess, err := s.orch.Create(r.Context(), name, pages)
	if err != nil {
		s.respondError(w, err, "create session")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.orch.List(r.Context())
	if err != nil {
		s.respondError(w, err, "list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := s.orch.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, err, "get session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	if err := s.orch.Delete(r.Context(), id); err != nil {
		s.respondError(w, err, "delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEditFields(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var body struct {
		Fields map[constants.Field]string `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}
	if len(body.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "fields is required")
		return
	}
	sess, err := s.orch.EditFields(r.Context(), id, body.Fields)
	if err != nil {
		s.respondError(w, err, "edit fields")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleRematch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := s.orch.Rematch(r.Context(), id)
	if err != nil {
		s.respondError(w, err, "rematch")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSelectMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var body struct {
		CommitmentID string `json:"commitment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}
	if v := common.NewValidator().Field("commitment_id", body.CommitmentID, common.Required, common.MaxLength(64)); v.HasErrors() {
		s.respondError(w, v.Error(), "select match")
		return
	}
	sess, err := s.orch.SelectMatch(r.Context(), id, body.CommitmentID)
	if err != nil {
		s.respondError(w, err, "select match")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleStamp(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := s.orch.Stamp(r.Context(), id)
	if err != nil {
		s.respondError(w, err, "stamp")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeliver(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	sess, pages, err := s.orch.Deliver(r.Context(), id)
	if err != nil {
		s.respondError(w, err, "deliver")
		return
	}
	// Single-page documents are by far the common case; deliver the image
	// directly. Multi-page output is fetched per page via /document.
	if len(pages) == 1 {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Session-State", string(sess.State))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pages[0])
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": sess,
		"pages":   len(pages),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := s.orch.Reset(r.Context(), id)
	if err != nil {
		s.respondError(w, err, "reset")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleDocument renders one page as PNG. Query params: page (default 0),
// max_width (default 0 = full size).
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	page := 0
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "page must be a non-negative integer")
			return
		}
		page = n
	}
	maxWidth := 0
	if v := r.URL.Query().Get("max_width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "max_width must be a non-negative integer")
			return
		}
		maxWidth = n
	}

	png, err := s.orch.Page(r.Context(), id, page, maxWidth)
	if err != nil {
		s.respondError(w, err, "render document")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleCatalogReload(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Load(r.Context()); err != nil {
		s.logger.Error("catalog reload failed", zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error())
		return
	}
	snap := s.catalog.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"records":   snap.Len(),
		"loaded_at": snap.LoadedAt(),
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	snap := s.catalog.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"records":   snap.Records(),
		"loaded_at": snap.LoadedAt(),
	})
}

// handleExport returns the session register. ?format=csv or xlsx (default).
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("format") {
	case "csv":
		data, err := s.exporter.RegisterCSV(r.Context())
		if err != nil {
			s.respondError(w, err, "export csv")
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="applications.csv"`)
		_, _ = w.Write(data)
	case "", "xlsx":
		data, err := s.exporter.RegisterXLSX(r.Context())
		if err != nil {
			s.respondError(w, err, "export xlsx")
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="applications.xlsx"`)
		_, _ = w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "format must be csv or xlsx")
	}
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "sessionID")
	if v := common.NewValidator().Field("session_id", raw, common.Required, common.UUID); v.HasErrors() {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", v.ErrorMessage())
		return uuid.Nil, false
	}
	id, _ := uuid.Parse(raw)
	return id, true
}

func (s *Server) respondError(w http.ResponseWriter, err error, op string) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op, zap.Error(err))
	} else {
		s.logger.Warn(op, zap.Error(err))
	}
	writeError(w, status, code, err.Error())
}
