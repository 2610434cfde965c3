package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/voxlate/voxlate/internal/errs"
)

type startJobRequest struct {
	SourceURL      string `json:"source_url"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.svc.Registry().List())
	case http.MethodPost:
		var req startJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.SourceURL == "" {
			writeError(w, http.StatusBadRequest, "source_url is required")
			return
		}

		jobID, err := s.svc.StartJob(req.SourceURL, req.SourceLanguage, req.TargetLanguage)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"job_id": jobID,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

// handleTranslate serves one-shot translations outside the job pipeline.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	translated, err := s.svc.Translate(r.Context(), req.Text, req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"translated_text": translated,
	})
}

// handleJobByID dispatches /api/jobs/{id}, /api/jobs/{id}/cancel and
// /api/jobs/{id}/output.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	jobID, action, _ := strings.Cut(strings.Trim(rest, "/"), "/")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		record, err := s.svc.GetStatus(jobID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	case "cancel":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := s.svc.RequestCancel(jobID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok": true,
		})
	case "output":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		path, err := s.svc.GetOutputPath(jobID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		http.ServeFile(w, r, path)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// writeServiceError maps the core's typed errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errs.IsType(err, errs.TypeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errs.IsType(err, errs.TypeNotReady):
		writeError(w, http.StatusConflict, err.Error())
	case errs.IsType(err, errs.TypeInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errs.IsType(err, errs.TypeExtraction):
		writeError(w, http.StatusBadRequest, err.Error())
	case errs.IsType(err, errs.TypeTranslation):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
