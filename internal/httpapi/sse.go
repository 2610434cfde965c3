package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// streamTick is how often the SSE stream re-sends job snapshots.
const streamTick = time.Second

// handleJobStream serves live job snapshots over SSE. Without a query the
// stream carries the whole registry as "jobs" events; with ?job=<id> it
// follows a single job as "job" events and ends once that job reaches a
// terminal state.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	jobID := r.URL.Query().Get("job")
	if jobID != "" {
		if _, err := s.svc.GetStatus(jobID); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var eventID uint64
	writeEvent := func(name string, payload any) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			return false
		}
		eventID++
		if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", eventID, name, data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	// send reports whether the write succeeded and whether the stream is
	// finished (single-job streams end with the job).
	send := func() (bool, bool) {
		if jobID == "" {
			return writeEvent("jobs", s.svc.Registry().List()), false
		}
		record, err := s.svc.GetStatus(jobID)
		if err != nil {
			return false, true
		}
		return writeEvent("job", record), record.State.Terminal()
	}

	if ok, done := send(); !ok || done {
		return
	}

	ticker := time.NewTicker(streamTick)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if ok, done := send(); !ok || done {
				return
			}
		}
	}
}
