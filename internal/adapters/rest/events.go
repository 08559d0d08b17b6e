package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// writeSSEEvent writes a single Server-Sent Events frame (event: <name>,
// data: <json>, blank line) and flushes it to the client. Returns an error
// if the write or flush fails, which callers treat as a client disconnect.
func writeSSEEvent(w http.ResponseWriter, rc *http.ResponseController, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return rc.Flush()
}

type statusEvent struct {
	Counts    countsJSON `json:"counts"`
	Processed int        `json:"processed"`
	Total     int        `json:"total"`
}

// handleEvents streams the status payload over Server-Sent Events once a
// second, so the review UI can update its progress bar without polling.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		counts, err := s.store.Counts(r.Context())
		if err != nil {
			return
		}
		snap := s.tracker.Snapshot()
		event := statusEvent{
			Counts: countsJSON{
				Queued: counts.Queued, Analyzing: counts.Analyzing, Ready: counts.Ready,
				Accepted: counts.Accepted, Moving: counts.Moving, Skipped: counts.Skipped,
				Completed: counts.Completed, Error: counts.Error,
			},
			Processed: snap.TotalProcessed,
			Total:     topLevelEntryCount(s.SourceDir()),
		}
		if err := writeSSEEvent(w, rc, "status", event); err != nil {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
