package api

import (
	"encoding/json"
	"net/http"

	"github.com/gyaneshwarpardhi/previewline/internal/event"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope. EventID and NodeID are set
// when the failing request carried an editor event.
type errorResponse struct {
	Error   string `json:"error"`
	EventID string `json:"event_id,omitempty"`
	NodeID  string `json:"node_id,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeEventError reports a rejected event together with its identifiers.
func writeEventError(w http.ResponseWriter, status int, err error, ev event.Event) {
	writeJSON(w, status, errorResponse{Error: err.Error(), EventID: ev.ID, NodeID: ev.NodeID})
}
