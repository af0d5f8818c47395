package stats

import (
	"encoding/json"
	"net/http"
)

// ServeHTTP writes the current Snapshot as JSON. It lets the session
// counters be mounted next to /metrics:
//
//	metricsServer.Handle("/stats", sessionStats)
func (s *SessionStats) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Snapshot())
}
