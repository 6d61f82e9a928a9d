package server

import (
	"net/http"

	"github.com/onnwee/nowplaying/telemetry"
	"github.com/onnwee/nowplaying/tracker"
)

// HandleAdminTrackerStart starts the tracker.
func (h *Handlers) HandleAdminTrackerStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Info("admin tracker start", "component", "http")
	writeAck(w, h.trk.Start(r.Context()))
}

// HandleAdminTrackerStop stops the tracker and retracts the channel message.
func (h *Handlers) HandleAdminTrackerStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Info("admin tracker stop", "component", "http")
	writeAck(w, h.trk.Stop(r.Context()))
}

type ackResponse struct {
	Changed bool   `json:"changed"`
	Reason  string `json:"reason"`
	Error   string `json:"error,omitempty"`
}

// writeAck answers 500 only when the transition did not happen. A tracker that started
// but failed its first channel update still answers 200 with the error attached.
func writeAck(w http.ResponseWriter, ack tracker.Ack) {
	resp := ackResponse{Changed: ack.Changed, Reason: ack.Reason}
	code := http.StatusOK
	if ack.Err != nil {
		resp.Error = ack.Err.Error()
		if !ack.Changed {
			code = http.StatusInternalServerError
		}
	}
	writeJSON(w, code, resp)
}
