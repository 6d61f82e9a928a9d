package server

import (
	"fmt"
	"net/http"
	"time"
)

// HandleHealthz is the liveness probe; it only proves the process answers.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz fails when a running tracker has stopped ticking. A stopped tracker is ready.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"tracker_tick", h.checkTickFresh},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handlers) checkTickFresh() error {
	st := h.trk.Status()
	if !st.Running {
		return nil
	}
	if st.LastTickAt.IsZero() {
		return fmt.Errorf("no tick recorded yet")
	}
	limit := staleTicks * h.trk.Interval()
	if age := h.now().Sub(st.LastTickAt); age > limit {
		return fmt.Errorf("last tick %s ago (limit %s)", age.Round(time.Second), limit)
	}
	return nil
}
