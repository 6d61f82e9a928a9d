package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockSourceServer is a scriptable now-playing endpoint. Each request is answered with
// the most recently configured response.
type MockSourceServer struct {
	*httptest.Server

	mu         sync.Mutex
	status     int
	body       []byte
	requests   int
	lastHeader http.Header
}

// NewMockSourceServer starts a server that answers 200 with an idle payload until configured.
func NewMockSourceServer(t *testing.T) *MockSourceServer {
	t.Helper()
	m := &MockSourceServer{status: http.StatusOK, body: []byte(`{"track":null}`)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests++
		m.lastHeader = r.Header.Clone()
		status, body := m.status, m.body
		m.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body) //nolint:errcheck // test mock response
	}))
	t.Cleanup(m.Close)
	return m
}

// SetPlaying answers with an active track. A single artist is sent as a string, several as a list.
func (m *MockSourceServer) SetPlaying(trackID, title, cover string, artists ...string) {
	track := map[string]interface{}{
		"track_id": trackID,
		"title":    title,
	}
	if len(artists) == 1 {
		track["artist"] = artists[0]
	} else if len(artists) > 1 {
		track["artist"] = artists
	}
	if cover != "" {
		track["cover"] = cover
	}
	m.setJSON(http.StatusOK, map[string]interface{}{"track": track})
}

// SetPaused answers with an explicit pause flag and no active track.
func (m *MockSourceServer) SetPaused() {
	m.setJSON(http.StatusOK, map[string]interface{}{"paused": true})
}

// SetIdle answers with no active track and no pause flag.
func (m *MockSourceServer) SetIdle() {
	m.SetRaw(http.StatusOK, `{"track":null}`)
}

// SetRaw answers with an arbitrary status and body.
func (m *MockSourceServer) SetRaw(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.body = []byte(body)
}

func (m *MockSourceServer) setJSON(status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.body = b
}

// Requests returns how many requests have been served.
func (m *MockSourceServer) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// LastHeader returns a header value from the most recent request.
func (m *MockSourceServer) LastHeader(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastHeader == nil {
		return ""
	}
	return m.lastHeader.Get(key)
}
