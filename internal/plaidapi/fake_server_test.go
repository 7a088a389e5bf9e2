package plaidapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakePlaid emulates the two Plaid endpoints used by the service.
type fakePlaid struct {
	mu       sync.Mutex
	requests map[string][]map[string]any
	headers  http.Header

	linkToken    string
	institutions []map[string]any
	failStatus   int
	failBody     string
	block        chan struct{}
}

func newFakePlaid(t *testing.T) (*fakePlaid, *httptest.Server) {
	t.Helper()

	fake := &fakePlaid{
		requests:  map[string][]map[string]any{},
		linkToken: "link-sandbox-abc123",
	}
	srv := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(func() {
		if fake.block != nil {
			close(fake.block)
		}
		srv.Close()
	})
	return fake, srv
}

func (f *fakePlaid) serve(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.requests[r.URL.Path] = append(f.requests[r.URL.Path], body)
	f.headers = r.Header.Clone()
	block := f.block
	failStatus, failBody := f.failStatus, f.failBody
	linkToken, institutions := f.linkToken, f.institutions
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-r.Context().Done():
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if failStatus != 0 {
		w.WriteHeader(failStatus)
		_, _ = w.Write([]byte(failBody))
		return
	}

	switch r.URL.Path {
	case "/link/token/create":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"link_token": linkToken,
			"expiration": "2026-10-16T12:00:00Z",
			"request_id": "req-link",
		})
	case "/institutions/get":
		if institutions == nil {
			institutions = []map[string]any{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"institutions": institutions,
			"total":        len(institutions),
			"request_id":   "req-inst",
		})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakePlaid) calls(path string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func institutionFixture(id, name string) map[string]any {
	return map[string]any{
		"institution_id":  id,
		"name":            name,
		"products":        []string{"transactions"},
		"country_codes":   []string{"US"},
		"routing_numbers": []string{},
		"dtc_numbers":     []string{},
		"oauth":           false,
	}
}
