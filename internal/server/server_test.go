package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazz-dev/dataprobe/internal/server"
	"github.com/hazz-dev/dataprobe/internal/storage"
)

// mockStore implements server.ResultStore for testing.
type mockStore struct {
	results   []storage.StoredResult
	latest    map[string]*storage.StoredResult
	history   map[string][]storage.StoredResult
	totalHist map[string]int
	passRate  map[string]float64
	err       error
}

func (m *mockStore) AllLatest(_ context.Context) ([]storage.StoredResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockStore) LatestResult(_ context.Context, checkID string) (*storage.StoredResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.latest != nil {
		return m.latest[checkID], nil
	}
	return nil, nil
}

func (m *mockStore) History(_ context.Context, checkID string, limit, offset int) ([]storage.StoredResult, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.history[checkID], m.totalHist[checkID], nil
}

func (m *mockStore) PassRate(_ context.Context, checkID string, last int) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.passRate[checkID], nil
}

func makeStored(checkID string, within bool) storage.StoredResult {
	return storage.StoredResult{
		ID:              1,
		CheckID:         checkID,
		Description:     "test description",
		ExecutedAt:      time.Now().UTC(),
		Value:           12.5,
		MinThreshold:    10,
		MaxThreshold:    15,
		WithinThreshold: within,
	}
}

func doRequest(t *testing.T, router http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decoding JSON response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	s := server.New(&mockStore{}, nil)
	w := doRequest(t, s.Router(), "GET", "/api/health")

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	decodeJSON(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestListChecks(t *testing.T) {
	store := &mockStore{
		results: []storage.StoredResult{
			makeStored("null_check", false),
			makeStored("row_count", true),
		},
		passRate: map[string]float64{"null_check": 50, "row_count": 100},
	}
	s := server.New(store, nil)
	w := doRequest(t, s.Router(), "GET", "/api/checks")

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Data []struct {
			CheckID         string  `json:"check_id"`
			WithinThreshold bool    `json:"within_threshold"`
			PassRatePct     float64 `json:"pass_rate_percent"`
		} `json:"data"`
	}
	decodeJSON(t, w, &resp)
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(resp.Data))
	}
	if resp.Data[0].CheckID != "null_check" || resp.Data[0].WithinThreshold {
		t.Errorf("unexpected first summary: %+v", resp.Data[0])
	}
	if resp.Data[1].PassRatePct != 100 {
		t.Errorf("expected 100%% pass rate for row_count, got %v", resp.Data[1].PassRatePct)
	}
}

func TestGetCheck(t *testing.T) {
	latest := makeStored("row_count", true)
	store := &mockStore{
		latest:    map[string]*storage.StoredResult{"row_count": &latest},
		history:   map[string][]storage.StoredResult{"row_count": {latest}},
		totalHist: map[string]int{"row_count": 1},
		passRate:  map[string]float64{"row_count": 100},
	}
	s := server.New(store, nil)
	w := doRequest(t, s.Router(), "GET", "/api/checks/row_count")

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Data struct {
			CheckID       string                 `json:"check_id"`
			PassRatePct   float64                `json:"pass_rate_percent"`
			RecentResults []storage.StoredResult `json:"recent_results"`
		} `json:"data"`
	}
	decodeJSON(t, w, &resp)
	if resp.Data.CheckID != "row_count" {
		t.Errorf("expected check id 'row_count', got %q", resp.Data.CheckID)
	}
	if len(resp.Data.RecentResults) != 1 {
		t.Errorf("expected 1 recent result, got %d", len(resp.Data.RecentResults))
	}
}

func TestGetCheck_NotFound(t *testing.T) {
	s := server.New(&mockStore{}, nil)
	w := doRequest(t, s.Router(), "GET", "/api/checks/nonexistent")

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetCheckHistory(t *testing.T) {
	latest := makeStored("row_count", true)
	store := &mockStore{
		latest:    map[string]*storage.StoredResult{"row_count": &latest},
		history:   map[string][]storage.StoredResult{"row_count": {latest, latest}},
		totalHist: map[string]int{"row_count": 2},
	}
	s := server.New(store, nil)
	w := doRequest(t, s.Router(), "GET", "/api/checks/row_count/history?limit=10")

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Data struct {
			Results []storage.StoredResult `json:"results"`
			Total   int                    `json:"total"`
		} `json:"data"`
	}
	decodeJSON(t, w, &resp)
	if resp.Data.Total != 2 {
		t.Errorf("expected total 2, got %d", resp.Data.Total)
	}
	if len(resp.Data.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(resp.Data.Results))
	}
}

func TestGetCheckHistory_InvalidLimit(t *testing.T) {
	latest := makeStored("row_count", true)
	store := &mockStore{
		latest: map[string]*storage.StoredResult{"row_count": &latest},
	}
	s := server.New(store, nil)
	w := doRequest(t, s.Router(), "GET", "/api/checks/row_count/history?limit=abc")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
