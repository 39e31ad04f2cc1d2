package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/TomasB/geostat/internal/counter"
)

// mockReporter implements Reporter for testing.
type mockReporter struct {
	entries []counter.Entry
	err     error
}

func (m *mockReporter) Report(_ context.Context) ([]counter.Entry, error) {
	return m.entries, m.err
}

func setupRouter(reporter *mockReporter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(reporter)
	r.GET("/api/v1/stats", h.Stats)
	return r
}

func TestStats_SortedByCountry(t *testing.T) {
	router := setupRouter(&mockReporter{
		entries: []counter.Entry{
			{Country: "US", Count: 3},
			{Country: "FR", Count: 1},
			{Country: "JP", Count: 2},
		},
	})

	req, _ := http.NewRequest("GET", "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	want := []counter.Entry{
		{Country: "FR", Count: 1},
		{Country: "JP", Count: 2},
		{Country: "US", Count: 3},
	}
	if len(resp.Stats) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(resp.Stats))
	}
	for i, e := range want {
		if resp.Stats[i] != e {
			t.Errorf("entry %d: expected %+v, got %+v", i, e, resp.Stats[i])
		}
	}
}

func TestStats_Empty(t *testing.T) {
	router := setupRouter(&mockReporter{})

	req, _ := http.NewRequest("GET", "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp StatsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Stats == nil {
		t.Error("expected empty stats array, got null")
	}
	if len(resp.Stats) != 0 {
		t.Errorf("expected 0 entries, got %d", len(resp.Stats))
	}
}

func TestStats_ReportError(t *testing.T) {
	router := setupRouter(&mockReporter{err: errors.New("store is closed")})

	req, _ := http.NewRequest("GET", "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}

	var resp StatsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Error != "report failed" {
		t.Errorf("expected 'report failed' error, got %q", resp.Error)
	}
}
