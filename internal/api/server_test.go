package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"godrift/adapters/ledger/jsonfile"
	"godrift/domain/core"
	"godrift/domain/results"
	"godrift/internal"
)

func newTestServer(t *testing.T) (*Server, *jsonfile.Ledger) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ledger, err := jsonfile.NewLedger(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewServer(ledger, internal.NewLogger(internal.LogLevelError)), ledger
}

func seedReport(t *testing.T, ledger *jsonfile.Ledger) results.Report {
	t.Helper()
	report := results.Report{
		ID:             core.ReportID(core.NewID()),
		BatchID:        core.BatchID(core.NewID()),
		MetricName:     "cosine_distance",
		Conditions:     []string{"intensity=0", "intensity=50"},
		Recommendation: results.RecommendParametric,
		Procedures: []results.ProcedureResult{
			{Name: "anova", Statistic: 18.4, PValue: 0.0002, Interpretation: "drift differs across intensities"},
		},
	}
	if err := ledger.SaveReport(context.Background(), report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	return report
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestReportEndpointReturnsJSON(t *testing.T) {
	server, ledger := newTestServer(t)
	saved := seedReport(t, ledger)

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/report?batch="+saved.BatchID.String(), nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got results.Report
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != saved.ID || len(got.Procedures) != 1 {
		t.Errorf("expected the saved report back, got %+v", got)
	}
}

func TestReportEndpointDefaultsToLatestBatch(t *testing.T) {
	server, ledger := newTestServer(t)
	saved := seedReport(t, ledger)

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/report", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got results.Report
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != saved.ID {
		t.Errorf("expected latest batch report, got %+v", got)
	}
}

func TestReportHTMLRendersMarkdown(t *testing.T) {
	server, ledger := newTestServer(t)
	saved := seedReport(t, ledger)

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/report?batch="+saved.BatchID.String(), nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<table>") || !strings.Contains(body, "anova") {
		t.Errorf("expected rendered HTML report, got: %s", body)
	}
}

func TestReportEndpointMissingBatch(t *testing.T) {
	server, _ := newTestServer(t)

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/report?batch=nope", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
