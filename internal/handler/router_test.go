package handler

import (
	"bytes"
	"encoding/json"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"

	"sigmachart/internal/controller"
	"sigmachart/internal/render"
	"sigmachart/internal/sigma"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	evaluator := sigma.NewEvaluator(sigma.DefaultSettings())
	renderer := render.New(render.Options{Width: 400, Height: 200})
	cc := controller.NewChartController(evaluator, renderer, zap.NewNop())
	return SetupRouter(cc, zap.NewNop())
}

func doRequest(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func assertPNGBody(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if _, err := png.Decode(bytes.NewReader(w.Body.Bytes())); err != nil {
		t.Errorf("body is not a decodable PNG: %v", err)
	}
}

func TestChartEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/chart?tests=1500&fails=123&name=widget", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	assertPNGBody(t, w)

	if got := w.Header().Get("Content-Disposition"); got != "inline; filename=chart.png" {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := w.Header().Get("process-tests"); got != "1500" {
		t.Errorf("process-tests = %q, want 1500", got)
	}
	if got := w.Header().Get("process-name"); got != "widget" {
		t.Errorf("process-name = %q, want widget", got)
	}
	if got := w.Header().Get("process-label"); got != "YELLOW" {
		t.Errorf("process-label = %q, want YELLOW", got)
	}
	sigmaLevel, err := strconv.ParseFloat(w.Header().Get("process-sigma"), 64)
	if err != nil {
		t.Fatalf("process-sigma %q is not a float: %v", w.Header().Get("process-sigma"), err)
	}
	if math.Abs(sigmaLevel-2.891743779396325) > 1e-9 {
		t.Errorf("process-sigma = %v, want ~2.891743779396325", sigmaLevel)
	}
	if got := w.Header().Get("process-defect_rate"); got != "0.082" {
		t.Errorf("process-defect_rate = %q, want 0.082", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestChartEndpointCoercedQuery(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/chart?tests=1e6&fails=274253", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("process-tests"); got != "1000000" {
		t.Errorf("process-tests = %q, want 1000000", got)
	}
	if got := w.Header().Get("process-label"); got != "YELLOW" {
		t.Errorf("process-label = %q, want YELLOW", got)
	}
}

func TestChartEndpointRejectsInvalidInput(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		target string
	}{
		{"fails exceed tests", "/api/v1/chart?tests=10&fails=20"},
		{"negative counts", "/api/v1/chart?tests=-50&fails=-25"},
		{"missing tests", "/api/v1/chart?fails=5"},
		{"non-numeric", "/api/v1/chart?tests=abc&fails=5"},
		{"fractional", "/api/v1/chart?tests=10.5&fails=5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodGet, tt.target, "")
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422, body %s", w.Code, w.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if msg, ok := body["error"].(string); !ok || msg == "" {
				t.Errorf("error body %s missing error message", w.Body.String())
			}
		})
	}
}

func TestPlotEndpoint(t *testing.T) {
	router := newTestRouter(t)

	payload := `[
		{"tests": "1500", "fails": 123},
		{"tests": 1e6, "fails": 4661, "name": "line-b"}
	]`
	w := doRequest(t, router, http.MethodPost, "/api/v1/plot", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	assertPNGBody(t, w)

	if got := w.Header().Get("Content-Disposition"); got != "inline; filename=plot.png" {
		t.Errorf("Content-Disposition = %q", got)
	}

	var results []sigma.Result
	if err := json.Unmarshal([]byte(w.Header().Get("Process-List")), &results); err != nil {
		t.Fatalf("Process-List header is not a JSON result array: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Process-List has %d results, want 2", len(results))
	}
	// Input order preserved; the unnamed process gets the default name.
	if results[0].Tests != 1500 || results[0].Name != "process" || results[0].Label != sigma.LabelYellow {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Tests != 1000000 || results[1].Name != "line-b" || results[1].Label != sigma.LabelGreen {
		t.Errorf("results[1] = %+v", results[1])
	}
}

func TestPlotEndpointRejectsInvalid(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name     string
		payload  string
		wantCode int
	}{
		{"empty array", `[]`, http.StatusUnprocessableEntity},
		{"fails exceed tests", `[{"tests": 10, "fails": 20}]`, http.StatusUnprocessableEntity},
		{"fractional count", `[{"tests": 10.5, "fails": 2}]`, http.StatusUnprocessableEntity},
		{"malformed json", `{`, http.StatusBadRequest},
		{"object instead of array", `{"tests": 10, "fails": 2}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodPost, "/api/v1/plot", tt.payload)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d, body %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	router := newTestRouter(t)

	payload := `[{"tests": 1000000, "fails": 274254, "name": "stamping"}]`
	w := doRequest(t, router, http.MethodPost, "/api/v1/evaluate", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var results []sigma.Result
	if err := json.Unmarshal(w.Body.Bytes(), &results); err != nil {
		t.Fatalf("body is not a JSON result array: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Label != sigma.LabelRed {
		t.Errorf("Label = %v, want RED", results[0].Label)
	}
	if math.Abs(results[0].Sigma-2.0999973523886952) > 1e-9 {
		t.Errorf("Sigma = %v, want ~2.0999973523886952", results[0].Sigma)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("body = %s, want healthy status", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
