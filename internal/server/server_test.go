package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"veracity/internal/analysis"
	"veracity/internal/archive"
	"veracity/internal/deception"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Analysis == nil {
		opts.Analysis = analysis.New(analysis.Options{})
	}
	return New(opts)
}

func doJSON(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := doJSON(t, srv, http.MethodPost, "/v1/analyze", `{"text":"Honestly, maybe it was me.","locale":"en"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var report analysis.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.ID == "" || report.Source != analysis.SourceHeuristic {
		t.Fatalf("unexpected report envelope: %+v", report)
	}
	if err := deception.ValidateResult(report.Result); err != nil {
		t.Fatalf("served result violates contract: %v", err)
	}
}

func TestAnalyzeEmptyTextAllowed(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := doJSON(t, srv, http.MethodPost, "/v1/analyze", `{"text":""}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty text, got %d", rr.Code)
	}

	var report analysis.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Result.LieProbability != 42 || report.Result.ConfidenceScore != 58 {
		t.Fatalf("expected resting-state scores, got %d/%d",
			report.Result.LieProbability, report.Result.ConfidenceScore)
	}
	if report.Locale != deception.LocaleEN {
		t.Fatalf("expected default locale, got %q", report.Locale)
	}
}

func TestAnalyzeRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := doJSON(t, srv, http.MethodPost, "/v1/analyze", `{"text":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestAnalyzeDocumentEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})

	body, contentType := multipartUpload(t, "statement.txt",
		"Honestly, maybe I was there. But I never took anything.",
		map[string]string{"locale": "ko"})
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze/document", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp documentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Extraction.MediaType != "text/plain" || resp.Extraction.Chars == 0 {
		t.Fatalf("unexpected extraction info: %+v", resp.Extraction)
	}
	if resp.Report.Locale != deception.LocaleKO {
		t.Fatalf("expected ko report, got %q", resp.Report.Locale)
	}
	if err := deception.ValidateResult(resp.Report.Result); err != nil {
		t.Fatalf("served result violates contract: %v", err)
	}
}

func TestAnalyzeDocumentMissingFile(t *testing.T) {
	srv := newTestServer(t, Options{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("locale", "en"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze/document", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAnalyzeDocumentUnsupportedType(t *testing.T) {
	srv := newTestServer(t, Options{})

	body, contentType := multipartUpload(t, "image.png",
		string([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}), nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze/document", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAnalyzeDocumentUploadCap(t *testing.T) {
	srv := newTestServer(t, Options{MaxUpload: 16})

	body, contentType := multipartUpload(t, "statement.txt",
		strings.Repeat("far too large a statement ", 10), nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze/document", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestReportEndpointsDisabledWithoutArchive(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, target := range []string{"/v1/reports/some-id", "/v1/reports"} {
		rr := doJSON(t, srv, http.MethodGet, target, "")
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("GET %s: expected 501, got %d", target, rr.Code)
		}
	}
}

func TestReportRoundTripThroughArchive(t *testing.T) {
	store, err := archive.Open(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := analysis.New(analysis.Options{Archive: store})
	srv := newTestServer(t, Options{Analysis: svc, Archive: store})

	rr := doJSON(t, srv, http.MethodPost, "/v1/analyze", `{"text":"Maybe, honestly."}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("analyze: expected 200, got %d", rr.Code)
	}
	var created analysis.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created report: %v", err)
	}

	rr = doJSON(t, srv, http.MethodGet, "/v1/reports/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get report: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var fetched analysis.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode fetched report: %v", err)
	}
	if fetched.ID != created.ID || fetched.Result.Summary != created.Result.Summary {
		t.Fatalf("archived report did not round-trip: %+v", fetched)
	}

	rr = doJSON(t, srv, http.MethodGet, "/v1/reports?limit=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list reports: expected 200, got %d", rr.Code)
	}
	var listing struct {
		Reports []reportSummary `json:"reports"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if listing.Count != 1 || len(listing.Reports) != 1 || listing.Reports[0].ID != created.ID {
		t.Fatalf("unexpected listing: %+v", listing)
	}
}

func TestReportNotFound(t *testing.T) {
	store, err := archive.Open(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := newTestServer(t, Options{Archive: store})
	rr := doJSON(t, srv, http.MethodGet, "/v1/reports/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestListReportsRejectsBadLimit(t *testing.T) {
	store, err := archive.Open(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := newTestServer(t, Options{Archive: store})
	for _, target := range []string{"/v1/reports?limit=abc", "/v1/reports?limit=-3"} {
		rr := doJSON(t, srv, http.MethodGet, target, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("GET %s: expected 400, got %d", target, rr.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := doJSON(t, srv, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var health struct {
		Status     string `json:"status"`
		Classifier string `json:"classifier"`
		Archive    bool   `json:"archive"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.Classifier != "heuristic-only" || health.Archive {
		t.Fatalf("unexpected health payload: %+v", health)
	}
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	srv := newTestServer(t, Options{})

	if rr := doJSON(t, srv, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rr.Code)
	}

	rr := doJSON(t, srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "veracity_http_requests_total") {
		t.Fatalf("expected request counter in metrics output:\n%s", body)
	}
	if !strings.Contains(body, "veracity_http_request_duration_seconds") {
		t.Fatalf("expected latency histogram in metrics output:\n%s", body)
	}
}
