package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"

	"veracity/internal/archive"
	"veracity/internal/deception"
)

type stubClassifier struct {
	result deception.AnalysisResult
	err    error
	calls  int
}

func (s *stubClassifier) Name() string { return "stub" }

func (s *stubClassifier) Classify(context.Context, string, deception.Locale) (deception.AnalysisResult, error) {
	s.calls++
	if s.err != nil {
		return deception.AnalysisResult{}, s.err
	}
	return s.result, nil
}

func TestAnalyzeHeuristicOnly(t *testing.T) {
	svc := New(Options{})
	report := svc.Analyze(context.Background(), "Honestly, maybe it happened.", "en")

	if report.ID == "" {
		t.Fatal("expected a report id")
	}
	if report.Source != SourceHeuristic || report.Provider != "" || report.FallbackReason != "" {
		t.Fatalf("unexpected provenance: %+v", report)
	}
	want := deception.Analyze("Honestly, maybe it happened.", deception.LocaleEN)
	if report.Result.LieProbability != want.LieProbability || report.Result.Summary != want.Summary {
		t.Fatalf("expected engine output, got %+v", report.Result)
	}
	if err := deception.ValidateResult(report.Result); err != nil {
		t.Fatalf("report violates contract: %v", err)
	}
}

func TestAnalyzeRemoteSuccess(t *testing.T) {
	canned := deception.Analyze("a remote transcript, honestly", deception.LocaleEN)
	remote := &stubClassifier{result: canned}
	svc := New(Options{Remote: remote})

	report := svc.Analyze(context.Background(), "different local text", "en")
	if report.Source != SourceRemote {
		t.Fatalf("expected remote source, got %s", report.Source)
	}
	if report.Provider != "stub" {
		t.Fatalf("expected stub provider, got %q", report.Provider)
	}
	if report.FallbackReason != "" {
		t.Fatalf("did not expect fallback reason, got %q", report.FallbackReason)
	}
	if report.Result.Summary != canned.Summary {
		t.Fatalf("expected remote result to be used")
	}
}

func TestAnalyzeRemoteErrorFallsBack(t *testing.T) {
	remote := &stubClassifier{err: errors.New("connection refused")}
	svc := New(Options{Remote: remote})

	report := svc.Analyze(context.Background(), "Maybe it was him.", "en")
	if report.Source != SourceHeuristic {
		t.Fatalf("expected heuristic fallback, got %s", report.Source)
	}
	if report.FallbackReason != ReasonUnavailable {
		t.Fatalf("expected %s, got %q", ReasonUnavailable, report.FallbackReason)
	}
	if got := testutil.ToFloat64(svc.metrics.fallbacks.WithLabelValues(ReasonUnavailable)); got != 1 {
		t.Fatalf("expected one fallback counted, got %v", got)
	}
	want := deception.Analyze("Maybe it was him.", deception.LocaleEN)
	if report.Result.LieProbability != want.LieProbability {
		t.Fatalf("expected engine output after fallback")
	}
}

func TestAnalyzeInvalidRemoteResultFallsBack(t *testing.T) {
	bad := deception.Analyze("fine text", deception.LocaleEN)
	bad.LieProbability = 150
	remote := &stubClassifier{result: bad}
	svc := New(Options{Remote: remote})

	report := svc.Analyze(context.Background(), "Maybe.", "en")
	if report.Source != SourceHeuristic {
		t.Fatalf("expected heuristic fallback for invalid remote result, got %s", report.Source)
	}
	if report.FallbackReason != ReasonInvalidResult {
		t.Fatalf("expected %s, got %q", ReasonInvalidResult, report.FallbackReason)
	}
	if err := deception.ValidateResult(report.Result); err != nil {
		t.Fatalf("fallback result violates contract: %v", err)
	}
}

func TestAnalyzeRateLimited(t *testing.T) {
	remote := &stubClassifier{result: deception.Analyze("remote answer honestly", deception.LocaleEN)}
	svc := New(Options{
		Remote:    remote,
		RateLimit: rate.Every(time.Hour),
		RateBurst: 1,
	})

	first := svc.Analyze(context.Background(), "text one", "en")
	if first.Source != SourceRemote {
		t.Fatalf("expected first call to reach the remote, got %s", first.Source)
	}
	second := svc.Analyze(context.Background(), "text two", "en")
	if second.Source != SourceHeuristic || second.FallbackReason != ReasonRateLimited {
		t.Fatalf("expected rate-limited fallback, got %+v", second)
	}
	if remote.calls != 1 {
		t.Fatalf("expected exactly one remote call, got %d", remote.calls)
	}
}

func TestAnalyzePersistsToArchive(t *testing.T) {
	store, err := archive.Open(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := New(Options{Archive: store})
	report := svc.Analyze(context.Background(), "Honestly, I never did.", "ko")

	rec, err := store.Get(report.ID)
	if err != nil {
		t.Fatalf("expected archived record: %v", err)
	}
	if rec.Locale != "ko" || rec.Source != SourceHeuristic {
		t.Fatalf("unexpected record columns: %+v", rec)
	}
	if rec.LieProbability != report.Result.LieProbability {
		t.Fatalf("indexed probability diverges from report")
	}

	decoded, err := DecodeArchived(rec)
	if err != nil {
		t.Fatalf("decode archived report: %v", err)
	}
	if decoded.ID != report.ID || decoded.Result.Summary != report.Result.Summary {
		t.Fatalf("archived payload did not round-trip: %+v", decoded)
	}
}

func TestClassifyFailureReasons(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, ReasonTimeout},
		{errors.New("request timeout while waiting"), ReasonTimeout},
		{errors.New("dial tcp: connection refused"), ReasonUnavailable},
		{errors.New("service unavailable"), ReasonUnavailable},
		{errors.New("dial tcp: no such host"), ReasonUnavailable},
		{errors.New("boom"), ReasonError},
		{nil, ReasonError},
	}
	for _, c := range cases {
		if got := classifyFailure(c.err); got != c.want {
			t.Fatalf("classifyFailure(%v): expected %s, got %s", c.err, c.want, got)
		}
	}
}
