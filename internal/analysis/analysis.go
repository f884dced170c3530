package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"veracity/internal/archive"
	"veracity/internal/classifier"
	"veracity/internal/deception"
)

const (
	SourceRemote    = "remote"
	SourceHeuristic = "heuristic"
)

// Fallback reasons recorded when the remote classifier cannot serve a
// request and the heuristic engine answers instead.
const (
	ReasonTimeout       = "timeout"
	ReasonUnavailable   = "unavailable"
	ReasonInvalidResult = "invalid_result"
	ReasonRateLimited   = "rate_limited"
	ReasonError         = "error"
)

const defaultRemoteTimeout = 15 * time.Second

// Report wraps an AnalysisResult with provenance: who produced it, when,
// and whether the remote path fell back.
type Report struct {
	ID             string                   `json:"id"`
	CreatedAt      time.Time                `json:"createdAt"`
	Locale         deception.Locale         `json:"locale"`
	Source         string                   `json:"source"`
	Provider       string                   `json:"provider,omitempty"`
	FallbackReason string                   `json:"fallbackReason,omitempty"`
	DurationMs     int64                    `json:"durationMs"`
	Result         deception.AnalysisResult `json:"result"`
}

type Options struct {
	Remote    classifier.Client // nil runs heuristic-only
	Archive   *archive.Store    // nil disables archiving
	Logger    *zap.Logger
	Metrics   *Metrics
	Timeout   time.Duration // remote call budget
	RateLimit rate.Limit    // remote calls per second, 0 disables limiting
	RateBurst int
}

type Service struct {
	remote  classifier.Client
	store   *archive.Store
	log     *zap.Logger
	metrics *Metrics
	timeout time.Duration
	limiter *rate.Limiter
}

func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRemoteTimeout
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.RateLimit, burst)
	}
	return &Service{
		remote:  opts.Remote,
		store:   opts.Archive,
		log:     opts.Logger,
		metrics: opts.Metrics,
		timeout: opts.Timeout,
		limiter: limiter,
	}
}

// Analyze produces a report for the given transcript. The remote classifier
// is consulted first when configured; any failure, timeout, or contract
// violation falls back to the local engine, so Analyze itself never fails.
func (s *Service) Analyze(ctx context.Context, text, locale string) Report {
	loc := deception.NormalizeLocale(locale)
	start := time.Now()

	result, source, provider, fallbackReason := s.classify(ctx, text, loc)

	report := Report{
		ID:             uuid.NewString(),
		CreatedAt:      start.UTC(),
		Locale:         loc,
		Source:         source,
		Provider:       provider,
		FallbackReason: fallbackReason,
		DurationMs:     time.Since(start).Milliseconds(),
		Result:         result,
	}

	s.metrics.analyses.WithLabelValues(source, string(loc)).Inc()
	s.metrics.duration.Observe(time.Since(start).Seconds())

	s.log.Info("analysis completed",
		zap.String("id", report.ID),
		zap.String("locale", string(loc)),
		zap.String("source", source),
		zap.Int("lie_probability", result.LieProbability),
		zap.Int("confidence", result.ConfidenceScore),
		zap.Int64("duration_ms", report.DurationMs),
	)

	s.persist(report)
	return report
}

func (s *Service) classify(ctx context.Context, text string, loc deception.Locale) (result deception.AnalysisResult, source, provider, fallbackReason string) {
	if s.remote == nil {
		return deception.Analyze(text, loc), SourceHeuristic, "", ""
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.noteFallback(ReasonRateLimited, nil)
		return deception.Analyze(text, loc), SourceHeuristic, "", ReasonRateLimited
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	remote, err := s.remote.Classify(callCtx, text, loc)
	if err != nil {
		reason := classifyFailure(err)
		s.noteFallback(reason, err)
		return deception.Analyze(text, loc), SourceHeuristic, "", reason
	}
	if err := deception.ValidateResult(remote); err != nil {
		s.noteFallback(ReasonInvalidResult, err)
		return deception.Analyze(text, loc), SourceHeuristic, "", ReasonInvalidResult
	}
	return remote, SourceRemote, s.remote.Name(), ""
}

func (s *Service) noteFallback(reason string, err error) {
	s.metrics.fallbacks.WithLabelValues(reason).Inc()
	s.log.Warn("remote classifier unavailable, using heuristic engine",
		zap.String("reason", reason),
		zap.Error(err),
	)
}

// persist archives the report when a store is configured. Archive failures
// are logged and swallowed: losing a row must not fail the analysis.
func (s *Service) persist(report Report) {
	if s.store == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		s.log.Error("marshal report for archive", zap.Error(err))
		return
	}
	rec := archive.Record{
		ID:              report.ID,
		CreatedAt:       report.CreatedAt,
		Locale:          string(report.Locale),
		Source:          report.Source,
		Provider:        report.Provider,
		FallbackReason:  report.FallbackReason,
		LieProbability:  report.Result.LieProbability,
		ConfidenceScore: report.Result.ConfidenceScore,
		DurationMs:      report.DurationMs,
		Payload:         payload,
	}
	if err := s.store.Save(rec); err != nil {
		s.log.Error("archive report", zap.String("id", report.ID), zap.Error(err))
	}
}

// DecodeArchived rebuilds a report from its archived payload.
func DecodeArchived(rec archive.Record) (Report, error) {
	var report Report
	if err := json.Unmarshal(rec.Payload, &report); err != nil {
		return Report{}, fmt.Errorf("decode archived report %s: %w", rec.ID, err)
	}
	return report, nil
}

func classifyFailure(err error) string {
	if err == nil {
		return ReasonError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return ReasonTimeout
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "unavailable"), strings.Contains(msg, "no such host"):
		return ReasonUnavailable
	default:
		return ReasonError
	}
}
