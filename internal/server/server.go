package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"veracity/internal/analysis"
	"veracity/internal/archive"
	"veracity/internal/deception"
	"veracity/internal/extract"
)

const defaultMaxUpload = 8 << 20

type Options struct {
	Analysis  *analysis.Service
	Extractor *extract.Service
	Archive   *archive.Store // nil disables the report endpoints
	Logger    *zap.Logger
	Registry  *prometheus.Registry
	Mode      string // gin mode: release | debug
	MaxUpload int64  // multipart budget in bytes
	Locale    string // applied when requests omit a locale
	Provider  string // classifier provider reported by /healthz
}

type Server struct {
	engine    *gin.Engine
	svc       *analysis.Service
	extractor *extract.Service
	store     *archive.Store
	log       *zap.Logger
	registry  *prometheus.Registry
	maxUpload int64
	locale    string
	provider  string

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = defaultMaxUpload
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.New(0)
	}
	if opts.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	factory := promauto.With(opts.Registry)
	s := &Server{
		svc:       opts.Analysis,
		extractor: opts.Extractor,
		store:     opts.Archive,
		log:       opts.Logger,
		registry:  opts.Registry,
		maxUpload: opts.MaxUpload,
		locale:    opts.Locale,
		provider:  opts.Provider,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veracity_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veracity_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.instrument())
	engine.MaxMultipartMemory = opts.MaxUpload

	engine.POST("/v1/analyze", s.handleAnalyze)
	engine.POST("/v1/analyze/document", s.handleAnalyzeDocument)
	engine.GET("/v1/reports/:id", s.handleGetReport)
	engine.GET("/v1/reports", s.handleListReports)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))

	s.engine = engine
	return s
}

// Router exposes the route tree for http.Server and tests.
func (s *Server) Router() http.Handler { return s.engine }

func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()

		s.requests.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		s.latency.WithLabelValues(c.Request.Method, path).Observe(elapsed.Seconds())
		s.log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
		)
	}
}

type analyzeRequest struct {
	Text   string `json:"text"`
	Locale string `json:"locale"`
}

// Empty text is allowed: the engine reports its resting state rather
// than erroring, so callers can always render a result.
func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	report := s.svc.Analyze(c.Request.Context(), req.Text, s.localeOr(req.Locale))
	c.JSON(http.StatusOK, report)
}

type extractionInfo struct {
	MediaType string `json:"mediaType"`
	Chars     int    `json:"chars"`
	Truncated bool   `json:"truncated"`
}

type documentResponse struct {
	Report     analysis.Report `json:"report"`
	Extraction extractionInfo  `json:"extraction"`
}

func (s *Server) handleAnalyzeDocument(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	if fh.Size > s.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "document exceeds the upload limit"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer f.Close()

	ex, err := s.extractor.FromReader(f, fh.Filename, c.PostForm("media_type"))
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedType) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	report := s.svc.Analyze(c.Request.Context(), ex.Text, s.localeOr(c.PostForm("locale")))
	c.JSON(http.StatusOK, documentResponse{
		Report: report,
		Extraction: extractionInfo{
			MediaType: ex.MediaType,
			Chars:     ex.Chars,
			Truncated: ex.Truncated,
		},
	})
}

func (s *Server) handleGetReport(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "archive is disabled"})
		return
	}

	rec, err := s.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		s.log.Error("archive lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive lookup failed"})
		return
	}

	report, err := analysis.DecodeArchived(rec)
	if err != nil {
		s.log.Error("archived report is unreadable", zap.String("id", rec.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archived report is unreadable"})
		return
	}
	c.JSON(http.StatusOK, report)
}

type reportSummary struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	Locale         string    `json:"locale"`
	Source         string    `json:"source"`
	Provider       string    `json:"provider,omitempty"`
	FallbackReason string    `json:"fallbackReason,omitempty"`
	LieProbability int       `json:"lieProbability"`
	Confidence     int       `json:"confidence"`
	DurationMs     int64     `json:"durationMs"`
}

func (s *Server) handleListReports(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "archive is disabled"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := s.store.Recent(limit)
	if err != nil {
		s.log.Error("archive listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive listing failed"})
		return
	}

	summaries := make([]reportSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, reportSummary{
			ID:             rec.ID,
			CreatedAt:      rec.CreatedAt,
			Locale:         rec.Locale,
			Source:         rec.Source,
			Provider:       rec.Provider,
			FallbackReason: rec.FallbackReason,
			LieProbability: rec.LieProbability,
			Confidence:     rec.ConfidenceScore,
			DurationMs:     rec.DurationMs,
		})
	}
	c.JSON(http.StatusOK, gin.H{"reports": summaries, "count": len(summaries)})
}

func (s *Server) handleHealth(c *gin.Context) {
	classifier := s.provider
	if classifier == "" {
		classifier = "heuristic-only"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"classifier": classifier,
		"archive":    s.store != nil,
	})
}

func (s *Server) localeOr(requested string) string {
	if requested != "" {
		return requested
	}
	if s.locale != "" {
		return s.locale
	}
	return string(deception.DefaultLocale)
}
