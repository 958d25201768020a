// Package server exposes the encoders over HTTP.
//
//	POST /v1/encode   message document (JSON or YAML) -> {"hex": "..."}
//	POST /v1/decode   {"hex": "..."} -> message document
//	GET  /healthz
//	GET  /metrics
//
// Add ?random=true to an encode request to fill the sequence and nonce.
package server

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wippyai/msgwire"
	"github.com/wippyai/msgwire/hexcodec"
	"github.com/wippyai/msgwire/message"
	"github.com/wippyai/msgwire/wire"
)

// MetricsSubsystem names the HTTP metrics, e.g. msgwire_requests_total.
const MetricsSubsystem = "msgwire"

type options struct {
	logger    *zap.Logger
	registry  *prometheus.Registry
	rng       *rand.Rand
	bodyLimit string
	rateLimit float64
}

// Option configures a Server.
type Option func(*options)

// WithLogger sets the request and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry registers HTTP metrics with reg and serves it on /metrics.
// Without it a fresh registry is used.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithBodyLimit caps request bodies, e.g. "1M".
func WithBodyLimit(limit string) Option {
	return func(o *options) { o.bodyLimit = limit }
}

// WithRateLimit allows perSecond requests per client IP. Zero disables it.
func WithRateLimit(perSecond float64) Option {
	return func(o *options) { o.rateLimit = perSecond }
}

// WithRand draws random sequence and nonce values from r.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// Server is the HTTP front of an Encoder.
type Server struct {
	echo    *echo.Echo
	enc     msgwire.Encoder
	logger  *zap.Logger
	rng     *rand.Rand
	started time.Time
}

// New builds the routes and middleware around enc.
func New(enc msgwire.Encoder, opts ...Option) *Server {
	o := options{bodyLimit: "1M"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	s := &Server{
		echo:    echo.New(),
		enc:     enc,
		logger:  o.logger,
		started: time.Now(),
	}

	if o.rng != nil {
		s.rng = rand.New(&lockedSource{r: o.rng})
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.BodyLimit(o.bodyLimit))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  MetricsSubsystem,
		Registerer: o.registry,
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
				zap.Error(v.Error),
			)
			return nil
		},
	}))
	if o.rateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(o.rateLimit))))
	}

	e.POST("/v1/encode", s.encode)
	e.POST("/v1/decode", s.decode)
	e.GET("/healthz", s.health)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: o.registry}))
	return s
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type hexBody struct {
	Hex string `json:"hex"`
}

func (s *Server) encode(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	var opts []message.ParseOption
	if c.QueryParam("random") == "true" {
		opts = append(opts, message.FillRandom(s.rng))
	}
	m, err := message.Parse(body, opts...)
	if err != nil {
		return err
	}

	out, err := msgwire.EncodeHex(c.Request().Context(), s.enc, m)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hexBody{Hex: out})
}

func (s *Server) decode(c echo.Context) error {
	var req hexBody
	if err := c.Bind(&req); err != nil {
		return err
	}
	b, err := hexcodec.FromHex(req.Hex)
	if err != nil {
		return err
	}
	m, err := wire.Decode(b)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// lockedSource serializes draws from a caller-supplied generator.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Uint64()
}
