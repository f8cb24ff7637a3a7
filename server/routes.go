package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gpt2tok/gpt2tok/api"
	"github.com/gpt2tok/gpt2tok/envconfig"
	"github.com/gpt2tok/gpt2tok/logutil"
	"github.com/gpt2tok/gpt2tok/scan"
	"github.com/gpt2tok/gpt2tok/tokenizer"
	"github.com/gpt2tok/gpt2tok/version"
)

type Server struct {
	addr      net.Addr
	tokenizer *tokenizer.Tokenizer
	maxTokens int
	metrics   *metrics
}

func NewServer(tok *tokenizer.Tokenizer, maxTokens int) *Server {
	return &Server{tokenizer: tok, maxTokens: maxTokens}
}

const requestIDHeader = "X-Request-Id"

func requestIDMiddleware(c *gin.Context) {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}

	c.Set("request_id", id)
	c.Header(requestIDHeader, id)
	c.Next()
}

func (s *Server) GenerateRoutes(reg *prometheus.Registry) (http.Handler, error) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
		requestIDHeader,
	}
	corsConfig.ExposeHeaders = []string{requestIDHeader}
	corsConfig.AllowOrigins = envconfig.AllowOrigins
	if err := corsConfig.Validate(); err != nil {
		return nil, fmt.Errorf("GPT2TOK_ORIGINS: %w", err)
	}

	s.metrics = newMetrics(reg, s)

	r := gin.New()
	r.Use(
		gin.Recovery(),
		cors.New(corsConfig),
		requestIDMiddleware,
		s.metrics.middleware(),
	)

	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "gpt2tok is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "gpt2tok is running") })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	r.POST("/api/tokenize", s.TokenizeHandler)
	r.POST("/api/detokenize", s.DetokenizeHandler)
	r.GET("/api/show", s.ShowHandler)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return r, nil
}

// errorStatus maps tokenizer errors onto HTTP status codes.
func errorStatus(err error) (int, api.ErrorCode) {
	var capacityErr *tokenizer.CapacityExceededError
	var tokenErr *tokenizer.UnknownTokenIDError
	var symbolErr *tokenizer.UnknownSymbolError
	switch {
	case errors.Is(err, tokenizer.ErrNotLoaded), errors.Is(err, tokenizer.ErrClosed):
		return http.StatusServiceUnavailable, api.ErrCodeNotLoaded
	case errors.As(err, &capacityErr):
		return http.StatusBadRequest, api.ErrCodeCapacity
	case errors.As(err, &tokenErr):
		return http.StatusBadRequest, api.ErrCodeUnknownTokenID
	case errors.Is(err, tokenizer.ErrInvalidCapacity):
		return http.StatusBadRequest, api.ErrCodeInvalidRequest
	case errors.As(err, &symbolErr):
		// vocabulary and merges do not belong together
		return http.StatusInternalServerError, api.ErrCodeUnknownSymbol
	default:
		return http.StatusInternalServerError, api.ErrCodeGeneral
	}
}

func abortWithError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "request_id", c.GetString("request_id"), "error", err)
	}
	c.AbortWithStatusJSON(status, api.ErrorResponse{Message: err.Error(), Code: code})
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{Message: "missing request body", Code: api.ErrCodeInvalidRequest})
		return false
	} else if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{Message: err.Error(), Code: api.ErrCodeInvalidRequest})
		return false
	}
	return true
}

func (s *Server) TokenizeHandler(c *gin.Context) {
	var req api.TokenizeRequest
	if !bindJSON(c, &req) {
		return
	}

	capacity := s.maxTokens
	switch {
	case req.MaxTokens < 0:
		abortWithError(c, tokenizer.ErrInvalidCapacity)
		return
	case req.MaxTokens > 0:
		capacity = min(capacity, req.MaxTokens)
	}

	ids, err := s.tokenizer.Encode(req.Text, capacity)
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.metrics.tokens.WithLabelValues("encode").Add(float64(len(ids)))
	logutil.TraceContext(c.Request.Context(), "tokenize", "request_id", c.GetString("request_id"), "count", len(ids))
	c.JSON(http.StatusOK, api.TokenizeResponse{Tokens: ids, Count: len(ids)})
}

func (s *Server) DetokenizeHandler(c *gin.Context) {
	var req api.DetokenizeRequest
	if !bindJSON(c, &req) {
		return
	}

	text, err := s.tokenizer.Decode(req.Tokens)
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.metrics.tokens.WithLabelValues("decode").Add(float64(len(req.Tokens)))
	c.JSON(http.StatusOK, api.DetokenizeResponse{Text: text})
}

func (s *Server) ShowHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.ShowResponse{
		Loaded:    s.tokenizer.IsLoaded(),
		VocabSize: s.tokenizer.VocabSize(),
		Merges:    s.tokenizer.Merges(),
		MaxTokens: s.maxTokens,
		Scan:      scan.Active().String(),
		Version:   version.Version,
	})
}

// Serve answers API requests on ln until ctx is cancelled or the process is
// interrupted.
func Serve(ctx context.Context, ln net.Listener, tok *tokenizer.Tokenizer) error {
	if envconfig.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := NewServer(tok, envconfig.MaxTokens)
	s.addr = ln.Addr()

	h, err := s.GenerateRoutes(prometheus.NewRegistry())
	if err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
	srvr := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srvr.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown", "error", err)
		}
	}()

	if err := srvr.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("server stopped", "addr", s.addr)
	return tok.Close()
}
