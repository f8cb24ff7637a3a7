package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
	loaded   prometheus.GaugeFunc
}

func newMetrics(reg prometheus.Registerer, s *Server) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpt2tok_requests_total",
				Help: "Total number of API requests by route and status code",
			},
			[]string{"route", "code"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gpt2tok_request_duration_seconds",
				Help:    "Latency of API requests",
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 18),
			},
			[]string{"route"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpt2tok_tokens_total",
				Help: "Total number of tokens encoded or decoded",
			},
			[]string{"direction"},
		),
		loaded: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "gpt2tok_vocab_size",
				Help: "Vocabulary size of the loaded tokenizer, 0 when not loaded",
			},
			func() float64 { return float64(s.tokenizer.VocabSize()) },
		),
	}

	reg.MustRegister(m.requests, m.latency, m.tokens, m.loaded)
	return m
}

func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
