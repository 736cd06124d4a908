package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"attachment-api/internal/infrastructure/metrics"
)

const maxLogBodySize = 1 << 12 // 4 KB

// RequestLogGin logs one line per request. Only small JSON bodies are
// captured; uploads and other binary payloads are never buffered.
func RequestLogGin(logger *zap.Logger, mCounter *prometheus.CounterVec) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions ||
			c.Request.URL.Path == "/favicon.ico" ||
			strings.HasSuffix(c.Request.URL.Path, "/metrics") {
			c.Next()
			return
		}

		start := time.Now()

		body := captureBody(c)

		c.Next()

		if mCounter != nil {
			mCounter.WithLabelValues(metrics.Request).Inc()
		}

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("url", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("body", body),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// captureBody returns up to maxLogBodySize of a JSON body and puts the
// consumed bytes back in front of the remaining stream.
func captureBody(c *gin.Context) string {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return ""
	}
	ct := c.ContentType()
	if ct != "application/json" {
		return "<" + ct + " omitted>"
	}

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, io.LimitReader(c.Request.Body, maxLogBodySize))
	c.Request.Body = readCloser{
		Reader: io.MultiReader(bytes.NewReader(buf.Bytes()), c.Request.Body),
		Closer: c.Request.Body,
	}
	return buf.String()
}

type readCloser struct {
	io.Reader
	io.Closer
}
