package venice

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LoggingConfig controls what gets logged
type LoggingConfig struct {
	LogHeaders      bool
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodySize     int64 // Maximum body size to log in bytes
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogHeaders:      true,
		LogRequestBody:  true,
		LogResponseBody: true,
		MaxBodySize:     4096,
	}
}

// NewHTTPClientWithLogging creates an http.Client whose transport logs every
// request and response to logger.
func NewHTTPClientWithLogging(logger *slog.Logger, config LoggingConfig) *http.Client {
	return &http.Client{
		Transport: NewLoggingRoundTripper(nil, logger, config),
	}
}

// LoggingRoundTripper implements http.RoundTripper with structured logging.
// Event-stream responses are logged line by line while the caller reads them.
type LoggingRoundTripper struct {
	transport http.RoundTripper
	logger    *slog.Logger
	config    LoggingConfig
}

// NewLoggingRoundTripper creates a new logging round tripper
func NewLoggingRoundTripper(transport http.RoundTripper, logger *slog.Logger, config LoggingConfig) *LoggingRoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxBodySize == 0 {
		config.MaxBodySize = 4096
	}

	return &LoggingRoundTripper{
		transport: transport,
		logger:    logger,
		config:    config,
	}
}

// RoundTrip implements the http.RoundTripper interface
func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	requestID := uuid.NewString()
	ctx := req.Context()

	// The caller's request must not be modified
	out := req.Clone(ctx)

	attrs := []slog.Attr{
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
	}
	if t.config.LogHeaders {
		attrs = append(attrs, slog.Any("headers", redactHeaders(req.Header)))
	}
	if t.config.LogRequestBody && req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		out.Body = io.NopCloser(bytes.NewReader(body))
		attrs = append(attrs, slog.String("body", truncate(body, t.config.MaxBodySize)))
	}
	t.logger.LogAttrs(ctx, slog.LevelInfo, "HTTP request started", attrs...)

	resp, err := t.transport.RoundTrip(out)
	duration := time.Since(start)

	if err != nil {
		t.logger.LogAttrs(ctx, slog.LevelError, "HTTP request failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, err
	}

	attrs = []slog.Attr{
		slog.String("request_id", requestID),
		slog.Int("status_code", resp.StatusCode),
		slog.Duration("duration", duration),
	}
	if t.config.LogHeaders {
		attrs = append(attrs, slog.Any("response_headers", redactHeaders(resp.Header)))
	}

	if t.config.LogResponseBody && resp.Body != nil {
		if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
			resp.Body = &streamingBodyLogger{
				body:      resp.Body,
				ctx:       ctx,
				logger:    t.logger,
				requestID: requestID,
			}
		} else {
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, err
			}
			resp.Body = io.NopCloser(bytes.NewReader(body))
			attrs = append(attrs, slog.String("response_body", truncate(body, t.config.MaxBodySize)))
		}
	}

	level := slog.LevelInfo
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	if resp.StatusCode >= 500 {
		level = slog.LevelError
	}
	t.logger.LogAttrs(ctx, level, "HTTP request completed", attrs...)

	return resp, nil
}

func redactHeaders(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, v := range h {
		if strings.EqualFold(k, "Authorization") {
			out[k] = []string{"[redacted]"}
			continue
		}
		out[k] = v
	}
	return out
}

func truncate(body []byte, limit int64) string {
	if int64(len(body)) > limit {
		return string(body[:limit])
	}
	return string(body)
}

// streamingBodyLogger logs each complete SSE line as the body is read.
type streamingBodyLogger struct {
	body      io.ReadCloser
	ctx       context.Context
	logger    *slog.Logger
	requestID string

	pending   []byte
	totalRead int64
}

func (s *streamingBodyLogger) Read(p []byte) (int, error) {
	n, err := s.body.Read(p)
	if n > 0 {
		s.totalRead += int64(n)
		s.pending = append(s.pending, p[:n]...)
		s.flush(false)
	}
	return n, err
}

func (s *streamingBodyLogger) flush(all bool) {
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}
		s.logLine(s.pending[:i])
		s.pending = s.pending[i+1:]
	}
	if all && len(s.pending) > 0 {
		s.logLine(s.pending)
		s.pending = nil
	}
}

func (s *streamingBodyLogger) logLine(raw []byte) {
	line := strings.TrimRight(string(raw), "\r")
	if line == "" {
		return
	}
	s.logger.LogAttrs(s.ctx, slog.LevelDebug, "HTTP streaming chunk",
		slog.String("request_id", s.requestID),
		slog.String("line", line),
		slog.Int64("bytes_read", s.totalRead))
}

func (s *streamingBodyLogger) Close() error {
	s.flush(true)
	s.logger.LogAttrs(s.ctx, slog.LevelInfo, "HTTP streaming body complete",
		slog.String("request_id", s.requestID),
		slog.Int64("total_bytes", s.totalRead))
	return s.body.Close()
}
