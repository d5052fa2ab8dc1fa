package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/frahmantamala/medichat/internal/core/metrics"
	"github.com/frahmantamala/medichat/internal/llm"
)

// StreamErrorText replaces the rest of a reply that failed mid-stream.
const StreamErrorText = "An error occurred while processing your request"

const (
	outcomeCompleted = "completed"
	outcomeDegraded  = "degraded"
	outcomeCancelled = "cancelled"
)

// ResponseStream is the assistant reply for one request. A failure after
// generation started is turned into a final error chunk followed by io.EOF;
// cancellation by the caller is returned as is.
type ResponseStream struct {
	inner  llm.Stream
	userID string
	logger *slog.Logger

	mu     sync.Mutex
	done   bool
	failed bool
	once   sync.Once
}

func newResponseStream(inner llm.Stream, userID string, logger *slog.Logger) *ResponseStream {
	return &ResponseStream{inner: inner, userID: userID, logger: logger}
}

func (s *ResponseStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return "", io.EOF
	}

	chunk, err := s.inner.Recv()
	switch {
	case err == nil:
		return chunk, nil
	case errors.Is(err, io.EOF):
		s.finish(outcomeCompleted)
		return "", io.EOF
	case errors.Is(err, context.Canceled):
		s.finish(outcomeCancelled)
		return "", err
	default:
		s.logger.Error("chat stream failed",
			"user_id", s.userID,
			"error", err)
		s.failed = true
		s.finish(outcomeDegraded)
		return StreamErrorText, nil
	}
}

// Failed reports whether the reply was cut short by an error.
func (s *ResponseStream) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func (s *ResponseStream) Close() error {
	s.mu.Lock()
	if !s.done {
		s.finish(outcomeCancelled)
	}
	s.mu.Unlock()
	return s.inner.Close()
}

func (s *ResponseStream) finish(outcome string) {
	s.done = true
	s.once.Do(func() {
		metrics.ChatStreams.WithLabelValues(outcome).Inc()
	})
}
