package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"elasticpool/internal/model"
	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"
	"elasticpool/pkg/metrics"
)

var (
	// ErrInvalidSubmission is returned when a submission has no payload name
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrResultNotFound is returned when no result exists for a base id yet
	ErrResultNotFound = errors.New("result not found")
)

// IngressService stages payloads and enqueues them for workers
type IngressService struct {
	input    interfaces.BlobStore
	output   interfaces.BlobStore
	requests interfaces.QueueProvider
	metrics  *metrics.IngressMetrics
}

// NewIngressService creates a new ingress service, m may be nil
func NewIngressService(input, output interfaces.BlobStore, requests interfaces.QueueProvider, m *metrics.IngressMetrics) *IngressService {
	return &IngressService{
		input:    input,
		output:   output,
		requests: requests,
		metrics:  m,
	}
}

// Submit stages data under filename and enqueues the filename as a job.
// It returns the immediate acknowledgment line "<base_id>:Processing".
func (s *IngressService) Submit(ctx context.Context, filename string, data []byte) (string, error) {
	key, err := jobKey(filename)
	if err != nil {
		s.metrics.Submitted("rejected")
		return "", err
	}
	ctx = logger.WithTrace(ctx, key)

	if err := s.input.Put(ctx, key, data); err != nil {
		s.metrics.Submitted("failed")
		return "", fmt.Errorf("failed to stage payload: %w", err)
	}
	if err := s.requests.Send(ctx, key); err != nil {
		s.metrics.Submitted("failed")
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.metrics.Submitted("accepted")
	logger.InfoCtx(ctx, "job queued, %d bytes staged", len(data))
	return model.FormatResult(model.BaseID(key), model.ProcessingStatus), nil
}

// Result returns the published "<base_id>:<label>" line for baseID
func (s *IngressService) Result(ctx context.Context, baseID string) (string, error) {
	if baseID == "" || strings.ContainsAny(baseID, "/.") {
		return "", fmt.Errorf("%w: bad result id %q", ErrInvalidSubmission, baseID)
	}
	data, err := s.output.Get(ctx, baseID)
	if errors.Is(err, interfaces.ErrBlobNotFound) {
		return "", ErrResultNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read result: %w", err)
	}
	return string(data), nil
}

// jobKey reduces a client supplied filename to a bare object key
func jobKey(filename string) (string, error) {
	name := strings.TrimSpace(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" {
		return "", fmt.Errorf("%w: no filename provided", ErrInvalidSubmission)
	}
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("%w: bad filename %q", ErrInvalidSubmission, filename)
	}
	return name, nil
}
