package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"coach-service/internal/models"
)

// DispatchService sends best-effort notifications to the external workflow
// engine. Dispatch returns before the network call resolves; the timeout
// only bounds resource usage. Loss of a notification is accepted — there is
// no retry and no outbox.
type DispatchService struct {
	engineURL string
	timeout   time.Duration
	client    *http.Client
	logger    *zap.Logger

	inflight sync.WaitGroup
}

func NewDispatchService(engineURL string, timeout time.Duration, logger *zap.Logger) *DispatchService {
	return &DispatchService{
		engineURL: engineURL,
		timeout:   timeout,
		client:    &http.Client{},
		logger:    logger,
	}
}

// Enabled reports whether an engine endpoint is configured.
func (s *DispatchService) Enabled() bool {
	return s.engineURL != ""
}

// Dispatch fires the envelope toward the engine on a detached goroutine and
// returns immediately. Errors are logged, never propagated: the HTTP
// response that triggered this is independent of the outcome.
func (s *DispatchService) Dispatch(envelope models.DispatchEnvelope) {
	if !s.Enabled() {
		s.logger.Debug("Dispatch skipped: no engine endpoint configured",
			zap.String("request_type", envelope.RequestType))
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.send(envelope)
	}()
}

func (s *DispatchService) send(envelope models.DispatchEnvelope) {
	body, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Error("Failed to encode dispatch envelope",
			zap.String("request_type", envelope.RequestType),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.engineURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("Failed to build dispatch request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("Dispatch to workflow engine failed",
			zap.String("request_type", envelope.RequestType),
			zap.Duration("latency", time.Since(started)),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	s.logger.Debug("Dispatch delivered",
		zap.String("request_type", envelope.RequestType),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)))
}

// Wait blocks until in-flight dispatches settle. Shutdown and test hook.
func (s *DispatchService) Wait() {
	s.inflight.Wait()
}
