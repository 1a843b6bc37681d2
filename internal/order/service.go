package order

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/logging"
)

// Recorder persists order runs.
type Recorder interface {
	Create(ctx context.Context, rec domain.OrderRecord) (*domain.OrderRecord, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, summary, errText string) error
}

// Update reports progress of a background run.
type Update struct {
	OrderID string
	Status  domain.OrderStatus
	Summary *Summary
	Error   string
}

// Service runs drafts and records each run.
type Service struct {
	runner *Runner
	rec    Recorder
	log    *logging.Logger
	wg     sync.WaitGroup
}

// NewService creates an order service. rec may be nil to skip persistence.
func NewService(runner *Runner, rec Recorder, log *logging.Logger) *Service {
	return &Service{runner: runner, rec: rec, log: log.Sub("order")}
}

// Run executes a draft synchronously and returns the run id and summary.
func (s *Service) Run(ctx context.Context, sessionID string, d *Draft) (string, *Summary, error) {
	id, err := s.create(ctx, sessionID, d)
	if err != nil {
		return "", nil, err
	}
	sum, err := s.execute(ctx, id, d, nil)
	return id, sum, err
}

// Start records the draft and executes it in the background. notify, when
// set, is called as the run moves to running and then to its final status.
func (s *Service) Start(ctx context.Context, sessionID string, d *Draft, notify func(Update)) (string, error) {
	id, err := s.create(ctx, sessionID, d)
	if err != nil {
		return "", err
	}
	d = d.Clone()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.execute(context.WithoutCancel(ctx), id, d, notify)
	}()
	return id, nil
}

// Wait blocks until background runs finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) create(ctx context.Context, sessionID string, d *Draft) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding draft: %w", err)
	}
	if s.rec == nil {
		return uuid.New().String(), nil
	}
	rec, err := s.rec.Create(ctx, domain.OrderRecord{SessionID: sessionID, Draft: string(data)})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (s *Service) execute(ctx context.Context, id string, d *Draft, notify func(Update)) (*Summary, error) {
	log := s.log.With("orderId", id)
	s.record(ctx, id, domain.OrderRunning, "", "")
	if notify != nil {
		notify(Update{OrderID: id, Status: domain.OrderRunning})
	}

	sum, err := s.runner.Process(ctx, d)
	if err != nil {
		log.Error().Err(err).Msg("order run failed")
		s.record(ctx, id, domain.OrderFailed, "", err.Error())
		if notify != nil {
			notify(Update{OrderID: id, Status: domain.OrderFailed, Error: err.Error()})
		}
		return nil, err
	}

	status := domain.OrderSucceeded
	if !sum.Success {
		status = domain.OrderFailed
	}
	data, _ := json.Marshal(sum)
	s.record(ctx, id, status, string(data), "")
	if notify != nil {
		notify(Update{OrderID: id, Status: status, Summary: sum})
	}
	return sum, nil
}

func (s *Service) record(ctx context.Context, id string, status domain.OrderStatus, summary, errText string) {
	if s.rec == nil {
		return
	}
	if err := s.rec.UpdateStatus(ctx, id, status, summary, errText); err != nil {
		s.log.Warn().Err(err).Str("orderId", id).Str("status", string(status)).Msg("failed to record order status")
	}
}
