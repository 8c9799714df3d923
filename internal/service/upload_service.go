package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fieldintake/internal/cache"
	"fieldintake/internal/config"
	"fieldintake/internal/model"
	"fieldintake/internal/repository"
)

var (
	ErrUnitNotFound    = errors.New("upload unit not found")
	ErrAttemptInFlight = errors.New("upload attempt already in flight")
)

// EntityTypeSurvey is the entity type for serialized interview sessions.
const EntityTypeSurvey = "survey"

// staleUploadingAfter bounds how long a unit may sit in uploading before a
// sweep assumes its attempt died and returns it to the retry pool. Attempts
// themselves are bounded by the connect and read timeouts, so anything this
// old is stranded.
const staleUploadingAfter = 10 * time.Minute

// Broadcaster pushes upload status transitions to connected dashboards.
// Implemented by ws.Hub.
type Broadcaster interface {
	BroadcastUploadStatus(unit *model.UploadUnit)
}

// RetryResult is the per-entity outcome of one sweep.
type RetryResult struct {
	EntityID string             `json:"entityId"`
	Outcome  model.OutcomeClass `json:"outcome,omitempty"`
	Message  string             `json:"message,omitempty"`
	Skipped  bool               `json:"skipped"`
	Reason   string             `json:"reason,omitempty"`
}

// UploadService owns UploadUnit lifecycle: enqueueing completed sessions,
// attempting delivery with backoff, and sweeping retryable units. A periodic
// trigger and an immediate trigger both funnel into Attempt, so there is one
// code path for what happens when an attempt finishes.
type UploadService struct {
	cfg    *config.SyncConfig
	client *UploadClient
	repo   repository.UploadUnitRepo
	locks  cache.UploadLockCache
	device DeviceInfo

	broadcaster Broadcaster

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewUploadService creates a new upload service
func NewUploadService(cfg *config.SyncConfig, client *UploadClient, repo repository.UploadUnitRepo, locks cache.UploadLockCache, device DeviceInfo) *UploadService {
	return &UploadService{
		cfg:    cfg,
		client: client,
		repo:   repo,
		locks:  locks,
		device: device,
	}
}

// SetBroadcaster injects the dashboard broadcaster (ws.Hub implements it)
func (s *UploadService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// EnqueueSurvey serializes a completed survey, stores its upload unit and
// fires the immediate trigger. Implements SnapshotSink.
func (s *UploadService) EnqueueSurvey(ctx context.Context, survey *model.Survey) error {
	payload, err := json.Marshal(BuildUploadPayload(survey, s.device))
	if err != nil {
		return fmt.Errorf("serialize survey %s: %w", survey.ID, err)
	}

	if err := s.Enqueue(ctx, survey.ID, EntityTypeSurvey, payload); err != nil {
		return err
	}

	s.TriggerImmediate(survey.ID)
	return nil
}

// Enqueue creates or overwrites the pending unit for an entity.
func (s *UploadService) Enqueue(ctx context.Context, entityID, entityType string, payload []byte) error {
	unit := &model.UploadUnit{
		EntityID:   entityID,
		EntityType: entityType,
		Status:     model.UploadStatusPending,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Upsert(ctx, unit); err != nil {
		return fmt.Errorf("enqueue %s: %w", entityID, err)
	}

	log.Printf("[Sync] enqueued %s %s", entityType, entityID)
	s.notify(unit)
	return nil
}

// Attempt delivers one unit. Completed units are a no-op success; at most
// one attempt per entity is in flight at any time.
func (s *UploadService) Attempt(ctx context.Context, entityID string) (*model.UploadOutcome, error) {
	unit, err := s.repo.GetByEntityID(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("load unit %s: %w", entityID, err)
	}
	if unit == nil {
		return nil, ErrUnitNotFound
	}

	// Re-delivery of a completed unit is safe to skip entirely.
	if unit.Status == model.UploadStatusCompleted {
		return &model.UploadOutcome{Class: model.OutcomeSuccess, Duplicate: true}, nil
	}

	if !s.client.IsConfigured() {
		outcome := &model.UploadOutcome{
			Class:   model.OutcomeConfigError,
			Message: "upload endpoint or token not configured",
		}
		s.recordFailure(ctx, entityID, outcome)
		return outcome, nil
	}

	acquired, err := s.locks.Acquire(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", entityID, err)
	}
	if !acquired {
		return nil, ErrAttemptInFlight
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), entityID); err != nil {
			log.Printf("[Sync] lock release failed for %s: %v", entityID, err)
		}
	}()

	eligible, err := s.repo.MarkUploading(ctx, entityID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mark uploading %s: %w", entityID, err)
	}
	if !eligible {
		// Lost the transition despite holding the lock; the unit either
		// completed meanwhile or is mid-cycle from a crashed attempt.
		current, err := s.repo.GetByEntityID(ctx, entityID)
		if err == nil && current != nil && current.Status == model.UploadStatusCompleted {
			return &model.UploadOutcome{Class: model.OutcomeSuccess, Duplicate: true}, nil
		}
		return nil, ErrAttemptInFlight
	}

	outcome := s.client.Upload(ctx, unit.Payload)

	if outcome.Class == model.OutcomeSuccess {
		now := time.Now().UTC()
		if err := s.repo.MarkCompleted(ctx, entityID, now); err != nil {
			return nil, fmt.Errorf("mark completed %s: %w", entityID, err)
		}
		if outcome.Duplicate {
			log.Printf("[Sync] %s already on server, marked completed", entityID)
		} else {
			log.Printf("[Sync] uploaded %s (attempt %d)", entityID, unit.AttemptCount+1)
		}
		s.notifyEntity(ctx, entityID)
		return outcome, nil
	}

	s.recordFailure(ctx, entityID, outcome)
	return outcome, nil
}

// RetryPending sweeps every unit awaiting delivery, honoring per-class retry
// policy and exponential backoff, and returns per-entity results so the
// caller can tally successes and failures.
func (s *UploadService) RetryPending(ctx context.Context) ([]RetryResult, error) {
	now := time.Now().UTC()

	if reset, err := s.repo.ResetStaleUploading(ctx, now.Add(-staleUploadingAfter)); err != nil {
		log.Printf("[Sync] stale uploading reset failed: %v", err)
	} else if reset > 0 {
		log.Printf("[Sync] returned %d stranded units to the retry pool", reset)
	}

	units, err := s.repo.ListRetryable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list retryable: %w", err)
	}

	results := make([]RetryResult, 0, len(units))
	eligible := make([]*model.UploadUnit, 0, len(units))

	for _, unit := range units {
		if unit.LastOutcome != "" && unit.LastOutcome != model.OutcomeSuccess && !unit.LastOutcome.Retryable() {
			results = append(results, RetryResult{
				EntityID: unit.EntityID,
				Outcome:  unit.LastOutcome,
				Skipped:  true,
				Reason:   "not retried",
			})
			continue
		}
		if unit.LastAttemptAt != nil {
			delay := s.backoffDelay(unit.AttemptCount)
			if since := now.Sub(*unit.LastAttemptAt); since < delay {
				results = append(results, RetryResult{
					EntityID: unit.EntityID,
					Skipped:  true,
					Reason:   fmt.Sprintf("backoff, next attempt in %s", (delay - since).Round(time.Second)),
				})
				continue
			}
		}
		eligible = append(eligible, unit)
	}

	// Different entities may upload concurrently up to the worker bound;
	// the per-entity lock inside Attempt keeps each entity serialized.
	maxWorkers := s.cfg.MaxConcurrent
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	sem := make(chan struct{}, maxWorkers)

	var wg sync.WaitGroup
	var resultsMu sync.Mutex
	for _, unit := range eligible {
		wg.Add(1)
		sem <- struct{}{}
		go func(entityID string) {
			defer wg.Done()
			defer func() { <-sem }()

			result := RetryResult{EntityID: entityID}
			outcome, err := s.Attempt(ctx, entityID)
			switch {
			case errors.Is(err, ErrAttemptInFlight):
				result.Skipped = true
				result.Reason = "attempt in flight"
			case err != nil:
				result.Outcome = model.OutcomeUnknownError
				result.Message = err.Error()
			default:
				result.Outcome = outcome.Class
				result.Message = outcome.Message
			}

			resultsMu.Lock()
			results = append(results, result)
			resultsMu.Unlock()
		}(unit.EntityID)
	}
	wg.Wait()

	return results, nil
}

// Cleanup purges completed units older than the retention window.
func (s *UploadService) Cleanup(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.cfg.Retention)
	deleted, err := s.repo.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	if deleted > 0 {
		log.Printf("[Sync] purged %d completed units older than %s", deleted, s.cfg.Retention)
	}
	return nil
}

// StartPeriodic registers the periodic trigger. Re-registering while a
// schedule is running is a no-op, so duplicate schedules cannot exist.
func (s *UploadService) StartPeriodic() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.runPeriodic(ctx)
	log.Printf("[Sync] periodic trigger registered, interval %s", s.cfg.PeriodicInterval)
}

// StopPeriodic cancels the periodic trigger.
func (s *UploadService) StopPeriodic() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// TriggerImmediate fires one asynchronous attempt for an entity, or a full
// sweep when entityID is empty.
func (s *UploadService) TriggerImmediate(entityID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ReadTimeout+s.cfg.ConnectTimeout)
		defer cancel()

		if entityID == "" {
			s.sweep(ctx)
			return
		}

		outcome, err := s.Attempt(ctx, entityID)
		if err != nil {
			if !errors.Is(err, ErrAttemptInFlight) {
				log.Printf("[Sync] immediate attempt for %s failed: %v", entityID, err)
			}
			return
		}
		if outcome.Class != model.OutcomeSuccess {
			log.Printf("[Sync] immediate attempt for %s: %s", entityID, outcome.Class)
		}
	}()
}

func (s *UploadService) runPeriodic(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PeriodicInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Sync] periodic trigger cancelled")
			return
		case <-ticker.C:
			s.sweep(ctx)
			if err := s.Cleanup(ctx); err != nil {
				log.Printf("[Sync] %v", err)
			}
		}
	}
}

func (s *UploadService) sweep(ctx context.Context) {
	results, err := s.RetryPending(ctx)
	if err != nil {
		log.Printf("[Sync] sweep failed: %v", err)
		return
	}

	var succeeded, failed, skipped int
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
		case r.Outcome == model.OutcomeSuccess:
			succeeded++
		default:
			failed++
		}
	}
	if len(results) > 0 {
		log.Printf("[Sync] sweep: %d uploaded, %d failed, %d skipped", succeeded, failed, skipped)
	}
}

func (s *UploadService) recordFailure(ctx context.Context, entityID string, outcome *model.UploadOutcome) {
	if err := s.repo.MarkFailed(ctx, entityID, outcome.Class, outcome.Message, time.Now().UTC()); err != nil {
		log.Printf("[Sync] mark failed errored for %s: %v", entityID, err)
		return
	}
	log.Printf("[Sync] attempt for %s failed: %s: %s", entityID, outcome.Class, outcome.Message)
	s.notifyEntity(ctx, entityID)
}

func (s *UploadService) backoffDelay(attemptCount int) time.Duration {
	exp := attemptCount
	if exp > s.cfg.BackoffMaxExponent {
		exp = s.cfg.BackoffMaxExponent
	}
	return s.cfg.BackoffBase * time.Duration(1<<exp)
}

func (s *UploadService) notifyEntity(ctx context.Context, entityID string) {
	if s.broadcaster == nil {
		return
	}
	unit, err := s.repo.GetByEntityID(ctx, entityID)
	if err != nil || unit == nil {
		return
	}
	s.notify(unit)
}

func (s *UploadService) notify(unit *model.UploadUnit) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastUploadStatus(unit)
	}
}
