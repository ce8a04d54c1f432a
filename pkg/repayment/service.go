package repayment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inbucket/courier/pkg/extension"
	"github.com/inbucket/courier/pkg/extension/event"
	"github.com/inbucket/courier/pkg/ident"
	"github.com/inbucket/courier/pkg/metric"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/inbucket/courier/pkg/validation"
	"github.com/rs/zerolog/log"
)

var expCounters = metric.NewCounters("repayment",
	StatusSuccess, StatusPending, StatusFailed, "invalid", "stale_writes", "overridden")

// Manager is the interface controllers use to process repayments.
type Manager interface {
	Pay(ctx context.Context, req Request) (*Result, error)
	Get(ctx context.Context, entityID string) (*Record, error)
}

// Service processes repayments and persists entity metadata.
type Service struct {
	Store     Store
	Processor Processor
	Validator *validation.Validator
	IDs       *ident.Generator
	ExtHost   *extension.Host
	// Clock defaults to time.Now.
	Clock func() time.Time

	locks entityLocks
}

var _ Manager = &Service{}

// Pay validates req, charges it, and on success or pending stores its metadata.  Calls for the
// same entity are serialized; the stored record is only replaced when its modification time is
// not newer than the request's.
func (s *Service) Pay(ctx context.Context, req Request) (*Result, error) {
	slog := log.With().Str("module", "repayment").Str("entity", req.EntityID).Logger()
	if err := s.Validator.Validate(&req); err != nil {
		expCounters.Add("invalid", 1)
		return nil, err
	}
	if n := req.keywordsLength(); n > keywordsSoftLimit {
		slog.Warn().Int("length", n).Msgf("Keywords exceed recommended %d characters",
			keywordsSoftLimit)
	}

	unlock := s.locks.lock(req.EntityID)
	defer unlock()

	paymentID := s.IDs.PaymentID()
	ev := &event.Repayment{
		PaymentID:     paymentID,
		EntityID:      req.EntityID,
		EntityName:    req.EntityName,
		EntityGroupID: req.EntityGroupID,
		DisplayName:   req.DisplayName,
	}
	if req.RankingHint != nil {
		ev.RankingHint = *req.RankingHint
	}
	decision := s.charge(ctx, ev)
	now := s.now()

	prev, err := s.current(ctx, req.EntityID, now)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Status:      decision.Status,
		PaymentID:   paymentID,
		EntityID:    req.EntityID,
		ProcessedAt: now,
		Message:     decision.Message,
		Snapshot:    prev,
	}
	if decision.Status != StatusFailed {
		next := req.record(paymentID, now)
		if prev != nil && prev.newerThan(next) {
			slog.Debug().Msg("Stored metadata is newer, keeping it")
			expCounters.Add("stale_writes", 1)
		} else {
			if err := s.Store.Put(ctx, next); err != nil {
				return nil, fmt.Errorf("store repayment %s: %w", req.EntityID, err)
			}
			result.Snapshot = next.Clone()
		}
	}

	slog.Debug().Str("payment", paymentID).Str("status", result.Status).Msg("Repayment processed")
	expCounters.Add(result.Status, 1)
	ev.Status, ev.Message, ev.ProcessedAt = result.Status, result.Message, now
	s.ExtHost.Events.AfterRepaymentProcessed.Emit(ev)
	return result, nil
}

// Get returns the stored metadata for an entity.  Expired records are reported as not existing.
func (s *Service) Get(ctx context.Context, entityID string) (*Record, error) {
	r, err := s.current(ctx, entityID, s.now())
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, storage.ErrNotExist
	}
	return r, nil
}

// charge asks before-event listeners for a decision, falling back to the processor.
func (s *Service) charge(ctx context.Context, ev *event.Repayment) *event.PaymentDecision {
	slog := log.With().Str("module", "repayment").Str("payment", ev.PaymentID).Logger()
	if d := s.ExtHost.Events.BeforeRepaymentProcessed.Emit(ev); d != nil {
		if validStatus(d.Status) {
			expCounters.Add("overridden", 1)
			return d
		}
		slog.Warn().Str("status", d.Status).Msg("Ignoring extension decision with unknown status")
	}
	d, err := s.Processor.Charge(ctx, ev)
	switch {
	case err != nil:
		slog.Warn().Err(err).Msg("Payment processor failed")
		return &event.PaymentDecision{Status: StatusFailed, Message: err.Error()}
	case d == nil || !validStatus(d.Status):
		return &event.PaymentDecision{Status: StatusFailed, Message: "payment processor gave no result"}
	}
	return d
}

// current returns the unexpired stored record, or nil.
func (s *Service) current(ctx context.Context, entityID string, now time.Time) (*Record, error) {
	r, err := s.Store.Get(ctx, entityID)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load repayment %s: %w", entityID, err)
	}
	if r.Expired(now) {
		return nil, nil
	}
	return r, nil
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}
