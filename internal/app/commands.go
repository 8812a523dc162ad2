package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"business_reviews/internal/adapters/observability"
	"business_reviews/internal/domain"
	"business_reviews/internal/ledger"
)

type CommandService struct {
	ledger *ledger.Ledger
	cache  domain.Cache
	events domain.EventPublisher
	now    func() time.Time
}

// NewCommandService wires the write path. cache and events may be nil.
func NewCommandService(l *ledger.Ledger, cache domain.Cache, events domain.EventPublisher) *CommandService {
	return &CommandService{ledger: l, cache: cache, events: events, now: time.Now}
}

func (s *CommandService) RegisterBusiness(ctx context.Context, address, name, description string) (domain.RegistrationResult, error) {
	b, err := s.ledger.RegisterBusiness(ctx, domain.NewBusiness(address, name, description))
	if err != nil {
		logFailure(err, "register business", address, "")
		return domain.RegistrationResult{}, err
	}
	observability.ObserveRegistration()
	log.Info().Str("address", b.Address).Str("name", b.Name).Msg("business registered")

	// committed; a client that went away must not stop the follow-up
	ctx = context.WithoutCancel(ctx)
	s.bumpGeneration(ctx, businessesGenKey)
	s.publish(ctx, EventBusinessRegistered, b.Address, businessRegistered(b))

	return registrationResult(b), nil
}

// ReviewBusiness runs one submission through the ledger. Cache eviction and
// the event happen after commit and never fail the call.
func (s *CommandService) ReviewBusiness(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error) {
	out, err := s.ledger.SubmitReview(ctx, sub)
	if err != nil {
		observability.ObserveSubmissionFailure(string(domain.KindOf(err)))
		logFailure(err, "review business", sub.Business, sub.Reviewer)
		return domain.SubmissionResult{}, err
	}
	observability.ObserveSubmission(out.Label())
	log.Info().
		Str("address", sub.Business).
		Str("reviewer", sub.Reviewer).
		Str("outcome", out.Label()).
		Str("added_weight", out.AddedWeight.String()).
		Uint64("average_rating", out.Business.AverageRating).
		Msg("review submitted")

	ctx = context.WithoutCancel(ctx)
	s.invalidateBusiness(ctx, sub.Business)
	s.bumpGeneration(ctx, reviewsGenKey(sub.Business))
	s.bumpGeneration(ctx, businessesGenKey)
	s.publish(ctx, EventReviewSubmitted, sub.Business, reviewSubmitted(sub, out))

	return submissionResult(out), nil
}

// invalidateBusiness moves the business view to a new generation, then drops
// the entry cached under the old one. A reader still holding the old
// generation can only write back to a key nobody reads anymore.
func (s *CommandService) invalidateBusiness(ctx context.Context, address string) {
	if s.cache == nil {
		return
	}
	genKey := businessGenKey(address)
	var old int64
	if _, err := s.cache.Get(ctx, genKey, &old); err != nil {
		log.Warn().Err(err).Str("address", address).Msg("cache generation read failed")
	}
	s.bumpGeneration(ctx, genKey)
	if err := s.cache.Del(ctx, businessKey(address, old)); err != nil {
		log.Warn().Err(err).Str("address", address).Msg("cache invalidation failed")
	}
}

// bumpGeneration retires every page cached under the old generation.
func (s *CommandService) bumpGeneration(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, s.now().UnixNano(), 0); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache generation bump failed")
	}
}

func (s *CommandService) publish(ctx context.Context, eventType, aggregateID string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, aggregateID, data); err != nil {
		log.Warn().Err(err).Str("event", eventType).Str("aggregate", aggregateID).Msg("event publish failed")
	}
}

func logFailure(err error, op, address, reviewer string) {
	ev := log.Debug()
	if domain.KindOf(err) == domain.KindFatal {
		ev = log.Error()
	}
	ev.Err(err).
		Str("op", op).
		Str("kind", string(domain.KindOf(err))).
		Str("address", address).
		Str("reviewer", reviewer).
		Msg("command rejected")
}
