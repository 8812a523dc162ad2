package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"business_reviews/internal/domain"
	"business_reviews/internal/ledger"
)

const businessesGenKey = "businesses:gen"

func businessGenKey(address string) string { return "business:" + address + ":gen" }
func businessKey(address string, gen int64) string {
	return fmt.Sprintf("business:%s:%d", address, gen)
}
func reviewsGenKey(address string) string { return "reviews:" + address + ":gen" }
func pageKeyPart(q domain.PageQuery) string { return fmt.Sprintf("%d:%d:%s", q.Start, q.Limit, q.From) }

type QueryService struct {
	ledger      *ledger.Ledger
	cache       domain.Cache
	cacheTTL    time.Duration
	maxPageSize int
}

// NewQueryService wires the read path. A nil cache reads straight through;
// maxPageSize <= 0 leaves page sizes uncapped.
func NewQueryService(l *ledger.Ledger, c domain.Cache, ttl time.Duration, maxPageSize int) *QueryService {
	return &QueryService{ledger: l, cache: c, cacheTTL: ttl, maxPageSize: maxPageSize}
}

func (s *QueryService) GetSingleBusiness(ctx context.Context, address string) (domain.SingleBusiness, error) {
	// the generation is read before the load so a view loaded ahead of a
	// concurrent write lands under a retired key
	key := businessKey(address, s.generation(ctx, businessGenKey(address)))
	var out domain.SingleBusiness
	if s.cacheGet(ctx, key, &out) {
		return out, nil
	}
	b, found, err := s.ledger.Business(ctx, address)
	if err != nil {
		return domain.SingleBusiness{}, err
	}
	out = singleBusiness(b, found)
	if found {
		s.cacheSet(ctx, key, out)
	}
	return out, nil
}

func (s *QueryService) GetBusinesses(ctx context.Context, q domain.PageQuery) (domain.BusinessesPage, error) {
	q = s.clamp(q)
	key := fmt.Sprintf("businesses:%d:%s", s.generation(ctx, businessesGenKey), pageKeyPart(q))
	var out domain.BusinessesPage
	if s.cacheGet(ctx, key, &out) {
		return out, nil
	}
	res, err := s.ledger.PageBusinesses(ctx, q)
	if err != nil {
		return domain.BusinessesPage{}, err
	}
	out = domain.BusinessesPage{Items: res.Items, Total: res.Total}
	s.cacheSet(ctx, key, out)
	return out, nil
}

// GetReviewsOnBusiness pages the public review views. An unregistered
// business has no reviews and yields an empty page.
func (s *QueryService) GetReviewsOnBusiness(ctx context.Context, address string, q domain.PageQuery) (domain.ReviewsPage, error) {
	q = s.clamp(q)
	key := fmt.Sprintf("reviews:%s:%d:%s", address, s.generation(ctx, reviewsGenKey(address)), pageKeyPart(q))
	var out domain.ReviewsPage
	if s.cacheGet(ctx, key, &out) {
		return out, nil
	}
	res, err := s.ledger.PageReviews(ctx, address, q)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	out = domain.ReviewsPage{Items: res.Items, Total: res.Total}
	s.cacheSet(ctx, key, out)
	return out, nil
}

func (s *QueryService) clamp(q domain.PageQuery) domain.PageQuery {
	if s.maxPageSize > 0 && q.Limit > s.maxPageSize {
		q.Limit = s.maxPageSize
	}
	return q
}

// generation returns 0 when the key was never bumped or the cache is down.
func (s *QueryService) generation(ctx context.Context, key string) int64 {
	var gen int64
	s.cacheGet(ctx, key, &gen)
	return gen
}

func (s *QueryService) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return false
	}
	return ok
}

func (s *QueryService) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds())); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
