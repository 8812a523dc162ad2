package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"business_reviews/internal/domain"
	"business_reviews/internal/storage/memory"
)

func insert(t *testing.T, s *memory.Store, addrs ...string) {
	t.Helper()
	for _, a := range addrs {
		err := s.Atomically(context.Background(), func(tx domain.Tx) error {
			return tx.InsertBusiness(context.Background(), domain.NewBusiness(a, "n-"+a, "d"))
		})
		require.NoError(t, err)
	}
}

func TestStore_BusinessesAreOrdered(t *testing.T) {
	s := memory.New()
	insert(t, s, "c", "a", "d", "b")
	ctx := context.Background()

	n, err := s.CountBusinesses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	page, err := s.ListBusinesses(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Address)
	assert.Equal(t, "c", page[1].Address)

	from, err := s.ListBusinessesFrom(ctx, "bb", 10)
	require.NoError(t, err)
	require.Len(t, from, 2)
	assert.Equal(t, "c", from[0].Address)

	past, err := s.ListBusinesses(ctx, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestStore_InsertDuplicate(t *testing.T) {
	s := memory.New()
	insert(t, s, "a")
	err := s.Atomically(context.Background(), func(tx domain.Tx) error {
		return tx.InsertBusiness(context.Background(), domain.NewBusiness("a", "other", "other"))
	})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	b, err := s.GetBusiness(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "n-a", b.Name)
}

func TestStore_FailedCallbackCommitsNothing(t *testing.T) {
	s := memory.New()
	insert(t, s, "a")
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Atomically(ctx, func(tx domain.Tx) error {
		if err := tx.PutReview(ctx, domain.Review{Business: "a", Reviewer: "x", Rating: 3}); err != nil {
			return err
		}
		b, err := tx.GetBusiness(ctx, "a")
		if err != nil {
			return err
		}
		b.ReviewsCount = 1
		if err := tx.UpdateBusiness(ctx, b); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	b, err := s.GetBusiness(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, b.ReviewsCount)
	n, err := s.CountReviews(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_TxReadsItsOwnWrites(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	err := s.Atomically(ctx, func(tx domain.Tx) error {
		require.NoError(t, tx.InsertBusiness(ctx, domain.NewBusiness("a", "n", "d")))
		_, err := tx.GetBusiness(ctx, "a")
		require.NoError(t, err)

		r := domain.Review{Business: "a", Reviewer: "x", Weight: uint128.From64(5), TxIDs: []uint64{1}}
		require.NoError(t, tx.PutReview(ctx, r))
		got, err := tx.GetReview(ctx, "a", "x")
		require.NoError(t, err)
		assert.True(t, got.HasReceipt(1))
		return nil
	})
	require.NoError(t, err)

	rs, err := s.ListReviews(ctx, "a", 0, 10)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, uint128.From64(5), rs[0].Weight)
}

func TestStore_UpdateMissingBusiness(t *testing.T) {
	s := memory.New()
	err := s.Atomically(context.Background(), func(tx domain.Tx) error {
		return tx.UpdateBusiness(context.Background(), domain.NewBusiness("ghost", "n", "d"))
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ReviewsAreIsolatedCopies(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	insert(t, s, "a")
	require.NoError(t, s.Atomically(ctx, func(tx domain.Tx) error {
		return tx.PutReview(ctx, domain.Review{Business: "a", Reviewer: "x", TxIDs: []uint64{1}})
	}))

	rs, err := s.ListReviews(ctx, "a", 0, 1)
	require.NoError(t, err)
	rs[0].TxIDs[0] = 99

	again, err := s.ListReviewsFrom(ctx, "a", "", 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, again[0].TxIDs)
}
