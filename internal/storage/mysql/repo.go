package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"lukechampine.com/uint128"

	"business_reviews/internal/domain"
)

const errDupEntry = 1062

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Repo is a domain.Store over MySQL. Weights are DECIMAL(39,0) columns so
// the full unsigned 128-bit range round-trips.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Atomically runs fn in one transaction. Rows read through the Tx are
// locked with FOR UPDATE, so concurrent submissions on the same business
// serialize on its row.
func (r *Repo) Atomically(ctx context.Context, fn func(tx domain.Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&tx{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repo) GetBusiness(ctx context.Context, address string) (domain.Business, error) {
	return scanBusiness(r.db.QueryRowContext(ctx, getBusinessSQL, address))
}

func (r *Repo) CountBusinesses(ctx context.Context) (int, error) {
	return count(ctx, r.db, countBusinessesSQL)
}

func (r *Repo) ListBusinesses(ctx context.Context, offset, limit int) ([]domain.Business, error) {
	return listBusinesses(ctx, r.db, listBusinessesSQL, limit, offset)
}

func (r *Repo) ListBusinessesFrom(ctx context.Context, fromAddress string, limit int) ([]domain.Business, error) {
	return listBusinesses(ctx, r.db, listBusinessesFromSQL, fromAddress, limit)
}

func (r *Repo) CountReviews(ctx context.Context, business string) (int, error) {
	return count(ctx, r.db, countReviewsSQL, business)
}

func (r *Repo) ListReviews(ctx context.Context, business string, offset, limit int) ([]domain.Review, error) {
	return listReviews(ctx, r.db, listReviewsSQL, business, limit, offset)
}

func (r *Repo) ListReviewsFrom(ctx context.Context, business, fromReviewer string, limit int) ([]domain.Review, error) {
	return listReviews(ctx, r.db, listReviewsFromSQL, business, fromReviewer, limit)
}

// -----------------------------------------------------------------------------
// transaction view
// -----------------------------------------------------------------------------

type tx struct{ q querier }

func (t *tx) GetBusiness(ctx context.Context, address string) (domain.Business, error) {
	return scanBusiness(t.q.QueryRowContext(ctx, lockBusinessSQL, address))
}

func (t *tx) InsertBusiness(ctx context.Context, b domain.Business) error {
	_, err := t.q.ExecContext(ctx, insertBusinessSQL,
		b.Address,
		b.Name,
		b.Description,
		b.AverageRating,
		b.ReviewsCount,
		b.TotalWeight.String(),
	)
	var me *driver.MySQLError
	if errors.As(err, &me) && me.Number == errDupEntry {
		return domain.ErrDuplicate
	}
	return err
}

func (t *tx) UpdateBusiness(ctx context.Context, b domain.Business) error {
	res, err := t.q.ExecContext(ctx, updateBusinessSQL,
		b.Name,
		b.Description,
		b.AverageRating,
		b.ReviewsCount,
		b.TotalWeight.String(),
		b.Address,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// MySQL reports changed rows, not matched ones: an update that writes the
	// same values affects nothing. Tell that apart from a missing row.
	var one int
	err = t.q.QueryRowContext(ctx, businessExistsSQL, b.Address).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func (t *tx) GetReview(ctx context.Context, business, reviewer string) (domain.Review, error) {
	return scanReview(t.q.QueryRowContext(ctx, lockReviewSQL, business, reviewer))
}

func (t *tx) PutReview(ctx context.Context, r domain.Review) error {
	ids := r.TxIDs
	if ids == nil {
		ids = []uint64{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = t.q.ExecContext(ctx, upsertReviewSQL,
		r.Business,
		r.Reviewer,
		r.Title,
		r.Content,
		r.Rating,
		r.Weight.String(),
		string(idsJSON),
		r.LastUpdate.UTC(),
	)
	return err
}

// -----------------------------------------------------------------------------
// scanning
// -----------------------------------------------------------------------------

func count(ctx context.Context, q querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanBusiness(s scanner) (domain.Business, error) {
	var (
		b      domain.Business
		weight string
	)
	err := s.Scan(&b.Address, &b.Name, &b.Description, &b.AverageRating, &b.ReviewsCount, &weight)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Business{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Business{}, err
	}
	if b.TotalWeight, err = parseWeight(weight); err != nil {
		return domain.Business{}, domain.Fatal("corrupt total_weight for "+b.Address, err)
	}
	return b, nil
}

func scanReview(s scanner) (domain.Review, error) {
	var (
		r       domain.Review
		weight  string
		txIDs   []byte
		updated time.Time
	)
	err := s.Scan(&r.Business, &r.Reviewer, &r.Title, &r.Content, &r.Rating, &weight, &txIDs, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Review{}, err
	}
	if r.Weight, err = parseWeight(weight); err != nil {
		return domain.Review{}, domain.Fatal("corrupt weight for "+r.Business+"/"+r.Reviewer, err)
	}
	if err := json.Unmarshal(txIDs, &r.TxIDs); err != nil {
		return domain.Review{}, domain.Fatal("corrupt tx_ids for "+r.Business+"/"+r.Reviewer, err)
	}
	r.LastUpdate = updated.UTC()
	return r, nil
}

// parseWeight reads a DECIMAL(39,0) column. Some server modes render a
// trailing ".0"; anything else non-integral is rejected.
func parseWeight(s string) (uint128.Uint128, error) {
	if i := len(s) - 2; i > 0 && s[i:] == ".0" {
		s = s[:i]
	}
	return uint128.FromString(s)
}

func listBusinesses(ctx context.Context, q querier, query string, args ...any) ([]domain.Business, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func listReviews(ctx context.Context, q querier, query string, args ...any) ([]domain.Review, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
