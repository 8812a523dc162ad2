//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"lukechampine.com/uint128"

	"business_reviews/internal/domain"
	"business_reviews/internal/ledger"
	mysqlrepo "business_reviews/internal/storage/mysql"
)

// ---------- small helpers ----------

type fakeVerifier struct{ receipts map[uint64]domain.Receipt }

func (f fakeVerifier) Verify(ctx context.Context, q domain.ReceiptQuery) (domain.Receipt, error) {
	rc, ok := f.receipts[q.ID]
	if !ok {
		return domain.Receipt{}, domain.ErrNotFound
	}
	return rc, nil
}

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Skipf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/migrations)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB, dir string) {
	t.Helper()
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// startMySQL runs an isolated MySQL and returns a migrated connection.
func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=reviews",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "reviews")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db, dir)
	return db
}

// ---------- the test ----------

func TestRepo_MySQL(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	big, _ := uint128.FromString("170141183460469231731687303715884105727") // 2^127-1
	v := fakeVerifier{receipts: map[uint64]domain.Receipt{
		1: {ID: 1, Sender: "x", Receiver: "biz", Amount: uint128.From64(100)},
		2: {ID: 2, Sender: "y", Receiver: "biz", Amount: uint128.From64(50)},
		3: {ID: 3, Sender: "w", Receiver: "whale", Amount: big},
	}}
	l := ledger.New(repo, v)

	t.Run("register and conflict", func(t *testing.T) {
		if _, err := l.RegisterBusiness(ctx, domain.NewBusiness("biz", "Starbucks", "a place to eat")); err != nil {
			t.Fatalf("register: %v", err)
		}
		_, err := l.RegisterBusiness(ctx, domain.NewBusiness("biz", "Other", ""))
		if domain.KindOf(err) != domain.KindConflict {
			t.Fatalf("expected conflict, got %v", err)
		}
		b, found, err := l.Business(ctx, "biz")
		if err != nil || !found || b.Name != "Starbucks" {
			t.Fatalf("business: %+v %v %v", b, found, err)
		}
	})

	t.Run("weighted average scenario", func(t *testing.T) {
		for _, s := range []domain.Submission{
			{Business: "biz", Reviewer: "x", Rating: 5, ReceiptID: 1, Title: "great"},
			{Business: "biz", Reviewer: "y", Rating: 3, ReceiptID: 2, Title: "fine"},
			{Business: "biz", Reviewer: "x", Rating: 4, ReceiptID: 1, Title: "still good"},
		} {
			if _, err := l.SubmitReview(ctx, s); err != nil {
				t.Fatalf("submit %+v: %v", s, err)
			}
		}
		b, _, _ := l.Business(ctx, "biz")
		if b.AverageRating != 3666 || b.TotalWeight != uint128.From64(150) || b.ReviewsCount != 2 {
			t.Fatalf("aggregate: %+v", b)
		}
		rep, err := l.Audit(ctx, "biz")
		if err != nil || !rep.Consistent() {
			t.Fatalf("audit: %+v %v", rep, err)
		}
		page, err := l.PageReviews(ctx, "biz", domain.PageQuery{Limit: 10})
		if err != nil || page.Total != 2 || page.Items[0].Reviewer != "x" || page.Items[0].Title != "still good" {
			t.Fatalf("reviews: %+v %v", page, err)
		}
	})

	t.Run("128-bit weights round-trip", func(t *testing.T) {
		if _, err := l.RegisterBusiness(ctx, domain.NewBusiness("whale", "w", "")); err != nil {
			t.Fatalf("register: %v", err)
		}
		if _, err := l.SubmitReview(ctx, domain.Submission{Business: "whale", Reviewer: "w", Rating: 1, ReceiptID: 3}); err != nil {
			t.Fatalf("submit: %v", err)
		}
		b, _, _ := l.Business(ctx, "whale")
		if b.TotalWeight != big || b.AverageRating != 1000 {
			t.Fatalf("aggregate: %+v", b)
		}
	})

	t.Run("paging", func(t *testing.T) {
		for _, a := range []string{"a", "c"} {
			if _, err := l.RegisterBusiness(ctx, domain.NewBusiness(a, a, "")); err != nil {
				t.Fatalf("register: %v", err)
			}
		}
		// a, biz, c, whale
		page, err := l.PageBusinesses(ctx, domain.PageQuery{Start: 1, Limit: 2})
		if err != nil || page.Total != 4 || len(page.Items) != 2 || page.Items[0].Address != "biz" || page.Items[1].Address != "c" {
			t.Fatalf("offset page: %+v %v", page, err)
		}
		page, err = l.PageBusinesses(ctx, domain.PageQuery{From: "bz", Limit: 10})
		if err != nil || len(page.Items) != 2 || page.Items[0].Address != "c" {
			t.Fatalf("key page: %+v %v", page, err)
		}
	})

	t.Run("failed callback rolls back", func(t *testing.T) {
		boom := fmt.Errorf("boom")
		err := repo.Atomically(ctx, func(tx domain.Tx) error {
			if err := tx.InsertBusiness(ctx, domain.NewBusiness("ghost", "g", "")); err != nil {
				return err
			}
			return boom
		})
		if err != boom {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, err := repo.GetBusiness(ctx, "ghost"); err != domain.ErrNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("unchanged update is not a missing row", func(t *testing.T) {
		err := repo.Atomically(ctx, func(tx domain.Tx) error {
			b, err := tx.GetBusiness(ctx, "a")
			if err != nil {
				return err
			}
			return tx.UpdateBusiness(ctx, b)
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		err = repo.Atomically(ctx, func(tx domain.Tx) error {
			return tx.UpdateBusiness(ctx, domain.NewBusiness("nope", "n", ""))
		})
		if err != domain.ErrNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestRepo_MySQL_ConcurrentSubmissions(t *testing.T) {
	db := startMySQL(t)
	ctx := context.Background()

	const n = 8
	v := fakeVerifier{receipts: map[uint64]domain.Receipt{}}
	for i := 0; i < n; i++ {
		v.receipts[uint64(i+1)] = domain.Receipt{ID: uint64(i + 1), Sender: fmt.Sprintf("r%d", i), Receiver: "biz", Amount: uint128.From64(10)}
	}
	l := ledger.New(mysqlrepo.New(db), v)
	if _, err := l.RegisterBusiness(ctx, domain.NewBusiness("biz", "n", "")); err != nil {
		t.Fatalf("register: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.SubmitReview(ctx, domain.Submission{Business: "biz", Reviewer: fmt.Sprintf("r%d", i), Rating: 4, ReceiptID: uint64(i + 1)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	b, _, _ := l.Business(ctx, "biz")
	if b.ReviewsCount != n || b.TotalWeight != uint128.From64(10*n) || b.AverageRating != 4000 {
		t.Fatalf("lost update: %+v", b)
	}
}
