package httpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	server "business_reviews/internal/adapters/http_server"
	"business_reviews/internal/app"
	"business_reviews/internal/domain"
	"business_reviews/internal/ledger"
	"business_reviews/internal/storage/memory"
)

const secret = "test-secret"

type fakeVerifier map[uint64]domain.Receipt

func (f fakeVerifier) Verify(ctx context.Context, q domain.ReceiptQuery) (domain.Receipt, error) {
	rc, ok := f[q.ID]
	if !ok {
		return domain.Receipt{}, domain.ErrNotFound
	}
	return rc, nil
}

func newServer(t *testing.T) http.Handler {
	t.Helper()
	v := fakeVerifier{
		1: {ID: 1, Sender: "x", Receiver: "biz", Amount: uint128.From64(100)},
		2: {ID: 2, Sender: "y", Receiver: "biz", Amount: uint128.From64(50)},
		3: {ID: 3, Sender: "x", Receiver: "elsewhere", Amount: uint128.From64(1)},
	}
	l := ledger.New(memory.New(), v)
	srv := server.New(secret)
	srv.MountHandlers(&server.Handlers{
		Q: app.NewQueryService(l, nil, time.Minute, 50),
		C: app.NewCommandService(l, nil, nil),
	})
	return srv.Mux()
}

func token(t *testing.T, sub, key string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := tok.SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func register(t *testing.T, h http.Handler, address string) {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/businesses", `{"address":"`+address+`","name":"Starbucks","description":"a place to eat"}`, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestHealthz(t *testing.T) {
	rr := do(t, newServer(t), http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestRegisterBusiness(t *testing.T) {
	h := newServer(t)

	rr := do(t, h, http.MethodPost, "/v1/businesses", `{"address":"biz","name":"Starbucks","description":"a place to eat"}`, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "/v1/businesses/biz", rr.Header().Get("Location"))
	res := decode[domain.RegistrationResult](t, rr)
	assert.Equal(t, "successfully registered business", res.Status)
	assert.Equal(t, "0", res.Business.TotalWeight)

	rr = do(t, h, http.MethodPost, "/v1/businesses", `{"address":"biz","name":"Other"}`, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestRegisterBusiness_Validation(t *testing.T) {
	h := newServer(t)
	cases := []struct {
		name, body, detail string
	}{
		{"long name", `{"address":"a","name":"NameIs21Characters..."}`, "Name length can't be bigger than 20"},
		{"long description", `{"address":"a","name":"n","description":"DescriptionIs43CharactersLongWhichIsTooMuch"}`, "Description length can't be bigger than 40"},
		{"missing name", `{"address":"a"}`, "field 'name' is required"},
		{"unknown field", `{"address":"a","name":"n","owner":"me"}`, "unknown field"},
		{"not json", `nope`, "decode request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/businesses", tc.body, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.detail)
		})
	}
}

func TestGetBusiness(t *testing.T) {
	h := newServer(t)

	rr := do(t, h, http.MethodGet, "/v1/businesses/biz", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	absent := decode[domain.SingleBusiness](t, rr)
	assert.Nil(t, absent.Business)
	assert.Equal(t, "no business registered at that address", absent.Status)

	register(t, h, "biz")
	rr = do(t, h, http.MethodGet, "/v1/businesses/biz", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[domain.SingleBusiness](t, rr)
	require.NotNil(t, got.Business)
	assert.Equal(t, "Starbucks", got.Business.Name)

	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)
	req := httptest.NewRequest(http.MethodGet, "/v1/businesses/biz", nil)
	req.Header.Set("If-None-Match", etag)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotModified, rr.Code)
}

func TestReviewFlow(t *testing.T) {
	h := newServer(t)
	register(t, h, "biz")
	tx, ty := token(t, "x", secret), token(t, "y", secret)

	rr := do(t, h, http.MethodPost, "/v1/businesses/biz/reviews", `{"title":"great","content":"coffee","rating":5,"receipt_id":1}`, tx)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/v1/businesses/biz/reviews", `{"title":"ok","content":"meh","rating":3,"receipt_id":2,"page":0,"page_size":20,"viewing_key":"vk"}`, ty)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decode[domain.SubmissionResult](t, rr)
	assert.Equal(t, uint64(4333), res.Business.AverageRating)
	assert.Equal(t, "150", res.Business.TotalWeight)

	rr = do(t, h, http.MethodPost, "/v1/businesses/biz/reviews", `{"title":"good","content":"fine","rating":4,"receipt_id":1}`, tx)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res = decode[domain.SubmissionResult](t, rr)
	assert.False(t, res.NewReview)
	assert.Equal(t, "updated_reused", res.Outcome)
	assert.Equal(t, uint64(3666), res.Business.AverageRating)

	rr = do(t, h, http.MethodGet, "/v1/businesses/biz/reviews?start=0&page_size=1", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[domain.ReviewsPage](t, rr)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "x", page.Items[0].Reviewer)
	assert.Equal(t, "good", page.Items[0].Title)
	assert.NotContains(t, rr.Body.String(), "weight")
	assert.NotContains(t, rr.Body.String(), "tx_ids")
}

func TestReviewBusiness_Errors(t *testing.T) {
	h := newServer(t)
	register(t, h, "biz")
	tx := token(t, "x", secret)

	cases := []struct {
		name, path, body, bearer string
		status                   int
	}{
		{"no token", "/v1/businesses/biz/reviews", `{"rating":5,"receipt_id":1}`, "", http.StatusUnauthorized},
		{"bad signature", "/v1/businesses/biz/reviews", `{"rating":5,"receipt_id":1}`, token(t, "x", "other-secret"), http.StatusUnauthorized},
		{"missing rating", "/v1/businesses/biz/reviews", `{"receipt_id":1}`, tx, http.StatusBadRequest},
		{"rating out of range", "/v1/businesses/biz/reviews", `{"rating":6,"receipt_id":1}`, tx, http.StatusBadRequest},
		{"unregistered business", "/v1/businesses/nowhere/reviews", `{"rating":5,"receipt_id":1}`, tx, http.StatusNotFound},
		{"unknown receipt", "/v1/businesses/biz/reviews", `{"rating":5,"receipt_id":42}`, tx, http.StatusNotFound},
		{"receipt paid elsewhere", "/v1/businesses/biz/reviews", `{"rating":5,"receipt_id":3}`, tx, http.StatusForbidden},
		{"someone else's receipt", "/v1/businesses/biz/reviews", `{"rating":5,"receipt_id":2}`, tx, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, tc.path, tc.body, tc.bearer)
			assert.Equal(t, tc.status, rr.Code, rr.Body.String())
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		})
	}

	rr := do(t, h, http.MethodGet, "/v1/businesses/biz", "", "")
	got := decode[domain.SingleBusiness](t, rr)
	assert.Equal(t, "0", got.Business.TotalWeight)
	assert.Zero(t, got.Business.ReviewsCount)
}

func TestGetBusinesses_Paging(t *testing.T) {
	h := newServer(t)
	for _, a := range []string{"d", "b", "a", "c"} {
		register(t, h, a)
	}

	rr := do(t, h, http.MethodGet, "/v1/businesses?start=1&page_size=2", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[domain.BusinessesPage](t, rr)
	assert.Equal(t, 4, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "b", page.Items[0].Address)
	assert.Equal(t, "c", page.Items[1].Address)

	rr = do(t, h, http.MethodGet, "/v1/businesses?from=c", "", "")
	page = decode[domain.BusinessesPage](t, rr)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "c", page.Items[0].Address)

	rr = do(t, h, http.MethodGet, "/v1/businesses?start=9", "", "")
	page = decode[domain.BusinessesPage](t, rr)
	assert.Empty(t, page.Items)
	assert.Equal(t, 4, page.Total)

	for _, q := range []string{"start=-1", "page_size=abc"} {
		rr = do(t, h, http.MethodGet, "/v1/businesses?"+q, "", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}
