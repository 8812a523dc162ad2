// Package receipts verifies review receipts against a token contract's
// transfer history. The history is paged per account; the caller's paging
// hint names the page expected to hold the receipt.
package receipts

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
	"lukechampine.com/uint128"

	"business_reviews/internal/adapters/observability"
	"business_reviews/internal/domain"
)

const (
	service  = "receipts"
	endpoint = "transfer_history"
)

var (
	errRejectedKey = errors.New("receipts: viewing key rejected")
	errNotFound    = fmt.Errorf("receipts: %w", domain.ErrNotFound)
)

// Wire format of one transfer history page.
type transferPage struct {
	Txs []transfer `json:"txs"`
}

type transfer struct {
	ID       uint64 `json:"id"`
	From     string `json:"from"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Coins    struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"` // decimal, up to 2^128-1
	} `json:"coins"`
}

type Client struct {
	base    string
	hc      *http.Client
	key     string
	rl      *rate.Limiter
	breaker *gobreaker.CircuitBreaker[transferPage]
}

func New(base, key string, rps int, timeout time.Duration) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("receipts base URL is required")
	}
	if rps <= 0 {
		rps = 5
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		hc:      &http.Client{Timeout: timeout},
		key:     key,
		rl:      rate.NewLimiter(rate.Limit(rps), rps),
		breaker: newBreaker(),
	}, nil
}

// newBreaker trips after half of at least five calls failed. Lookups that
// reached the service and got a definite answer count as successes.
func newBreaker() *gobreaker.CircuitBreaker[transferPage] {
	return gobreaker.NewCircuitBreaker[transferPage](gobreaker.Settings{
		Name:        service,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= 5 && float64(c.TotalFailures)/float64(c.Requests) >= 0.5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, errRejectedKey)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
}

// Verify fetches the hinted page of the requester's transfer history and
// returns the transfer with the receipt id. An id outside that page is
// reported as not found even if it exists elsewhere in the history.
func (c *Client) Verify(ctx context.Context, q domain.ReceiptQuery) (domain.Receipt, error) {
	page, err := c.breaker.Execute(func() (transferPage, error) {
		var p transferPage
		err := c.get(ctx, c.historyURL(q), q.Credential, &p)
		return p, err
	})
	switch {
	case errors.Is(err, errRejectedKey):
		return domain.Receipt{}, domain.Unauthorized("viewing key was rejected by the transfer history service")
	case err != nil:
		return domain.Receipt{}, err
	}

	for _, tx := range page.Txs {
		if tx.ID != q.ID {
			continue
		}
		amount, err := uint128.FromString(tx.Coins.Amount)
		if err != nil {
			return domain.Receipt{}, fmt.Errorf("receipt %d amount %q: %w", tx.ID, tx.Coins.Amount, err)
		}
		sender := tx.From
		if sender == "" {
			sender = tx.Sender
		}
		return domain.Receipt{ID: tx.ID, Sender: sender, Receiver: tx.Receiver, Amount: amount}, nil
	}
	return domain.Receipt{}, fmt.Errorf("receipt %d on page %d: %w", q.ID, q.Hint.Page, errNotFound)
}

func (c *Client) historyURL(q domain.ReceiptQuery) string {
	v := url.Values{}
	v.Set("page", strconv.FormatUint(uint64(q.Hint.Page), 10))
	v.Set("page_size", strconv.FormatUint(uint64(q.Hint.PageSize), 10))
	return fmt.Sprintf("%s/accounts/%s/transfers?%s", c.base, url.PathEscape(q.Requester), v.Encode())
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, rawURL, viewingKey string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		if c.key != "" {
			req.Header.Set("X-API-Key", c.key)
		}
		req.Header.Set("X-Viewing-Key", viewingKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "business-reviews/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(service, endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal(service, endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode transfer history: %w", err)
			}
			return nil

		case http.StatusNotFound:
			// unknown account: no history at all
			resp.Body.Close()
			return errNotFound

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return errRejectedKey

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
