package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"business_reviews/internal/domain"
)

const (
	defaultPageSize = 10
	maxBodyBytes    = 1 << 20
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Length bounds on name and description are checked by the registry so the
// caller sees its messages; the tags here cover shape only.
type registerRequest struct {
	Address     string `json:"address" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type reviewRequest struct {
	Title      string  `json:"title" validate:"max=1000"`
	Content    string  `json:"content" validate:"max=10000"`
	Rating     *int    `json:"rating" validate:"required"`
	ReceiptID  *uint64 `json:"receipt_id" validate:"required"`
	Page       uint32  `json:"page"`
	PageSize   uint32  `json:"page_size"`
	ViewingKey string  `json:"viewing_key"`
}

func (rr reviewRequest) submission(business, reviewer string) domain.Submission {
	return domain.Submission{
		Business:   business,
		Reviewer:   reviewer,
		Title:      rr.Title,
		Content:    rr.Content,
		Rating:     *rr.Rating,
		ReceiptID:  *rr.ReceiptID,
		Hint:       domain.PagingHint{Page: rr.Page, PageSize: rr.PageSize},
		Credential: rr.ViewingKey,
	}
}

type pageParams struct {
	Start    int    `validate:"gte=0"`
	PageSize int    `validate:"gte=0"`
	From     string `validate:"max=191"`
}

func (p pageParams) query() domain.PageQuery {
	return domain.PageQuery{Start: p.Start, From: p.From, Limit: p.PageSize}
}

// validationError carries per-field messages into the problem body.
type validationError struct {
	fields map[string]string
}

func (e *validationError) Error() string {
	msgs := make([]string, 0, len(e.fields))
	for f, m := range e.fields {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", f, m))
	}
	return strings.Join(msgs, "; ")
}

func check(v any) error {
	err := validate.Struct(v)
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	fields := make(map[string]string, len(ves))
	for _, fe := range ves {
		fields[fieldName(fe)] = msgForTag(fe)
	}
	return &validationError{fields: fields}
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "ReceiptID":
		return "receipt_id"
	case "PageSize":
		return "page_size"
	default:
		return strings.ToLower(fe.Field())
	}
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return check(dst)
}

func parsePage(q url.Values) (pageParams, error) {
	p := pageParams{PageSize: defaultPageSize, From: q.Get("from")}
	for name, dst := range map[string]*int{"start": &p.Start, "page_size": &p.PageSize} {
		s := q.Get(name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return pageParams{}, &validationError{fields: map[string]string{name: "must be an integer"}}
		}
		*dst = n
	}
	return p, check(p)
}
