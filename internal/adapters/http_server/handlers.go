package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"business_reviews/internal/app"
	"business_reviews/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	C *app.CommandService
}

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/v1/businesses", func(r chi.Router) {
		r.Get("/", h.getBusinesses)
		r.Post("/", h.registerBusiness)
		r.Get("/{address}", h.getBusiness)
		r.Get("/{address}/reviews", h.getReviews)
		r.Post("/{address}/reviews", h.reviewBusiness)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps an error kind to its HTTP status. Fatal details stay in
// the log.
func writeError(w http.ResponseWriter, err error) {
	var ve *validationError
	if errors.As(err, &ve) {
		writeProblemBody(w, problem{Type: "about:blank", Title: "Validation Failed", Status: http.StatusBadRequest, Detail: ve.Error(), Errors: ve.fields})
		return
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		writeProblem(w, http.StatusBadRequest, "Validation Failed", domain.MessageOf(err))
	case domain.KindNotFound:
		writeProblem(w, http.StatusNotFound, "Not Found", domain.MessageOf(err))
	case domain.KindConflict:
		writeProblem(w, http.StatusConflict, "Conflict", domain.MessageOf(err))
	case domain.KindUnauthorized:
		writeProblem(w, http.StatusForbidden, "Forbidden", domain.MessageOf(err))
	case domain.KindUpstream:
		writeProblem(w, http.StatusBadGateway, "Bad Gateway", domain.MessageOf(err))
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached writes v with a weak ETag, or 304 when the client has it.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func (h *Handlers) getBusinesses(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Q.GetBusinesses(r.Context(), p.query())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

// getBusiness answers 200 for unregistered addresses too; the status string
// and the missing business field say so.
func (h *Handlers) getBusiness(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.GetSingleBusiness(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) getReviews(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Q.GetReviewsOnBusiness(r.Context(), chi.URLParam(r, "address"), p.query())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) registerBusiness(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	out, err := h.C.RegisterBusiness(r.Context(), req.Address, req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	body, _ := json.Marshal(out)
	w.Header().Set("Location", "/v1/businesses/"+out.Business.Address)
	writeJSON(w, http.StatusCreated, body)
}

func (h *Handlers) reviewBusiness(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", `Bearer realm="reviews"`)
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "a bearer token naming the reviewer is required")
		return
	}
	var req reviewRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	out, err := h.C.ReviewBusiness(r.Context(), req.submission(chi.URLParam(r, "address"), caller))
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if out.NewReview {
		status = http.StatusCreated
	}
	body, _ := json.Marshal(out)
	writeJSON(w, status, body)
}

// writeRequestError reports a body that could not be decoded or validated.
func writeRequestError(w http.ResponseWriter, err error) {
	var ve *validationError
	if errors.As(err, &ve) {
		writeError(w, err)
		return
	}
	writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
}
