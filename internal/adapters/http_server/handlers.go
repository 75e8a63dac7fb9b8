package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"gymdir/internal/app"
	"gymdir/internal/domain"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	Q *app.QueryService
	C *app.CommandService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1/candidates", func(r chi.Router) {
		r.Get("/", h.listCandidates)
		r.Post("/", h.createCandidate)
		r.Post("/classify", h.classify)
		r.Get("/{id}", h.getCandidate)
		r.Patch("/{id}", h.patchCandidate)
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
	s.mux.Get("/v1/gyms/{id}", h.getGym)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps the domain error taxonomy onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrInvalidPayload):
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Payload", err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
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

// writeCacheable honours If-None-Match for GET resources.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
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

func writeValue(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	writeJSON(w, status, body)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return 0, false
	}
	return id, true
}

// decodeBody accepts an empty body as the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	return true
}

func optional(v string) *string {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	return &v
}

func (h *Handlers) listCandidates(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := app.ListQuery{
		Region: optional(qs.Get("region")),
		City:   optional(qs.Get("city")),
		Q:      optional(qs.Get("q")),
		Cursor: qs.Get("cursor"),
	}
	if s := optional(qs.Get("status")); s != nil {
		st := domain.CandidateStatus(*s)
		q.Status = &st
	}
	if ls := qs.Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 100 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 100")
			return
		}
		q.Limit = l
	}

	page, err := h.Q.ListCandidates(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := candidatePageView{Items: make([]candidateView, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, c := range page.Items {
		out.Items = append(out.Items, toCandidateView(c))
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) createCandidate(w http.ResponseWriter, r *http.Request) {
	var in candidateInput
	if !decodeBody(w, r, &in) {
		return
	}
	c, err := h.C.CreateManual(r.Context(), in.toDomain())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/candidates/"+strconv.FormatInt(c.ID, 10))
	writeValue(w, http.StatusCreated, toCandidateView(c))
}

func (h *Handlers) getCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.Q.GetDetail(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, candidateDetailView{Candidate: toCandidateView(d.Candidate), Similar: toGymViews(d.Similar)})
}

func (h *Handlers) patchCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p candidatePatch
	if !decodeBody(w, r, &p) {
		return
	}
	c, err := h.C.Patch(r.Context(), id, p.toDomain())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, toCandidateView(c))
}

func (h *Handlers) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body approveBody
	if !decodeBody(w, r, &body) {
		return
	}
	req := body.toRequest()
	if r.URL.Query().Get("dry_run") == "true" {
		req.DryRun = true
	}
	out, err := h.C.Approve(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, toOutcomeView(out))
}

func (h *Handlers) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body rejectBody
	if !decodeBody(w, r, &body) {
		return
	}
	c, err := h.C.Reject(r.Context(), id, body.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, toCandidateView(c))
}

func (h *Handlers) classify(w http.ResponseWriter, r *http.Request) {
	var body classifyBody
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := h.C.Classify(r.Context(), body.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, res)
}

func (h *Handlers) getGym(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.Q.GetGym(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, toGymDetailView(d))
}
