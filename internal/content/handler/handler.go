package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inkwell/internal/content/models"
	"inkwell/internal/content/service"
	"inkwell/internal/event"
	"inkwell/internal/platform/middleware"
	"inkwell/pkg/platform/sentinel"
)

// Handler exposes the content lifecycle over HTTP. Mutations require a
// principal header; the service layer turns each one into a dispatched
// event.
type Handler struct {
	logger     *slog.Logger
	content    *service.Service
	dispatcher *event.Dispatcher
}

func New(content *service.Service, dispatcher *event.Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		content:    content,
		dispatcher: dispatcher,
	}
}

// Register mounts the content routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/content", func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Principal)

		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/publish", h.handlePublish)
		r.Post("/{id}/unpublish", h.handleUnpublish)
	})

	r.Get("/events/stats", h.handleStats)
}

type createRequest struct {
	Slug  string   `json:"slug"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags,omitempty"`
}

type updateRequest struct {
	Title *string  `json:"title,omitempty"`
	Body  *string  `json:"body,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

type publishRequest struct {
	PublishAt *time.Time `json:"publish_at,omitempty"`
}

type deleteRequest struct {
	Soft   bool   `json:"soft"`
	Reason string `json:"reason,omitempty"`
}

type unpublishRequest struct {
	Reason string `json:"reason,omitempty"`
}

type contentResponse struct {
	ID          uuid.UUID  `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Tags        []string   `json:"tags,omitempty"`
	Status      string     `json:"status"`
	Author      string     `json:"author"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func toResponse(c *models.Content) contentResponse {
	return contentResponse{
		ID:          c.ID,
		Slug:        c.Slug,
		Title:       c.Title,
		Body:        c.Body,
		Tags:        c.Tags,
		Status:      string(c.Status),
		Author:      c.Author,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		PublishedAt: c.PublishedAt,
		DeletedAt:   c.DeletedAt,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.content.Create(ctx, middleware.GetPrincipal(ctx), service.CreateInput{
		Slug:  req.Slug,
		Title: req.Title,
		Body:  req.Body,
		Tags:  req.Tags,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(c))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.content.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]contentResponse, len(items))
	for i, c := range items {
		out[i] = toResponse(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	c, err := h.content.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.content.Update(ctx, middleware.GetPrincipal(ctx), id, service.UpdateInput{
		Title: req.Title,
		Body:  req.Body,
		Tags:  req.Tags,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req publishRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	c, err := h.content.Publish(ctx, middleware.GetPrincipal(ctx), id, req.PublishAt)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req unpublishRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	c, err := h.content.Unpublish(ctx, middleware.GetPrincipal(ctx), id, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req deleteRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.content.Delete(ctx, middleware.GetPrincipal(ctx), id, req.Soft, req.Reason); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statsResponse struct {
	Events      uint64                  `json:"events"`
	Subscribers int                     `json:"subscribers"`
	KindCounts  map[string]uint64       `json:"kind_counts"`
	PerSub      []event.SubscriberStats `json:"per_subscriber"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.dispatcher.Statistics()
	counts := make(map[string]uint64, len(stats.KindCounts))
	for kind, n := range stats.KindCounts {
		counts[kind.String()] = n
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Events:      stats.Events,
		Subscribers: h.dispatcher.SubscriberCount(),
		KindCounts:  counts,
		PerSub:      stats.Subscribers,
	})
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid content id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "content not found")
	case errors.Is(err, sentinel.ErrConflict):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, sentinel.ErrUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		h.logger.WarnContext(r.Context(), "request rejected",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		writeJSONError(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
