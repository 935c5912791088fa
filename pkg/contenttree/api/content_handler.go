package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/content-tree/pkg/contenttree"
)

// ContentHandler handles HTTP requests for the content tree
type ContentHandler struct {
	service contenttree.Service
	logger  *slog.Logger
}

// NewContentHandler creates a new content handler
func NewContentHandler(service contenttree.Service, logger *slog.Logger) *ContentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentHandler{
		service: service,
		logger:  logger,
	}
}

// Routes returns the routes for working and published content
func (h *ContentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/contents", func(r chi.Router) {
		r.Post("/", h.CreateContent)
		r.Get("/{id}", h.GetContent)
		r.Put("/{id}", h.UpdateContent)
		r.Delete("/{id}", h.DeleteContent)
		r.Post("/{id}/reconcile", h.ReconcileContent)
	})
	r.Get("/published/{id}", h.GetPublishedContent)

	return r
}

// CreateContentRequest is the request body for creating a content
type CreateContentRequest struct {
	Name       string                  `json:"name"`
	Properties json.RawMessage         `json:"properties,omitempty"`
	ParentID   *string                 `json:"parentId,omitempty"`
	ChildItems []contenttree.ChildItem `json:"childItems,omitempty"`
}

// UpdateContentRequest is the request body for updating and optionally publishing a content
type UpdateContentRequest struct {
	ApplyChanges   bool                    `json:"applyChanges"`
	RequestPublish bool                    `json:"requestPublish"`
	Name           string                  `json:"name"`
	Properties     json.RawMessage         `json:"properties,omitempty"`
	ChildItems     []contenttree.ChildItem `json:"childItems,omitempty"`
}

// ReconcileResponse is the response body for a reconcile request
type ReconcileResponse struct {
	ContentID  string `json:"contentId"`
	Reconciled bool   `json:"reconciled"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateContent creates a new content and flags its parent as having children
func (h *ContentHandler) CreateContent(w http.ResponseWriter, r *http.Request) {
	var req CreateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	content, err := h.service.ExecuteCreate(r.Context(), contenttree.CreateContentRequest{
		Name:       req.Name,
		Properties: req.Properties,
		ParentID:   req.ParentID,
		ChildItems: req.ChildItems,
	})
	if err != nil {
		h.handleServiceError(w, r, "Failed to create content", err)
		return
	}

	if content.ParentID != nil {
		parent, err := h.service.GetByID(r.Context(), *content.ParentID)
		if err == nil {
			_, err = h.service.UpdateHasChildren(r.Context(), parent)
		}
		if err != nil {
			// The child exists; a stale flag is repaired by the next create under this parent.
			h.logger.Error("Failed to update parent hasChildren", "parent_id", *content.ParentID, "content_id", content.ID, "error", err)
		}
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, content)
}

// GetContent returns a working content with its direct children resolved
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	content, err := h.service.GetPopulatedByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, "Failed to get content", err)
		return
	}

	render.JSON(w, r, content)
}

// UpdateContent applies editorial changes and publishes when requested
func (h *ContentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.UpdateAndPublish(r.Context(), id, contenttree.UpdateRequest{
		ApplyChanges:   req.ApplyChanges,
		RequestPublish: req.RequestPublish,
		Name:           req.Name,
		Properties:     req.Properties,
		ChildItems:     req.ChildItems,
	})
	if err != nil {
		h.handleServiceError(w, r, "Failed to update content", err)
		return
	}

	render.JSON(w, r, result)
}

// DeleteContent soft-deletes a content, its published snapshot and all descendants
func (h *ContentHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.service.ExecuteDelete(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, "Failed to delete content", err)
		return
	}

	render.JSON(w, r, result)
}

// ReconcileContent rewrites a missing or stale published snapshot
func (h *ContentHandler) ReconcileContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	reconciled, err := h.service.Reconcile(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, "Failed to reconcile content", err)
		return
	}

	render.JSON(w, r, ReconcileResponse{ContentID: id, Reconciled: reconciled})
}

// GetPublishedContent returns a published snapshot with its direct published children resolved.
// Soft-deleted snapshots are reported as not found.
func (h *ContentHandler) GetPublishedContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	published, err := h.service.GetPopulatedPublishedByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, "Failed to get published content", err)
		return
	}
	if published.IsDeleted {
		h.writeError(w, r, http.StatusNotFound, "Content not found")
		return
	}

	render.JSON(w, r, published)
}

func (h *ContentHandler) handleServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, contenttree.ErrParentNotFound):
		h.writeError(w, r, http.StatusUnprocessableEntity, "Parent content not found")
	case errors.Is(err, contenttree.ErrContentNotFound):
		h.writeError(w, r, http.StatusNotFound, "Content not found")
	default:
		h.logger.Error(msg, "path", r.URL.Path, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, msg)
	}
}

func (h *ContentHandler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}
