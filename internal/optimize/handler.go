package optimize

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cargohold/service/internal/middleware"
	"github.com/cargohold/service/internal/object"
	"github.com/cargohold/service/internal/response"
	"github.com/cargohold/service/internal/signing"
)

// Handler holds HTTP handlers for the optimization endpoints.
type Handler struct {
	svc    *Service
	signer *signing.Signer
}

// NewHandler creates a new optimize Handler.
func NewHandler(svc *Service, signer *signing.Signer) *Handler {
	return &Handler{svc: svc, signer: signer}
}

type optimizeRequest struct {
	ObjectID string `json:"object_id"`
}

type batchRequest struct {
	ObjectIDs []string `json:"object_ids"`
}

type batchEntry struct {
	ObjectID string  `json:"objectId"`
	OK       bool    `json:"ok"`
	Error    string  `json:"error,omitempty"`
	Result   *Result `json:"result,omitempty"`
}

// Optimize godoc
//
//	@Summary		Generate image variants
//	@Description	Produces the configured thumbnail sizes for an image object owned by the caller's project.
//	@Tags			optimization
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		optimizeRequest	true	"Object id"
//	@Success		200	{object}	response.Envelope{data=Result}
//	@Failure		400	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/api/optimize [post]
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ObjectID == "" {
		response.BadRequest(w, "object_id required")
		return
	}

	result, err := h.svc.Optimize(r.Context(), middleware.ProjectID(r.Context()), req.ObjectID)
	switch {
	case errors.Is(err, object.ErrNotFound):
		response.NotFound(w, "object not found")
		return
	case errors.Is(err, ErrNotImage):
		response.BadRequest(w, "object is not an image")
		return
	case err != nil:
		log.Printf("optimize: %s failed: %v", req.ObjectID, err)
		response.InternalError(w)
		return
	}

	response.OK(w, result)
}

// OptimizeBatch godoc
//
//	@Summary		Generate image variants for several objects
//	@Description	Runs optimization per object; individual failures do not abort the batch.
//	@Tags			optimization
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		batchRequest	true	"Object ids"
//	@Success		200	{object}	response.Envelope{data=[]batchEntry}
//	@Failure		400	{object}	response.Envelope
//	@Router			/api/optimize/batch [post]
func (h *Handler) OptimizeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.ObjectIDs) == 0 {
		response.BadRequest(w, "object_ids required")
		return
	}

	projectID := middleware.ProjectID(r.Context())
	entries := make([]batchEntry, 0, len(req.ObjectIDs))
	for _, id := range req.ObjectIDs {
		result, err := h.svc.Optimize(r.Context(), projectID, id)
		entry := batchEntry{ObjectID: id, OK: err == nil, Result: result}
		if err != nil {
			entry.Error = publicBatchError(err)
		}
		entries = append(entries, entry)
	}

	response.OK(w, entries)
}

// ServeThumbnail godoc
//
//	@Summary		Serve a thumbnail
//	@Description	Streams one generated variant. Gated exactly like the parent object: public bucket or a valid signed token for the original.
//	@Tags			optimization
//	@Produce		octet-stream
//	@Param			id		path	string	true	"Object ID"
//	@Param			variant	path	string	true	"size.format, e.g. md.jpg"
//	@Param			token	query	string	false	"Capability token for the parent object"
//	@Param			expires	query	string	false	"Expiry as decimal Unix seconds"
//	@Success		200	{file}		file
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/api/thumbnails/{id}/{variant} [get]
func (h *Handler) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	objectID := chi.URLParam(r, "id")
	sizeName, format, ok := strings.Cut(chi.URLParam(r, "variant"), ".")
	if !ok || format != "jpg" {
		response.NotFound(w, "thumbnail not found")
		return
	}

	rec, err := h.svc.GetByID(r.Context(), objectID)
	if errors.Is(err, object.ErrNotFound) {
		response.NotFound(w, "thumbnail not found")
		return
	}
	if err != nil {
		log.Printf("optimize: resolve %s failed: %v", objectID, err)
		response.InternalError(w)
		return
	}

	// A token minted for the original object also grants its variants.
	if !rec.IsPublic {
		q := r.URL.Query()
		expiresAt, parseErr := strconv.ParseInt(q.Get("expires"), 10, 64)
		if parseErr != nil {
			response.Unauthorized(w)
			return
		}
		if err := h.signer.Verify(r.Context(), rec.ProjectID, rec.BucketName, rec.Filename, q.Get("token"), expiresAt); err != nil {
			response.Unauthorized(w)
			return
		}
	}

	body, err := h.svc.OpenThumbnail(r.Context(), rec, sizeName)
	if errors.Is(err, ErrNoThumbnail) {
		response.NotFound(w, "thumbnail not found")
		return
	}
	if err != nil {
		log.Printf("optimize: open thumbnail %s/%s failed: %v", objectID, sizeName, err)
		response.InternalError(w)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	if _, err := io.Copy(w, body); err != nil {
		log.Printf("optimize: stream thumbnail %s/%s aborted: %v", objectID, sizeName, err)
	}
}

// publicBatchError maps internal errors to client-safe batch messages.
func publicBatchError(err error) string {
	switch {
	case errors.Is(err, object.ErrNotFound):
		return "object not found"
	case errors.Is(err, ErrNotImage):
		return "object is not an image"
	default:
		return "optimization failed"
	}
}
