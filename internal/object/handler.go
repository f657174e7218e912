package object

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/cargohold/service/internal/config"
	"github.com/cargohold/service/internal/gate"
	"github.com/cargohold/service/internal/middleware"
	"github.com/cargohold/service/internal/response"
	"github.com/cargohold/service/internal/signing"
)

// uploadURLTTL is the validity of the signed URL returned with a fresh
// upload: one year.
const uploadURLTTL = 365 * 24 * 3600

// Handler holds HTTP handlers for object storage endpoints.
type Handler struct {
	svc    *Service
	gate   *gate.Gate
	signer *signing.Signer
	cfg    *config.Config
}

// NewHandler creates a new object Handler.
func NewHandler(svc *Service, g *gate.Gate, signer *signing.Signer, cfg *config.Config) *Handler {
	return &Handler{svc: svc, gate: g, signer: signer, cfg: cfg}
}

type deleteRequest struct {
	Bucket string `json:"bucket"`
	File   string `json:"file"`
}

type signRequest struct {
	Bucket  string `json:"bucket"`
	File    string `json:"file"`
	Expires int64  `json:"expires"`
}

type signedURLData struct {
	URL       string `json:"url"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

type uploadData struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mimeType"`
	Size        int64  `json:"size"`
	ContentHash string `json:"contentHash"`
	URL         string `json:"url"`
}

// Upload godoc
//
//	@Summary		Upload an object
//	@Description	Multipart upload into a bucket owned by the caller's project. Returns the object id and a long-lived signed URL.
//	@Tags			objects
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			bucket	formData	string	true	"Bucket name"
//	@Param			file	formData	file	true	"File content"
//	@Success		201	{object}	response.Envelope{data=uploadData}
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/api/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	projectID := middleware.ProjectID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "missing file or bucket parameter")
		return
	}
	defer file.Close()

	bucketName := r.FormValue("bucket")
	if bucketName == "" {
		response.BadRequest(w, "missing file or bucket parameter")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	rec, err := h.svc.Put(r.Context(), projectID, bucketName, header.Filename, mimeType, header.Size, file)
	switch {
	case errors.Is(err, ErrBucketNotFound):
		response.BadRequest(w, "bucket not found or access denied")
		return
	case errors.Is(err, ErrInvalidUpload):
		response.BadRequest(w, err.Error())
		return
	case err != nil:
		log.Printf("object: upload failed: %v", err)
		response.InternalError(w)
		return
	}

	grant, err := h.signer.Generate(r.Context(), projectID, bucketName, rec.Filename, uploadURLTTL)
	if err != nil {
		log.Printf("object: sign upload url failed: %v", err)
		response.InternalError(w)
		return
	}

	response.Created(w, uploadData{
		ID:          rec.ID,
		Filename:    rec.Filename,
		MimeType:    rec.MimeType,
		Size:        rec.Size,
		ContentHash: rec.ContentHash,
		URL:         grant.URL(requestBaseURL(r)),
	})
}

// Download godoc
//
//	@Summary		Download an object
//	@Description	Authenticated direct download, scoped to the caller's project.
//	@Tags			objects
//	@Produce		octet-stream
//	@Security		BearerAuth
//	@Param			bucket	query	string	true	"Bucket name"
//	@Param			file	query	string	true	"Filename"
//	@Success		200	{file}		file
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/api/object [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	bucketName := r.URL.Query().Get("bucket")
	filename := r.URL.Query().Get("file")
	if bucketName == "" || filename == "" {
		response.BadRequest(w, "missing bucket or file parameter")
		return
	}

	rec, err := h.gate.AuthorizeOwner(r.Context(), middleware.ProjectID(r.Context()), bucketName, filename)
	if errors.Is(err, gate.ErrNotFound) {
		response.NotFound(w, "file not found")
		return
	}
	if err != nil {
		log.Printf("object: download authorization failed: %v", err)
		response.InternalError(w)
		return
	}

	h.stream(w, r, rec, "attachment")
}

// Delete godoc
//
//	@Summary		Delete an object
//	@Description	Removes the object's bytes and its index entry. Deleting twice yields 404 the second time.
//	@Tags			objects
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		deleteRequest	true	"Bucket and filename"
//	@Success		200	{object}	response.Envelope
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/api/object [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Bucket == "" || req.File == "" {
		response.BadRequest(w, "missing bucket or file parameter")
		return
	}

	err := h.svc.Delete(r.Context(), middleware.ProjectID(r.Context()), req.Bucket, req.File)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "file not found")
		return
	}
	if err != nil {
		log.Printf("object: delete failed: %v", err)
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]string{"message": "file deleted"})
}

// List godoc
//
//	@Summary		List objects in a bucket
//	@Description	Returns the bucket's objects ordered by creation time, ascending.
//	@Tags			objects
//	@Produce		json
//	@Security		BearerAuth
//	@Param			bucket	query	string	true	"Bucket name"
//	@Success		200	{object}	response.Envelope{data=[]Record}
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Router			/api/list [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	bucketName := r.URL.Query().Get("bucket")
	if bucketName == "" {
		response.BadRequest(w, "missing bucket parameter")
		return
	}

	records, err := h.svc.List(r.Context(), middleware.ProjectID(r.Context()), bucketName)
	if errors.Is(err, ErrBucketNotFound) {
		response.BadRequest(w, "bucket not found or access denied")
		return
	}
	if err != nil {
		log.Printf("object: list failed: %v", err)
		response.InternalError(w)
		return
	}
	if records == nil {
		records = []*Record{}
	}

	response.OK(w, records)
}

// GenerateSignedURL godoc
//
//	@Summary		Mint a signed URL
//	@Description	Produces a time-bounded capability URL for one object, signed with the caller's project secret.
//	@Tags			signing
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		signRequest	true	"Bucket, filename and TTL in seconds"
//	@Success		200	{object}	response.Envelope{data=signedURLData}
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Router			/api/generate-signed-url [post]
func (h *Handler) GenerateSignedURL(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Bucket == "" || req.File == "" {
		response.BadRequest(w, "missing bucket, file, or expires parameter")
		return
	}
	if req.Expires <= 0 {
		response.BadRequest(w, "expires must be a positive number of seconds")
		return
	}

	grant, err := h.signer.Generate(r.Context(), middleware.ProjectID(r.Context()), req.Bucket, req.File, req.Expires)
	if err != nil {
		log.Printf("object: sign url failed: %v", err)
		response.InternalError(w)
		return
	}

	response.OK(w, signedURLData{
		URL:       grant.URL(requestBaseURL(r)),
		Token:     grant.Token,
		ExpiresAt: grant.ExpiresAt,
	})
}

// ServeFile godoc
//
//	@Summary		Serve a file
//	@Description	The public read path. Objects in public buckets need no credentials; private objects require a valid token and expiry.
//	@Tags			signing
//	@Produce		octet-stream
//	@Param			bucket	query	string	true	"Bucket name"
//	@Param			file	query	string	true	"Filename"
//	@Param			token	query	string	false	"Capability token (hex HMAC-SHA256)"
//	@Param			expires	query	string	false	"Expiry as decimal Unix seconds"
//	@Success		200	{file}		file
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/api/get-file [get]
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bucketName := q.Get("bucket")
	filename := q.Get("file")
	if bucketName == "" || filename == "" {
		response.BadRequest(w, "missing required parameters")
		return
	}

	rec, err := h.gate.AuthorizeRead(r.Context(), bucketName, filename, q.Get("token"), q.Get("expires"))
	switch {
	case errors.Is(err, gate.ErrNotFound):
		response.NotFound(w, "file not found")
		return
	case errors.Is(err, gate.ErrDenied):
		response.Unauthorized(w)
		return
	case err != nil:
		log.Printf("object: serve authorization failed: %v", err)
		response.InternalError(w)
		return
	}

	h.stream(w, r, rec, "inline")
}

// stream copies the object's bytes to the client without buffering.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, rec *Record, disposition string) {
	body, err := h.svc.Get(r.Context(), rec)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "file not found on server")
		return
	}
	if err != nil {
		log.Printf("object: open %s failed: %v", rec.ID, err)
		response.InternalError(w)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", rec.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(rec.Size, 10))
	w.Header().Set("Content-Disposition", disposition+`; filename="`+rec.Filename+`"`)
	if _, err := io.Copy(w, body); err != nil {
		// Headers are gone; nothing to send but worth recording.
		log.Printf("object: stream %s aborted: %v", rec.ID, err)
	}
}

// requestBaseURL reconstructs scheme://host from the inbound request.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
