package admin

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cargohold/service/internal/bucket"
	"github.com/cargohold/service/internal/project"
	"github.com/cargohold/service/internal/response"
)

// Handler holds HTTP handlers for the admin panel API.
type Handler struct {
	svc      *Service
	projects *project.Service
	buckets  *bucket.Service
}

// NewHandler creates a new admin Handler.
func NewHandler(svc *Service, projects *project.Service, buckets *bucket.Service) *Handler {
	return &Handler{svc: svc, projects: projects, buckets: buckets}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createProjectRequest struct {
	Name string `json:"name"`
}

type createBucketRequest struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	IsPublic  bool   `json:"isPublic"`
}

// projectData echoes the API key exactly once, at creation time.
type projectData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	APIKey    string `json:"apiKey,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// Login godoc
//
//	@Summary		Admin login
//	@Description	Verifies credentials and returns a session JWT for the admin API.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials"
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Router			/api/admin/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		response.BadRequest(w, "username and password required")
		return
	}

	token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Unauthorized(w)
		return
	}
	if err != nil {
		log.Printf("admin: login failed: %v", err)
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]string{"token": token})
}

// ListProjects godoc
//
//	@Summary	List projects
//	@Tags		admin
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	response.Envelope{data=[]project.Project}
//	@Router		/api/admin/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(r.Context())
	if err != nil {
		log.Printf("admin: list projects failed: %v", err)
		response.InternalError(w)
		return
	}
	if projects == nil {
		projects = []*project.Project{}
	}
	response.OK(w, projects)
}

// CreateProject godoc
//
//	@Summary		Create a project
//	@Description	The generated API key is included in this response only; it is never listed again.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		createProjectRequest	true	"Project name"
//	@Success		201	{object}	response.Envelope{data=projectData}
//	@Router			/api/admin/projects [post]
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		response.BadRequest(w, "project name required")
		return
	}

	p, err := h.projects.Create(r.Context(), req.Name)
	if err != nil {
		log.Printf("admin: create project failed: %v", err)
		response.InternalError(w)
		return
	}

	response.Created(w, projectData{
		ID:        p.ID,
		Name:      p.Name,
		APIKey:    p.APIKey,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// DeleteProject godoc
//
//	@Summary		Delete a project
//	@Description	Destructive and irreversible: buckets and objects cascade.
//	@Tags			admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Project ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/api/admin/projects/{id} [delete]
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.projects.Delete(r.Context(), id)
	if h.projects.IsNotFound(err) {
		response.NotFound(w, "project not found")
		return
	}
	if err != nil {
		log.Printf("admin: delete project failed: %v", err)
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]string{"message": "project deleted"})
}

// ListBuckets godoc
//
//	@Summary	List a project's buckets
//	@Tags		admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		project_id	query	string	true	"Project ID"
//	@Success	200	{object}	response.Envelope{data=[]bucket.Bucket}
//	@Router		/api/admin/buckets [get]
func (h *Handler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		response.BadRequest(w, "missing project_id parameter")
		return
	}

	buckets, err := h.buckets.ListByProject(r.Context(), projectID)
	if err != nil {
		log.Printf("admin: list buckets failed: %v", err)
		response.InternalError(w)
		return
	}
	if buckets == nil {
		buckets = []*bucket.Bucket{}
	}
	response.OK(w, buckets)
}

// CreateBucket godoc
//
//	@Summary		Create a bucket
//	@Description	Visibility is fixed at creation; there is no later public/private transition.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		createBucketRequest	true	"Bucket details"
//	@Success		201	{object}	response.Envelope{data=bucket.Bucket}
//	@Failure		409	{object}	response.Envelope
//	@Router			/api/admin/buckets [post]
func (h *Handler) CreateBucket(w http.ResponseWriter, r *http.Request) {
	var req createBucketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProjectID == "" || req.Name == "" {
		response.BadRequest(w, "projectId and name required")
		return
	}

	b, err := h.buckets.Create(r.Context(), req.ProjectID, req.Name, req.IsPublic)
	if errors.Is(err, bucket.ErrAlreadyExists) {
		response.Conflict(w, "bucket name already in use within this project")
		return
	}
	if err != nil {
		log.Printf("admin: create bucket failed: %v", err)
		response.InternalError(w)
		return
	}

	response.Created(w, b)
}

// DeleteBucket godoc
//
//	@Summary	Delete a bucket
//	@Tags		admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path	string	true	"Bucket ID"
//	@Success	200	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Router		/api/admin/buckets/{id} [delete]
func (h *Handler) DeleteBucket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.buckets.Delete(r.Context(), id)
	if h.buckets.IsNotFound(err) {
		response.NotFound(w, "bucket not found")
		return
	}
	if err != nil {
		log.Printf("admin: delete bucket failed: %v", err)
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]string{"message": "bucket deleted"})
}

// GetStats godoc
//
//	@Summary	Usage analytics
//	@Tags		admin
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	response.Envelope{data=Stats}
//	@Router		/api/admin/stats [get]
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		log.Printf("admin: stats failed: %v", err)
		response.InternalError(w)
		return
	}
	response.OK(w, stats)
}
