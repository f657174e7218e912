package object

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargohold/service/internal/gate"
	"github.com/cargohold/service/internal/middleware"
	"github.com/cargohold/service/internal/response"
	"github.com/cargohold/service/internal/signing"
)

type staticSecrets map[string]string

func (s staticSecrets) SecretFor(ctx context.Context, projectID string) (string, error) {
	return s[projectID], nil
}

type handlerFixture struct {
	handler *Handler
	signer  *signing.Signer
	router  *chi.Mux
}

// asProject simulates the API-key middleware binding a project id.
func asProject(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.ProjectIDKey, projectID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	svc, repo, _ := testService(t)

	signer := signing.NewSigner(staticSecrets{"p1": "sk-p1", "p2": "sk-p2"})
	g := gate.New(repo, signer)
	h := NewHandler(svc, g, signer, testConfig())

	r := chi.NewRouter()
	r.Get("/api/get-file", h.ServeFile)
	r.Group(func(r chi.Router) {
		r.Use(asProject("p1"))
		r.Post("/api/upload", h.Upload)
		r.Get("/api/object", h.Download)
		r.Delete("/api/object", h.Delete)
		r.Get("/api/list", h.List)
		r.Post("/api/generate-signed-url", h.GenerateSignedURL)
	})
	return &handlerFixture{handler: h, signer: signer, router: r}
}

// multipartUpload builds a multipart body with a bucket field and one file.
func multipartUpload(t *testing.T, bucket, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("bucket", bucket))

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(body.Bytes(), &env))
	return env
}

func (f *handlerFixture) upload(t *testing.T, bucket, filename, contentType, content string) uploadData {
	t.Helper()
	body, formType := multipartUpload(t, bucket, filename, contentType, content)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", formType)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, "upload failed: %s", rr.Body.String())

	var env struct {
		Data uploadData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env.Data
}

func TestUploadReturnsSignedURL(t *testing.T) {
	t.Parallel()
	f := newHandlerFixture(t)

	data := f.upload(t, "media", "note.txt", "text/plain", "hello")
	assert.Equal(t, "note.txt", data.Filename)
	assert.Equal(t, int64(5), data.Size)
	assert.NotEmpty(t, data.ContentHash)

	// The returned URL must itself authorize a read of the private copy.
	u, err := url.Parse(data.URL)
	require.NoError(t, err)
	assert.Equal(t, "/api/get-file", u.Path)
	q := u.Query()
	assert.Equal(t, "media", q.Get("bucket"))
	assert.Equal(t, "note.txt", q.Get("file"))
	assert.NotEmpty(t, q.Get("token"))
	assert.NotEmpty(t, q.Get("expires"))
}

func TestUploadRejectsMissingBucket(t *testing.T) {
	t.Parallel()
	f := newHandlerFixture(t)

	body, formType := multipartUpload(t, "", "note.txt", "text/plain", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", formType)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadUnknownBucket(t *testing.T) {
	t.Parallel()
	f := newHandlerFixture(t)

	body, formType := multipartUpload(t, "ghost", "note.txt", "text/plain", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", formType)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServeFilePublicObject(t *testing.T) {
	t.Parallel()
	f := newHandlerFixture(t)

	f.upload(t, "media", "open.txt", "text/plain", "anyone may read")

	req := httptest.NewRequest(http.MethodGet, "/api/get-file?bucket=media&file=open.txt", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "anyone may read", rr.Body.String())
	assert.Equal(t, "text/plain", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "inline")
}

func TestServeFilePrivateObject(t *testing.T) {
	t.Parallel()
	f := newHandlerFixture(t)
	ctx := context.Background()

	f.upload(t, "private", "secret.txt", "text/plain", "for holders only")

	// Bare request: denied with the generic 401 envelope.
	req := httptest.NewRequest(http.MethodGet, "/api/get-file?bucket=private&file=secret.txt", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	env := decodeEnvelope(t, rr.Body)
	assert.Equal(t, "unauthorized", env.Error)

	// With a valid capability the same request succeeds.
	grant, err := f.signer.Generate(ctx, "p1", "private", "secret.txt", 3600)
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, grant.URL(""), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "for holders only", rr.Body.String())

	// A tampered token gets the same generic denial as a missing one.
	q := url.Values{}
	q.Set("bucket", "private")
	q.Set("file", "secret.txt")
	q.Set("token", strings.Repeat("0", 64))
	q.Set("expires", strconv.FormatInt(grant.ExpiresAt, 10))
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/get-file?"+q.Encode(), nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, env.Error, decodeEnvelope(t, rr.Body).Error)
}

func TestServeFileUnknownObject(t *testing.T) {
	t.Parallel()
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/get-file?bucket=media&file=ghost.txt", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDownloadScopedToProject(t *testing.T) {
	t.Parallel()
	f := newHandlerFixture(t)

	f.upload(t, "media", "mine.txt", "text/plain", "payload")

	req := httptest.NewRequest(http.MethodGet, "/api/object?bucket=media&file=mine.txt", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")

	// The same route bound to another project cannot see the object.
	other := chi.NewRouter()
	other.Group(func(r chi.Router) {
		r.Use(asProject("p2"))
		r.Get("/api/object", f.handler.Download)
	})
	rr = httptest.NewRecorder()
	other.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/object?bucket=media&file=mine.txt", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteEndpoint(t *testing.T) {
	t.Parallel()
	f := newHandlerFixture(t)

	f.upload(t, "media", "gone.txt", "text/plain", "payload")

	body := `{"bucket":"media","file":"gone.txt"}`
	req := httptest.NewRequest(http.MethodDelete, "/api/object", strings.NewReader(body))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	// Second delete: the object is gone.
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/object", strings.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListEndpoint(t *testing.T) {
	t.Parallel()
	f := newHandlerFixture(t)

	// An empty bucket lists as [], not null.
	req := httptest.NewRequest(http.MethodGet, "/api/list?bucket=media", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"data":[]`)

	f.upload(t, "media", "a.txt", "text/plain", "one")
	f.upload(t, "media", "b.txt", "text/plain", "two")

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/list?bucket=media", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var env struct {
		Data []*Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Len(t, env.Data, 2)
}

func TestGenerateSignedURLEndpoint(t *testing.T) {
	t.Parallel()
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/generate-signed-url",
		strings.NewReader(`{"bucket":"private","file":"secret.txt","expires":600}`))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var env struct {
		Data signedURLData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Len(t, env.Data.Token, 64)
	assert.Contains(t, env.Data.URL, "bucket=private")

	// Non-positive TTLs are rejected.
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/generate-signed-url",
		strings.NewReader(`{"bucket":"private","file":"secret.txt","expires":0}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
