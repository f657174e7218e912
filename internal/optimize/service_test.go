package optimize

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargohold/service/internal/config"
	"github.com/cargohold/service/internal/object"
	"github.com/cargohold/service/internal/storage"
)

type fakeObjects struct {
	records map[string]*object.Record
}

func (f *fakeObjects) FindScoped(ctx context.Context, projectID, bucketName, filename string) (*object.Record, error) {
	return nil, object.ErrNotFound
}

func (f *fakeObjects) Find(ctx context.Context, bucketName, filename string) (*object.Record, error) {
	return nil, object.ErrNotFound
}

func (f *fakeObjects) FindByIDScoped(ctx context.Context, projectID, id string) (*object.Record, error) {
	r, ok := f.records[id]
	if !ok || r.ProjectID != projectID {
		return nil, object.ErrNotFound
	}
	return r, nil
}

func (f *fakeObjects) FindByID(ctx context.Context, id string) (*object.Record, error) {
	r, ok := f.records[id]
	if !ok {
		return nil, object.ErrNotFound
	}
	return r, nil
}

func (f *fakeObjects) List(ctx context.Context, projectID, bucketName string) ([]*object.Record, error) {
	return nil, nil
}

func (f *fakeObjects) Insert(ctx context.Context, rec *object.Record) (string, error) {
	return "", nil
}

func (f *fakeObjects) Remove(ctx context.Context, id string) error {
	return nil
}

func (f *fakeObjects) SetOptimization(ctx context.Context, id string, thumbnails json.RawMessage) error {
	r, ok := f.records[id]
	if !ok {
		return object.ErrNotFound
	}
	now := time.Now()
	r.OptimizedAt = &now
	r.Thumbnails = thumbnails
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		JPEGQuality:    85,
		ThumbnailSizes: map[string]int{"xs": 100, "sm": 300, "md": 600, "lg": 1200},
	}
}

// seedImage uploads an in-memory PNG and returns its index record.
func seedImage(t *testing.T, store storage.Storage, repo *fakeObjects, w, h int) *object.Record {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	rec := &object.Record{
		ID:          "o1",
		ProjectID:   "p1",
		BucketName:  "media",
		Filename:    "photo.png",
		StoragePath: "p1/media/aaaa.png",
		MimeType:    "image/png",
		Size:        int64(buf.Len()),
	}
	require.NoError(t, store.Upload(context.Background(), rec.StoragePath, &buf, rec.Size, "image/png"))
	repo.records[rec.ID] = rec
	return rec
}

func testService(t *testing.T) (*Service, *fakeObjects, storage.Storage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := &fakeObjects{records: make(map[string]*object.Record)}
	return NewService(repo, store, testConfig()), repo, store
}

func TestOptimizeGeneratesAllSizes(t *testing.T) {
	t.Parallel()
	svc, repo, store := testService(t)
	ctx := context.Background()

	rec := seedImage(t, store, repo, 800, 400)

	res, err := svc.Optimize(ctx, "p1", "o1")
	require.NoError(t, err)
	require.Len(t, res.Thumbnails, 4)

	// Landscape 800x400: the longer side is capped, aspect ratio preserved.
	// Sizes larger than the original leave it untouched.
	wantDims := map[string][2]int{
		"xs": {100, 50},
		"sm": {300, 150},
		"md": {600, 300},
		"lg": {800, 400},
	}
	for name, want := range wantDims {
		thumb, ok := res.Thumbnails[name]
		require.True(t, ok, "missing size %s", name)
		assert.Equal(t, want[0], thumb.Width, "size %s width", name)
		assert.Equal(t, want[1], thumb.Height, "size %s height", name)
		assert.Equal(t, ThumbnailKey(rec, name), thumb.Key)

		// Every variant is a decodable JPEG in storage.
		f, err := store.Open(ctx, thumb.Key)
		require.NoError(t, err)
		img, err := jpeg.Decode(f)
		require.NoError(t, f.Close())
		require.NoError(t, err)
		assert.Equal(t, want[0], img.Bounds().Dx())
	}

	// The manifest is stamped onto the object row.
	require.NotNil(t, rec.OptimizedAt)
	var manifest map[string]Thumbnail
	require.NoError(t, json.Unmarshal(rec.Thumbnails, &manifest))
	assert.Len(t, manifest, 4)
}

func TestOptimizeScoping(t *testing.T) {
	t.Parallel()
	svc, repo, store := testService(t)

	seedImage(t, store, repo, 10, 10)

	// Another tenant cannot optimize the object, and the miss is a not-found.
	_, err := svc.Optimize(context.Background(), "p2", "o1")
	assert.ErrorIs(t, err, object.ErrNotFound)
}

func TestOptimizeRejectsNonImages(t *testing.T) {
	t.Parallel()
	svc, repo, _ := testService(t)

	repo.records["doc"] = &object.Record{
		ID: "doc", ProjectID: "p1", MimeType: "application/pdf", StoragePath: "p1/docs/x.pdf",
	}
	_, err := svc.Optimize(context.Background(), "p1", "doc")
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestOpenThumbnail(t *testing.T) {
	t.Parallel()
	svc, repo, store := testService(t)
	ctx := context.Background()

	rec := seedImage(t, store, repo, 400, 400)

	// Before optimization there is nothing to serve.
	_, err := svc.OpenThumbnail(ctx, rec, "xs")
	assert.ErrorIs(t, err, ErrNoThumbnail)

	_, err = svc.Optimize(ctx, "p1", "o1")
	require.NoError(t, err)

	stream, err := svc.OpenThumbnail(ctx, rec, "xs")
	require.NoError(t, err)
	data, err := io.ReadAll(stream)
	require.NoError(t, stream.Close())
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// Unknown size names are rejected without touching storage.
	_, err = svc.OpenThumbnail(ctx, rec, "xl")
	assert.ErrorIs(t, err, ErrNoThumbnail)
}

func TestCanOptimize(t *testing.T) {
	t.Parallel()

	assert.True(t, CanOptimize("image/png"))
	assert.True(t, CanOptimize("image/jpeg"))
	assert.False(t, CanOptimize("image/svg+xml"))
	assert.False(t, CanOptimize("application/pdf"))
}

func TestFitWithin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{800, 400, 100, 100, 50},
		{400, 800, 100, 50, 100},
		{50, 50, 100, 50, 50},
		{100, 100, 100, 100, 100},
		{10000, 10, 100, 100, 1},
	}
	for _, tc := range cases {
		w, h := fitWithin(tc.w, tc.h, tc.max)
		assert.Equal(t, tc.wantW, w, "fitWithin(%d,%d,%d) width", tc.w, tc.h, tc.max)
		assert.Equal(t, tc.wantH, h, "fitWithin(%d,%d,%d) height", tc.w, tc.h, tc.max)
	}
}
