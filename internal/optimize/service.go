// Package optimize generates resized image variants (thumbnails) for stored
// objects on request. The variants live next to the original in storage and
// are listed in a manifest on the object row.
package optimize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"path"
	"sort"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/cargohold/service/internal/config"
	"github.com/cargohold/service/internal/object"
	"github.com/cargohold/service/internal/storage"
)

// ErrNotImage is returned when the object is not an optimizable image type.
var ErrNotImage = errors.New("object is not an image")

// ErrNoThumbnail is returned when the requested variant has not been generated.
var ErrNoThumbnail = errors.New("thumbnail not available")

// optimizableTypes are the formats the decoder registered above can read.
// SVG, AVIF and WebP uploads are stored fine but cannot be re-encoded here.
var optimizableTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Thumbnail is one generated variant, recorded in the object's manifest.
type Thumbnail struct {
	Key    string `json:"key"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}

// Result reports what Optimize produced for one object.
type Result struct {
	ObjectID   string               `json:"objectId"`
	Thumbnails map[string]Thumbnail `json:"thumbnails"`
}

// Service generates and serves image variants.
type Service struct {
	objects object.Repository
	store   storage.Storage
	cfg     *config.Config
}

// NewService creates a new optimize Service.
func NewService(objects object.Repository, store storage.Storage, cfg *config.Config) *Service {
	return &Service{objects: objects, store: store, cfg: cfg}
}

// CanOptimize reports whether the MIME type is a supported image format.
func CanOptimize(mimeType string) bool {
	return optimizableTypes[mimeType]
}

// Optimize generates the configured thumbnail sizes for the object, uploads
// them next to the original, and stamps the manifest onto the object row.
// The object must belong to the given project.
func (s *Service) Optimize(ctx context.Context, projectID, objectID string) (*Result, error) {
	rec, err := s.objects.FindByIDScoped(ctx, projectID, objectID)
	if err != nil {
		return nil, err
	}
	if !CanOptimize(rec.MimeType) {
		return nil, ErrNotImage
	}

	src, err := s.store.Open(ctx, rec.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open original: %w", err)
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	manifest := make(map[string]Thumbnail, len(s.cfg.ThumbnailSizes))
	for _, name := range sortedSizeNames(s.cfg.ThumbnailSizes) {
		thumb, err := s.generateOne(ctx, rec, img, name, s.cfg.ThumbnailSizes[name])
		if err != nil {
			// A single failed size does not abort the rest.
			log.Printf("optimize: %s size %s failed: %v", objectID, name, err)
			continue
		}
		manifest[name] = *thumb
	}
	if len(manifest) == 0 {
		return nil, errors.New("no thumbnails could be generated")
	}

	blob, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := s.objects.SetOptimization(ctx, objectID, blob); err != nil {
		return nil, err
	}

	return &Result{ObjectID: objectID, Thumbnails: manifest}, nil
}

// generateOne scales the image to fit maxDim, encodes it as JPEG, and
// uploads it under the object's thumbnail key.
func (s *Service) generateOne(ctx context.Context, rec *object.Record, img image.Image, sizeName string, maxDim int) (*Thumbnail, error) {
	w, h := fitWithin(img.Bounds().Dx(), img.Bounds().Dy(), maxDim)

	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: s.cfg.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	key := ThumbnailKey(rec, sizeName)
	size := int64(buf.Len())
	if err := s.store.Upload(ctx, key, &buf, size, "image/jpeg"); err != nil {
		return nil, fmt.Errorf("store thumbnail: %w", err)
	}

	return &Thumbnail{Key: key, Width: w, Height: h, Size: size}, nil
}

// GetByID resolves an object record with no project constraint; the
// thumbnail serving path gates access the same way the file path does.
func (s *Service) GetByID(ctx context.Context, id string) (*object.Record, error) {
	return s.objects.FindByID(ctx, id)
}

// OpenThumbnail streams a previously generated variant of the object.
func (s *Service) OpenThumbnail(ctx context.Context, rec *object.Record, sizeName string) (io.ReadCloser, error) {
	if _, ok := s.cfg.ThumbnailSizes[sizeName]; !ok {
		return nil, ErrNoThumbnail
	}
	if rec.OptimizedAt == nil || len(rec.Thumbnails) == 0 {
		return nil, ErrNoThumbnail
	}

	var manifest map[string]Thumbnail
	if err := json.Unmarshal(rec.Thumbnails, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	thumb, ok := manifest[sizeName]
	if !ok {
		return nil, ErrNoThumbnail
	}

	stream, err := s.store.Open(ctx, thumb.Key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoThumbnail
	}
	return stream, err
}

// ThumbnailKey builds the storage key for one variant, beside the original.
func ThumbnailKey(rec *object.Record, sizeName string) string {
	return path.Dir(rec.StoragePath) + "/thumbnails/" + rec.ID + "_" + sizeName + ".jpg"
}

// fitWithin shrinks (w, h) proportionally so the longer side equals maxDim.
// Images already smaller are left alone.
func fitWithin(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w >= h {
		return maxDim, atLeastOne(h * maxDim / w)
	}
	return atLeastOne(w * maxDim / h), maxDim
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func sortedSizeNames(sizes map[string]int) []string {
	names := make([]string, 0, len(sizes))
	for name := range sizes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
