// Package gate is the authorization decision point for object access. Every
// read on the file-serving paths passes through here before any byte is
// streamed; the gate itself never mutates state.
package gate

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/cargohold/service/internal/object/meta"
	"github.com/cargohold/service/internal/signing"
)

// ErrDenied is returned for any failed authentication on the signed read
// path. The reason (missing token, expired, bad digest) is logged server
// side only; clients always see the same generic 401.
var ErrDenied = errors.New("access denied")

// ErrNotFound is returned when the object cannot be resolved. Cross-tenant
// hits surface as this error too, never as a permission failure.
var ErrNotFound = errors.New("object not found")

// Index resolves object metadata for access decisions.
type Index interface {
	Find(ctx context.Context, bucketName, filename string) (*meta.Record, error)
	FindScoped(ctx context.Context, projectID, bucketName, filename string) (*meta.Record, error)
}

// Verifier checks a capability token against the owning project's secret.
type Verifier interface {
	Verify(ctx context.Context, ownerProjectID, bucketName, filename, token string, expiresAt int64) error
}

// Gate decides whether a request may touch an object.
type Gate struct {
	index    Index
	verifier Verifier
}

// New creates an access gate over the given index and token verifier.
func New(index Index, verifier Verifier) *Gate {
	return &Gate{index: index, verifier: verifier}
}

// AuthorizeOwner admits a request already authenticated with an API key. The
// lookup is constrained to the caller's project: a valid key for one tenant
// can never resolve another tenant's object, even when bucket and filename
// collide.
func (g *Gate) AuthorizeOwner(ctx context.Context, projectID, bucketName, filename string) (*meta.Record, error) {
	rec, err := g.index.FindScoped(ctx, projectID, bucketName, filename)
	if errors.Is(err, meta.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// AuthorizeRead admits the public file-serving path. The object is resolved
// by bucket and filename alone; a public bucket grants access outright, a
// private one requires a valid, unexpired capability token signed by the
// owning project.
func (g *Gate) AuthorizeRead(ctx context.Context, bucketName, filename, token, expiresRaw string) (*meta.Record, error) {
	rec, err := g.index.Find(ctx, bucketName, filename)
	if errors.Is(err, meta.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if rec.IsPublic {
		return rec, nil
	}

	if token == "" || expiresRaw == "" {
		log.Printf("gate: denied %s/%s: missing token or expires", bucketName, filename)
		return nil, ErrDenied
	}
	expiresAt, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil {
		log.Printf("gate: denied %s/%s: malformed expires", bucketName, filename)
		return nil, ErrDenied
	}

	// The owning project comes from the record, never from the request.
	err = g.verifier.Verify(ctx, rec.ProjectID, bucketName, filename, token, expiresAt)
	switch {
	case errors.Is(err, signing.ErrExpired):
		log.Printf("gate: denied %s/%s: url expired", bucketName, filename)
		return nil, ErrDenied
	case errors.Is(err, signing.ErrInvalidToken):
		log.Printf("gate: denied %s/%s: token mismatch", bucketName, filename)
		return nil, ErrDenied
	case err != nil:
		return nil, err
	}

	return rec, nil
}
