package gate

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargohold/service/internal/object/meta"
	"github.com/cargohold/service/internal/signing"
)

type fakeIndex struct {
	records []*meta.Record
}

func (f *fakeIndex) Find(ctx context.Context, bucketName, filename string) (*meta.Record, error) {
	for _, r := range f.records {
		if r.BucketName == bucketName && r.Filename == filename {
			return r, nil
		}
	}
	return nil, meta.ErrNotFound
}

func (f *fakeIndex) FindScoped(ctx context.Context, projectID, bucketName, filename string) (*meta.Record, error) {
	for _, r := range f.records {
		if r.ProjectID == projectID && r.BucketName == bucketName && r.Filename == filename {
			return r, nil
		}
	}
	return nil, meta.ErrNotFound
}

type staticSecrets map[string]string

func (s staticSecrets) SecretFor(ctx context.Context, projectID string) (string, error) {
	return s[projectID], nil
}

func testFixture() (*Gate, *signing.Signer) {
	index := &fakeIndex{records: []*meta.Record{
		{ID: "o1", ProjectID: "p1", BucketName: "public-assets", Filename: "logo.png", IsPublic: true},
		{ID: "o2", ProjectID: "p1", BucketName: "vault", Filename: "report.pdf", IsPublic: false},
		{ID: "o3", ProjectID: "p2", BucketName: "vault", Filename: "other.pdf", IsPublic: false},
	}}
	signer := signing.NewSigner(staticSecrets{"p1": "sk-p1", "p2": "sk-p2"})
	return New(index, signer), signer
}

func TestAuthorizeOwnerScoping(t *testing.T) {
	t.Parallel()
	g, _ := testFixture()
	ctx := context.Background()

	rec, err := g.AuthorizeOwner(ctx, "p1", "vault", "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "o2", rec.ID)

	// Another tenant's object looks like it does not exist.
	_, err = g.AuthorizeOwner(ctx, "p1", "vault", "other.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = g.AuthorizeOwner(ctx, "p1", "vault", "missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthorizeReadPublicBucket(t *testing.T) {
	t.Parallel()
	g, _ := testFixture()

	// No token needed for a public bucket.
	rec, err := g.AuthorizeRead(context.Background(), "public-assets", "logo.png", "", "")
	require.NoError(t, err)
	assert.Equal(t, "o1", rec.ID)
}

func TestAuthorizeReadPrivateBucket(t *testing.T) {
	t.Parallel()
	g, signer := testFixture()
	ctx := context.Background()

	grant, err := signer.Generate(ctx, "p1", "vault", "report.pdf", 3600)
	require.NoError(t, err)
	expires := strconv.FormatInt(grant.ExpiresAt, 10)

	rec, err := g.AuthorizeRead(ctx, "vault", "report.pdf", grant.Token, expires)
	require.NoError(t, err)
	assert.Equal(t, "o2", rec.ID)

	cases := []struct {
		name    string
		token   string
		expires string
	}{
		{"missing token", "", expires},
		{"missing expires", grant.Token, ""},
		{"malformed expires", grant.Token, "soon"},
		{"tampered token", grant.Token[:63] + "x", expires},
		{"expired", grant.Token, strconv.FormatInt(time.Now().Unix()-10, 10)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.AuthorizeRead(ctx, "vault", "report.pdf", tc.token, tc.expires)
			assert.ErrorIs(t, err, ErrDenied)
		})
	}
}

func TestAuthorizeReadUnknownObject(t *testing.T) {
	t.Parallel()
	g, _ := testFixture()

	_, err := g.AuthorizeRead(context.Background(), "vault", "nope.pdf", "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthorizeReadTokenSignedByOtherTenant(t *testing.T) {
	t.Parallel()
	g, signer := testFixture()
	ctx := context.Background()

	// A token minted with p2's secret must not open p1's object even though
	// bucket and filename collide across the two projects.
	grant, err := signer.Generate(ctx, "p2", "vault", "report.pdf", 3600)
	require.NoError(t, err)

	_, err = g.AuthorizeRead(ctx, "vault", "report.pdf", grant.Token, strconv.FormatInt(grant.ExpiresAt, 10))
	assert.ErrorIs(t, err, ErrDenied)
}
