package backup

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/catalog"
	"github.com/peninsula-health/rosterctl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBlobs struct {
	objects map[string][]byte
	meta    map[string]map[string]string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (m *memBlobs) Upload(_ context.Context, name string, body []byte, metadata map[string]string) error {
	m.objects[name] = bytes.Clone(body)
	m.meta[name] = metadata
	return nil
}

func (m *memBlobs) Download(_ context.Context, name string) (io.ReadCloser, error) {
	b, ok := m.objects[name]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "restore", "no backup named %s", name)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	return catalog.New(catalog.NewFileStore(filepath.Join(t.TempDir(), "rosters.json")))
}

func job(id string) *models.RosterJob {
	return &models.RosterJob{
		ID:     id,
		Status: models.JobCompleted,
		RosterData: models.RosterData{
			"2025-01-06": {"Frankston Blue AM": "Dr A", "Rosebud Red PM": "Dr B"},
		},
	}
}

func TestPushPull_RoundTrip(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobs()

	src := newCatalog(t)
	_, err := src.Save(ctx, job("job-1"), "first")
	require.NoError(t, err)
	_, err = src.Save(ctx, job("job-2"), "second")
	require.NoError(t, err)

	n, err := New(blobs, src, nil).Push(ctx, "catalog.json.gz")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "2", blobs.meta["catalog.json.gz"]["rosters"])
	assert.Equal(t, []byte{0x1f, 0x8b}, blobs.objects["catalog.json.gz"][:2])

	dst := newCatalog(t)
	n, err = New(blobs, dst, nil).Pull(ctx, "catalog.json.gz")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := dst.List(ctx, catalog.ListOptions{SortBy: catalog.SortByName, Order: "asc"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "second", got[1].Name)
	assert.Equal(t, 100, got[0].CoverageRate)
}

func TestPull_MissingBlob(t *testing.T) {
	_, err := New(newMemBlobs(), newCatalog(t), nil).Pull(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestPull_InvalidPayloadKeepsCatalogue(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobs()
	blobs.objects["bad"] = []byte(`{"version":1,"rosters":[{"id":"","job_id":"j"}]}`)

	c := newCatalog(t)
	_, err := c.Save(ctx, job("job-1"), "keep me")
	require.NoError(t, err)

	_, err = New(blobs, c, nil).Pull(ctx, "bad")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	got, err := c.List(ctx, catalog.ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep me", got[0].Name)
}
