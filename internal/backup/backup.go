// Package backup copies the saved-roster catalogue to and from Azure Blob Storage.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/catalog"
)

// Blobs is the object storage the backup service writes to.
type Blobs interface {
	Upload(ctx context.Context, name string, body []byte, metadata map[string]string) error
	Download(ctx context.Context, name string) (io.ReadCloser, error)
}

// Config locates the backup container. ConnectionString wins over AccountURL;
// with only AccountURL the default Azure credential chain is used.
type Config struct {
	AccountURL       string
	ConnectionString string
	Container        string
}

// AzureBlobs stores backups in one Azure Blob Storage container.
type AzureBlobs struct {
	client    *azblob.Client
	container string
	ensured   bool
}

// NewAzureBlobs builds a client from cfg.
func NewAzureBlobs(cfg Config) (*AzureBlobs, error) {
	const op = "backup"
	if cfg.Container == "" {
		return nil, apperr.New(apperr.KindValidation, op, "backup container is required")
	}
	opts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: 3},
		},
	}

	var (
		client *azblob.Client
		err    error
	)
	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, opts)
	case cfg.AccountURL != "":
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, apperr.Wrap(apperr.KindValidation, op, fmt.Errorf("loading Azure credentials: %w", credErr))
		}
		client, err = azblob.NewClient(cfg.AccountURL, cred, opts)
	default:
		return nil, apperr.New(apperr.KindValidation, op, "set backup.account_url or backup.connection_string")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, err)
	}
	return &AzureBlobs{client: client, container: cfg.Container}, nil
}

func (a *AzureBlobs) ensureContainer(ctx context.Context) error {
	if a.ensured {
		return nil
	}
	_, err := a.client.CreateContainer(ctx, a.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("creating container %s: %w", a.container, err)
	}
	a.ensured = true
	return nil
}

func (a *AzureBlobs) Upload(ctx context.Context, name string, body []byte, metadata map[string]string) error {
	if err := a.ensureContainer(ctx); err != nil {
		return apperr.Wrap(apperr.KindNetwork, "backup", err)
	}
	meta := make(map[string]*string, len(metadata))
	for k, v := range metadata {
		meta[k] = to.Ptr(v)
	}
	_, err := a.client.UploadBuffer(ctx, a.container, name, body, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr("application/gzip")},
		Metadata:    meta,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, "backup", fmt.Errorf("uploading %s: %w", name, err))
	}
	return nil
}

func (a *AzureBlobs) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "restore", "no backup named %s in %s", name, a.container)
		}
		return nil, apperr.Wrap(apperr.KindNetwork, "restore", fmt.Errorf("downloading %s: %w", name, err))
	}
	return resp.Body, nil
}

// Service pushes catalogue exports to Blobs and restores them.
type Service struct {
	blobs   Blobs
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// New creates a Service. A nil logger uses slog.Default().
func New(blobs Blobs, c *catalog.Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{blobs: blobs, catalog: c, logger: logger}
}

// Push uploads a gzip-compressed export under name and returns the number
// of rosters it holds.
func (s *Service) Push(ctx context.Context, name string) (int, error) {
	var buf bytes.Buffer
	n, err := s.catalog.ExportAll(ctx, &buf, true)
	if err != nil {
		return 0, err
	}
	meta := map[string]string{"rosters": strconv.Itoa(n), "format": strconv.Itoa(catalog.ExportVersion)}
	if err := s.blobs.Upload(ctx, name, buf.Bytes(), meta); err != nil {
		return 0, err
	}
	s.logger.Info("catalogue backed up", "blob", name, "count", n, "bytes", buf.Len())
	return n, nil
}

// Pull downloads name and replaces the catalogue with it. A payload that
// fails validation leaves the catalogue untouched.
func (s *Service) Pull(ctx context.Context, name string) (int, error) {
	body, err := s.blobs.Download(ctx, name)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	n, err := s.catalog.ImportAll(ctx, body)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return 0, err
		}
		return 0, fmt.Errorf("restoring %s: %w", name, err)
	}
	s.logger.Info("catalogue restored", "blob", name, "count", n)
	return n, nil
}
