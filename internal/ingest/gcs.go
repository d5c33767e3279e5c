package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

// GCSSource downloads documents from Cloud Storage.
type GCSSource struct {
	client *storage.Client
}

// NewGCSSource builds a storage client. An empty credentialsFile falls back
// to application default credentials.
func NewGCSSource(ctx context.Context, credentialsFile string) (*GCSSource, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &GCSSource{client: client}, nil
}

func (g *GCSSource) Download(ctx context.Context, bucket, object string, w io.Writer) error {
	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return fmt.Errorf("%w: gs://%s/%s", common.ErrNotFound, bucket, object)
		}
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusForbidden {
			return fmt.Errorf("%w: access denied to gs://%s/%s", common.ErrInvalidInput, bucket, object)
		}
		return err
	}
	defer r.Close()

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("read gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

func (g *GCSSource) Close() error {
	return g.client.Close()
}
