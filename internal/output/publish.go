package output

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/chrisdamba/availmap/internal/cloudwriter"
)

// ArtifactPublisher copies finished files to object storage under
// <prefix>/<run id>/<file name>.
type ArtifactPublisher struct {
	factory cloudwriter.CloudWriterFactory
	bucket  string
	prefix  string
}

func NewArtifactPublisher(factory cloudwriter.CloudWriterFactory, bucket, prefix string) *ArtifactPublisher {
	return &ArtifactPublisher{factory: factory, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (p *ArtifactPublisher) Key(runID, filePath string) string {
	return path.Join(p.prefix, runID, filepath.Base(filePath))
}

// Publish uploads filePath and returns the object URL.
func (p *ArtifactPublisher) Publish(ctx context.Context, runID, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := p.Key(runID, filePath)
	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w, err := p.factory.NewWriter(ctx, p.bucket, key, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to create cloud writer: %w", err)
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to buffer %s: %w", filePath, err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}
