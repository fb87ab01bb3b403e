// Package cloudwriter buffers artifacts and uploads them to object storage on Close.
package cloudwriter

import "context"

type CloudWriter interface {
	Write(data []byte) (int, error)
	Close() error
}

type CloudWriterFactory interface {
	NewWriter(ctx context.Context, bucket, objectPath, contentType string) (CloudWriter, error)
}
