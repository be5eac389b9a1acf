package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore implémente Store avec Cloud Storage.
type GCSStore struct {
	client *gcs.Client
}

// NewGCSStore crée un client Storage. Le client doit être fermé avec Close.
func NewGCSStore(ctx context.Context, opts ...option.ClientOption) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// Bucket retourne le bucket Cloud Storage name.
func (s *GCSStore) Bucket(name string) Bucket {
	return &gcsBucket{handle: s.client.Bucket(name)}
}

// Close ferme le client Storage.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

type gcsBucket struct {
	handle *gcs.BucketHandle
}

func (b *gcsBucket) Download(ctx context.Context, name, localPath string) error {
	reader, err := b.handle.Object(name).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("download %s: %w", name, mapGCSError(err))
	}
	defer reader.Close()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		return fmt.Errorf("download %s: %w", name, err)
	}
	return file.Close()
}

func (b *gcsBucket) Upload(ctx context.Context, localPath, name, contentType string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	writer := b.handle.Object(name).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return fmt.Errorf("upload %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

func (b *gcsBucket) Move(ctx context.Context, src, dst string) error {
	srcObj := b.handle.Object(src)
	if _, err := b.handle.Object(dst).CopierFrom(srcObj).Run(ctx); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, mapGCSError(err))
	}
	if err := srcObj.Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", src, mapGCSError(err))
	}
	return nil
}

func (b *gcsBucket) Delete(ctx context.Context, name string) error {
	if err := b.handle.Object(name).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", name, mapGCSError(err))
	}
	return nil
}

func (b *gcsBucket) List(ctx context.Context, prefix string) ([]string, error) {
	it := b.handle.Objects(ctx, &gcs.Query{Prefix: prefix})
	var names []string

	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		names = append(names, attrs.Name)
	}

	sort.Strings(names)
	return names, nil
}

func mapGCSError(err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
		return fmt.Errorf("%w: %v", ErrNotExist, err)
	}
	return err
}
