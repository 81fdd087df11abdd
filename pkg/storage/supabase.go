package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	storage_go "github.com/supabase-community/storage-go"

	"github.com/noah-isme/labsite-api/pkg/session"
)

type supabaseBucketAPI interface {
	UploadFile(bucketID string, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID string, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// SupabaseStorage writes objects to hosted storage buckets. Uploads run under
// the session token found in the context, falling back to the project API key.
type SupabaseStorage struct {
	apiKey string
	open   func(token string) supabaseBucketAPI
}

// NewSupabaseStorage targets the storage API of the project at projectURL.
func NewSupabaseStorage(projectURL, apiKey string) *SupabaseStorage {
	endpoint := strings.TrimRight(projectURL, "/") + "/storage/v1"
	return &SupabaseStorage{
		apiKey: apiKey,
		open: func(token string) supabaseBucketAPI {
			return storage_go.NewClient(endpoint, token, map[string]string{"apikey": apiKey})
		},
	}
}

// Put uploads with upsert enabled and returns the bucket's public URL for the object.
// The storage client has no context support; ctx is only checked before the call.
func (s *SupabaseStorage) Put(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	upsert := true
	opts := storage_go.FileOptions{Upsert: &upsert}
	if obj.ContentType != "" {
		contentType := obj.ContentType
		opts.ContentType = &contentType
	}
	client := s.open(session.TokenOr(ctx, s.apiKey))
	if _, err := client.UploadFile(obj.Bucket, obj.Key, obj.Body, opts); err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", obj.Bucket, obj.Key, err)
	}
	return client.GetPublicUrl(obj.Bucket, obj.Key).SignedURL, nil
}
