// Package storage persists uploaded publication files and resolves the public
// URL visitors use to fetch them.
package storage

import (
	"context"
	"io"
)

// Object is a single file handed to an ObjectStore.
type Object struct {
	Bucket      string
	Key         string
	ContentType string
	Body        io.Reader
}

// ObjectStore writes objects with overwrite semantics and returns a public URL.
type ObjectStore interface {
	Put(ctx context.Context, obj Object) (string, error)
}
