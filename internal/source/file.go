package source

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ignite/churn-radar/internal/datanorm"
	"github.com/ignite/churn-radar/internal/storage"
)

// FileLoader reads a local CSV file.
type FileLoader struct {
	Source datanorm.Source
	Path   string
}

func (l FileLoader) Load(_ context.Context) (datanorm.Table, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return datanorm.Table{}, err
	}
	defer f.Close()
	return datanorm.ReadTable(l.Source, f)
}

func (l FileLoader) Describe() string { return l.Path }

// ReaderLoader parses an already open CSV stream, such as an upload.
type ReaderLoader struct {
	Source datanorm.Source
	Name   string
	Reader io.Reader
}

func (l ReaderLoader) Load(_ context.Context) (datanorm.Table, error) {
	return datanorm.ReadTable(l.Source, l.Reader)
}

func (l ReaderLoader) Describe() string { return l.Name }

// BucketReader reads an exact key from a named bucket.
type BucketReader interface {
	GetFromBucket(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// ObjectLoader reads a CSV object from a store, or from a specific bucket
// when Bucket is set and the store can address buckets.
type ObjectLoader struct {
	Source datanorm.Source
	Store  storage.Store
	Bucket string
	Key    string
}

func (l ObjectLoader) Load(ctx context.Context) (datanorm.Table, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	if br, ok := l.Store.(BucketReader); ok && l.Bucket != "" {
		rc, err = br.GetFromBucket(ctx, l.Bucket, l.Key)
	} else {
		rc, err = l.Store.Get(ctx, l.Key)
	}
	if err != nil {
		return datanorm.Table{}, err
	}
	defer rc.Close()
	return datanorm.ReadTable(l.Source, rc)
}

func (l ObjectLoader) Describe() string {
	if l.Bucket != "" {
		return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
	}
	return l.Store.URI(l.Key)
}
