// Package blobstore stores uploaded clinical documents. It provides the
// upload content validator, the storage namer, and a BlobStore backed by an
// afero filesystem: the OS filesystem in production and an in-memory one in
// tests. A Put only returns after the content has been synced and renamed
// into place, so callers may reference the key in metadata as soon as Put
// succeeds.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrBlobExists         = errors.New("blob already exists")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrInvalidKey         = errors.New("invalid storage key")
)

// ---------------------------------------------------------------------------
// BlobStore interface
// ---------------------------------------------------------------------------

// BlobStore defines the contract for binary storage backends.
type BlobStore interface {
	// Put writes content under key and returns the number of bytes stored.
	// Content larger than the store limit is rejected with ErrFileTooLarge and
	// leaves nothing behind.
	Put(ctx context.Context, key string, content io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ---------------------------------------------------------------------------
// Filesystem implementation
// ---------------------------------------------------------------------------

// FSBlobStore keeps blobs as flat files under a root directory.
type FSBlobStore struct {
	fs      afero.Fs
	root    string
	maxSize int64
}

// NewFSBlobStore creates the root directory if needed and returns a store
// enforcing MaxFileSize.
func NewFSBlobStore(fsys afero.Fs, root string) (*FSBlobStore, error) {
	if err := fsys.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FSBlobStore{fs: fsys, root: root, maxSize: MaxFileSize}, nil
}

// NewLocalBlobStore returns an FSBlobStore on the OS filesystem.
func NewLocalBlobStore(root string) (*FSBlobStore, error) {
	return NewFSBlobStore(afero.NewOsFs(), root)
}

func (s *FSBlobStore) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, key), nil
}

// Put streams content into a temporary file, syncs it, and renames it to
// its final name.
func (s *FSBlobStore) Put(ctx context.Context, key string, content io.Reader) (int64, error) {
	final, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	exists, err := afero.Exists(s.fs, final)
	if err != nil {
		return 0, fmt.Errorf("stat blob: %w", err)
	}
	if exists {
		return 0, ErrBlobExists
	}

	tmp := filepath.Join(s.root, "."+key+".part")
	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(content, s.maxSize+1))
	if err == nil && n > s.maxSize {
		err = ErrFileTooLarge
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		if errors.Is(err, ErrFileTooLarge) {
			return 0, err
		}
		return 0, fmt.Errorf("write blob: %w", err)
	}

	if err := s.fs.Rename(tmp, final); err != nil {
		_ = s.fs.Remove(tmp)
		return 0, fmt.Errorf("commit blob: %w", err)
	}
	return n, nil
}

// Open returns a reader over a stored blob.
func (s *FSBlobStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

// Delete removes a blob by key.
func (s *FSBlobStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// Exists reports whether key is stored.
func (s *FSBlobStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, p)
}
