// Package storage keeps uploaded documents and produced artifacts under the
// "uploads/<dd_mm_yyyy>/<owner>/<folder>/<file>" object layout.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/filings-extractor/constants"
	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

// ObjectStore is what the extraction service needs from blob storage.
type ObjectStore interface {
	Download(ctx context.Context, ownerID, name string) ([]byte, error)
	Upload(ctx context.Context, ownerID, localPath, folder string) (string, error)
}

const dateLayout = "02_01_2006"

// LocalStore implements ObjectStore on a directory tree.
type LocalStore struct {
	root   string
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*LocalStore)

// WithClock overrides the clock that picks the date folder.
func WithClock(now func() time.Time) Option {
	return func(s *LocalStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewLocalStore(root string, logger *slog.Logger, opts ...Option) *LocalStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &LocalStore{root: root, now: time.Now, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Key builds the object name for a file stored today.
func (s *LocalStore) Key(ownerID, folder, name string) string {
	return path.Join("uploads", s.now().Format(dateLayout), ownerID, folder, name)
}

// Download reads a user upload. name is either a bare file name, resolved in
// today's upload folder, or a full object key.
func (s *LocalStore) Download(ctx context.Context, ownerID, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkSegments(ownerID); err != nil {
		return nil, err
	}
	key := name
	if !strings.HasPrefix(name, "uploads/") {
		if err := checkSegments(name); err != nil {
			return nil, err
		}
		key = s.Key(ownerID, constants.FolderUserUpload, name)
	}
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("storage.download.missing", "owner_id", ownerID, "key", key)
		return nil, common.NewAppError("NOT_FOUND", "object "+key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	s.logger.Info("storage.download.ok", "owner_id", ownerID, "key", key, "bytes", len(data))
	return data, nil
}

// Upload copies localPath into the owner's folder for today and returns the key.
func (s *LocalStore) Upload(ctx context.Context, ownerID, localPath, folder string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkSegments(ownerID, folder); err != nil {
		return "", err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	key := s.Key(ownerID, folder, filepath.Base(localPath))
	if err := s.write(key, src); err != nil {
		return "", err
	}
	s.logger.Info("storage.upload.ok", "owner_id", ownerID, "key", key)
	return key, nil
}

// Put stores data under today's folder; used when documents arrive as bytes.
func (s *LocalStore) Put(ctx context.Context, ownerID, folder, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkSegments(ownerID, folder, name); err != nil {
		return "", err
	}
	key := s.Key(ownerID, folder, name)
	if err := s.write(key, r); err != nil {
		return "", err
	}
	return key, nil
}

// List returns today's object keys in an owner's folder, sorted.
func (s *LocalStore) List(ctx context.Context, ownerID, folder string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkSegments(ownerID, folder); err != nil {
		return nil, err
	}
	prefix := s.Key(ownerID, folder, "")
	entries, err := os.ReadDir(filepath.Join(s.root, filepath.FromSlash(prefix)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		keys = append(keys, path.Join(prefix, e.Name()))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) write(key string, r io.Reader) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create folder for %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// resolve maps a key onto the filesystem, refusing anything outside root.
func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean(key)
	if clean != key || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", common.NewAppError("INVALID_KEY", "object key "+key, common.ErrInvalidInput)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func checkSegments(parts ...string) error {
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `/\`) {
			return common.NewAppError("INVALID_KEY", fmt.Sprintf("invalid path segment %q", p), common.ErrInvalidInput)
		}
	}
	return nil
}

var _ ObjectStore = (*LocalStore)(nil)
