package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/filings-extractor/constants"
	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

func fixedClock() time.Time { return time.Date(2024, 7, 5, 9, 30, 0, 0, time.UTC) }

func newStore(t *testing.T) (*LocalStore, string) {
	root := t.TempDir()
	return NewLocalStore(root, nil, WithClock(fixedClock)), root
}

func TestKeyLayout(t *testing.T) {
	s, _ := newStore(t)
	assert.Equal(t, "uploads/05_07_2024/owner-1/user_extract/report.xlsx", s.Key("owner-1", constants.FolderUserExtract, "report.xlsx"))
}

func TestPutThenDownloadByNameAndKey(t *testing.T) {
	ctx := context.Background()
	s, root := newStore(t)

	key, err := s.Put(ctx, "owner-1", constants.FolderUserUpload, "annual.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, filepath.FromSlash(key)))

	data, err := s.Download(ctx, "owner-1", "annual.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))

	data, err = s.Download(ctx, "owner-1", key)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
}

func TestDownloadMissing(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Download(context.Background(), "owner-1", "nope.pdf")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUploadAndList(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	local := filepath.Join(t.TempDir(), "annual_combined.csv")
	require.NoError(t, os.WriteFile(local, []byte("a,b\n"), 0o644))

	key, err := s.Upload(ctx, "owner-1", local, constants.FolderUserExtract)
	require.NoError(t, err)
	assert.Equal(t, "uploads/05_07_2024/owner-1/user_extract/annual_combined.csv", key)

	keys, err := s.List(ctx, "owner-1", constants.FolderUserExtract)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	keys, err = s.List(ctx, "owner-2", constants.FolderUserExtract)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRejectsEscapingPaths(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	_, err := s.Download(ctx, "../etc", "passwd")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = s.Download(ctx, "owner-1", "uploads/../../secret")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = s.Put(ctx, "owner-1", constants.FolderUserUpload, "a/b.pdf", strings.NewReader(""))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
