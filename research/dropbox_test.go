package research

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/pkg/errors"
	"github.com/shayanh/pdftitle/title"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDropbox serves a fixed folder listing. Downloaded files hold the
// content registered for their lower-cased path.
type fakeDropbox struct {
	dir     string
	lock    sync.Mutex
	entries []files.IsMetadata
	cursor  string
	listErr error
	content map[string]string

	cursors   []string
	downloads []string
	moves     [][2]string
}

func (fd *fakeDropbox) ListFolder(path string, cursor string) ([]files.IsMetadata, string, error) {
	fd.lock.Lock()
	defer fd.lock.Unlock()
	fd.cursors = append(fd.cursors, cursor)
	if fd.listErr != nil {
		return nil, cursor, fd.listErr
	}
	return fd.entries, fd.cursor, nil
}

func (fd *fakeDropbox) Download(ctx context.Context, p string) (string, error) {
	fd.lock.Lock()
	defer fd.lock.Unlock()
	fd.downloads = append(fd.downloads, p)
	content, ok := fd.content[p]
	if !ok {
		return "", errors.Errorf("dropbox Download failed: %s not found", p)
	}
	f, err := os.CreateTemp(fd.dir, "download-*.pdf")
	if err != nil {
		return "", err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return f.Name(), err
}

func (fd *fakeDropbox) Move(ctx context.Context, from, to string) error {
	fd.lock.Lock()
	defer fd.lock.Unlock()
	fd.moves = append(fd.moves, [2]string{from, to})
	return nil
}

func (fd *fakeDropbox) FileLink(p string) (string, error) {
	return "https://www.dropbox.com/s/abc" + p, nil
}

func (fd *fakeDropbox) listCalls() int {
	fd.lock.Lock()
	defer fd.lock.Unlock()
	return len(fd.cursors)
}

func dropboxFile(p string) *files.FileMetadata {
	return &files.FileMetadata{
		Metadata: files.Metadata{Name: path.Base(p), PathLower: strings.ToLower(p), PathDisplay: p},
		Id:       "id:" + path.Base(p),
	}
}

func newTestSynchronizer(fd *fakeDropbox, store Store, reporter Reporter) *DropboxSynchronizer {
	return NewDropboxSynchronizer(fd, uploadExtractor{}, store, reporter, RenameConfig{MaxNameLength: 200}, testLogger())
}

func TestSyncFolder(t *testing.T) {
	fd := &fakeDropbox{
		entries: []files.IsMetadata{
			&files.FolderMetadata{Metadata: files.Metadata{Name: "old", PathLower: "/papers/old", PathDisplay: "/Papers/old"}},
			dropboxFile("/Papers/notes.txt"),
			dropboxFile("/Papers/1.pdf"),
			dropboxFile("/Papers/2.pdf"),
		},
		cursor:  "AAE1",
		content: map[string]string{"/papers/1.pdf": "raft", "/papers/2.pdf": "blank"},
		dir:     t.TempDir(),
	}
	store := NewMemoryStore()
	reporter := &fakeReporter{}
	ds := newTestSynchronizer(fd, store, reporter)

	reports, err := ds.SyncFolder(context.Background(), "/Papers")
	require.NoError(t, err)
	assert.Equal(t, []string{"/papers/1.pdf", "/papers/2.pdf"}, fd.downloads)

	require.Len(t, reports, 2)
	target := "/Papers/In Search of an Understandable Consensus Algorithm.pdf"
	assert.Equal(t, OutcomeRenamed, reports[0].Outcome)
	assert.Equal(t, target, reports[0].NewPath)
	assert.Equal(t, "https://www.dropbox.com/s/abc"+target, reports[0].URL)
	assert.Equal(t, OutcomeSkipped, reports[1].Outcome)
	assert.Equal(t, [][2]string{{"/Papers/1.pdf", target}}, fd.moves)

	require.Len(t, reporter.reports, 1)
	assert.Equal(t, target, reporter.reports[0].NewPath)

	cursor, ok, err := store.Get(context.Background(), ds.getCursorKey("/Papers"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "AAE1", cursor)

	_, err = ds.SyncFolder(context.Background(), "/Papers")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "AAE1"}, fd.cursors)
}

func TestSyncFolderKeepsCursorOnFailure(t *testing.T) {
	fd := &fakeDropbox{
		dir:     t.TempDir(),
		entries: []files.IsMetadata{dropboxFile("/Papers/1.pdf"), dropboxFile("/Papers/2.pdf")},
		cursor:  "AAE1",
		content: map[string]string{"/papers/1.pdf": "other", "/papers/2.pdf": "raft"},
	}
	store := NewMemoryStore()
	ds := newTestSynchronizer(fd, store, nil)

	reports, err := ds.SyncFolder(context.Background(), "/Papers")
	require.Error(t, err)
	assert.False(t, IsFatal(err))
	require.Len(t, reports, 2)
	assert.Equal(t, OutcomeFailed, reports[0].Outcome)
	assert.Equal(t, OutcomeRenamed, reports[1].Outcome)

	_, ok, _ := store.Get(context.Background(), ds.getCursorKey("/Papers"))
	assert.False(t, ok, "failed files are visited again on the next pass")
}

func TestSyncFolderHaltsOnFatal(t *testing.T) {
	fd := &fakeDropbox{
		dir:     t.TempDir(),
		entries: []files.IsMetadata{dropboxFile("/Papers/1.pdf"), dropboxFile("/Papers/2.pdf")},
		cursor:  "AAE1",
		content: map[string]string{"/papers/1.pdf": "broken", "/papers/2.pdf": "raft"},
	}
	ds := newTestSynchronizer(fd, NewMemoryStore(), nil)

	reports, err := ds.SyncFolder(context.Background(), "/Papers")
	assert.True(t, IsFatal(err))
	assert.Len(t, reports, 1)
	assert.Equal(t, []string{"/papers/1.pdf"}, fd.downloads)
	assert.Empty(t, fd.moves)
}

func TestSyncFolderDropsCursorOnListError(t *testing.T) {
	fd := &fakeDropbox{dir: t.TempDir(), listErr: errors.New("path/not_found")}
	store := NewMemoryStore()
	ds := newTestSynchronizer(fd, store, nil)
	key := ds.getCursorKey("/Papers")
	require.NoError(t, store.Set(context.Background(), key, "stale"))

	_, err := ds.SyncFolder(context.Background(), "/Papers")
	require.Error(t, err)
	assert.Equal(t, []string{"stale"}, fd.cursors)
	_, ok, _ := store.Get(context.Background(), key)
	assert.False(t, ok)
}

func TestSyncFolderLeavesCaseOnlyRenames(t *testing.T) {
	p := "/Papers/IN SEARCH OF AN UNDERSTANDABLE CONSENSUS ALGORITHM.pdf"
	fd := &fakeDropbox{
		dir:     t.TempDir(),
		entries: []files.IsMetadata{dropboxFile(p)},
		content: map[string]string{strings.ToLower(p): "raft"},
	}
	ds := newTestSynchronizer(fd, NewMemoryStore(), nil)

	reports, err := ds.SyncFolder(context.Background(), "/Papers")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, OutcomeUnchanged, reports[0].Outcome)
	assert.Empty(t, fd.moves)
}

func TestSyncFolderRemovesDownloads(t *testing.T) {
	fd := &fakeDropbox{
		dir:     t.TempDir(),
		entries: []files.IsMetadata{dropboxFile("/1.pdf")},
		content: map[string]string{"/1.pdf": "raft"},
	}
	ds := newTestSynchronizer(fd, NewMemoryStore(), nil)
	_, err := ds.SyncFolder(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, fd.downloads, 1)

	matches, err := filepath.Glob(filepath.Join(fd.dir, "download-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDropboxTargetPath(t *testing.T) {
	got, err := dropboxTargetPath("/Papers/1706.03762.pdf", "Attention Is All You Need", 200)
	require.NoError(t, err)
	assert.Equal(t, "/Papers/Attention Is All You Need.pdf", got)

	got, err = dropboxTargetPath("/raft.pdf", "Raft: In Search of Consensus", 200)
	require.NoError(t, err)
	assert.Equal(t, "/Raft In Search of Consensus.pdf", got)

	_, err = dropboxTargetPath("/a.pdf", "***", 200)
	assert.ErrorIs(t, err, title.ErrNoTitle)
}
