package research

import (
	"context"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/sharing"
	"github.com/pkg/errors"
	"github.com/shayanh/pdftitle/title"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// DropboxFiles is the part of the Dropbox API a sync pass needs.
type DropboxFiles interface {
	ListFolder(path string, cursor string) ([]files.IsMetadata, string, error)
	Download(ctx context.Context, path string) (string, error)
	Move(ctx context.Context, from, to string) error
	FileLink(path string) (string, error)
}

// DropboxSynchronizer renames the PDFs of a Dropbox folder after their
// titles. Only entries changed since the last successful pass are
// visited.
type DropboxSynchronizer struct {
	dh       DropboxFiles
	ex       TitleExtractor
	store    Store
	reporter Reporter
	maxLen   int
	log      *logrus.Logger
	lock     sync.Mutex
}

func NewDropboxSynchronizer(dh DropboxFiles, ex TitleExtractor, store Store, reporter Reporter, config RenameConfig, log *logrus.Logger) *DropboxSynchronizer {
	if reporter == nil {
		reporter = DummyReporter{}
	}
	return &DropboxSynchronizer{
		dh:       dh,
		ex:       ex,
		store:    store,
		reporter: reporter,
		maxLen:   config.MaxNameLength,
		log:      log,
	}
}

func (ds *DropboxSynchronizer) SyncFolder(ctx context.Context, folder string) ([]FileReport, error) {
	ds.lock.Lock()
	defer ds.lock.Unlock()

	key := ds.getCursorKey(folder)
	cursor, ok, err := ds.store.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "dropbox SyncFolder failed")
	}
	if ok {
		ds.log.WithFields(logrus.Fields{
			"path":   folder,
			"cursor": cursor,
		}).Info("Cursor has been retrieved.")
	}

	entries, newCursor, err := ds.dh.ListFolder(folder, cursor)
	if err != nil {
		if err := ds.store.Del(ctx, key); err != nil {
			ds.log.WithError(err).Error("cannot delete dropbox cursor")
		}
		return nil, errors.Wrap(err, "dropbox SyncFolder failed")
	}

	var errs error
	var reports []FileReport
	haveErr := false
	for _, entry := range entries {
		v, ok := entry.(*files.FileMetadata)
		if !ok || !IsPDF(v.PathLower) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return reports, multierr.Append(errs, err)
		}
		fr := ds.syncFile(ctx, v)
		reports = append(reports, fr)
		if fr.Err != nil {
			haveErr = true
			errs = multierr.Append(errs, fr.Err)
			if IsFatal(fr.Err) {
				return reports, errs
			}
		}
	}

	if !haveErr && newCursor != cursor {
		if err := ds.store.Set(ctx, key, newCursor); err != nil {
			return reports, multierr.Append(errs, err)
		}
		ds.log.WithFields(logrus.Fields{
			"path":   folder,
			"cursor": newCursor,
		}).Info("New cursor saved.")
	}
	return reports, errs
}

func (ds *DropboxSynchronizer) syncFile(ctx context.Context, v *files.FileMetadata) FileReport {
	fr := FileReport{Path: v.PathDisplay}
	log := ds.log.WithFields(logrus.Fields{
		"Path": v.PathDisplay,
		"ID":   v.Id,
	})

	local, err := ds.dh.Download(ctx, v.PathLower)
	if err != nil {
		fr.Outcome, fr.Err = OutcomeFailed, err
		log.WithError(err).Error("Download failed.")
		return fr
	}
	defer os.Remove(local)

	res, err := ds.ex.Extract(ctx, local)
	if errors.Is(err, title.ErrNoTitle) {
		fr.Outcome = OutcomeSkipped
		log.Info("No title found.")
		return fr
	}
	if err != nil {
		fr.Outcome, fr.Err = OutcomeFailed, err
		log.WithError(err).Error("Title extraction failed.")
		return fr
	}
	fr.Hash, fr.Title, fr.Source = res.Hash, res.Title, res.Source

	target, err := dropboxTargetPath(v.PathDisplay, res.Title, ds.maxLen)
	if err != nil {
		fr.Outcome = OutcomeSkipped
		log.WithError(err).Info("No usable file name.")
		return fr
	}
	fr.Outcome = OutcomeUnchanged
	// Dropbox paths are case-insensitive and MoveV2 rejects case-only
	// renames, so those are left alone.
	if !strings.EqualFold(target, v.PathDisplay) {
		if err := ds.dh.Move(ctx, v.PathDisplay, target); err != nil {
			fr.Outcome, fr.Err = OutcomeFailed, err
			log.WithError(err).Error("Move failed.")
			return fr
		}
		fr.NewPath = target
		fr.Outcome = OutcomeRenamed
		log.WithField("Target", target).Info("Dropbox file renamed.")
	}

	current := v.PathDisplay
	if fr.NewPath != "" {
		current = fr.NewPath
	}
	if link, err := ds.dh.FileLink(current); err == nil {
		fr.URL = link
	} else {
		log.WithError(err).Warn("No shared link.")
	}
	if err := ds.reporter.Report(ctx, &fr); err != nil {
		log.WithError(err).Warn("Report failed.")
	}
	return fr
}

func (ds *DropboxSynchronizer) getCursorKey(path string) string {
	return "cursor-dropbox-" + path
}

// dropboxTargetPath names a file after its title inside the same folder.
// Dropbox paths always use forward slashes.
func dropboxTargetPath(p, t string, maxLen int) (string, error) {
	name := SanitizeFilename(t, maxLen)
	if name == "" {
		return "", errors.Wrapf(title.ErrNoTitle, "title %q gives an empty file name", t)
	}
	return path.Join(path.Dir(p), name+pdfExt), nil
}

// DropboxHandler handles Dropbox API.
type DropboxHandler struct {
	config   dropbox.Config
	fc       files.Client
	sc       sharing.Client
	attempts uint
}

func NewDropboxHandler(token string) *DropboxHandler {
	config := dropbox.Config{
		Token:    token,
		LogLevel: dropbox.LogInfo,
	}
	filesClient := files.New(config)
	sharingClient := sharing.New(config)

	return &DropboxHandler{
		config:   config,
		fc:       filesClient,
		sc:       sharingClient,
		attempts: 3,
	}
}

func (dh *DropboxHandler) retry(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(dh.attempts),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
}

func (dh *DropboxHandler) ListFolder(path string, cursor string) ([]files.IsMetadata, string, error) {
	var entries []files.IsMetadata
	for hasMore := true; hasMore; {
		var err error
		var resp *files.ListFolderResult
		if cursor == "" {
			arg := files.NewListFolderArg(path)
			resp, err = dh.fc.ListFolder(arg)
		} else {
			arg := files.NewListFolderContinueArg(cursor)
			resp, err = dh.fc.ListFolderContinue(arg)
		}
		if err != nil {
			return entries, cursor, errors.Wrap(err, "dropbox ListFolder failed")
		}
		entries = append(entries, resp.Entries...)
		cursor = resp.Cursor
		hasMore = resp.HasMore
	}
	return entries, cursor, nil
}

// Download copies a Dropbox file into a temporary local file and returns
// its path. The caller removes it.
func (dh *DropboxHandler) Download(ctx context.Context, path string) (string, error) {
	tmp, err := os.CreateTemp("", "pdftitle-*.pdf")
	if err != nil {
		return "", errors.Wrap(err, "dropbox Download failed")
	}
	defer tmp.Close()

	err = dh.retry(ctx, func() error {
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return retry.Unrecoverable(err)
		}
		if err := tmp.Truncate(0); err != nil {
			return retry.Unrecoverable(err)
		}
		_, reader, err := dh.fc.Download(files.NewDownloadArg(path))
		if err != nil {
			return err
		}
		defer reader.Close()
		_, err = io.Copy(tmp, reader)
		return err
	})
	if err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "dropbox Download failed")
	}
	return tmp.Name(), nil
}

func (dh *DropboxHandler) Move(ctx context.Context, from, to string) error {
	err := dh.retry(ctx, func() error {
		_, err := dh.fc.MoveV2(files.NewRelocationArg(from, to))
		return err
	})
	return errors.Wrap(err, "dropbox Move failed")
}

func (dh *DropboxHandler) FileLink(path string) (string, error) {
	arg := sharing.NewGetFileMetadataArg(path)
	sharedFileMetadata, err := dh.sc.GetFileMetadata(arg)
	if err != nil {
		return "", errors.Wrap(err, "dropbox FileLink failed")
	}
	link := strings.TrimSuffix(sharedFileMetadata.PreviewUrl, "?dl=0")
	return link, nil
}
