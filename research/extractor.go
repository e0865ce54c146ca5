package research

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/shayanh/pdftitle/title"
	"github.com/sirupsen/logrus"
)

type Source string

const (
	SourceLayout   Source = "layout"
	SourceMetadata Source = "metadata"
)

// ErrUnreadablePDF marks a file that is not a PDF pdftohtml could read.
// Unlike conversion failures it only affects that file.
var ErrUnreadablePDF = errors.New("unreadable pdf")

type Result struct {
	Path   string
	Hash   string
	Title  string
	Source Source
	// Cached is set when the title was found in the store. Source still
	// tells how it was first obtained.
	Cached bool
}

// TitleExtractor finds the title of one PDF file. It returns an error
// matching title.ErrNoTitle when the file has none.
type TitleExtractor interface {
	Extract(ctx context.Context, path string) (*Result, error)
}

type Extractor struct {
	conv     Converter
	store    Store
	config   TitleConfig
	metadata func(path string) (string, error)
	check    func(path string) error
	log      *logrus.Logger
}

func NewExtractor(conv Converter, store Store, config TitleConfig, log *logrus.Logger) *Extractor {
	return &Extractor{
		conv:     conv,
		store:    store,
		config:   config,
		metadata: MetadataTitle,
		check:    CheckPDF,
		log:      log,
	}
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// cacheKey includes every option that changes the outcome.
func (e *Extractor) cacheKey(hash string) string {
	c := e.config
	return fmt.Sprintf("title-%s-%t-%d-%d-%d-%t",
		hash, c.Multiline, c.TopMargin, c.MinLength, c.MaxLength, c.MetadataFallback)
}

// Cached titles are stored as "<source>|<title>".
func encodeCached(res *Result) string {
	return string(res.Source) + "|" + res.Title
}

func decodeCached(val string) (Source, string) {
	src, t, ok := strings.Cut(val, "|")
	switch Source(src) {
	case SourceLayout, SourceMetadata:
		if ok {
			return Source(src), t
		}
	}
	return SourceLayout, val
}

func (e *Extractor) Extract(ctx context.Context, path string) (*Result, error) {
	hash, err := fileHash(path)
	if err != nil {
		return nil, errors.Wrap(err, "extractor Extract failed")
	}
	res := &Result{Path: path, Hash: hash}

	key := e.cacheKey(hash)
	cached, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.log.WithError(err).Warn("title cache lookup failed")
	} else if ok {
		res.Source, res.Title = decodeCached(cached)
		res.Cached = true
		return res, nil
	}

	if err := e.check(path); err != nil {
		return nil, errors.Wrapf(ErrUnreadablePDF, "%s: %v", path, err)
	}
	layout, err := e.conv.Convert(ctx, path)
	if err != nil {
		return nil, err
	}
	t, err := title.InferXML(bytes.NewReader(layout), e.config.Config)
	res.Source = SourceLayout
	if errors.Is(err, title.ErrNoTitle) && e.config.MetadataFallback {
		if mt, ok := e.metadataTitle(path); ok {
			t, err, res.Source = mt, nil, SourceMetadata
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	res.Title = t

	if err := e.store.Set(ctx, key, encodeCached(res)); err != nil {
		e.log.WithError(err).Warn("title cache store failed")
	}
	return res, nil
}

func (e *Extractor) metadataTitle(path string) (string, bool) {
	mt, err := e.metadata(path)
	if err != nil {
		e.log.WithError(err).WithField("File", path).Debug("no metadata title")
		return "", false
	}
	mt = title.Normalize(mt)
	if strings.TrimSpace(mt) == "" {
		return "", false
	}
	return mt, true
}
