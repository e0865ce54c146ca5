package research

import (
	"context"
	"net/url"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shayanh/pdftitle/title"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

type Outcome string

const (
	OutcomeTitled    Outcome = "titled"
	OutcomeRenamed   Outcome = "renamed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// FileReport is what happened to one file.
type FileReport struct {
	Path    string
	NewPath string
	URL     string
	Hash    string
	Title   string
	Source  Source
	Outcome Outcome
	Err     error
}

type Report struct {
	Files []FileReport
}

func (r Report) Count(o Outcome) int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == o {
			n++
		}
	}
	return n
}

// Reporter receives every file a title was found for.
type Reporter interface {
	Report(ctx context.Context, fr *FileReport) error
}

type DummyReporter struct{}

func (DummyReporter) Report(ctx context.Context, fr *FileReport) error {
	return nil
}

// Processor titles local files one at a time and optionally renames them.
type Processor struct {
	ex       TitleExtractor
	renamer  *Renamer
	reporter Reporter
	log      *logrus.Logger
}

// NewProcessor builds a Processor. A nil renamer only reports titles; a nil
// reporter is replaced by DummyReporter.
func NewProcessor(ex TitleExtractor, renamer *Renamer, reporter Reporter, log *logrus.Logger) *Processor {
	if reporter == nil {
		reporter = DummyReporter{}
	}
	return &Processor{
		ex:       ex,
		renamer:  renamer,
		reporter: reporter,
		log:      log,
	}
}

// Process handles paths in order. A file without a title is skipped and a
// failing file is recorded before moving on, unless the failure means the
// converter is unusable, in which case Process stops and returns it.
func (p *Processor) Process(ctx context.Context, paths []string) (Report, error) {
	var report Report
	var errs error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(errs, err)
		}
		if !IsPDF(path) {
			p.log.WithField("File", path).Debug("Not a PDF, skipping.")
			report.Files = append(report.Files, FileReport{Path: path, Outcome: OutcomeSkipped})
			continue
		}
		fr := p.ProcessFile(ctx, path)
		report.Files = append(report.Files, fr)
		if fr.Err == nil {
			continue
		}
		if IsFatal(fr.Err) {
			return report, multierr.Append(errs, fr.Err)
		}
		errs = multierr.Append(errs, fr.Err)
	}
	return report, errs
}

func (p *Processor) ProcessFile(ctx context.Context, path string) (fr FileReport) {
	fr.Path = path
	log := p.log.WithField("File", path)
	defer func() {
		if r := recover(); r != nil {
			fr.Outcome = OutcomeFailed
			fr.Err = errors.Errorf("%s: unexpected failure: %v", path, r)
			log.WithError(fr.Err).Error("Recovered from panic.")
		}
	}()

	res, err := p.ex.Extract(ctx, path)
	if errors.Is(err, title.ErrNoTitle) {
		fr.Outcome = OutcomeSkipped
		log.Info("No title found.")
		return fr
	}
	if err != nil {
		fr.Outcome = OutcomeFailed
		fr.Err = err
		log.WithError(err).Error("Title extraction failed.")
		return fr
	}
	fr.Hash, fr.Title, fr.Source = res.Hash, res.Title, res.Source
	fr.Outcome = OutcomeTitled
	log = log.WithFields(logrus.Fields{"Title": res.Title, "Source": res.Source})

	if p.renamer != nil {
		newPath, changed, err := p.renamer.Rename(path, res.Title)
		if err != nil {
			fr.Outcome = OutcomeFailed
			fr.Err = err
			log.WithError(err).Error("Rename failed.")
			return fr
		}
		fr.NewPath = newPath
		fr.Outcome = OutcomeUnchanged
		if changed {
			fr.Outcome = OutcomeRenamed
		}
	}

	fr.URL = fileURL(path)
	if fr.Outcome == OutcomeRenamed && !p.renamer.dryRun {
		fr.URL = fileURL(fr.NewPath)
	}
	if err := p.reporter.Report(ctx, &fr); err != nil {
		log.WithError(err).Warn("Report failed.")
	}
	log.Info("Title found.")
	return fr
}

func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}
