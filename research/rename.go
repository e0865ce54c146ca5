package research

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/shayanh/pdftitle/title"
	"github.com/sirupsen/logrus"
)

var ErrTargetExists = errors.New("rename target already exists")

const pdfExt = ".pdf"

// SanitizeFilename turns a title into a file name without extension that is
// valid on common filesystems and at most maxLen bytes long including the
// .pdf extension.
func SanitizeFilename(t string, maxLen int) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			return ' '
		case strings.ContainsRune(`<>:"|?*`, r):
			return -1
		}
		return r
	}, t)
	name = strings.Join(strings.Fields(name), " ")

	limit := maxLen - len(pdfExt)
	if maxLen > 0 && len(name) > limit {
		if limit < 0 {
			limit = 0
		}
		cut := limit
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return strings.Trim(name, " .")
}

type Renamer struct {
	dryRun bool
	maxLen int
	log    *logrus.Logger
}

func NewRenamer(config RenameConfig, log *logrus.Logger) *Renamer {
	return &Renamer{
		dryRun: config.DryRun,
		maxLen: config.MaxNameLength,
		log:    log,
	}
}

func (r *Renamer) TargetPath(path, t string) (string, error) {
	name := SanitizeFilename(t, r.maxLen)
	if name == "" {
		return "", errors.Wrapf(title.ErrNoTitle, "title %q gives an empty file name", t)
	}
	return filepath.Join(filepath.Dir(path), name+pdfExt), nil
}

// Rename moves path to the file named after t in the same directory. It
// reports whether the name changed. Existing files are never replaced,
// except when the target is the source itself on a case-insensitive
// filesystem.
func (r *Renamer) Rename(path, t string) (string, bool, error) {
	target, err := r.TargetPath(path, t)
	if err != nil {
		return "", false, err
	}
	if target == filepath.Clean(path) {
		return target, false, nil
	}
	if dst, err := os.Lstat(target); err == nil {
		src, serr := os.Lstat(path)
		if serr != nil || !os.SameFile(src, dst) {
			return "", false, errors.Wrapf(ErrTargetExists, "%s", target)
		}
	}

	fields := logrus.Fields{"File": path, "Target": target}
	if r.dryRun {
		r.log.WithFields(fields).Info("Would rename file.")
		return target, true, nil
	}
	if err := os.Rename(path, target); err != nil {
		return "", false, errors.Wrap(err, "renamer Rename failed")
	}
	r.log.WithFields(fields).Info("File renamed.")
	return target, true, nil
}
