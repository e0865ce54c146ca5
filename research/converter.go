package research

import (
	"bytes"
	"context"
	"io/fs"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrSourceUnavailable = errors.New("layout converter unavailable")
	ErrConversion        = errors.New("layout conversion failed")
)

// IsFatal reports whether err means the environment cannot convert any
// file, so a batch should stop instead of moving on to the next file.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrConversion)
}

// Converter renders the first page of a PDF as pdftohtml -xml layout.
type Converter interface {
	Convert(ctx context.Context, path string) ([]byte, error)
}

type PDFToHTML struct {
	config ConverterConfig
}

func NewPDFToHTML(config ConverterConfig) *PDFToHTML {
	if config.Bin == "" {
		config.Bin = "pdftohtml"
	}
	return &PDFToHTML{config: config}
}

func (p *PDFToHTML) args(path string) []string {
	return []string{"-xml", "-i", "-q", "-nodrm", "-f", "1", "-l", "1", "-stdout", path}
}

func (p *PDFToHTML) Convert(ctx context.Context, path string) ([]byte, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.config.Bin, p.args(path)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, errors.Wrapf(ErrSourceUnavailable, "%s: %v", p.config.Bin, err)
		}
		return nil, errors.Wrap(err, "pdftohtml Convert failed")
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ErrConversion, "%s: %v", path, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.Wrapf(ErrConversion, "%s: %s", path, msg)
	}
	return stdout.Bytes(), nil
}
