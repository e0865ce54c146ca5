package research

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shayanh/pdftitle/title"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const raftLayout = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE pdf2xml SYSTEM "pdf2xml.dtd">
<pdf2xml producer="poppler" version="22.02.0">
<page number="1" position="absolute" top="0" left="0" height="1188" width="918">
	<fontspec id="0" size="24" family="Times" color="#000000"/>
	<fontspec id="1" size="12" family="Times" color="#000000"/>
<text top="120" left="150" width="600" height="28" font="0"><b>In Search of an Understandable Consensus Algorithm</b></text>
<text top="180" left="300" width="300" height="14" font="1">Diego Ongaro and John Ousterhout</text>
</page>
</pdf2xml>
`

const emptyLayout = `<pdf2xml><page number="1" top="0" left="0" height="1188" width="918"></page></pdf2xml>`

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// writeFile creates dir/name with content and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

type fakeConverter struct {
	lock   sync.Mutex
	layout string
	err    error
	calls  int
}

func (fc *fakeConverter) Convert(ctx context.Context, path string) ([]byte, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.calls++
	if fc.err != nil {
		return nil, fc.err
	}
	return []byte(fc.layout), nil
}

type fakeExtractor struct {
	lock    sync.Mutex
	results map[string]*Result
	errs    map[string]error
	panics  map[string]bool
	calls   []string
}

func (fe *fakeExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	fe.lock.Lock()
	fe.calls = append(fe.calls, path)
	fe.lock.Unlock()
	if fe.panics[path] {
		panic("index out of range")
	}
	if err, ok := fe.errs[path]; ok {
		return nil, err
	}
	if r, ok := fe.results[path]; ok {
		return r, nil
	}
	return nil, title.ErrNoTitle
}

type fakeReporter struct {
	reports []FileReport
	err     error
}

func (fr *fakeReporter) Report(ctx context.Context, r *FileReport) error {
	fr.reports = append(fr.reports, *r)
	return fr.err
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
