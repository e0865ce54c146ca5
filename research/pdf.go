package research

import (
	"io"
	"os"
	"strings"

	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pkg/errors"
)

var ErrTitleNotFound = errors.New("title not found")

func getTitle(info []string) (string, error) {
	titlePrefix := "Title: "
	for _, line := range info {
		cleaned := strings.TrimSpace(line)
		if strings.HasPrefix(cleaned, titlePrefix) {
			title := strings.TrimSpace(strings.TrimPrefix(cleaned, titlePrefix))
			if title != "" {
				return title, nil
			}
		}
	}
	return "", ErrTitleNotFound
}

// MetadataTitle returns the title recorded in the document information
// dictionary of a PDF. Many papers leave it empty or set it to the name of
// the LaTeX source, so it is only a fallback.
func MetadataTitle(inFile string) (string, error) {
	f, err := os.Open(inFile)
	if err != nil {
		return "", errors.Wrap(err, "pdf MetadataTitle failed")
	}
	defer f.Close()
	return MetadataTitleFromReadSeeker(f)
}

func MetadataTitleFromReadSeeker(rs io.ReadSeeker) (string, error) {
	info, err := pdfcpu.Info(rs, []string{}, nil)
	if err != nil {
		return "", errors.Wrap(err, "pdf MetadataTitleFromReadSeeker failed")
	}
	return getTitle(info)
}

// CheckPDF reports whether inFile parses as a PDF, in pdfcpu's relaxed
// validation mode.
func CheckPDF(inFile string) error {
	if err := pdfcpu.ValidateFile(inFile, nil); err != nil {
		return errors.Wrap(err, "pdf CheckPDF failed")
	}
	return nil
}

func IsPDF(filePath string) bool {
	filePath = strings.ToLower(filePath)
	return strings.HasSuffix(filePath, ".pdf")
}
