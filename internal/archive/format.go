package archive

import (
	"fmt"
	"strings"
)

// DownloadFormat is a file format the archive renders works in.
type DownloadFormat int

const (
	AZW3 DownloadFormat = iota
	EPUB
	MOBI
	PDF
	HTML
)

var formatNames = [...]string{
	AZW3: "AZW3",
	EPUB: "EPUB",
	MOBI: "MOBI",
	PDF:  "PDF",
	HTML: "HTML",
}

// AllDownloadFormats returns every format in declaration order.
func AllDownloadFormats() []DownloadFormat {
	return []DownloadFormat{AZW3, EPUB, MOBI, PDF, HTML}
}

// ParseDownloadFormat parses the display name of a format, case-insensitively.
func ParseDownloadFormat(s string) (DownloadFormat, error) {
	s = strings.TrimSpace(s)
	for _, f := range AllDownloadFormats() {
		if strings.EqualFold(s, formatNames[f]) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown download format %q", s)
}

// String returns the display name, ex. "EPUB".
func (f DownloadFormat) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("DownloadFormat(%d)", int(f))
	}
	return formatNames[f]
}

// Ext returns the lowercase name used in download urls and filenames.
func (f DownloadFormat) Ext() string {
	return strings.ToLower(f.String())
}

// Set implements pflag.Value so formats can be used directly as flags.
func (f *DownloadFormat) Set(s string) error {
	parsed, err := ParseDownloadFormat(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f *DownloadFormat) Type() string {
	return "format"
}
