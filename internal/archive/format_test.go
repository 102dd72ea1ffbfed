package archive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDownloadFormatRoundTrip(t *testing.T) {
	for _, format := range AllDownloadFormats() {
		for _, rendered := range []string{
			format.String(),
			format.Ext(),
			strings.ToLower(format.String()),
			" " + format.String() + "\n",
		} {
			parsed, err := ParseDownloadFormat(rendered)
			require.NoError(t, err, rendered)
			require.Equal(t, format, parsed, rendered)
		}
	}
}

func TestDownloadFormatDeclarationOrder(t *testing.T) {
	names := []string{}
	for _, format := range AllDownloadFormats() {
		names = append(names, format.String())
	}
	require.Equal(t, []string{"AZW3", "EPUB", "MOBI", "PDF", "HTML"}, names)
}

func TestParseDownloadFormatUnknown(t *testing.T) {
	_, err := ParseDownloadFormat("docx")
	require.Error(t, err)

	var f DownloadFormat
	require.Error(t, f.Set(""))
	require.NoError(t, f.Set("pdf"))
	require.Equal(t, PDF, f)
}
