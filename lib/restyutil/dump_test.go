package restyutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestTranscriptId(t *testing.T) {
	require.Equal(t, "0003-GET-series-42.txt", transcriptId(3, "GET", "https://archiveofourown.org/series/42?page=2"))
	require.Equal(t, "0001-POST-users-login.txt", transcriptId(1, "POST", "/users/login"))
	require.Equal(t, "0010-GET-root.txt", transcriptId(10, "GET", "https://archiveofourown.org/"))
}

func TestFormatRequestBody(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://archiveofourown.org/works/1", nil)
	require.NoError(t, err)
	require.Equal(t, "", formatRequestBody(req))

	req.GetBody = func() (io.ReadCloser, error) { return nil, nil }
	require.Equal(t, "", formatRequestBody(req))

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("page=2")), nil
	}
	require.Equal(t, "page=2", formatRequestBody(req))
}

func TestDump(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Archive", "yes")
		w.Write([]byte("<html>listing</html>"))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "dump")
	output, err := NewDirectoryOutput(dir)
	require.NoError(t, err)

	client := resty.New().SetBaseURL(server.URL)
	Dump(client, output)

	_, err = client.R().SetFormData(map[string]string{"user[login]": "reader"}).Post("/users/login")
	require.NoError(t, err)
	_, err = client.R().Get("/series/42")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "0001-POST-users-login.txt", entries[0].Name())
	require.Equal(t, "0002-GET-series-42.txt", entries[1].Name())

	contents, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	transcript := string(contents)
	require.True(t, strings.HasPrefix(transcript, "---- REQUEST ----\n\nPOST "))
	require.Contains(t, transcript, "user%5Blogin%5D=reader")
	require.Contains(t, transcript, "X-Archive: yes")
	require.True(t, strings.HasSuffix(transcript, "<html>listing</html>"))
}
