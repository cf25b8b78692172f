package directory

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// FileSource opens the hospital dataset from the local filesystem.
type FileSource struct {
	Path string
}

// Open returns the file contents. The caller closes the reader.
func (s FileSource) Open() (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hospital source %s: %w", s.Path, err)
	}
	return f, nil
}

// Name identifies the source in logs and error states.
func (s FileSource) Name() string { return s.Path }

// URLSource downloads the hospital dataset over HTTP. Published CMS
// extracts are sometimes Latin-1 encoded, so non-UTF-8 payloads are
// decoded from ISO-8859-1 before parsing.
type URLSource struct {
	URL     string
	Timeout time.Duration
}

// Open downloads the dataset and returns the decoded body.
func (s URLSource) Open() (io.ReadCloser, error) {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	client := &http.Client{Timeout: timeout}

	response, err := client.Get(s.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", s.URL, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: unexpected status %s", s.URL, response.Status)
	}

	bodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", s.URL, err)
	}

	if utf8.Valid(bodyBytes) {
		return io.NopCloser(bytes.NewReader(bodyBytes)), nil
	}

	decoded, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(bodyBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode response body from %s: %w", s.URL, err)
	}
	return io.NopCloser(bytes.NewReader(decoded)), nil
}

// Name identifies the source in logs and error states.
func (s URLSource) Name() string { return s.URL }
