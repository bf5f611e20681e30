package seed

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"shoonya-screener/internal/errors"
)

// Sources holds the download endpoints for the seeding job. Overridable
// for tests.
type Sources struct {
	NSEMasterURL   string
	NFOMasterURL   string
	Nifty500URL    string
	VolatilityURL  string // expects a DDMMYYYY date appended before ".CSV"
	BanListURL     string
}

// DefaultSources returns the production endpoints.
func DefaultSources() Sources {
	return Sources{
		NSEMasterURL:  "https://api.shoonya.com/NSE_symbols.txt.zip",
		NFOMasterURL:  "https://api.shoonya.com/NFO_symbols.txt.zip",
		Nifty500URL:   "https://archives.nseindia.com/content/indices/ind_nifty500list.csv",
		VolatilityURL: "https://archives.nseindia.com/archives/nsccl/volt/CMVOLT_",
		BanListURL:    "https://nsearchives.nseindia.com/content/fo/fo_secban.csv",
	}
}

// download fetches a URL body. The NSE archive servers reject requests
// without a browser-looking user agent.
func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "*/*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.NewConnectivityError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewConnectivityError(url, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	return io.ReadAll(resp.Body)
}

// downloadZip fetches a single-file zip archive and returns the
// contents of its first entry.
func downloadZip(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	body, err := download(ctx, client, url)
	if err != nil {
		return nil, err
	}

	reader, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, errors.Wrap(err, "opening zip archive")
	}
	if len(reader.File) == 0 {
		return nil, errors.NewDataError("master", url, "empty zip archive", nil)
	}

	f, err := reader.File[0].Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening zip entry")
	}
	defer f.Close()

	return io.ReadAll(f)
}
