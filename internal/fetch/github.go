package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// contentEntry is one item of a GitHub repository contents listing.
type contentEntry struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	URL         string `json:"url"`
	DownloadURL string `json:"download_url"`
}

// DownloadTree walks a GitHub contents API listing and downloads every file
// whose name ends with ext into saveDir. Subdirectories are queued rather
// than recursed into. A listing or file that fails with a non-200 status is
// logged and skipped; the walk continues with the rest of the queue.
func (f *Fetcher) DownloadTree(ctx context.Context, apiURL, saveDir, ext string) ([]string, error) {
	queue := []string{apiURL}
	seen := map[string]bool{apiURL: true}
	var saved []string

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		listingURL := queue[0]
		queue = queue[1:]

		entries, err := f.listContents(ctx, listingURL)
		if err != nil {
			if errors.Is(err, ErrUnexpectedStatus) {
				f.logger.Printf("Failed to fetch repository contents from the API %s", listingURL)
				continue
			}
			return saved, err
		}

		for _, entry := range entries {
			switch {
			case entry.Type == "file" && strings.HasSuffix(entry.Name, ext):
				dest := filepath.Join(saveDir, filepath.Base(entry.Name))
				if err := f.DownloadFile(ctx, entry.DownloadURL, dest); err != nil {
					if errors.Is(err, ErrUnexpectedStatus) {
						continue
					}
					return saved, err
				}
				saved = append(saved, dest)
			case entry.Type == "dir" && entry.URL != "":
				if !seen[entry.URL] {
					seen[entry.URL] = true
					queue = append(queue, entry.URL)
				}
			}
		}
	}

	return saved, nil
}

func (f *Fetcher) listContents(ctx context.Context, url string) ([]contentEntry, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []contentEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode listing %s: %w", url, err)
	}
	return entries, nil
}
