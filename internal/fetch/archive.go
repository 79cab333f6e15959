package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yeka/zip"
)

// Extract unpacks zipPath into destDir. Encrypted entries (ZipCrypto or AES)
// are opened with password. Corrupt archives and wrong passwords are returned
// as errors; nothing is retried.
func Extract(zipPath, destDir, password string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", zipPath, err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	root, err := filepath.Abs(destDir)
	if err != nil {
		return nil, err
	}

	var extracted []string
	for _, zf := range r.File {
		target := filepath.Join(root, filepath.FromSlash(zf.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return extracted, fmt.Errorf("archive entry %q escapes %s", zf.Name, destDir)
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return extracted, fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		if zf.IsEncrypted() {
			zf.SetPassword(password)
		}
		if err := extractEntry(zf, target); err != nil {
			return extracted, fmt.Errorf("failed to extract %s: %w", zf.Name, err)
		}
		extracted = append(extracted, target)
	}

	return extracted, nil
}

func extractEntry(zf *zip.File, target string) error {
	src, err := zf.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return err
	}
	return dst.Close()
}

// DownloadAndExtract fetches an archive and unpacks it. When the download
// fails the archive is not touched and the *StatusError is returned so the
// caller can decide whether to continue with files already on disk.
func (f *Fetcher) DownloadAndExtract(ctx context.Context, url, zipPath, extractDir, password string) ([]string, error) {
	if err := f.DownloadFile(ctx, url, zipPath); err != nil {
		return nil, err
	}

	files, err := Extract(zipPath, extractDir, password)
	if err != nil {
		return nil, err
	}
	f.logger.Printf("File unzipped successfully to: %s", extractDir)
	return files, nil
}
