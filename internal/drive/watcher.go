package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DownloadOptions controls how files are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
	// Seen holds the ids of files already imported; they are skipped.
	Seen map[string]bool
}

// Downloader wraps Service to download workbooks from a specific folder.
type Downloader struct {
	service *Service
}

func NewDownloader(s *Service) *Downloader {
	return &Downloader{service: s}
}

var importable = map[string]bool{".xlsx": true, ".csv": true}

// localName is the file name on disk; native sheets get an .xlsx extension.
func localName(f *File) string {
	if f.Native() && !strings.EqualFold(filepath.Ext(f.Name), ".xlsx") {
		return f.Name + ".xlsx"
	}
	return f.Name
}

// DownloadFolder downloads every non-trashed workbook of the folder into
// DownloadDir and returns the local paths, keyed by Drive file id.
func (d *Downloader) DownloadFolder(ctx context.Context, opts DownloadOptions) (map[string]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.service.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]string)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if opts.Seen[f.ID] {
			continue
		}
		name := localName(f)
		if !importable[strings.ToLower(filepath.Ext(name))] {
			continue
		}

		localPath := filepath.Join(opts.DownloadDir, filepath.Base(name))
		out, err := os.Create(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create local file %s: %w", localPath, err)
		}
		err = d.service.DownloadFile(ctx, f, out)
		out.Close()
		if err != nil {
			return nil, err
		}
		paths[f.ID] = localPath
	}
	return paths, nil
}
