package service

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/drive"
	"github.com/andresuchdata/pharmstock/backend-go/internal/report"
	"github.com/andresuchdata/pharmstock/backend-go/internal/storage"
)

// Export is a generated workbook.
type Export struct {
	Name string
	Body []byte
	// Suppliers carries the per-supplier totals of a purchase export.
	Suppliers []report.SupplierTotal
}

// PurchaseReport builds the purchase workbook for scope.
func (s *CatalogueService) PurchaseReport(scope domain.PurchaseScope) (*Export, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	list := report.PurchaseList(snap.Products(), scope)
	f, err := report.NewBuilder(snap.Generics).Purchase(list)
	if err != nil {
		return nil, err
	}
	exp, err := s.export("purchase", f)
	if err != nil {
		return nil, err
	}
	exp.Suppliers = report.BySupplier(list)
	return exp, nil
}

// FullReport builds the workbook of every active product.
func (s *CatalogueService) FullReport() (*Export, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	f, err := report.NewBuilder(snap.Generics).Full(snap.Products())
	if err != nil {
		return nil, err
	}
	return s.export("report", f)
}

func (s *CatalogueService) export(kind string, f *excelize.File) (*Export, error) {
	body, err := report.Bytes(f)
	if err != nil {
		return nil, err
	}
	return &Export{Name: report.FileName(kind, s.clock()), Body: body}, nil
}

// PublishReports writes both exports to the report dir and, when object
// storage is configured, uploads them under the report prefix.
func (s *CatalogueService) PublishReports(ctx context.Context, scope domain.PurchaseScope) ([]string, error) {
	purchase, err := s.PurchaseReport(scope)
	if err != nil {
		return nil, err
	}
	full, err := s.FullReport()
	if err != nil {
		return nil, err
	}

	var published []string
	for _, exp := range []*Export{purchase, full} {
		path, err := s.writeReport(exp.Name, exp.Body)
		if err != nil {
			return published, err
		}
		if path != "" {
			published = append(published, path)
		}
		if s.objects == nil {
			continue
		}
		key := storage.ResolveKey(s.reportPrefix, exp.Name)
		if err := s.objects.UploadObject(ctx, key, exp.Body); err != nil {
			return published, err
		}
		published = append(published, key)
	}
	s.log.Info().Strs("reports", published).Msg("reports published")
	return published, nil
}

// Legacy .xls workbooks are not readable by excelize and are left in the inbox.
var inboxExtensions = map[string]bool{".xlsx": true, ".csv": true}

// SyncInbox downloads workbooks not seen yet from object storage and Drive
// into the upload dir, imports them and recomputes when anything was
// imported.
func (s *CatalogueService) SyncInbox(ctx context.Context) ([]domain.ImportOutcome, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	var paths []string
	if s.objects != nil {
		got, err := s.pullObjects(ctx)
		if err != nil {
			return nil, err
		}
		paths = append(paths, got...)
	}
	if s.drive != nil {
		got, err := s.pullDrive(ctx)
		if err != nil {
			return nil, err
		}
		paths = append(paths, got...)
	}
	if len(paths) == 0 {
		s.log.Debug().Msg("inbox empty")
		return []domain.ImportOutcome{}, nil
	}

	outcomes, err := s.ImportFiles(ctx, paths)
	if err != nil {
		return outcomes, err
	}

	imported := 0
	for _, o := range outcomes {
		if o.Status == domain.FileStatusImported {
			imported++
		}
	}
	s.log.Info().Int("files", len(paths)).Int("imported", imported).Msg("inbox synced")
	if imported == 0 {
		return outcomes, nil
	}
	if _, err := s.Recompute(ctx); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (s *CatalogueService) pullObjects(ctx context.Context) ([]string, error) {
	objects, err := s.objects.ListObjects(ctx, s.inboxPrefix)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(s.uploadDir, "inbox")
	var paths []string
	for _, obj := range objects {
		if s.seenKeys[obj.Key] || !inboxExtensions[strings.ToLower(filepath.Ext(obj.Key))] {
			continue
		}
		dest := filepath.Join(dir, filepath.FromSlash(storage.RelativePath(s.inboxPrefix, obj.Key)))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return nil, fmt.Errorf("failed to create inbox dir: %w", err)
		}
		if err := s.objects.DownloadObject(ctx, obj.Key, dest); err != nil {
			return nil, err
		}
		s.seenKeys[obj.Key] = true
		paths = append(paths, dest)
	}
	return paths, nil
}

func (s *CatalogueService) pullDrive(ctx context.Context) ([]string, error) {
	got, err := s.drive.DownloadFolder(ctx, drive.DownloadOptions{
		FolderID:    s.driveFolder,
		DownloadDir: filepath.Join(s.uploadDir, "drive"),
		Seen:        s.seenDrive,
	})
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(got))
	for _, id := range slices.Sorted(maps.Keys(got)) {
		s.seenDrive[id] = true
		paths = append(paths, got[id])
	}
	return paths, nil
}
