package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/pharmstock/backend-go/internal/cache"
	"github.com/andresuchdata/pharmstock/backend-go/internal/catalogue"
	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/drive"
	"github.com/andresuchdata/pharmstock/backend-go/internal/ingest"
	"github.com/andresuchdata/pharmstock/backend-go/internal/monitoring"
	"github.com/andresuchdata/pharmstock/backend-go/internal/normalize"
	"github.com/andresuchdata/pharmstock/backend-go/internal/pipeline"
	"github.com/andresuchdata/pharmstock/backend-go/internal/repository"
	"github.com/andresuchdata/pharmstock/backend-go/internal/storage"
	apperrors "github.com/andresuchdata/pharmstock/backend-go/pkg/errors"
	"github.com/andresuchdata/pharmstock/backend-go/pkg/logger"
)

// DriveSource downloads new workbooks from a Drive folder.
type DriveSource interface {
	DownloadFolder(ctx context.Context, opts drive.DownloadOptions) (map[string]string, error)
}

// Options wires a CatalogueService. Session and Store are required; the
// other collaborators are optional.
type Options struct {
	Session *catalogue.Session
	Store   repository.Store
	Cache   cache.CatalogueCache
	Brands  normalize.BrandExtractor

	Objects      storage.ObjectStorage
	InboxPrefix  string
	ReportPrefix string

	Drive       DriveSource
	DriveFolder string

	UploadDir string
	ReportDir string
	Workers   int
	Clock     func() time.Time
}

// CatalogueService is the application layer over a catalogue session: it
// imports files, persists operator state and serves the committed snapshot.
type CatalogueService struct {
	session  *catalogue.Session
	store    repository.Store
	cache    cache.CatalogueCache
	decoder  *ingest.Decoder
	validate *validator.Validate
	log      zerolog.Logger

	objects      storage.ObjectStorage
	inboxPrefix  string
	reportPrefix string
	drive        DriveSource
	driveFolder  string

	uploadDir string
	reportDir string
	workers   int
	clock     func() time.Time

	syncMu    sync.Mutex
	seenKeys  map[string]bool
	seenDrive map[string]bool
}

func NewCatalogueService(opts Options) *CatalogueService {
	if opts.Cache == nil {
		opts.Cache = cache.NewNoopCatalogueCache()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Brands == (normalize.BrandExtractor{}) {
		opts.Brands = normalize.DefaultBrandExtractor
	}
	return &CatalogueService{
		session:      opts.Session,
		store:        opts.Store,
		cache:        opts.Cache,
		decoder:      ingest.NewDecoder(opts.Brands),
		validate:     validator.New(),
		log:          logger.Component("service"),
		objects:      opts.Objects,
		inboxPrefix:  opts.InboxPrefix,
		reportPrefix: opts.ReportPrefix,
		drive:        opts.Drive,
		driveFolder:  opts.DriveFolder,
		uploadDir:    opts.UploadDir,
		reportDir:    opts.ReportDir,
		workers:      opts.Workers,
		clock:        opts.Clock,
		seenKeys:     make(map[string]bool),
		seenDrive:    make(map[string]bool),
	}
}

// Load restores the persisted corrections and settings into the session.
func (s *CatalogueService) Load(ctx context.Context) error {
	corrections, err := s.store.ListCorrections(ctx)
	if err != nil {
		return err
	}
	s.session.SetCorrections(corrections)

	settings, ok, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if ok {
		s.session.SetSettings(s.complete(settings))
	}

	s.log.Info().Int("corrections", len(corrections)).Bool("stored_settings", ok).Msg("operator state loaded")
	return nil
}

// complete fills the maps a stored or submitted settings value left empty
// from the session's current settings.
func (s *CatalogueService) complete(next domain.Settings) domain.Settings {
	current := s.session.Settings()
	if next.TargetMonths == nil {
		next.TargetMonths = current.TargetMonths
	}
	if next.GrowthCategories == nil {
		next.GrowthCategories = current.GrowthCategories
	}
	return domain.Settings{}.Merge(next)
}

func (s *CatalogueService) outcome(source string) domain.ImportOutcome {
	return domain.ImportOutcome{
		ID:         uuid.NewString(),
		Source:     source,
		Kind:       domain.KindUnknown,
		ImportedAt: s.clock(),
	}
}

// decode reads and classifies one workbook. It never touches the session.
func (s *CatalogueService) decode(name string, r io.Reader) (*ingest.Batch, error) {
	wb, err := ingest.ReadWorkbook(name, r)
	if err != nil {
		return nil, err
	}
	return s.decoder.Decode(wb)
}

func (s *CatalogueService) decodeFile(path string) (*ingest.Batch, error) {
	wb, err := ingest.OpenWorkbook(path)
	if err != nil {
		return nil, err
	}
	return s.decoder.Decode(wb)
}

// stage hands a decoded batch to the session and records the outcome.
func (s *CatalogueService) stage(ctx context.Context, source string, batch *ingest.Batch, decodeErr error) domain.ImportOutcome {
	out := s.outcome(source)

	switch {
	case decodeErr != nil:
		out.Status = domain.FileStatusFailed
		out.Message = decodeErr.Error()
	case batch.Kind == domain.KindUnknown:
		out.Status = domain.FileStatusSkipped
		out.Message = apperrors.UnknownFile(source).Message
	default:
		out.Kind = batch.Kind
		out.Status = domain.FileStatusImported
		out.Rows = batch.Len()
		out.Month = batch.Month
		out.Withdrawals = len(batch.Withdrawals)

		switch batch.Kind {
		case domain.KindStock:
			s.session.ImportStock(batch.Stock)
		case domain.KindLedger:
			s.session.ImportLedger(source, batch.Month, batch.Ledger)
		case domain.KindRotation:
			s.session.ImportRotation(batch.Rotation)
		case domain.KindReference:
			s.session.ImportReference(batch.Reference, batch.Withdrawals)
		}
	}

	if err := s.store.RecordImport(ctx, out); err != nil {
		s.log.Warn().Err(err).Str("source", source).Msg("failed to record import")
	}
	monitoring.ObserveImport(out)

	ev := s.log.Info()
	if out.Status == domain.FileStatusFailed {
		ev = s.log.Warn()
	}
	ev.Str("source", source).
		Str("kind", string(out.Kind)).
		Str("status", string(out.Status)).
		Int("rows", out.Rows).
		Str("message", out.Message).
		Msg("file imported")
	return out
}

// ImportFile reads, classifies and stages one workbook. Unknown layouts
// are skipped without changing the staging. The returned error is set only
// when the file could not be read.
func (s *CatalogueService) ImportFile(ctx context.Context, name string, r io.Reader) (domain.ImportOutcome, error) {
	name = filepath.Base(name)
	batch, err := s.decode(name, r)
	out := s.stage(ctx, name, batch, err)
	if err != nil {
		return out, apperrors.BadRequest(fmt.Sprintf("cannot read %s: %v", name, err))
	}
	return out, nil
}

type decoded struct {
	batch *ingest.Batch
	err   error
}

// ImportFiles decodes paths on the worker pool, then stages the batches in
// the order given so that replacing imports resolve deterministically. A
// failing file does not stop the others.
func (s *CatalogueService) ImportFiles(ctx context.Context, paths []string) ([]domain.ImportOutcome, error) {
	results, err := pipeline.ProcessFiles(ctx, s.workers, paths, func(_ context.Context, path string) decoded {
		batch, err := s.decodeFile(path)
		return decoded{batch: batch, err: err}
	})
	if err != nil {
		return nil, err
	}

	outcomes := make([]domain.ImportOutcome, len(paths))
	for i, path := range paths {
		outcomes[i] = s.stage(ctx, filepath.Base(path), results[i].batch, results[i].err)
	}
	return outcomes, nil
}

// Loaded reports whether a snapshot has been committed.
func (s *CatalogueService) Loaded() bool {
	return s.session.Loaded()
}

// Staged describes what the next recompute will use.
func (s *CatalogueService) Staged() catalogue.StageStatus {
	return s.session.Staged()
}

// Imports lists the most recent import outcomes.
func (s *CatalogueService) Imports(ctx context.Context, limit int) ([]domain.ImportOutcome, error) {
	return s.store.ListImports(ctx, limit)
}

// Recompute reloads operator state and commits the staged data.
func (s *CatalogueService) Recompute(ctx context.Context) (domain.DashboardSummary, error) {
	if err := s.Load(ctx); err != nil {
		monitoring.RecomputeErrors.Inc()
		return domain.DashboardSummary{}, err
	}

	start := time.Now()
	snap, err := s.session.Commit()
	if err != nil {
		monitoring.RecomputeErrors.Inc()
		return domain.DashboardSummary{}, err
	}
	monitoring.RecomputeDuration.Observe(time.Since(start).Seconds())

	s.publish(ctx, snap)
	return snap.Summary, nil
}

// publish refreshes the cache and gauges after a new snapshot.
func (s *CatalogueService) publish(ctx context.Context, snap *catalogue.Snapshot) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.log.Warn().Err(err).Msg("cache invalidate failed")
	}
	if snap == nil {
		return
	}
	if err := s.cache.SetSummary(ctx, snap.Summary); err != nil {
		s.log.Warn().Err(err).Msg("cache set summary failed")
	}
	monitoring.ObserveSummary(snap.Summary)
}

// Reset discards staged data and the snapshot. Corrections and settings
// are kept.
func (s *CatalogueService) Reset(ctx context.Context) error {
	s.session.Reset()
	s.syncMu.Lock()
	s.seenKeys = make(map[string]bool)
	s.seenDrive = make(map[string]bool)
	s.syncMu.Unlock()
	return s.cache.InvalidateAll(ctx)
}

func (s *CatalogueService) snapshot() (*catalogue.Snapshot, error) {
	snap := s.session.Snapshot()
	if snap == nil {
		return nil, apperrors.NotLoaded()
	}
	return snap, nil
}

func (s *CatalogueService) writeReport(name string, body []byte) (string, error) {
	if s.reportDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.reportDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}
	path := filepath.Join(s.reportDir, name)
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return path, nil
}
