package catalogue

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/pharmstock/backend-go/internal/analytics"
	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/matcher"
	"github.com/andresuchdata/pharmstock/backend-go/internal/normalize"
	"github.com/andresuchdata/pharmstock/backend-go/internal/reference"
	apperrors "github.com/andresuchdata/pharmstock/backend-go/pkg/errors"
	"github.com/andresuchdata/pharmstock/backend-go/pkg/logger"
)

// Snapshot is the immutable result of one commit. Products it returns must
// be treated as read-only.
type Snapshot struct {
	ID         string                  `json:"id"`
	ComputedAt time.Time               `json:"computed_at"`
	Settings   domain.Settings         `json:"settings"`
	Months     []string                `json:"months"`
	MergedInto map[string]string       `json:"merged_into"`
	Summary    domain.DashboardSummary `json:"summary"`
	Result     analytics.Result        `json:"-"`

	index    *reference.Index
	products []*domain.Product
	byName   map[string]*domain.Product
}

// Lookup returns a product by exact name, following merges.
func (s *Snapshot) Lookup(name string) (*domain.Product, bool) {
	if s == nil {
		return nil, false
	}
	name = normalize.Sanitize(name)
	if p, ok := s.byName[name]; ok {
		return p, true
	}
	if canon, ok := s.MergedInto[name]; ok {
		p, ok := s.byName[canon]
		return p, ok
	}
	return nil, false
}

// Products returns the products in catalogue order.
func (s *Snapshot) Products() []*domain.Product {
	if s == nil {
		return []*domain.Product{}
	}
	return slices.Clone(s.products)
}

// Generics returns the nationally known generics of a molecule at a dosage.
func (s *Snapshot) Generics(molecule, dosage string) []domain.ReferenceEntry {
	if s == nil {
		return []domain.ReferenceEntry{}
	}
	return s.index.Generics(molecule, dosage)
}

// Index returns the reference index the snapshot was built with.
func (s *Snapshot) Index() *reference.Index {
	if s == nil {
		return nil
	}
	return s.index
}

// Len returns the number of products.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.products)
}

// StageStatus describes what is staged for the next commit.
type StageStatus struct {
	StockLots    int      `json:"stock_lots"`
	HasStock     bool     `json:"has_stock"`
	RotationRows int      `json:"rotation_rows"`
	LedgerFiles  int      `json:"ledger_files"`
	LedgerMonths []string `json:"ledger_months"`
	Reference    int      `json:"reference"`
	Withdrawals  int      `json:"withdrawals"`
}

// Empty reports whether nothing is staged.
func (s StageStatus) Empty() bool {
	return !s.HasStock && s.RotationRows == 0 && s.LedgerFiles == 0 && s.Reference == 0
}

type staging struct {
	stock       []domain.StockLot
	hasStock    bool
	rotation    []domain.RotationRow
	ledger      map[string]LedgerBatch
	reference   []domain.ReferenceEntry
	withdrawals []domain.WithdrawalRecord
}

// Options configure a session.
type Options struct {
	Brands           normalize.BrandExtractor
	Settings         domain.Settings
	CustomCategories []string
	Clock            func() time.Time
}

// Session owns the staged imports, operator corrections and the last
// committed snapshot. It is safe for concurrent use; readers never block on
// a commit.
type Session struct {
	mu          sync.Mutex
	brands      normalize.BrandExtractor
	settings    domain.Settings
	categories  []string
	clock       func() time.Time
	staged      staging
	corrections map[string]domain.ManualCorrection
	snapshot    atomic.Pointer[Snapshot]
	log         zerolog.Logger
}

// NewSession returns an empty session.
func NewSession(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Brands == (normalize.BrandExtractor{}) {
		opts.Brands = normalize.DefaultBrandExtractor
	}
	if opts.Settings.TargetMonths == nil {
		opts.Settings = domain.DefaultSettings()
	}
	return &Session{
		brands:      opts.Brands,
		settings:    opts.Settings,
		categories:  opts.CustomCategories,
		clock:       opts.Clock,
		staged:      staging{ledger: make(map[string]LedgerBatch)},
		corrections: make(map[string]domain.ManualCorrection),
		log:         logger.Component("catalogue"),
	}
}

// ImportStock stages a stock snapshot, replacing the previous one.
func (s *Session) ImportStock(lots []domain.StockLot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged.stock = slices.Clone(lots)
	s.staged.hasStock = true
	s.log.Debug().Int("lots", len(lots)).Msg("staged stock snapshot")
}

// ImportLedger stages the movements of one file. Re-importing the same
// source for the same month replaces its rows; same-named exports of other
// months accumulate.
func (s *Session) ImportLedger(source, month string, rows []domain.MovementRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged.ledger[ledgerKey(source, month)] = LedgerBatch{Source: source, Month: month, Rows: slices.Clone(rows)}
	s.log.Debug().Str("source", source).Str("month", month).Int("rows", len(rows)).Msg("staged ledger")
}

func ledgerKey(source, month string) string {
	return source + "|" + month
}

// ImportRotation stages the annual rotation summary, replacing the previous one.
func (s *Session) ImportRotation(rows []domain.RotationRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged.rotation = slices.Clone(rows)
	s.log.Debug().Int("rows", len(rows)).Msg("staged rotation")
}

// ImportReference stages the national database and its withdrawal records,
// replacing the previous ones.
func (s *Session) ImportReference(entries []domain.ReferenceEntry, withdrawals []domain.WithdrawalRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged.reference = slices.Clone(entries)
	s.staged.withdrawals = slices.Clone(withdrawals)
	s.log.Debug().Int("entries", len(entries)).Int("withdrawals", len(withdrawals)).Msg("staged reference")
}

// Staged reports what the next commit will fold in.
func (s *Session) Staged() StageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stageStatus()
}

func (s *Session) stageStatus() StageStatus {
	st := StageStatus{
		StockLots:    len(s.staged.stock),
		HasStock:     s.staged.hasStock,
		RotationRows: len(s.staged.rotation),
		LedgerFiles:  len(s.staged.ledger),
		Reference:    len(s.staged.reference),
		Withdrawals:  len(s.staged.withdrawals),
	}
	months := make(map[string]struct{})
	for _, b := range s.staged.ledger {
		if b.Month != "" {
			months[b.Month] = struct{}{}
		}
	}
	st.LedgerMonths = slices.Sorted(maps.Keys(months))
	return st
}

// Settings returns the thresholds used by the next commit.
func (s *Session) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings replaces the thresholds. They apply from the next commit.
func (s *Session) SetSettings(settings domain.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Commit rebuilds the reference index and every product from the staged
// rows and corrections, then swaps the snapshot in one step.
func (s *Session) Commit() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stageStatus().Empty() {
		return nil, apperrors.NotLoaded()
	}
	start := time.Now()
	snap := s.build()
	s.snapshot.Store(snap)

	s.log.Info().
		Str("snapshot", snap.ID).
		Int("products", snap.Len()).
		Int("merged", len(snap.MergedInto)).
		Int("reference", snap.Summary.ReferenceSize).
		Dur("took", time.Since(start)).
		Msg("catalogue committed")
	return snap, nil
}

// Recompute commits the current staging and corrections again.
func (s *Session) Recompute() (*Snapshot, error) {
	return s.Commit()
}

func (s *Session) build() *Snapshot {
	now := s.clock()
	st := s.staged

	idx := reference.Build(st.reference, st.withdrawals)

	ledger := make([]LedgerBatch, 0, len(st.ledger))
	for _, src := range slices.Sorted(maps.Keys(st.ledger)) {
		ledger = append(ledger, st.ledger[src])
	}
	cat := Aggregate(Inputs{Stock: st.stock, HasStock: st.hasStock, Rotation: st.rotation, Ledger: ledger})

	if !idx.Empty() {
		Resolve(cat, matcher.New(idx, s.brands))
	}
	ApplyCorrections(cat, s.corrections)
	ApplyWithdrawals(cat, idx, s.brands)

	mergedInto := map[string]string{}
	if !idx.Empty() {
		mergedInto = Dedup(cat)
	}

	products := cat.Products()
	calc := analytics.NewCalculator(s.settings, now, idx.Generics)
	res := calc.Compute(products, cat.Months)

	snap := &Snapshot{
		ID:         uuid.NewString(),
		ComputedAt: now,
		Settings:   s.settings,
		Months:     cat.Months,
		MergedInto: mergedInto,
		Result:     res,
		index:      idx,
		products:   products,
		byName:     make(map[string]*domain.Product, len(products)),
	}
	for _, p := range products {
		snap.byName[p.Name] = p
	}

	summary := analytics.Summarize(products, res)
	summary.SnapshotID = snap.ID
	summary.ComputedAt = now
	summary.Merged = len(mergedInto)
	summary.ReferenceSize = idx.Len()
	summary.LedgerMonths = cat.Months
	snap.Summary = summary
	return snap
}

// Snapshot returns the last committed snapshot, nil before the first commit.
func (s *Session) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Loaded reports whether a snapshot has been committed.
func (s *Session) Loaded() bool {
	return s.snapshot.Load() != nil
}

// Lookup returns a product of the current snapshot.
func (s *Session) Lookup(name string) (*domain.Product, bool) {
	return s.Snapshot().Lookup(name)
}

// Products returns the products of the current snapshot.
func (s *Session) Products() []*domain.Product {
	return s.Snapshot().Products()
}

// Generics returns the known generics of a molecule at a dosage.
func (s *Session) Generics(molecule, dosage string) []domain.ReferenceEntry {
	return s.Snapshot().Generics(molecule, dosage)
}

// MergedInto returns a copy of the duplicate -> canonical map.
func (s *Session) MergedInto() map[string]string {
	snap := s.Snapshot()
	if snap == nil {
		return map[string]string{}
	}
	return maps.Clone(snap.MergedInto)
}

// SetCorrections replaces every stored correction, typically on startup.
func (s *Session) SetCorrections(list []domain.ManualCorrection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrections = make(map[string]domain.ManualCorrection, len(list))
	for _, c := range list {
		c.Name = normalize.Sanitize(c.Name)
		if c.Name == "" || c.Empty() {
			continue
		}
		s.corrections[c.Name] = c
	}
}

// ApplyCorrection stores an override and, once loaded, commits again so
// reads reflect it.
func (s *Session) ApplyCorrection(c domain.ManualCorrection) (*Snapshot, error) {
	c.Name = normalize.Sanitize(c.Name)
	if c.Name == "" {
		return nil, apperrors.Validation(map[string]string{"name": "required"})
	}
	if c.Empty() {
		return nil, apperrors.Validation(map[string]string{"correction": "molecule, dosage or category required"})
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = s.clock()
	}

	s.mu.Lock()
	s.corrections[c.Name] = c
	s.mu.Unlock()
	return s.recommitIfLoaded()
}

// RemoveCorrection deletes an override. Removing an unknown name is a
// not-found error.
func (s *Session) RemoveCorrection(name string) (*Snapshot, error) {
	name = normalize.Sanitize(name)
	s.mu.Lock()
	_, ok := s.corrections[name]
	delete(s.corrections, name)
	s.mu.Unlock()
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("correction for %q", name))
	}
	return s.recommitIfLoaded()
}

func (s *Session) recommitIfLoaded() (*Snapshot, error) {
	if !s.Loaded() {
		return nil, nil
	}
	return s.Commit()
}

// NewCorrection reads free operator input against the session's categories.
func (s *Session) NewCorrection(name, value, dosage string) domain.ManualCorrection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewCorrection(name, value, dosage, s.categories)
}

// Corrections returns the stored overrides sorted by product name.
func (s *Session) Corrections() []domain.ManualCorrection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ManualCorrection, 0, len(s.corrections))
	for _, c := range s.corrections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset discards staged rows and the snapshot. Corrections and settings
// are operator state and survive.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = staging{ledger: make(map[string]LedgerBatch)}
	s.snapshot.Store(nil)
	s.log.Info().Msg("catalogue reset")
}
