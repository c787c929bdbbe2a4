package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"veggiemarket/backend/internal/domain"
	"veggiemarket/backend/internal/erp"
	"veggiemarket/backend/internal/state"
	"veggiemarket/backend/internal/store"
)

// StatusKey is the snapshot key the sync status is persisted under.
const StatusKey = "erp-sync"

const (
	defaultTimeout   = 5 * time.Second
	defaultQueueSize = 64
	saveTimeout      = 5 * time.Second
)

var errQueueFull = errors.New("sync queue full")

// Source exposes the records a manual sync pushes. *state.Store satisfies it.
type Source interface {
	State() state.State
}

type Config struct {
	Timeout   time.Duration
	QueueSize int
}

// Syncer mirrors committed sales into the ERP on a single background worker
// and runs manual catalog and customer pushes. Nothing it does feeds back into
// local state; outcomes only land in the status tracker.
type Syncer struct {
	adapter   erp.Adapter
	source    Source
	snapshots store.Snapshots
	archive   store.SaleArchive
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time

	queueMu sync.RWMutex
	queue   chan domain.Sale
	closed  bool
	wg      sync.WaitGroup

	mu        sync.Mutex
	kinds     map[domain.SyncKind]domain.SyncStatus
	connected bool
	lastSync  *time.Time
}

type Option func(*Syncer)

func WithSnapshots(snapshots store.Snapshots) Option {
	return func(s *Syncer) { s.snapshots = snapshots }
}

// WithArchive stores every dequeued sale before it is sent to the ERP.
func WithArchive(archive store.SaleArchive) Option {
	return func(s *Syncer) { s.archive = archive }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

// New starts the worker. Call Close to drain and stop it.
func New(adapter erp.Adapter, source Source, cfg Config, opts ...Option) *Syncer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = defaultQueueSize
	}

	s := &Syncer{
		adapter: adapter,
		source:  source,
		logger:  zap.NewNop(),
		timeout: cfg.Timeout,
		now:     time.Now,
		queue:   make(chan domain.Sale, cfg.QueueSize),
		kinds: map[domain.SyncKind]domain.SyncStatus{
			domain.SyncProducts:  {State: domain.SyncIdle},
			domain.SyncCustomers: {State: domain.SyncIdle},
			domain.SyncSales:     {State: domain.SyncIdle},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("syncer")

	s.wg.Add(1)
	go s.run()
	return s
}

// HandleEvent enqueues committed sales without blocking. It is meant to be
// registered with state.Store.Subscribe.
func (s *Syncer) HandleEvent(event state.Event) {
	committed, ok := event.(state.SaleCommitted)
	if !ok {
		return
	}
	if err := s.Enqueue(committed.Sale); err != nil {
		s.logger.Warn("sale not queued for sync",
			zap.String("receipt", committed.Sale.ReceiptNumber),
			zap.Error(err),
		)
	}
}

// Enqueue schedules sale for mirroring. A full queue marks the sales status as
// failed; the sale itself is unaffected.
func (s *Syncer) Enqueue(sale domain.Sale) error {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()
	if s.closed {
		return errors.New("syncer closed")
	}

	select {
	case s.queue <- sale:
		return nil
	default:
		s.setStatus(domain.SyncSales, domain.SyncError, errQueueFull.Error(), false)
		return errQueueFull
	}
}

func (s *Syncer) run() {
	defer s.wg.Done()
	for sale := range s.queue {
		s.process(sale)
	}
}

// process archives sale and mirrors it to the ERP. Each call gets its own
// timeout. With the ERP disabled the sales status stays idle.
func (s *Syncer) process(sale domain.Sale) {
	if s.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.archive.ArchiveSale(ctx, sale); err != nil {
			s.logger.Error("archive sale", zap.String("sale_id", sale.ID), zap.Error(err))
		}
		cancel()
	}
	if _, disabled := s.adapter.(erp.Disabled); disabled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.syncSale(ctx, sale)
}

func (s *Syncer) syncSale(ctx context.Context, sale domain.Sale) erp.SaleResult {
	s.setStatus(domain.SyncSales, domain.SyncRunning, "", false)

	res := s.adapter.SyncSale(ctx, sale)
	if !res.Success {
		s.logger.Warn("sale sync failed",
			zap.String("receipt", sale.ReceiptNumber),
			zap.String("error", res.Error),
		)
		s.setStatus(domain.SyncSales, domain.SyncError, res.Error, false)
		return res
	}

	s.logger.Info("sale synced",
		zap.String("receipt", sale.ReceiptNumber),
		zap.String("external_id", res.ExternalID),
	)
	s.setStatus(domain.SyncSales, domain.SyncSuccess, "", true)
	return res
}

// ResyncSale sends one ledger entry again, identified by id or receipt number.
func (s *Syncer) ResyncSale(ctx context.Context, id string) (erp.SaleResult, error) {
	sale, ok := s.source.State().Sale(id)
	if !ok {
		return erp.SaleResult{}, fmt.Errorf("%w: sale %s", domain.ErrNotFound, id)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.syncSale(ctx, sale), nil
}

func (s *Syncer) SyncProducts(ctx context.Context) erp.BatchResult {
	products := s.source.State().Products
	return s.batch(ctx, domain.SyncProducts, func(ctx context.Context) erp.BatchResult {
		return s.adapter.SyncProducts(ctx, products)
	})
}

func (s *Syncer) SyncCustomers(ctx context.Context) erp.BatchResult {
	customers := s.source.State().Customers
	return s.batch(ctx, domain.SyncCustomers, func(ctx context.Context) erp.BatchResult {
		return s.adapter.SyncCustomers(ctx, customers)
	})
}

// SyncAll pushes products and customers concurrently.
func (s *Syncer) SyncAll(ctx context.Context) map[domain.SyncKind]erp.BatchResult {
	var products, customers erp.BatchResult

	var g errgroup.Group
	g.Go(func() error {
		products = s.SyncProducts(ctx)
		return nil
	})
	g.Go(func() error {
		customers = s.SyncCustomers(ctx)
		return nil
	})
	_ = g.Wait()

	return map[domain.SyncKind]erp.BatchResult{
		domain.SyncProducts:  products,
		domain.SyncCustomers: customers,
	}
}

func (s *Syncer) batch(ctx context.Context, kind domain.SyncKind, call func(context.Context) erp.BatchResult) erp.BatchResult {
	s.setStatus(kind, domain.SyncRunning, "", false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := call(ctx)
	if !res.Success {
		msg := strings.Join(res.Errors, "; ")
		s.logger.Warn("batch sync failed",
			zap.String("kind", string(kind)),
			zap.Int("synced", res.SyncedCount),
			zap.Strings("errors", res.Errors),
		)
		s.setStatus(kind, domain.SyncError, msg, false)
		return res
	}

	s.logger.Info("batch synced", zap.String("kind", string(kind)), zap.Int("synced", res.SyncedCount))
	s.setStatus(kind, domain.SyncSuccess, "", true)
	return res
}

func (s *Syncer) TestConnection(ctx context.Context) erp.ConnectionResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := s.adapter.TestConnection(ctx)
	s.mu.Lock()
	s.connected = res.Success
	s.mu.Unlock()
	s.save()
	return res
}

func (s *Syncer) Overview() domain.SyncOverview {
	s.mu.Lock()
	defer s.mu.Unlock()

	kinds := make(map[domain.SyncKind]domain.SyncStatus, len(s.kinds))
	for kind, status := range s.kinds {
		kinds[kind] = status
	}
	return domain.SyncOverview{
		Connected: s.connected,
		LastSync:  s.lastSync,
		Kinds:     kinds,
		Pending:   len(s.queue),
	}
}

// Close stops accepting sales, waits for queued ones to be processed and
// persists the final status.
func (s *Syncer) Close() error {
	s.queueMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.queueMu.Unlock()

	s.wg.Wait()
	return s.flush(context.Background())
}

func (s *Syncer) setStatus(kind domain.SyncKind, st domain.SyncState, msg string, stamp bool) {
	s.mu.Lock()
	status := s.kinds[kind]
	status.State = st
	status.Error = msg
	if stamp {
		at := s.now().UTC()
		status.LastSync = &at
		s.lastSync = &at
	}
	s.kinds[kind] = status
	s.mu.Unlock()

	if st != domain.SyncRunning {
		s.save()
	}
}

type statusDocument struct {
	Connected bool                                  `json:"connected"`
	LastSync  *time.Time                            `json:"last_sync,omitempty"`
	Kinds     map[domain.SyncKind]domain.SyncStatus `json:"kinds"`
}

// Restore loads the persisted status, if any. A sync that was running when
// the status was saved is reported as idle.
func (s *Syncer) Restore(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	payload, err := s.snapshots.Load(ctx, StatusKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load sync status: %w", err)
	}

	var doc statusDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("decode sync status: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = doc.Connected
	s.lastSync = doc.LastSync
	for kind, status := range doc.Kinds {
		if status.State == domain.SyncRunning {
			status.State = domain.SyncIdle
		}
		s.kinds[kind] = status
	}
	return nil
}

func (s *Syncer) save() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.flush(ctx); err != nil {
		s.logger.Warn("sync status save failed", zap.Error(err))
	}
}

func (s *Syncer) flush(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	overview := s.Overview()
	payload, err := json.Marshal(statusDocument{
		Connected: overview.Connected,
		LastSync:  overview.LastSync,
		Kinds:     overview.Kinds,
	})
	if err != nil {
		return err
	}
	return s.snapshots.Save(ctx, StatusKey, payload)
}
