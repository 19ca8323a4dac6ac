// Package memory holds process-local repositories used by tests and by the
// server when STORAGE_DRIVER=memory. They honour the same version and
// status conditions as the MongoDB implementations.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"goride-wallet/internal/models"
	"goride-wallet/internal/repositories/interfaces"
	"goride-wallet/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu          sync.RWMutex
	wallets     map[string]*models.Wallet
	withdrawals map[primitive.ObjectID]*models.WithdrawalRequest
	drivers     map[primitive.ObjectID]*models.Driver
	plans       map[primitive.ObjectID]*models.Plan
	ownerNames  map[string]string
}

func NewStore() *Store {
	return &Store{
		wallets:     make(map[string]*models.Wallet),
		withdrawals: make(map[primitive.ObjectID]*models.WithdrawalRequest),
		drivers:     make(map[primitive.ObjectID]*models.Driver),
		plans:       make(map[primitive.ObjectID]*models.Plan),
		ownerNames:  make(map[string]string),
	}
}

func (s *Store) Wallets() interfaces.WalletRepository {
	return &walletRepository{store: s}
}

func (s *Store) Withdrawals() interfaces.WithdrawalRepository {
	return &withdrawalRepository{store: s}
}

func (s *Store) Drivers() interfaces.DriverRepository {
	return &driverRepository{store: s}
}

func (s *Store) Plans() interfaces.PlanRepository {
	return &planRepository{store: s}
}

// Transactor runs fn without isolation or rollback. Services validate before
// their first write, so a failing fn leaves nothing behind in practice.
func (s *Store) Transactor() interfaces.Transactor {
	return transactor{}
}

// SetOwnerName sets the display name joined into ledger entries.
func (s *Store) SetOwnerName(owner models.Owner, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerNames[owner.String()] = name
}

type transactor struct{}

func (transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type walletRepository struct {
	store *Store
}

func (r *walletRepository) GetByOwner(ctx context.Context, owner models.Owner) (*models.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	wallet, ok := r.store.wallets[owner.String()]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return wallet.Clone(), nil
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := wallet.Owner().String()
	if _, exists := r.store.wallets[key]; exists {
		return interfaces.ErrDuplicate
	}
	if wallet.ID.IsZero() {
		wallet.ID = primitive.NewObjectID()
	}
	r.store.wallets[key] = wallet.Clone()
	return nil
}

func (r *walletRepository) CompareAndSwap(ctx context.Context, wallet *models.Wallet, expectedVersion int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := wallet.Owner().String()
	current, ok := r.store.wallets[key]
	if !ok {
		return interfaces.ErrNotFound
	}
	if current.Version != expectedVersion {
		return interfaces.ErrVersionConflict
	}

	wallet.Version = expectedVersion + 1
	wallet.UpdatedAt = time.Now()
	r.store.wallets[key] = wallet.Clone()
	return nil
}

func (r *walletRepository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, wallet := range r.store.wallets {
		if wallet.FindByGatewayPaymentID(gatewayPaymentID) != nil {
			return wallet.Clone(), nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *walletRepository) ListLedger(ctx context.Context, filter *models.LedgerFilter, params *utils.PaginationParams) ([]*models.LedgerEntry, int64, error) {
	if filter == nil {
		filter = &models.LedgerFilter{}
	}
	if params == nil {
		params = utils.DefaultPaginationParams()
	}

	r.store.mu.RLock()
	var entries []*models.LedgerEntry
	for key, wallet := range r.store.wallets {
		if filter.OwnerKind != "" && wallet.OwnerKind != filter.OwnerKind {
			continue
		}
		if filter.OwnerID != nil && wallet.OwnerID != *filter.OwnerID {
			continue
		}
		for _, txn := range wallet.Transactions {
			if filter.Status != "" && txn.Status != filter.Status {
				continue
			}
			if filter.Kind != "" && txn.Kind != filter.Kind {
				continue
			}
			entries = append(entries, &models.LedgerEntry{
				WalletID:      wallet.ID,
				OwnerKind:     wallet.OwnerKind,
				OwnerID:       wallet.OwnerID,
				OwnerName:     r.store.ownerNames[key],
				WalletBalance: wallet.Balance,
				Transaction:   txn,
			})
		}
	}
	r.store.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if params.Order == "asc" {
			return entries[i].Transaction.CreatedAt.Before(entries[j].Transaction.CreatedAt)
		}
		return entries[i].Transaction.CreatedAt.After(entries[j].Transaction.CreatedAt)
	})

	total := int64(len(entries))
	return page(entries, params), total, nil
}

type withdrawalRepository struct {
	store *Store
}

func (r *withdrawalRepository) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if request.ID.IsZero() {
		request.ID = primitive.NewObjectID()
	}
	if _, exists := r.store.withdrawals[request.ID]; exists {
		return interfaces.ErrDuplicate
	}
	now := time.Now()
	request.CreatedAt = now
	request.UpdatedAt = now

	c := *request
	r.store.withdrawals[request.ID] = &c
	return nil
}

func (r *withdrawalRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.WithdrawalRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	request, ok := r.store.withdrawals[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	c := *request
	return &c, nil
}

func (r *withdrawalRepository) ListByOwner(ctx context.Context, owner models.Owner, params *utils.PaginationParams) ([]*models.WithdrawalRequest, int64, error) {
	return r.list(params, func(req *models.WithdrawalRequest) bool {
		return req.OwnerKind == owner.Kind && req.OwnerID == owner.ID
	})
}

func (r *withdrawalRepository) ListByStatus(ctx context.Context, status models.WithdrawalStatus, params *utils.PaginationParams) ([]*models.WithdrawalRequest, int64, error) {
	return r.list(params, func(req *models.WithdrawalRequest) bool {
		return status == "" || req.Status == status
	})
}

func (r *withdrawalRepository) list(params *utils.PaginationParams, keep func(*models.WithdrawalRequest) bool) ([]*models.WithdrawalRequest, int64, error) {
	if params == nil {
		params = utils.DefaultPaginationParams()
	}

	r.store.mu.RLock()
	var requests []*models.WithdrawalRequest
	for _, req := range r.store.withdrawals {
		if keep(req) {
			c := *req
			requests = append(requests, &c)
		}
	}
	r.store.mu.RUnlock()

	sort.SliceStable(requests, func(i, j int) bool {
		if params.Order == "asc" {
			return requests[i].CreatedAt.Before(requests[j].CreatedAt)
		}
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})

	total := int64(len(requests))
	return page(requests, params), total, nil
}

func (r *withdrawalRepository) MarkProcessed(ctx context.Context, id primitive.ObjectID, status models.WithdrawalStatus, adminID *primitive.ObjectID, notes string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	request, ok := r.store.withdrawals[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	if request.Status != models.WithdrawalStatusPending {
		return interfaces.ErrConditionFailed
	}

	request.Status = status
	request.AdminNotes = notes
	request.ProcessedBy = adminID
	request.ProcessedAt = &at
	request.UpdatedAt = at
	return nil
}

func (r *withdrawalRepository) SetPayoutStatus(ctx context.Context, id primitive.ObjectID, payoutStatus string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	request, ok := r.store.withdrawals[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	request.PayoutStatus = payoutStatus
	request.UpdatedAt = time.Now()
	return nil
}

type driverRepository struct {
	store *Store
}

func (r *driverRepository) Create(ctx context.Context, driver *models.Driver) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if driver.ID.IsZero() {
		driver.ID = primitive.NewObjectID()
	}
	if _, exists := r.store.drivers[driver.ID]; exists {
		return interfaces.ErrDuplicate
	}
	now := time.Now()
	driver.CreatedAt = now
	driver.UpdatedAt = now
	r.store.drivers[driver.ID] = driver.Clone()
	r.store.ownerNames[models.DriverOwner(driver.ID).String()] = driver.Name
	return nil
}

func (r *driverRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Driver, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	driver, ok := r.store.drivers[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return driver.Clone(), nil
}

func (r *driverRepository) CompareAndSwap(ctx context.Context, driver *models.Driver, expectedVersion int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.drivers[driver.ID]
	if !ok {
		return interfaces.ErrNotFound
	}
	if current.Version != expectedVersion {
		return interfaces.ErrVersionConflict
	}

	driver.Version = expectedVersion + 1
	driver.UpdatedAt = time.Now()
	r.store.drivers[driver.ID] = driver.Clone()
	return nil
}

type planRepository struct {
	store *Store
}

func (r *planRepository) Create(ctx context.Context, plan *models.Plan) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if plan.ID.IsZero() {
		plan.ID = primitive.NewObjectID()
	}
	now := time.Now()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	c := *plan
	r.store.plans[plan.ID] = &c
	return nil
}

func (r *planRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Plan, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	plan, ok := r.store.plans[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	c := *plan
	return &c, nil
}

func (r *planRepository) ListActive(ctx context.Context) ([]*models.Plan, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	plans := make([]*models.Plan, 0, len(r.store.plans))
	for _, plan := range r.store.plans {
		if plan.IsActive {
			c := *plan
			plans = append(plans, &c)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Price < plans[j].Price })
	return plans, nil
}

func page[T any](items []T, params *utils.PaginationParams) []T {
	skip := params.GetSkip()
	if skip >= len(items) {
		return []T{}
	}
	end := skip + params.GetLimit()
	if end > len(items) {
		end = len(items)
	}
	return items[skip:end]
}
