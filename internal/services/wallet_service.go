package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"goride-wallet/internal/config"
	"goride-wallet/internal/models"
	"goride-wallet/internal/repositories/interfaces"
	"goride-wallet/internal/utils"
	"goride-wallet/pkg/logger"
	"goride-wallet/pkg/metrics"
	"goride-wallet/pkg/payment"
)

type WalletService interface {
	// Wallet access
	GetWallet(ctx context.Context, owner models.Owner) (*models.Wallet, error)
	ListTransactions(ctx context.Context, owner models.Owner, status models.TransactionStatus) ([]models.Transaction, error)

	// Gateway deposits
	InitiateDeposit(ctx context.Context, owner models.Owner, request *DepositRequest) (*InitiationResult, error)
	CreateDepositOrder(ctx context.Context, owner models.Owner, request *DepositOrderRequest) (*DepositOrder, error)

	// Internal debits
	Spend(ctx context.Context, owner models.Owner, request *SpendRequest) (*models.Transaction, error)
	ChargeCancellation(ctx context.Context, owner models.Owner, request *CancellationChargeRequest) (*CancellationCharge, error)

	// Platform operators
	GetLedger(ctx context.Context, filter *models.LedgerFilter, params *utils.PaginationParams) ([]*models.LedgerEntry, int64, error)
	FindTransaction(ctx context.Context, gatewayPaymentID string) (*TransactionLookup, error)
	VerifyWallet(ctx context.Context, owner models.Owner) (*WalletVerification, error)
}

type DepositRequest struct {
	Amount           float64
	GatewayPaymentID string
	Provider         string
	Description      string
}

type DepositOrderRequest struct {
	Amount   float64
	Provider string
}

type DepositOrder struct {
	Order       *payment.OrderResponse `json:"order"`
	Transaction *models.Transaction    `json:"transaction"`
}

// InitiationResult carries AlreadyProcessed when the payment id had already
// settled, for example because its webhook arrived first.
type InitiationResult struct {
	Transaction      *models.Transaction `json:"transaction"`
	AlreadyProcessed bool                `json:"already_processed"`
}

type SpendRequest struct {
	Amount      float64
	Reference   string
	Description string
}

type CancellationChargeRequest struct {
	Amount    float64
	Reference string
	Reason    string
}

type CancellationCharge struct {
	Requested float64             `json:"requested"`
	Charged   float64             `json:"charged"`
	Debit     *models.Transaction `json:"debit"`
	Credit    *models.Transaction `json:"credit"`
}

// TransactionLookup locates a gateway payment across every wallet.
type TransactionLookup struct {
	Owner         models.Owner        `json:"owner"`
	WalletVersion int64               `json:"wallet_version"`
	Transaction   *models.Transaction `json:"transaction"`
}

type walletService struct {
	ledger          *ledger
	wallets         interfaces.WalletRepository
	transactor      interfaces.Transactor
	providers       map[string]payment.PaymentProvider
	defaultProvider string
	config          *config.WalletConfig
	events          *walletEvents
	metrics         *metrics.Metrics
	logger          *logger.Logger
	auditLogger     *logger.AuditLogger
}

type WalletServiceDeps struct {
	Wallets         interfaces.WalletRepository
	Transactor      interfaces.Transactor
	Providers       []payment.PaymentProvider
	DefaultProvider string
	Config          *config.WalletConfig
	Publisher       Publisher
	Metrics         *metrics.Metrics
	Logger          *logger.Logger
}

func NewWalletService(deps WalletServiceDeps) WalletService {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultWalletConfig()
	}
	log := deps.Logger.WithField("service", "wallet")

	return &walletService{
		ledger:          newLedger(deps.Wallets, cfg.Currency, cfg.MaxUpdateRetries, deps.Metrics, log),
		wallets:         deps.Wallets,
		transactor:      deps.Transactor,
		providers:       providerMap(deps.Providers),
		defaultProvider: deps.DefaultProvider,
		config:          cfg,
		events:          &walletEvents{publisher: deps.Publisher, logger: log},
		metrics:         deps.Metrics,
		logger:          log,
		auditLogger:     logger.NewAuditLogger(deps.Logger),
	}
}

func providerMap(providers []payment.PaymentProvider) map[string]payment.PaymentProvider {
	result := make(map[string]payment.PaymentProvider, len(providers))
	for _, p := range providers {
		if p != nil {
			result[p.Name()] = p
		}
	}
	return result
}

func validateOwner(owner models.Owner) error {
	switch owner.Kind {
	case models.OwnerKindDriver, models.OwnerKindRider:
		if owner.ID.IsZero() {
			return ErrInvalidOwner
		}
		return nil
	case models.OwnerKindPlatform:
		return nil
	}
	return ErrInvalidOwner
}

func (s *walletService) GetWallet(ctx context.Context, owner models.Owner) (*models.Wallet, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	return s.ledger.loadOrCreate(ctx, owner)
}

func (s *walletService) ListTransactions(ctx context.Context, owner models.Owner, status models.TransactionStatus) ([]models.Transaction, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	wallet, err := s.GetWallet(ctx, owner)
	if err != nil {
		return nil, err
	}
	return wallet.TransactionsByStatus(status), nil
}

func (s *walletService) InitiateDeposit(ctx context.Context, owner models.Owner, request *DepositRequest) (*InitiationResult, error) {
	if owner.Kind != models.OwnerKindDriver && owner.Kind != models.OwnerKindRider {
		return nil, ErrInvalidOwner
	}
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	amount := models.RoundAmount(request.Amount)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount < s.config.MinDeposit {
		return nil, fmt.Errorf("%w of %s", ErrBelowMinimumDeposit, utils.FormatCurrency(s.config.MinDeposit, s.config.Currency))
	}
	if request.GatewayPaymentID == "" {
		return nil, fmt.Errorf("%w: gateway payment id is required", ErrInvalidMetadata)
	}

	description := request.Description
	if description == "" {
		description = "Wallet deposit"
	}

	result := &InitiationResult{}
	_, err := s.ledger.update(ctx, owner, func(w *models.Wallet) error {
		*result = InitiationResult{}
		existing, err := guardInitiation(w, request.GatewayPaymentID)
		if err != nil {
			return err
		}
		if existing != nil {
			result.Transaction = existing
			result.AlreadyProcessed = true
			return errSkipWrite
		}

		txn := w.Append(models.Transaction{
			Kind:             models.TransactionKindDeposit,
			Direction:        models.DirectionCredit,
			Amount:           amount,
			Status:           models.TransactionStatusPending,
			GatewayPaymentID: request.GatewayPaymentID,
			Provider:         request.Provider,
			Description:      description,
		})
		c := *txn
		result.Transaction = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithOwner(string(owner.Kind), owner.ID).
		WithPaymentID(request.GatewayPaymentID).
		WithField("already_processed", result.AlreadyProcessed).
		Info("Deposit initiated")

	return result, nil
}

func (s *walletService) CreateDepositOrder(ctx context.Context, owner models.Owner, request *DepositOrderRequest) (*DepositOrder, error) {
	if owner.Kind != models.OwnerKindDriver && owner.Kind != models.OwnerKindRider {
		return nil, ErrInvalidOwner
	}
	amount := models.RoundAmount(request.Amount)
	if amount < s.config.MinDeposit || amount <= 0 {
		return nil, fmt.Errorf("%w of %s", ErrBelowMinimumDeposit, utils.FormatCurrency(s.config.MinDeposit, s.config.Currency))
	}

	providerName := request.Provider
	if providerName == "" {
		providerName = s.defaultProvider
	}
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, providerName)
	}

	order, err := provider.CreateOrder(ctx, &payment.OrderRequest{
		Amount:      amount,
		Currency:    s.config.Currency,
		Receipt:     fmt.Sprintf("dep_%s_%d", owner.ID.Hex(), time.Now().Unix()),
		Description: "Wallet deposit",
		Metadata: map[string]string{
			models.MetadataTransactionKind: string(models.TransactionKindDeposit),
			models.MetadataOwnerKind:       string(owner.Kind),
			models.MetadataOwnerID:         owner.ID.Hex(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s order: %w", providerName, err)
	}

	result, err := s.InitiateDeposit(ctx, owner, &DepositRequest{
		Amount:           amount,
		GatewayPaymentID: order.OrderID,
		Provider:         providerName,
	})
	if err != nil {
		return nil, err
	}

	return &DepositOrder{Order: order, Transaction: result.Transaction}, nil
}

func (s *walletService) Spend(ctx context.Context, owner models.Owner, request *SpendRequest) (*models.Transaction, error) {
	if owner.Kind == models.OwnerKindPlatform {
		return nil, ErrInvalidOwner
	}
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	amount := models.RoundAmount(request.Amount)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var spent *models.Transaction
	var replay bool
	wallet, err := s.ledger.update(ctx, owner, func(w *models.Wallet) error {
		spent, replay = nil, false
		if existing := w.FindByReference(request.Reference, models.DirectionDebit); existing != nil {
			c := *existing
			spent, replay = &c, true
			return errSkipWrite
		}
		if w.Balance < amount {
			return ErrInsufficientBalance
		}

		now := time.Now()
		w.Balance = models.RoundAmount(w.Balance - amount)
		w.TotalWithdrawn = models.RoundAmount(w.TotalWithdrawn + amount)
		txn := w.Append(models.Transaction{
			Kind:        models.TransactionKindSpend,
			Direction:   models.DirectionDebit,
			Amount:      amount,
			Status:      models.TransactionStatusCompleted,
			Reference:   request.Reference,
			Description: request.Description,
			CreatedAt:   now,
			SettledAt:   &now,
		})
		c := *txn
		spent = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !replay {
		s.metrics.ObserveSettlement(string(spent.Kind), string(spent.Status), spent.Amount)
		s.events.publish(ctx, utils.EventWalletDebited, wallet, spent)
	}
	return spent, nil
}

// ChargeCancellation debits the owner, never below zero, and credits what was
// actually taken to the platform wallet. Both legs share request.Reference.
func (s *walletService) ChargeCancellation(ctx context.Context, owner models.Owner, request *CancellationChargeRequest) (*CancellationCharge, error) {
	if owner.Kind == models.OwnerKindPlatform {
		return nil, ErrInvalidOwner
	}
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	amount := models.RoundAmount(request.Amount)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if request.Reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrInvalidMetadata)
	}

	if _, err := s.ledger.loadOrCreate(ctx, owner); err != nil {
		return nil, err
	}
	if _, err := s.ledger.loadOrCreate(ctx, models.PlatformOwner()); err != nil {
		return nil, err
	}

	platformReference := owner.String() + ":" + request.Reference
	description := "Cancellation charge"
	if request.Reason != "" {
		description = "Cancellation charge: " + request.Reason
	}

	var charge *CancellationCharge
	var ownerWallet, platformWallet *models.Wallet
	err := s.ledger.retryOnConflict(ctx, func(ctx context.Context) error {
		return s.transactor.WithTransaction(ctx, func(txCtx context.Context) error {
			charge = &CancellationCharge{Requested: amount}
			now := time.Now()

			var err error
			ownerWallet, err = s.ledger.updateOnce(txCtx, owner, func(w *models.Wallet) error {
				if existing := w.FindByReference(request.Reference, models.DirectionDebit); existing != nil {
					c := *existing
					charge.Debit = &c
					charge.Charged = existing.Amount
					return errSkipWrite
				}
				charged := amount
				if charged > w.Balance {
					charged = w.Balance
				}
				w.Balance = models.RoundAmount(w.Balance - charged)
				w.TotalDeductions = models.RoundAmount(w.TotalDeductions + charged)
				txn := w.Append(models.Transaction{
					Kind:            models.TransactionKindCancellationCharge,
					Direction:       models.DirectionDebit,
					Amount:          charged,
					RequestedAmount: amount,
					Status:          models.TransactionStatusCompleted,
					Reference:       request.Reference,
					Description:     description,
					CreatedAt:       now,
					SettledAt:       &now,
				})
				c := *txn
				charge.Debit = &c
				charge.Charged = charged
				return nil
			})
			if err != nil {
				return err
			}

			platformWallet, err = s.ledger.updateOnce(txCtx, models.PlatformOwner(), func(w *models.Wallet) error {
				if existing := w.FindByReference(platformReference, models.DirectionCredit); existing != nil {
					c := *existing
					charge.Credit = &c
					return errSkipWrite
				}
				w.Balance = models.RoundAmount(w.Balance + charge.Charged)
				w.TotalDeposited = models.RoundAmount(w.TotalDeposited + charge.Charged)
				txn := w.Append(models.Transaction{
					Kind:        models.TransactionKindCancellationCharge,
					Direction:   models.DirectionCredit,
					Amount:      charge.Charged,
					Status:      models.TransactionStatusCompleted,
					Reference:   platformReference,
					Description: fmt.Sprintf("Cancellation commission from %s", owner),
					CreatedAt:   now,
					SettledAt:   &now,
				})
				c := *txn
				charge.Credit = &c
				return nil
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithOwner(string(owner.Kind), owner.ID).WithFields(map[string]interface{}{
		"requested": charge.Requested,
		"charged":   charge.Charged,
		"reference": request.Reference,
	}).Info("Cancellation charge applied")
	s.events.publish(ctx, utils.EventWalletDebited, ownerWallet, charge.Debit)
	s.events.publish(ctx, utils.EventWalletCredited, platformWallet, charge.Credit)

	return charge, nil
}

func (s *walletService) GetLedger(ctx context.Context, filter *models.LedgerFilter, params *utils.PaginationParams) ([]*models.LedgerEntry, int64, error) {
	if filter != nil {
		if filter.OwnerKind != "" && !filter.OwnerKind.IsValid() {
			return nil, 0, ErrInvalidOwner
		}
		if filter.Status != "" && !filter.Status.IsValid() {
			return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, filter.Status)
		}
	}
	return s.wallets.ListLedger(ctx, filter, params)
}

func (s *walletService) FindTransaction(ctx context.Context, gatewayPaymentID string) (*TransactionLookup, error) {
	if gatewayPaymentID == "" {
		return nil, ErrTransactionNotFound
	}
	wallet, err := s.wallets.FindByGatewayPaymentID(ctx, gatewayPaymentID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	txn := wallet.FindByGatewayPaymentID(gatewayPaymentID)
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	return &TransactionLookup{
		Owner:         wallet.Owner(),
		WalletVersion: wallet.Version,
		Transaction:   snapshot(txn),
	}, nil
}

func (s *walletService) VerifyWallet(ctx context.Context, owner models.Owner) (*WalletVerification, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	wallet, err := s.wallets.GetByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	result := VerifyWallet(wallet)
	if !result.Consistent {
		s.auditLogger.LogInvariantDrift(string(owner.Kind), owner.ID, map[string]interface{}{
			"drift": result.Drift,
		})
	}
	return result, nil
}
