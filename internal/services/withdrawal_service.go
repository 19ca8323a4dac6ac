package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"goride-wallet/internal/config"
	"goride-wallet/internal/models"
	"goride-wallet/internal/repositories/interfaces"
	"goride-wallet/internal/utils"
	"goride-wallet/pkg/logger"
	"goride-wallet/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WithdrawalService interface {
	Submit(ctx context.Context, owner models.Owner, request *WithdrawalSubmission) (*models.WithdrawalRequest, error)
	Approve(ctx context.Context, requestID, adminID primitive.ObjectID, notes string) (*models.WithdrawalRequest, error)
	Reject(ctx context.Context, requestID, adminID primitive.ObjectID, notes string) (*models.WithdrawalRequest, error)
	GetRequest(ctx context.Context, requestID primitive.ObjectID) (*models.WithdrawalRequest, error)
	ListByOwner(ctx context.Context, owner models.Owner, params *utils.PaginationParams) ([]*models.WithdrawalRequest, int64, error)
	ListByStatus(ctx context.Context, status models.WithdrawalStatus, params *utils.PaginationParams) ([]*models.WithdrawalRequest, int64, error)
	// SyncPayoutStatus records a payout-provider callback on the request. It
	// never approves or rejects.
	SyncPayoutStatus(ctx context.Context, metadata models.WithdrawalMetadata, payoutStatus string) (*models.WithdrawalRequest, error)
}

type WithdrawalSubmission struct {
	Amount        float64
	PaymentMethod models.PayoutMethod
	PayoutDetails models.PayoutDetails
}

type withdrawalService struct {
	ledger      *ledger
	withdrawals interfaces.WithdrawalRepository
	transactor  interfaces.Transactor
	config      *config.WalletConfig
	events      *walletEvents
	metrics     *metrics.Metrics
	logger      *logger.Logger
	auditLogger *logger.AuditLogger
}

type WithdrawalServiceDeps struct {
	Wallets     interfaces.WalletRepository
	Withdrawals interfaces.WithdrawalRepository
	Transactor  interfaces.Transactor
	Config      *config.WalletConfig
	Publisher   Publisher
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
}

func NewWithdrawalService(deps WithdrawalServiceDeps) WithdrawalService {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultWalletConfig()
	}
	log := deps.Logger.WithField("service", "withdrawal")

	return &withdrawalService{
		ledger:      newLedger(deps.Wallets, cfg.Currency, cfg.MaxUpdateRetries, deps.Metrics, log),
		withdrawals: deps.Withdrawals,
		transactor:  deps.Transactor,
		config:      cfg,
		events:      &walletEvents{publisher: deps.Publisher, logger: log},
		metrics:     deps.Metrics,
		logger:      log,
		auditLogger: logger.NewAuditLogger(deps.Logger),
	}
}

func validatePayoutDetails(method models.PayoutMethod, details models.PayoutDetails) error {
	switch method {
	case models.PayoutMethodBankTransfer:
		account := details.BankAccount
		if account == nil || account.AccountNumber == "" || account.IFSCCode == "" || account.AccountName == "" {
			return fmt.Errorf("%w: bank transfer needs account number, IFSC code and account name", ErrInvalidPayoutDetails)
		}
		if details.UPIID != "" {
			return fmt.Errorf("%w: UPI id given for a bank transfer", ErrInvalidPayoutDetails)
		}
	case models.PayoutMethodUPI:
		if strings.TrimSpace(details.UPIID) == "" {
			return fmt.Errorf("%w: UPI id is required", ErrInvalidPayoutDetails)
		}
		if details.BankAccount != nil {
			return fmt.Errorf("%w: bank account given for a UPI payout", ErrInvalidPayoutDetails)
		}
	default:
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidPayoutDetails, method)
	}
	return nil
}

// Submit reserves the amount: the balance drops now and a pending withdrawal
// debit is recorded together with the request it belongs to.
func (s *withdrawalService) Submit(ctx context.Context, owner models.Owner, request *WithdrawalSubmission) (*models.WithdrawalRequest, error) {
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
	if amount < s.config.MinWithdrawal {
		return nil, fmt.Errorf("%w of %s", ErrBelowMinimumWithdrawal, utils.FormatCurrency(s.config.MinWithdrawal, s.config.Currency))
	}
	if err := validatePayoutDetails(request.PaymentMethod, request.PayoutDetails); err != nil {
		return nil, err
	}

	if _, err := s.ledger.loadOrCreate(ctx, owner); err != nil {
		return nil, err
	}

	var created *models.WithdrawalRequest
	var wallet *models.Wallet
	var reserved *models.Transaction
	err := s.ledger.retryOnConflict(ctx, func(ctx context.Context) error {
		return s.transactor.WithTransaction(ctx, func(txCtx context.Context) error {
			requestID := primitive.NewObjectID()

			var err error
			wallet, err = s.ledger.updateOnce(txCtx, owner, func(w *models.Wallet) error {
				if w.Balance < amount {
					return fmt.Errorf("%w: balance %.2f, requested %.2f", ErrInsufficientBalance, w.Balance, amount)
				}
				w.Balance = models.RoundAmount(w.Balance - amount)
				w.UpdatedAt = time.Now()
				txn := w.Append(models.Transaction{
					Kind:             models.TransactionKindWithdrawal,
					Direction:        models.DirectionDebit,
					Amount:           amount,
					Status:           models.TransactionStatusPending,
					RelatedRequestID: &requestID,
					Description:      fmt.Sprintf("Withdrawal via %s", request.PaymentMethod),
				})
				c := *txn
				reserved = &c
				return nil
			})
			if err != nil {
				return err
			}

			created = &models.WithdrawalRequest{
				ID:            requestID,
				OwnerKind:     owner.Kind,
				OwnerID:       owner.ID,
				Amount:        amount,
				PaymentMethod: request.PaymentMethod,
				PayoutDetails: request.PayoutDetails,
				Status:        models.WithdrawalStatusPending,
				TransactionID: reserved.ID,
			}
			if err := s.withdrawals.Create(txCtx, created); err != nil {
				return fmt.Errorf("failed to create withdrawal request: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveWithdrawal("submitted")
	s.logger.WithOwner(string(owner.Kind), owner.ID).WithFields(map[string]interface{}{
		"request_id": created.ID.Hex(),
		"amount":     amount,
		"method":     request.PaymentMethod,
	}).Info("Withdrawal submitted")
	s.events.publish(ctx, utils.EventWalletDebited, wallet, reserved)

	return created, nil
}

func (s *withdrawalService) Approve(ctx context.Context, requestID, adminID primitive.ObjectID, notes string) (*models.WithdrawalRequest, error) {
	return s.decide(ctx, requestID, adminID, notes, true)
}

func (s *withdrawalService) Reject(ctx context.Context, requestID, adminID primitive.ObjectID, notes string) (*models.WithdrawalRequest, error) {
	return s.decide(ctx, requestID, adminID, notes, false)
}

// decide settles the reservation and the request together. The wallet swap is
// conditioned on the withdrawal debit still being pending, so of two racing
// decisions only one moves money; the loser reloads, finds it settled and
// gets ErrRequestAlreadyProcessed.
func (s *withdrawalService) decide(ctx context.Context, requestID, adminID primitive.ObjectID, notes string, approve bool) (*models.WithdrawalRequest, error) {
	request, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.WithdrawalStatusPending {
		return nil, ErrRequestAlreadyProcessed
	}

	target := models.TransactionStatusFailed
	status := models.WithdrawalStatusRejected
	decision := "rejected"
	if approve {
		target = models.TransactionStatusCompleted
		status = models.WithdrawalStatusApproved
		decision = "approved"
	}

	owner := request.Owner()
	var wallet *models.Wallet
	var settled *models.Transaction
	var processedAt time.Time
	err = s.ledger.retryOnConflict(ctx, func(ctx context.Context) error {
		return s.transactor.WithTransaction(ctx, func(txCtx context.Context) error {
			processedAt = time.Now()

			var err error
			wallet, err = s.ledger.updateOnce(txCtx, owner, func(w *models.Wallet) error {
				txn := w.FindByID(request.TransactionID)
				if txn == nil {
					txn = w.FindByRelatedRequest(request.ID, models.TransactionKindWithdrawal)
				}
				if txn == nil {
					return fmt.Errorf("%w: no reservation recorded for request %s", ErrWithdrawalNotFound, request.ID.Hex())
				}
				if txn.Status.IsTerminal() {
					return ErrRequestAlreadyProcessed
				}
				if notes != "" {
					txn.Notes = notes
				}
				if _, err := ApplyTransition(w, txn, target, 0, processedAt); err != nil {
					return err
				}
				c := *txn
				settled = &c
				return nil
			})
			if err != nil {
				return err
			}

			err = s.withdrawals.MarkProcessed(txCtx, request.ID, status, &adminID, notes, processedAt)
			if errors.Is(err, interfaces.ErrConditionFailed) {
				return ErrRequestAlreadyProcessed
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	request.Status = status
	request.AdminNotes = notes
	request.ProcessedBy = &adminID
	request.ProcessedAt = &processedAt
	request.UpdatedAt = processedAt

	s.metrics.ObserveWithdrawal(decision)
	s.metrics.ObserveSettlement(string(settled.Kind), string(settled.Status), settled.Amount)
	s.auditLogger.LogWithdrawalDecision(request.ID, decision, request.Amount, &adminID, notes)

	event := utils.EventWithdrawalRejected
	if approve {
		event = utils.EventWithdrawalApproved
	}
	s.events.publish(ctx, event, wallet, settled)

	return request, nil
}

func (s *withdrawalService) GetRequest(ctx context.Context, requestID primitive.ObjectID) (*models.WithdrawalRequest, error) {
	request, err := s.withdrawals.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return request, nil
}

func (s *withdrawalService) ListByOwner(ctx context.Context, owner models.Owner, params *utils.PaginationParams) ([]*models.WithdrawalRequest, int64, error) {
	if err := validateOwner(owner); err != nil {
		return nil, 0, err
	}
	return s.withdrawals.ListByOwner(ctx, owner, params)
}

func (s *withdrawalService) ListByStatus(ctx context.Context, status models.WithdrawalStatus, params *utils.PaginationParams) ([]*models.WithdrawalRequest, int64, error) {
	switch status {
	case "", models.WithdrawalStatusPending, models.WithdrawalStatusApproved, models.WithdrawalStatusRejected:
	default:
		return nil, 0, fmt.Errorf("%w: unknown withdrawal status %q", ErrInvalidTransition, status)
	}
	return s.withdrawals.ListByStatus(ctx, status, params)
}

func (s *withdrawalService) SyncPayoutStatus(ctx context.Context, metadata models.WithdrawalMetadata, payoutStatus string) (*models.WithdrawalRequest, error) {
	request, err := s.GetRequest(ctx, metadata.RequestID)
	if err != nil {
		return nil, err
	}
	if request.Owner() != metadata.Owner {
		return nil, fmt.Errorf("%w: withdrawal request %s belongs to another owner", ErrInvalidMetadata, request.ID.Hex())
	}

	if err := s.withdrawals.SetPayoutStatus(ctx, request.ID, payoutStatus); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	request.PayoutStatus = payoutStatus

	s.metrics.ObserveWithdrawal("payout_synced")
	s.logger.WithFields(map[string]interface{}{
		"request_id":    request.ID.Hex(),
		"payout_status": payoutStatus,
	}).Info("Withdrawal payout status synced")

	return request, nil
}
