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
	"goride-wallet/pkg/cache"
	"goride-wallet/pkg/logger"
	"goride-wallet/pkg/metrics"
	"goride-wallet/pkg/payment"
)

type WebhookOutcome string

const (
	OutcomeProcessed    WebhookOutcome = "processed"
	OutcomeDuplicate    WebhookOutcome = "duplicate"
	OutcomeIgnored      WebhookOutcome = "ignored"
	OutcomePending      WebhookOutcome = "pending"
	OutcomePayoutSynced WebhookOutcome = "payout_synced"
	OutcomeAuditFailed  WebhookOutcome = "audit_failed"
)

type WebhookService interface {
	// HandleWebhook authenticates the raw payload before anything else and
	// then reconciles it. eventID, when set, replaces the provider's event id.
	HandleWebhook(ctx context.Context, provider string, payload []byte, signature string, eventID string) (*WebhookResult, error)
	Reconcile(ctx context.Context, event *payment.WebhookEvent) (*WebhookResult, error)
	// SignatureHeader names the request header carrying the provider's signature.
	SignatureHeader(provider string) (string, bool)
}

type WebhookResult struct {
	Provider        string                   `json:"provider"`
	EventID         string                   `json:"event_id,omitempty"`
	EventType       string                   `json:"event_type"`
	PaymentID       string                   `json:"payment_id,omitempty"`
	Outcome         WebhookOutcome           `json:"outcome"`
	Status          models.TransactionStatus `json:"status,omitempty"`
	TransactionKind models.TransactionKind   `json:"transaction_kind,omitempty"`
	TransactionID   string                   `json:"transaction_id,omitempty"`
	BalanceDelta    float64                  `json:"balance_delta,omitempty"`
}

type webhookService struct {
	ledger      *ledger
	providers   map[string]payment.PaymentProvider
	withdrawals WithdrawalService
	plans       PlanService
	deduper     Deduper
	dedupeTTL   time.Duration
	events      *walletEvents
	metrics     *metrics.Metrics
	logger      *logger.Logger
	auditLogger *logger.AuditLogger
}

type WebhookServiceDeps struct {
	Wallets     interfaces.WalletRepository
	Providers   []payment.PaymentProvider
	Withdrawals WithdrawalService
	Plans       PlanService
	// Deduper is optional.
	Deduper   Deduper
	Config    *config.WalletConfig
	Publisher Publisher
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

func NewWebhookService(deps WebhookServiceDeps) WebhookService {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultWalletConfig()
	}
	log := deps.Logger.WithField("service", "webhook")

	return &webhookService{
		ledger:      newLedger(deps.Wallets, cfg.Currency, cfg.MaxUpdateRetries, deps.Metrics, log),
		providers:   providerMap(deps.Providers),
		withdrawals: deps.Withdrawals,
		plans:       deps.Plans,
		deduper:     deps.Deduper,
		dedupeTTL:   cfg.WebhookDedupeTTL,
		events:      &walletEvents{publisher: deps.Publisher, logger: log},
		metrics:     deps.Metrics,
		logger:      log,
		auditLogger: logger.NewAuditLogger(deps.Logger),
	}
}

func (s *webhookService) SignatureHeader(providerName string) (string, bool) {
	provider, ok := s.providers[providerName]
	if !ok {
		return "", false
	}
	return provider.SignatureHeader(), true
}

func (s *webhookService) HandleWebhook(ctx context.Context, providerName string, payload []byte, signature string, eventID string) (*WebhookResult, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, providerName)
	}

	event, err := provider.ValidateWebhook(ctx, payload, signature)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			s.logger.LogSecurityEvent("webhook_signature_invalid", "high", map[string]interface{}{
				"provider":     providerName,
				"payload_size": len(payload),
			})
			s.metrics.ObserveWebhook(providerName, "rejected")
		} else {
			s.metrics.ObserveWebhook(providerName, "malformed")
		}
		return nil, err
	}
	if eventID != "" {
		event.EventID = eventID
	}

	if cached := s.lookupDelivered(ctx, event); cached != nil {
		s.metrics.ObserveWebhook(providerName, string(OutcomeDuplicate))
		return cached, nil
	}

	result, err := s.Reconcile(ctx, event)
	if err != nil {
		s.metrics.ObserveWebhook(providerName, failureOutcome(err))
		return result, err
	}
	s.metrics.ObserveWebhook(providerName, string(result.Outcome))

	s.rememberDelivered(ctx, event, result)
	return result, nil
}

func failureOutcome(err error) string {
	switch {
	case errors.Is(err, ErrAmountMismatch):
		return string(OutcomeAuditFailed)
	case errors.Is(err, ErrTypeNotSpecified), errors.Is(err, ErrInvalidMetadata),
		errors.Is(err, ErrMalformedPayload), errors.Is(err, ErrKindMismatch), errors.Is(err, ErrInvalidAmount):
		return "integration_error"
	}
	return "error"
}

func (s *webhookService) lookupDelivered(ctx context.Context, event *payment.WebhookEvent) *WebhookResult {
	if s.deduper == nil || event.EventID == "" {
		return nil
	}
	var cached WebhookResult
	err := s.deduper.Get(ctx, webhookDedupeKey(event.Provider, event.EventID), &cached)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WithError(err).Warn("Webhook dedupe lookup failed")
		}
		return nil
	}
	cached.Outcome = OutcomeDuplicate
	return &cached
}

// rememberDelivered only runs after a successful reconcile, so a delivery that
// failed midway is never suppressed on retry.
func (s *webhookService) rememberDelivered(ctx context.Context, event *payment.WebhookEvent, result *WebhookResult) {
	if s.deduper == nil || event.EventID == "" {
		return
	}
	if result.Outcome == OutcomePending || result.Outcome == OutcomeIgnored {
		return
	}
	if err := s.deduper.Set(ctx, webhookDedupeKey(event.Provider, event.EventID), result, s.dedupeTTL); err != nil {
		s.logger.WithError(err).Warn("Webhook dedupe store failed")
	}
}

func (s *webhookService) Reconcile(ctx context.Context, event *payment.WebhookEvent) (*WebhookResult, error) {
	result := &WebhookResult{
		Provider:  event.Provider,
		EventID:   event.EventID,
		EventType: event.EventType,
		PaymentID: event.PaymentID,
	}

	target, ok := TargetStatus(models.PaymentEventType(event.Status))
	if !ok {
		result.Outcome = OutcomeIgnored
		s.logger.WithFields(map[string]interface{}{
			"provider":   event.Provider,
			"event_type": event.EventType,
		}).Debug("Ignoring webhook event")
		return result, nil
	}

	metadata, err := models.ParseTransactionMetadata(event.Metadata)
	if err != nil {
		s.logger.WithError(err).WithPaymentID(event.PaymentID).
			WithField("event_type", event.EventType).
			Warn("Rejecting webhook with unusable metadata")
		return result, err
	}
	result.TransactionKind = metadata.TransactionKind()

	if withdrawal, ok := metadata.(models.WithdrawalMetadata); ok {
		if _, err := s.withdrawals.SyncPayoutStatus(ctx, withdrawal, event.Status); err != nil {
			return result, err
		}
		result.Outcome = OutcomePayoutSynced
		return result, nil
	}

	if event.PaymentID == "" {
		return result, fmt.Errorf("%w: payment id is missing", ErrMalformedPayload)
	}

	outcome, err := s.settle(ctx, event, metadata, target, result)
	if err != nil {
		return result, err
	}
	settled, wallet := outcome.txn, outcome.wallet

	if outcome.auditErr != nil {
		s.auditLogger.LogAmountMismatch(event.PaymentID, event.Provider, settled.Amount, event.Amount)
		s.metrics.ObserveAuditFailure(event.Provider, "amount_mismatch")
		s.events.publish(ctx, utils.EventTransactionFailed, wallet, settled)
	}

	// An audit failure settles the purchase record as failed as well.
	if plan, ok := metadata.(models.PlanPurchaseMetadata); ok {
		if err := s.applyPlanOutcome(ctx, plan, event, result); err != nil {
			return result, err
		}
	}
	if outcome.auditErr != nil {
		return result, outcome.auditErr
	}

	if result.Outcome == OutcomeProcessed {
		s.metrics.ObserveSettlement(string(settled.Kind), string(settled.Status), settled.Amount)
		s.events.publish(ctx, eventForStatus(settled), wallet, settled)
		s.logger.LogPaymentEvent(event.PaymentID, string(settled.Status), settled.Amount, event.Currency)
	}

	return result, nil
}

type settlement struct {
	txn    *models.Transaction
	wallet *models.Wallet
	// auditErr is set when the transaction was persisted as failed for an
	// amount mismatch.
	auditErr error
}

// settle runs the resolve, audit and transition steps as one wallet mutation.
// A non-nil error means nothing was written.
func (s *webhookService) settle(ctx context.Context, event *payment.WebhookEvent, metadata models.TransactionMetadata, target models.TransactionStatus, result *WebhookResult) (*settlement, error) {
	owner := metadata.LedgerOwner()
	kind := metadata.TransactionKind()

	var settled *models.Transaction
	var auditErr error
	wallet, err := s.ledger.update(ctx, owner, func(w *models.Wallet) error {
		settled, auditErr = nil, nil
		result.BalanceDelta = 0
		now := time.Now()

		txn := w.FindByGatewayPaymentID(event.PaymentID)
		if txn == nil {
			amount := models.RoundAmount(event.Amount)
			if amount <= 0 {
				return fmt.Errorf("%w: gateway asserted %.2f for %s", ErrInvalidAmount, event.Amount, event.PaymentID)
			}
			txn = w.Append(models.Transaction{
				Kind:             kind,
				Direction:        models.DirectionCredit,
				Amount:           amount,
				Status:           models.TransactionStatusPending,
				GatewayPaymentID: event.PaymentID,
				Provider:         event.Provider,
				Description:      fmt.Sprintf("Recorded from %s %s", event.Provider, event.EventType),
				CreatedAt:        now,
			})
			if kind == models.TransactionKindPlanPurchase {
				if plan, ok := metadata.(models.PlanPurchaseMetadata); ok {
					txn.Reference = models.DriverOwner(plan.DriverID).String()
				}
			}
			if target == models.TransactionStatusPending {
				result.Outcome = OutcomePending
				settled = snapshot(txn)
				return nil
			}
		} else {
			if txn.Status.IsTerminal() {
				result.Outcome = OutcomeDuplicate
				settled = snapshot(txn)
				return errSkipWrite
			}
			if txn.Kind != kind {
				return fmt.Errorf("%w: recorded %s, callback says %s", ErrKindMismatch, txn.Kind, kind)
			}
			if target == models.TransactionStatusPending {
				result.Outcome = OutcomePending
				settled = snapshot(txn)
				return errSkipWrite
			}
			if err := auditAmount(txn, event.Amount, now); err != nil {
				result.Outcome = OutcomeAuditFailed
				auditErr = err
				settled = snapshot(txn)
				w.UpdatedAt = now
				return nil
			}
		}

		transition, err := ApplyTransition(w, txn, target, event.RefundAmount, now)
		if err != nil {
			return err
		}
		result.Outcome = OutcomeProcessed
		result.BalanceDelta = transition.BalanceDelta
		// Re-find: a refund appends and may have moved the slice.
		settled = snapshot(w.FindByGatewayPaymentID(event.PaymentID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Status = settled.Status
	result.TransactionID = settled.ID.Hex()
	return &settlement{txn: settled, wallet: wallet, auditErr: auditErr}, nil
}

func snapshot(txn *models.Transaction) *models.Transaction {
	c := *txn
	return &c
}

// applyPlanOutcome runs on first settlement and on replays; the driver-side
// purchase status makes a second activation a no-op.
func (s *webhookService) applyPlanOutcome(ctx context.Context, plan models.PlanPurchaseMetadata, event *payment.WebhookEvent, result *WebhookResult) error {
	if s.plans == nil {
		return nil
	}

	var success bool
	switch result.Status {
	case models.TransactionStatusCompleted:
		success = true
	case models.TransactionStatusFailed:
		success = false
	default:
		return nil
	}
	switch result.Outcome {
	case OutcomeProcessed, OutcomeDuplicate, OutcomeAuditFailed:
	default:
		return nil
	}

	_, err := s.plans.ApplyOutcome(ctx, &PlanOutcome{
		DriverID:         plan.DriverID,
		PlanID:           plan.PlanID,
		GatewayPaymentID: event.PaymentID,
		Amount:           event.Amount,
		Success:          success,
	})
	if err != nil {
		s.logger.WithError(err).WithPaymentID(event.PaymentID).Error("Plan activation failed")
		return fmt.Errorf("failed to apply plan purchase outcome: %w", err)
	}
	return nil
}
