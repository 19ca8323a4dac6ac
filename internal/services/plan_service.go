package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"goride-wallet/internal/config"
	"goride-wallet/internal/models"
	"goride-wallet/internal/repositories/interfaces"
	"goride-wallet/pkg/logger"
	"goride-wallet/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PlanService interface {
	ListPlans(ctx context.Context) ([]*models.Plan, error)
	GetDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Driver, error)
	SubmitPurchase(ctx context.Context, request *PlanPurchaseRequest) (*PlanPurchaseResult, error)
	// ApplyOutcome settles a purchase at most once. Replays of a settled
	// purchase return the driver unchanged with Activated false.
	ApplyOutcome(ctx context.Context, outcome *PlanOutcome) (*PlanActivation, error)
}

type PlanPurchaseRequest struct {
	DriverID         primitive.ObjectID
	PlanID           primitive.ObjectID
	GatewayPaymentID string
	Provider         string
}

type PlanPurchaseResult struct {
	Plan             *models.Plan         `json:"plan"`
	Purchase         *models.PlanPurchase `json:"purchase"`
	Transaction      *models.Transaction  `json:"transaction"`
	AlreadyProcessed bool                 `json:"already_processed"`
}

type PlanOutcome struct {
	DriverID         primitive.ObjectID
	PlanID           primitive.ObjectID
	GatewayPaymentID string
	Amount           float64
	Success          bool
}

type PlanActivation struct {
	Driver    *models.Driver       `json:"driver"`
	Purchase  *models.PlanPurchase `json:"purchase"`
	Activated bool                 `json:"activated"`
}

type planService struct {
	ledger  *ledger
	drivers interfaces.DriverRepository
	plans   interfaces.PlanRepository
	metrics *metrics.Metrics
	logger  *logger.Logger
}

type PlanServiceDeps struct {
	Wallets interfaces.WalletRepository
	Drivers interfaces.DriverRepository
	Plans   interfaces.PlanRepository
	Config  *config.WalletConfig
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

func NewPlanService(deps PlanServiceDeps) PlanService {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultWalletConfig()
	}
	log := deps.Logger.WithField("service", "plan")

	return &planService{
		ledger:  newLedger(deps.Wallets, cfg.Currency, cfg.MaxUpdateRetries, deps.Metrics, log),
		drivers: deps.Drivers,
		plans:   deps.Plans,
		metrics: deps.Metrics,
		logger:  log,
	}
}

// ComputeExpiry stacks days onto a plan that is still running, otherwise the
// new plan starts now.
func ComputeExpiry(current *models.CurrentPlan, planID primitive.ObjectID, days int, now time.Time) *models.CurrentPlan {
	if current != nil && current.ExpiryDate.After(now) {
		return &models.CurrentPlan{
			PlanID:     planID,
			StartDate:  current.StartDate,
			ExpiryDate: current.ExpiryDate.AddDate(0, 0, days),
		}
	}
	return &models.CurrentPlan{
		PlanID:     planID,
		StartDate:  now,
		ExpiryDate: now.AddDate(0, 0, days),
	}
}

func (s *planService) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	return s.plans.ListActive(ctx)
}

func (s *planService) GetDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Driver, error) {
	driver, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	return driver, nil
}

func (s *planService) getPlan(ctx context.Context, planID primitive.ObjectID) (*models.Plan, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

// SubmitPurchase records the pending plan-purchase credit on the platform
// wallet and a Pending purchase on the driver. Either may already exist when
// the gateway webhook won the race.
func (s *planService) SubmitPurchase(ctx context.Context, request *PlanPurchaseRequest) (*PlanPurchaseResult, error) {
	if request.GatewayPaymentID == "" {
		return nil, fmt.Errorf("%w: gateway payment id is required", ErrInvalidMetadata)
	}
	plan, err := s.getPlan(ctx, request.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}
	if _, err := s.GetDriver(ctx, request.DriverID); err != nil {
		return nil, err
	}

	result := &PlanPurchaseResult{Plan: plan}
	_, err = s.ledger.update(ctx, models.PlatformOwner(), func(w *models.Wallet) error {
		result.Transaction, result.AlreadyProcessed = nil, false
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
			Kind:             models.TransactionKindPlanPurchase,
			Direction:        models.DirectionCredit,
			Amount:           plan.Price,
			Status:           models.TransactionStatusPending,
			GatewayPaymentID: request.GatewayPaymentID,
			Provider:         request.Provider,
			Reference:        models.DriverOwner(request.DriverID).String(),
			Description:      fmt.Sprintf("Plan purchase: %s", plan.Name),
		})
		c := *txn
		result.Transaction = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	driver, err := s.updateDriver(ctx, request.DriverID, func(d *models.Driver) error {
		if d.FindPurchase(request.GatewayPaymentID) != nil {
			return errSkipWrite
		}
		d.PlanPurchases = append(d.PlanPurchases, models.PlanPurchase{
			ID:               primitive.NewObjectID(),
			PlanID:           plan.ID,
			Amount:           plan.Price,
			GatewayPaymentID: request.GatewayPaymentID,
			Status:           models.PlanPurchasePending,
			PurchasedAt:      time.Now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if purchase := driver.FindPurchase(request.GatewayPaymentID); purchase != nil {
		c := *purchase
		result.Purchase = &c
	}

	s.logger.WithOwner(string(models.OwnerKindDriver), request.DriverID).
		WithPaymentID(request.GatewayPaymentID).
		WithFields(map[string]interface{}{"plan_id": plan.ID.Hex(), "already_processed": result.AlreadyProcessed}).
		Info("Plan purchase submitted")

	return result, nil
}

func (s *planService) ApplyOutcome(ctx context.Context, outcome *PlanOutcome) (*PlanActivation, error) {
	plan, err := s.getPlan(ctx, outcome.PlanID)
	if err != nil {
		return nil, err
	}

	activation := &PlanActivation{}
	result := "skipped"
	driver, err := s.updateDriver(ctx, outcome.DriverID, func(d *models.Driver) error {
		activation.Activated = false
		result = "skipped"
		now := time.Now()

		purchase := d.FindPurchase(outcome.GatewayPaymentID)
		if purchase != nil && purchase.Status != models.PlanPurchasePending {
			return errSkipWrite
		}
		if purchase == nil {
			amount := outcome.Amount
			if amount <= 0 {
				amount = plan.Price
			}
			d.PlanPurchases = append(d.PlanPurchases, models.PlanPurchase{
				ID:               primitive.NewObjectID(),
				PlanID:           plan.ID,
				Amount:           amount,
				GatewayPaymentID: outcome.GatewayPaymentID,
				PurchasedAt:      now,
			})
			purchase = &d.PlanPurchases[len(d.PlanPurchases)-1]
		}

		settledAt := now
		purchase.SettledAt = &settledAt
		if !outcome.Success {
			purchase.Status = models.PlanPurchaseFailed
			result = "failed"
			return nil
		}

		purchase.Status = models.PlanPurchaseSuccess
		d.CurrentPlan = ComputeExpiry(d.CurrentPlan, plan.ID, plan.Days, now)
		if d.ProfileStatus == models.DriverProfileAwaitingPayment {
			d.ProfileStatus = models.DriverProfileUnderReview
		}
		activation.Activated = true
		result = "activated"
		return nil
	})
	if err != nil {
		return nil, err
	}

	activation.Driver = driver
	if purchase := driver.FindPurchase(outcome.GatewayPaymentID); purchase != nil {
		c := *purchase
		activation.Purchase = &c
	}

	if activation.Activated {
		s.logger.WithOwner(string(models.OwnerKindDriver), driver.ID).WithFields(map[string]interface{}{
			"plan_id":     plan.ID.Hex(),
			"expiry_date": driver.CurrentPlan.ExpiryDate,
		}).Info("Plan activated")
	}
	s.metrics.ObservePlanActivation(result)

	return activation, nil
}

// updateDriver applies mutate under the driver's version check, retrying on
// conflicts like ledger.update does for wallets.
func (s *planService) updateDriver(ctx context.Context, driverID primitive.ObjectID, mutate func(d *models.Driver) error) (*models.Driver, error) {
	var driver *models.Driver
	err := s.ledger.retryOnConflict(ctx, func(ctx context.Context) error {
		var err error
		driver, err = s.GetDriver(ctx, driverID)
		if err != nil {
			return err
		}

		expected := driver.Version
		if err := mutate(driver); err != nil {
			if errors.Is(err, errSkipWrite) {
				return nil
			}
			return err
		}
		driver.UpdatedAt = time.Now()

		if err := s.drivers.CompareAndSwap(ctx, driver, expected); err != nil {
			if errors.Is(err, interfaces.ErrVersionConflict) {
				s.metrics.ObserveVersionConflict("driver")
			}
			return err
		}
		return nil
	})
	return driver, err
}
