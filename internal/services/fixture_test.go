package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"goride-wallet/internal/config"
	"goride-wallet/internal/models"
	"goride-wallet/internal/repositories/memory"
	"goride-wallet/pkg/cache"
	"goride-wallet/pkg/logger"
	"goride-wallet/pkg/metrics"
	"goride-wallet/pkg/payment"
)

const testWebhookSecret = "whsec_test"

type fixture struct {
	store       *memory.Store
	config      *config.WalletConfig
	wallets     WalletService
	withdrawals WithdrawalService
	plans       PlanService
	webhooks    WebhookService
	publisher   *recordingPublisher
	deduper     *memoryDeduper
	orders      *fakeProvider
}

type fixtureOption func(*WebhookServiceDeps)

func withDeduper(d *memoryDeduper) fixtureOption {
	return func(deps *WebhookServiceDeps) { deps.Deduper = d }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	store := memory.NewStore()
	cfg := config.DefaultWalletConfig()
	cfg.MaxUpdateRetries = 100
	log := logger.NewDiscardLogger()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	publisher := &recordingPublisher{}
	orders := &fakeProvider{name: "fakepay"}
	providers := []payment.PaymentProvider{
		payment.NewRazorpayProvider("rzp_test_key", "rzp_test_secret", testWebhookSecret),
		orders,
	}

	withdrawals := NewWithdrawalService(WithdrawalServiceDeps{
		Wallets:     store.Wallets(),
		Withdrawals: store.Withdrawals(),
		Transactor:  store.Transactor(),
		Config:      cfg,
		Publisher:   publisher,
		Metrics:     m,
		Logger:      log,
	})
	plans := NewPlanService(PlanServiceDeps{
		Wallets: store.Wallets(),
		Drivers: store.Drivers(),
		Plans:   store.Plans(),
		Config:  cfg,
		Metrics: m,
		Logger:  log,
	})
	wallets := NewWalletService(WalletServiceDeps{
		Wallets:         store.Wallets(),
		Transactor:      store.Transactor(),
		Providers:       providers,
		DefaultProvider: orders.name,
		Config:          cfg,
		Publisher:       publisher,
		Metrics:         m,
		Logger:          log,
	})

	deps := WebhookServiceDeps{
		Wallets:     store.Wallets(),
		Providers:   providers,
		Withdrawals: withdrawals,
		Plans:       plans,
		Config:      cfg,
		Publisher:   publisher,
		Metrics:     m,
		Logger:      log,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f := &fixture{
		store:       store,
		config:      cfg,
		wallets:     wallets,
		withdrawals: withdrawals,
		plans:       plans,
		webhooks:    NewWebhookService(deps),
		publisher:   publisher,
		orders:      orders,
	}
	if d, ok := deps.Deduper.(*memoryDeduper); ok {
		f.deduper = d
	}
	return f
}

func (f *fixture) wallet(t *testing.T, owner models.Owner) *models.Wallet {
	t.Helper()
	w, err := f.wallets.GetWallet(context.Background(), owner)
	require.NoError(t, err)
	return w
}

func (f *fixture) balance(t *testing.T, owner models.Owner) float64 {
	t.Helper()
	return f.wallet(t, owner).Balance
}

// fund settles a deposit of amount on owner through the webhook path.
func (f *fixture) fund(t *testing.T, owner models.Owner, amount float64) {
	t.Helper()
	ctx := context.Background()
	paymentID := "order_fund_" + primitive.NewObjectID().Hex()

	_, err := f.wallets.InitiateDeposit(ctx, owner, &DepositRequest{
		Amount:           amount,
		GatewayPaymentID: paymentID,
		Provider:         payment.RazorpayProviderName,
	})
	require.NoError(t, err)

	result, err := f.webhooks.Reconcile(ctx, &payment.WebhookEvent{
		Provider:  payment.RazorpayProviderName,
		EventType: "payment.captured",
		Status:    payment.EventCaptured,
		PaymentID: paymentID,
		Amount:    amount,
		Metadata:  depositNotes(owner),
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, result.Outcome)
}

func (f *fixture) deliver(t *testing.T, payload []byte) (*WebhookResult, error) {
	t.Helper()
	return f.webhooks.HandleWebhook(context.Background(), payment.RazorpayProviderName, payload, signPayload(payload), "")
}

func depositNotes(owner models.Owner) map[string]string {
	return map[string]string{
		models.MetadataTransactionKind: string(models.TransactionKindDeposit),
		models.MetadataOwnerKind:       string(owner.Kind),
		models.MetadataOwnerID:         owner.ID.Hex(),
	}
}

func planNotes(driverID, planID primitive.ObjectID) map[string]string {
	return map[string]string{
		models.MetadataTransactionKind: "plan_purchase",
		models.MetadataOwnerKind:       string(models.OwnerKindDriver),
		models.MetadataOwnerID:         driverID.Hex(),
		models.MetadataPlanID:          planID.Hex(),
	}
}

func signPayload(payload []byte) string {
	h := hmac.New(sha256.New, []byte(testWebhookSecret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

type razorpayPayment struct {
	ID             string            `json:"id"`
	OrderID        string            `json:"order_id"`
	Amount         int64             `json:"amount"`
	AmountRefunded int64             `json:"amount_refunded,omitempty"`
	Currency       string            `json:"currency"`
	Notes          map[string]string `json:"notes"`
}

// razorpayWebhook builds a signed-ready Razorpay payment callback. amount is
// in rupees.
func razorpayWebhook(t *testing.T, event, orderID string, amount float64, notes map[string]string) []byte {
	t.Helper()
	return razorpayRefundWebhook(t, event, orderID, amount, 0, notes)
}

func razorpayRefundWebhook(t *testing.T, event, orderID string, amount, refunded float64, notes map[string]string) []byte {
	t.Helper()
	return razorpayPaymentWebhook(t, event, razorpayPayment{
		ID:             "pay_" + orderID,
		OrderID:        orderID,
		Amount:         int64(math.Round(amount * 100)),
		AmountRefunded: int64(math.Round(refunded * 100)),
		Currency:       "INR",
		Notes:          notes,
	})
}

// razorpayAttemptWebhook is a callback for one payment attempt on orderID.
func razorpayAttemptWebhook(t *testing.T, event, orderID, paymentID string, amount float64, notes map[string]string) []byte {
	t.Helper()
	return razorpayPaymentWebhook(t, event, razorpayPayment{
		ID:       paymentID,
		OrderID:  orderID,
		Amount:   int64(math.Round(amount * 100)),
		Currency: "INR",
		Notes:    notes,
	})
}

func razorpayPaymentWebhook(t *testing.T, event string, entity razorpayPayment) []byte {
	t.Helper()
	body := map[string]interface{}{
		"event":      event,
		"created_at": time.Now().Unix(),
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{"entity": entity},
		},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	return payload
}

func razorpayOrderPaidWebhook(t *testing.T, orderID string, amount float64, notes map[string]string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"event":      "order.paid",
		"created_at": time.Now().Unix(),
		"payload": map[string]interface{}{
			"order": map[string]interface{}{"entity": map[string]interface{}{
				"id":       orderID,
				"amount":   int64(math.Round(amount * 100)),
				"currency": "INR",
				"notes":    notes,
			}},
		},
	})
	require.NoError(t, err)
	return payload
}

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	updates  []*WalletUpdate
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	if update, ok := message.(*WalletUpdate); ok {
		p.updates = append(p.updates, update)
	}
	return p.err
}

func (p *recordingPublisher) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := make([]string, 0, len(p.updates))
	for _, u := range p.updates {
		events = append(events, u.Event)
	}
	return events
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = nil
	p.updates = nil
}

type memoryDeduper struct {
	mu      sync.Mutex
	entries map[string][]byte
	hits    int
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{entries: make(map[string][]byte)}
}

func (d *memoryDeduper) Get(ctx context.Context, key string, dest interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, ok := d.entries[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	d.hits++
	return json.Unmarshal(raw, dest)
}

func (d *memoryDeduper) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[key] = raw
	return nil
}

func (d *memoryDeduper) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

type fakeProvider struct {
	name     string
	mu       sync.Mutex
	requests []*payment.OrderRequest
	err      error
}

func (p *fakeProvider) Name() string            { return p.name }
func (p *fakeProvider) SignatureHeader() string { return "X-Fake-Signature" }

func (p *fakeProvider) CreateOrder(ctx context.Context, request *payment.OrderRequest) (*payment.OrderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.requests = append(p.requests, request)
	return &payment.OrderResponse{
		OrderID:   fmt.Sprintf("order_fake_%d", len(p.requests)),
		Status:    "created",
		Amount:    request.Amount,
		Currency:  request.Currency,
		CreatedAt: time.Now().Unix(),
	}, nil
}

func (p *fakeProvider) ValidateWebhook(ctx context.Context, payload []byte, signature string) (*payment.WebhookEvent, error) {
	return nil, errors.New("fake provider does not receive webhooks")
}

func seedDriver(t *testing.T, f *fixture, status models.DriverProfileStatus) *models.Driver {
	t.Helper()
	driver := &models.Driver{
		Name:          "Test Driver",
		Phone:         "+919800000000",
		ProfileStatus: status,
	}
	require.NoError(t, f.store.Drivers().Create(context.Background(), driver))
	return driver
}

func seedPlan(t *testing.T, f *fixture, price float64, days int) *models.Plan {
	t.Helper()
	plan := &models.Plan{Name: fmt.Sprintf("%d day plan", days), Price: price, Days: days, IsActive: true}
	require.NoError(t, f.store.Plans().Create(context.Background(), plan))
	return plan
}
