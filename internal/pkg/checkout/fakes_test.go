package checkout

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/catalystschool/checkout/app/models"
	"github.com/catalystschool/checkout/app/repository"
	"github.com/catalystschool/checkout/internal/pkg/mainapp"
	"github.com/catalystschool/checkout/internal/pkg/payment"
)

type fakeSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]*models.Subscription
	err  error
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{subs: make(map[string]*models.Subscription)}
}

func (r *fakeSubscriptionRepo) Create(sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *sub
	r.subs[sub.ID] = &cp
	return nil
}

func (r *fakeSubscriptionRepo) GetByID(id string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *fakeSubscriptionRepo) ListBySchoolID(schoolID string) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Subscription
	for _, sub := range r.subs {
		if sub.SchoolID == schoolID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *fakeSubscriptionRepo) TransitionToTrial(id string, trialEnd, nextBilling time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok || sub.Status != models.SubscriptionStatusPending {
		return false, nil
	}
	sub.Status = models.SubscriptionStatusTrial
	sub.TrialEndDate = &trialEnd
	sub.NextBillingDate = &nextBilling
	return true, nil
}

func (r *fakeSubscriptionRepo) AdvanceBilling(id string, next time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return false, nil
	}
	if sub.Status != models.SubscriptionStatusTrial && sub.Status != models.SubscriptionStatusActive {
		return false, nil
	}
	if sub.NextBillingDate != nil && !sub.NextBillingDate.Before(next) {
		return false, nil
	}
	sub.Status = models.SubscriptionStatusActive
	sub.NextBillingDate = &next
	return true, nil
}

func (r *fakeSubscriptionRepo) Cancel(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok || sub.Status == models.SubscriptionStatusCancelled {
		return false, nil
	}
	sub.Status = models.SubscriptionStatusCancelled
	return true, nil
}

type fakeTransactionRepo struct {
	mu   sync.Mutex
	txns map[string]*models.PaymentTransaction
	err  error
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{txns: make(map[string]*models.PaymentTransaction)}
}

func (r *fakeTransactionRepo) Create(txn *models.PaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *txn
	r.txns[txn.ProviderOrderID] = &cp
	return nil
}

func (r *fakeTransactionRepo) GetByProviderOrderID(orderID string) (*models.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *txn
	return &cp, nil
}

func (r *fakeTransactionRepo) MarkPaid(orderID, paymentID string, paidAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[orderID]
	if !ok || txn.Status != models.TransactionStatusCreated {
		return false, nil
	}
	txn.Status = models.TransactionStatusPaid
	txn.ProviderPaymentID = paymentID
	txn.PaidAt = &paidAt
	return true, nil
}

func (r *fakeTransactionRepo) MarkFailed(orderID, paymentID, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[orderID]
	if !ok || txn.Status != models.TransactionStatusCreated {
		return false, nil
	}
	txn.Status = models.TransactionStatusFailed
	txn.ProviderPaymentID = paymentID
	txn.FailureReason = reason
	return true, nil
}

type fakeWebhookLogRepo struct {
	mu     sync.Mutex
	nextID uint
	logs   map[string]*models.WebhookLog
}

func newFakeWebhookLogRepo() *fakeWebhookLogRepo {
	return &fakeWebhookLogRepo{logs: make(map[string]*models.WebhookLog)}
}

func (r *fakeWebhookLogRepo) CreateIfNotExists(entry *models.WebhookLog) (bool, *models.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.logs[entry.ProviderEventID]; ok {
		cp := *existing
		return false, &cp, nil
	}
	r.nextID++
	entry.ID = r.nextID
	cp := *entry
	r.logs[entry.ProviderEventID] = &cp
	out := cp
	return true, &out, nil
}

func (r *fakeWebhookLogRepo) MarkProcessed(id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ID == id {
			now := time.Now()
			l.ProcessedAt = &now
			l.ProcessingError = processingError
		}
	}
	return nil
}

type fakeSyncRetryRepo struct {
	mu      sync.Mutex
	entries []*models.SyncRetryEntry
}

func (r *fakeSyncRetryRepo) Enqueue(entry *models.SyncRetryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *fakeSyncRetryRepo) Due(now time.Time, limit int) ([]models.SyncRetryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SyncRetryEntry
	for _, e := range r.entries {
		if e.Status == models.SyncRetryStatusPending && !e.NextRetryAt.After(now) {
			out = append(out, *e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeSyncRetryRepo) Reschedule(id string, retryCount int, nextRetryAt time.Time, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			e.RetryCount = retryCount
			e.NextRetryAt = nextRetryAt
			e.LastError = lastError
		}
	}
	return nil
}

func (r *fakeSyncRetryRepo) MarkCompleted(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			e.Status = models.SyncRetryStatusCompleted
		}
	}
	return nil
}

func (r *fakeSyncRetryRepo) MarkExhausted(id string, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			e.Status = models.SyncRetryStatusExhausted
			e.LastError = lastError
		}
	}
	return nil
}

type fakeProvider struct {
	mu     sync.Mutex
	orders []payment.CreateOrderInput
	err    error
	nextID string
}

func (p *fakeProvider) CreateOrder(_ context.Context, in payment.CreateOrderInput) (*payment.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.orders = append(p.orders, in)
	id := p.nextID
	if id == "" {
		id = "order_test1"
	}
	return &payment.Order{
		ID:       id,
		Amount:   in.AmountPaise,
		Currency: in.Currency,
		Receipt:  in.Receipt,
		Status:   "created",
	}, nil
}

type fakeRecord struct {
	mu       sync.Mutex
	schools  map[string]*mainapp.School
	syncErr  error
	synced   []mainapp.SyncPayload
	syncedCh chan mainapp.SyncPayload
}

func newFakeRecord() *fakeRecord {
	return &fakeRecord{
		schools:  map[string]*mainapp.School{"sch_1": {ID: "sch_1", Name: "Sunrise Public School", Status: "active"}},
		syncedCh: make(chan mainapp.SyncPayload, 8),
	}
}

func (r *fakeRecord) GetSchool(_ context.Context, schoolID string) (*mainapp.School, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schools[schoolID]
	if !ok {
		return nil, mainapp.ErrSchoolNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRecord) SyncSubscription(_ context.Context, payload mainapp.SyncPayload) error {
	r.mu.Lock()
	err := r.syncErr
	if err == nil {
		r.synced = append(r.synced, payload)
	}
	r.mu.Unlock()
	if err == nil {
		r.syncedCh <- payload
	}
	return err
}

type fakeQueue struct {
	mu       sync.Mutex
	payloads []mainapp.SyncPayload
	queuedCh chan mainapp.SyncPayload
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{queuedCh: make(chan mainapp.SyncPayload, 8)}
}

func (q *fakeQueue) Enqueue(_ context.Context, payload mainapp.SyncPayload) error {
	q.mu.Lock()
	q.payloads = append(q.payloads, payload)
	q.mu.Unlock()
	q.queuedCh <- payload
	return nil
}

type fixture struct {
	svc      *Service
	subs     *fakeSubscriptionRepo
	txns     *fakeTransactionRepo
	logs     *fakeWebhookLogRepo
	retries  *fakeSyncRetryRepo
	provider *fakeProvider
	record   *fakeRecord
	queue    *fakeQueue
}

func newFixture() *fixture {
	f := &fixture{
		subs:     newFakeSubscriptionRepo(),
		txns:     newFakeTransactionRepo(),
		logs:     newFakeWebhookLogRepo(),
		retries:  &fakeSyncRetryRepo{},
		provider: &fakeProvider{},
		record:   newFakeRecord(),
		queue:    newFakeQueue(),
	}
	repos := &repository.Repositories{
		Subscription: f.subs,
		Transaction:  f.txns,
		WebhookLog:   f.logs,
		SyncRetry:    f.retries,
	}
	f.svc = NewService(Config{
		KeyID:         "key_test",
		KeySecret:     "key-secret",
		WebhookSecret: "webhook-secret",
	}, repos, f.provider, f.record, f.queue)
	return f
}

type fakeReceiptStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	storedCh chan string
}

func newFakeReceiptStore() *fakeReceiptStore {
	return &fakeReceiptStore{
		objects:  make(map[string][]byte),
		storedCh: make(chan string, 8),
	}
}

func (s *fakeReceiptStore) Put(_ context.Context, objectKey string, pdfBytes []byte) error {
	s.mu.Lock()
	cp := make([]byte, len(pdfBytes))
	copy(cp, pdfBytes)
	s.objects[objectKey] = cp
	s.mu.Unlock()
	s.storedCh <- objectKey
	return nil
}

func (s *fakeReceiptStore) get(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}
