package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/catalystschool/checkout/app/models"
	"github.com/catalystschool/checkout/app/repository"
	"github.com/catalystschool/checkout/internal/pkg/mainapp"
	"github.com/catalystschool/checkout/internal/pkg/payment"
	"github.com/catalystschool/checkout/internal/pkg/pricing"
	"github.com/catalystschool/checkout/internal/pkg/receipt"
)

const (
	defaultTrialDays   = 14
	syncTimeout        = 5 * time.Second
	backgroundDeadline = 30 * time.Second
)

// Config holds the secrets and knobs the service needs beyond its
// collaborators.
type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	TrialDays     int
}

// Service orchestrates the checkout funnel: order creation, payment
// verification and webhook processing.
type Service struct {
	cfg      Config
	repos    *repository.Repositories
	provider ProviderClient
	record   RecordClient
	queue    RetryQueue
	receipts ReceiptStore

	now func() time.Time
}

// NewService wires a checkout service from its collaborators.
func NewService(cfg Config, repos *repository.Repositories, provider ProviderClient, record RecordClient, queue RetryQueue) *Service {
	if cfg.TrialDays <= 0 {
		cfg.TrialDays = defaultTrialDays
	}
	return &Service{
		cfg:      cfg,
		repos:    repos,
		provider: provider,
		record:   record,
		queue:    queue,
		now:      time.Now,
	}
}

// WithReceiptStore enables receipt generation after confirmed payments.
// Without a store, receipts are skipped entirely.
func (s *Service) WithReceiptStore(store ReceiptStore) *Service {
	s.receipts = store
	return s
}

// CreateOrder validates the requested plan, recomputes the price
// server-side, creates the provider order and caches a provisional
// subscription + transaction pair locally.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	monthly, err := pricing.Validate(in.PlanName, in.StudentCount)
	if err != nil {
		return nil, err
	}

	// The client submits its per-seat price; the server never trusts it.
	clientMonthly := in.PlanPrice * float64(in.StudentCount)
	if !pricing.WithinEpsilon(clientMonthly, monthly) {
		log.Warnf("[Checkout] price manipulation attempt: plan=%q submitted=%.2f expected=%.2f ip=%s ua=%q",
			in.PlanName, clientMonthly, monthly, in.ClientIP, in.UserAgent)
		return nil, ErrPriceMismatch
	}

	total, err := pricing.TotalFor(in.PlanName, in.StudentCount, in.BillingCycle)
	if err != nil {
		return nil, err
	}

	school, err := s.record.GetSchool(ctx, in.SchoolID)
	if err != nil {
		return nil, err
	}

	subscriptionID := uuid.NewString()
	amountPaise := int64(math.Round(total * 100))

	order, err := s.provider.CreateOrder(ctx, payment.CreateOrderInput{
		AmountPaise: amountPaise,
		Currency:    "INR",
		Receipt:     subscriptionID,
		Notes: map[string]string{
			"subscription_id": subscriptionID,
			"school_id":       school.ID,
			"plan":            in.PlanName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("provider order creation failed: %w", err)
	}

	// Local rows are best-effort caching for reconciliation; the provider
	// order is the source of truth, so a failed insert is logged and the
	// request still succeeds.
	sub := &models.Subscription{
		ID:           subscriptionID,
		SchoolID:     school.ID,
		PlanName:     in.PlanName,
		StudentCount: in.StudentCount,
		BillingCycle: strings.ToLower(strings.TrimSpace(in.BillingCycle)),
		Amount:       total,
		Currency:     order.Currency,
		Status:       models.SubscriptionStatusPending,
		Address:      in.Address,
		City:         in.City,
		State:        in.State,
		Pincode:      in.Pincode,
		GSTNumber:    in.GSTNumber,
	}
	if err := s.repos.Subscription.Create(sub); err != nil {
		log.Errorf("[Checkout] failed to cache subscription %s locally: %v", subscriptionID, err)
	} else {
		txn := &models.PaymentTransaction{
			SubscriptionID:  subscriptionID,
			ProviderOrderID: order.ID,
			Amount:          total,
			Currency:        order.Currency,
			Status:          models.TransactionStatusCreated,
			ClientIP:        in.ClientIP,
			UserAgent:       in.UserAgent,
		}
		if err := s.repos.Transaction.Create(txn); err != nil {
			log.Errorf("[Checkout] failed to cache transaction for order %s: %v", order.ID, err)
		}
	}

	return &CreateOrderResult{
		OrderID:        order.ID,
		Amount:         total,
		AmountPaise:    order.Amount,
		Currency:       order.Currency,
		SubscriptionID: subscriptionID,
		KeyID:          s.cfg.KeyID,
	}, nil
}

// ConfirmPayment verifies the checkout signature, applies the terminal
// transaction status and provisions the subscription's trial. The payment
// has already been captured by the provider when this runs, so downstream
// sync failures never fail the user-visible response.
func (s *Service) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (*models.Subscription, error) {
	if !payment.VerifyCheckoutSignature(in.OrderID, in.PaymentID, in.Signature, s.cfg.KeySecret) {
		// The failed audit record is written even on the failure path.
		if _, err := s.repos.Transaction.MarkFailed(in.OrderID, in.PaymentID, "signature verification failed"); err != nil {
			log.Errorf("[Checkout] failed to record signature failure for order %s: %v", in.OrderID, err)
		}
		log.Warnf("[Checkout] invalid payment signature: order=%s payment=%s", in.OrderID, in.PaymentID)
		return nil, ErrInvalidSignature
	}

	// The signature only covers orderID|paymentID, so the subscription id
	// must be cross-checked against the order's own transaction before
	// anything is provisioned.
	txn, err := s.repos.Transaction.GetByProviderOrderID(in.OrderID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// The local cache row is best-effort, nothing to cross-check.
	case err != nil:
		return nil, fmt.Errorf("transaction lookup failed: %w", err)
	case txn.SubscriptionID != in.SubscriptionID:
		log.Warnf("[Checkout] subscription mismatch: order=%s claimed=%s actual=%s", in.OrderID, in.SubscriptionID, txn.SubscriptionID)
		return nil, ErrSubscriptionMismatch
	}

	if err := s.capturePayment(ctx, in.OrderID, in.PaymentID, in.SubscriptionID); err != nil {
		return nil, err
	}

	sub, err := s.repos.Subscription.GetByID(in.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("subscription lookup after capture failed: %w", err)
	}

	s.syncAsync(*sub)
	s.receiptAsync(*sub, in.OrderID)
	return sub, nil
}

// capturePayment is the shared success path of verification and the
// payment.captured webhook. Both callers may race on the same rows, so every
// write is an idempotent guarded update.
func (s *Service) capturePayment(_ context.Context, orderID, paymentID, subscriptionID string) error {
	updated, err := s.repos.Transaction.MarkPaid(orderID, paymentID, s.now())
	if err != nil {
		return fmt.Errorf("transaction update failed: %w", err)
	}
	if !updated {
		txn, err := s.repos.Transaction.GetByProviderOrderID(orderID)
		switch {
		case err != nil && errors.Is(err, gorm.ErrRecordNotFound):
			// Order creation's local cache write is best-effort, so the row
			// may be missing entirely. The provider has the money either
			// way; keep going and fix the subscription.
			log.Warnf("[Checkout] no cached transaction for order %s, continuing", orderID)
		case err != nil:
			return fmt.Errorf("transaction lookup failed: %w", err)
		case txn.Status == models.TransactionStatusFailed:
			return ErrPaymentAlreadyFailed
		case txn.IsTerminal():
			// Already paid: the other path won the race. Nothing to redo.
		}
	}

	sub, err := s.repos.Subscription.GetByID(subscriptionID)
	if err != nil {
		return fmt.Errorf("subscription lookup failed: %w", err)
	}
	if !sub.CanTransitionTo(models.SubscriptionStatusTrial) {
		// Already active or cancelled; the capture replay changes nothing.
		return nil
	}

	trialEnd := s.now().AddDate(0, 0, s.cfg.TrialDays)
	if _, err := s.repos.Subscription.TransitionToTrial(sub.ID, trialEnd, trialEnd); err != nil {
		return fmt.Errorf("subscription transition failed: %w", err)
	}
	return nil
}

// HandleWebhook processes one provider event. The raw payload is logged
// before any business logic so replay and audit stay possible even when
// handling fails.
func (s *Service) HandleWebhook(ctx context.Context, raw []byte, eventID string, signatureValid bool) (*WebhookResult, error) {
	env, parseErr := parseWebhookEnvelope(raw)

	eventType := ""
	if parseErr == nil {
		eventType = env.Event
	}
	if strings.TrimSpace(eventID) == "" {
		eventID = hashEventID(raw)
	}

	// A forged delivery must not occupy the event's dedup key, or it would
	// mask the genuine delivery that carries the same event id. It is still
	// logged for audit, keyed by its own content hash.
	if !signatureValid {
		created, stored, err := s.repos.WebhookLog.CreateIfNotExists(&models.WebhookLog{
			ProviderEventID: "rejected:" + hashEventID(raw),
			EventType:       eventType,
			PayloadJSON:     string(raw),
			SignatureValid:  false,
		})
		if err != nil {
			log.Errorf("[Webhook] failed to log rejected event %s: %v", eventID, err)
		} else if created {
			s.markProcessed(stored.ID, errors.New("invalid webhook signature"))
		}
		log.Warnf("[Webhook] invalid signature for event %s", eventID)
		return nil, ErrInvalidSignature
	}

	created, stored, err := s.repos.WebhookLog.CreateIfNotExists(&models.WebhookLog{
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(raw),
		SignatureValid:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook log write failed: %w", err)
	}
	if !created {
		return &WebhookResult{Duplicate: true}, nil
	}
	if parseErr != nil {
		s.markProcessed(stored.ID, parseErr)
		return nil, fmt.Errorf("invalid webhook payload: %w", parseErr)
	}

	result, handleErr := s.dispatchEvent(ctx, env)
	s.markProcessed(stored.ID, handleErr)
	if handleErr != nil {
		return nil, handleErr
	}
	return result, nil
}

// dispatchEvent routes by event type. Unknown types are logged and ignored,
// never treated as errors: the provider's event set may grow over time.
func (s *Service) dispatchEvent(ctx context.Context, env *webhookEnvelope) (*WebhookResult, error) {
	switch env.Event {
	case "payment.captured":
		return s.handlePaymentCaptured(ctx, env)
	case "payment.failed":
		return s.handlePaymentFailed(env)
	case "subscription.charged":
		return s.handleSubscriptionCharged(env)
	case "subscription.cancelled":
		return s.handleSubscriptionCancelled(env)
	default:
		log.Infof("[Webhook] ignoring unknown event type %q", env.Event)
		return &WebhookResult{Ignored: true, Note: "unknown event type"}, nil
	}
}

func (s *Service) handlePaymentCaptured(ctx context.Context, env *webhookEnvelope) (*WebhookResult, error) {
	orderID := env.Payload.Payment.Entity.OrderID
	paymentID := env.Payload.Payment.Entity.ID
	if orderID == "" {
		return nil, errors.New("payment.captured event missing order id")
	}

	txn, err := s.repos.Transaction.GetByProviderOrderID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No local cache row to reconcile against; nothing else is known
			// about this order, so park the event for manual review.
			log.Warnf("[Webhook] payment.captured for unknown order %s", orderID)
			return &WebhookResult{Ignored: true, Note: "unknown order"}, nil
		}
		return nil, fmt.Errorf("transaction lookup failed: %w", err)
	}

	if err := s.capturePayment(ctx, orderID, paymentID, txn.SubscriptionID); err != nil {
		return nil, err
	}

	if sub, err := s.repos.Subscription.GetByID(txn.SubscriptionID); err == nil {
		s.syncAsync(*sub)
		s.receiptAsync(*sub, orderID)
	}
	return &WebhookResult{}, nil
}

func (s *Service) handlePaymentFailed(env *webhookEnvelope) (*WebhookResult, error) {
	orderID := env.Payload.Payment.Entity.OrderID
	paymentID := env.Payload.Payment.Entity.ID
	if orderID == "" {
		return nil, errors.New("payment.failed event missing order id")
	}

	updated, err := s.repos.Transaction.MarkFailed(orderID, paymentID, "payment.failed webhook")
	if err != nil {
		return nil, fmt.Errorf("transaction update failed: %w", err)
	}
	if !updated {
		// Already terminal; a paid transaction is never demoted to failed.
		return &WebhookResult{Ignored: true, Note: "transaction already terminal"}, nil
	}
	return &WebhookResult{}, nil
}

func (s *Service) handleSubscriptionCharged(env *webhookEnvelope) (*WebhookResult, error) {
	subID := env.Payload.Subscription.Entity.Notes["subscription_id"]
	if subID == "" {
		return nil, errors.New("subscription.charged event missing subscription reference")
	}

	sub, err := s.repos.Subscription.GetByID(subID)
	if err != nil {
		return nil, fmt.Errorf("subscription lookup failed: %w", err)
	}

	// The next billing date is anchored on the provider's event timestamp,
	// not on processing time, so a replayed event computes the same date and
	// the guarded update turns it into a no-op.
	anchor := s.now()
	if env.CreatedAt > 0 {
		anchor = time.Unix(env.CreatedAt, 0)
	}
	next := addBillingCycle(anchor, sub.BillingCycle)

	updated, err := s.repos.Subscription.AdvanceBilling(sub.ID, next)
	if err != nil {
		return nil, fmt.Errorf("billing advance failed: %w", err)
	}
	if !updated {
		return &WebhookResult{Ignored: true, Note: "billing date already current"}, nil
	}
	return &WebhookResult{}, nil
}

func (s *Service) handleSubscriptionCancelled(env *webhookEnvelope) (*WebhookResult, error) {
	subID := env.Payload.Subscription.Entity.Notes["subscription_id"]
	if subID == "" {
		return nil, errors.New("subscription.cancelled event missing subscription reference")
	}

	updated, err := s.repos.Subscription.Cancel(subID)
	if err != nil {
		return nil, fmt.Errorf("subscription cancel failed: %w", err)
	}
	if !updated {
		return &WebhookResult{Ignored: true, Note: "already cancelled"}, nil
	}
	return &WebhookResult{}, nil
}

// GetSubscription returns a cached subscription row for the lookup endpoint.
func (s *Service) GetSubscription(_ context.Context, id string) (*models.Subscription, error) {
	return s.repos.Subscription.GetByID(id)
}

// ListSchoolSubscriptions returns a school's cached subscriptions, newest
// first.
func (s *Service) ListSchoolSubscriptions(_ context.Context, schoolID string) ([]models.Subscription, error) {
	return s.repos.Subscription.ListBySchoolID(schoolID)
}

// syncAsync pushes the confirmed subscription to the system of record
// without blocking the caller. A failed push lands in the retry queue; it
// never surfaces to the user, since the payment is already captured.
func (s *Service) syncAsync(sub models.Subscription) {
	payload := mainapp.SyncPayload{
		SubscriptionID:  sub.ID,
		SchoolID:        sub.SchoolID,
		PlanName:        sub.PlanName,
		StudentCount:    sub.StudentCount,
		BillingCycle:    sub.BillingCycle,
		Status:          sub.Status,
		Amount:          sub.Amount,
		Currency:        sub.Currency,
		TrialEndDate:    sub.TrialEndDate,
		NextBillingDate: sub.NextBillingDate,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundDeadline)
		defer cancel()

		syncCtx, syncCancel := context.WithTimeout(ctx, syncTimeout)
		err := s.record.SyncSubscription(syncCtx, payload)
		syncCancel()
		if err == nil {
			return
		}

		log.Warnf("[Checkout] subscription sync failed for %s, queueing retry: %v", sub.ID, err)
		if qErr := s.queue.Enqueue(ctx, payload); qErr != nil {
			log.Errorf("[Checkout] failed to queue sync retry for %s: %v", sub.ID, qErr)
		}
	}()
}

// receiptAsync renders and stores a payment receipt in the background. A
// missing store or any failure only logs; the payment outcome is already
// settled.
func (s *Service) receiptAsync(sub models.Subscription, orderID string) {
	if s.receipts == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundDeadline)
		defer cancel()

		txn, err := s.repos.Transaction.GetByProviderOrderID(orderID)
		if err != nil {
			log.Warnf("[Receipt] no transaction for order %s, skipping receipt: %v", orderID, err)
			return
		}

		schoolName := sub.SchoolID
		if school, err := s.record.GetSchool(ctx, sub.SchoolID); err == nil {
			schoolName = school.Name
		}

		data := receipt.FromRecords(schoolName, &sub, txn)
		pdfBytes, err := receipt.Generate(data)
		if err != nil {
			log.Errorf("[Receipt] failed to render receipt for order %s: %v", orderID, err)
			return
		}
		if err := s.receipts.Put(ctx, receipt.ObjectKey(orderID, data.IssuedAt), pdfBytes); err != nil {
			log.Errorf("[Receipt] failed to store receipt for order %s: %v", orderID, err)
		}
	}()
}

func (s *Service) markProcessed(id uint, handleErr error) {
	msg := ""
	if handleErr != nil {
		msg = handleErr.Error()
	}
	if err := s.repos.WebhookLog.MarkProcessed(id, msg); err != nil {
		log.Errorf("[Webhook] failed to mark event %d processed: %v", id, err)
	}
}

func addBillingCycle(from time.Time, cycle string) time.Time {
	if cycle == models.BillingCycleYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// hashEventID derives a stable dedup key for deliveries that carry no event
// id header.
func hashEventID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "hash:" + hex.EncodeToString(sum[:])
}
