package checkout

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/catalystschool/checkout/internal/pkg/mainapp"
	"github.com/catalystschool/checkout/internal/pkg/payment"
)

var (
	// ErrPriceMismatch signals a client-submitted price that disagrees with
	// the server-computed one. Treated as a security violation, not an
	// ordinary validation failure.
	ErrPriceMismatch = errors.New("submitted price does not match plan price")
	// ErrInvalidSignature signals a forged or tampered checkout response.
	ErrInvalidSignature = errors.New("payment signature verification failed")
	// ErrPaymentAlreadyFailed signals a verification attempt against a
	// transaction that already reached the failed terminal status.
	ErrPaymentAlreadyFailed = errors.New("payment transaction already failed")
	// ErrSubscriptionMismatch signals a verification request whose
	// subscription id does not belong to the paid order. Treated as a
	// security violation: a valid signature only proves payment for the
	// order it was issued for.
	ErrSubscriptionMismatch = errors.New("subscription does not belong to this order")
)

// ProviderClient is the slice of the payment provider API the service uses.
type ProviderClient interface {
	CreateOrder(ctx context.Context, in payment.CreateOrderInput) (*payment.Order, error)
}

// RecordClient is the slice of the main-application API the service uses.
type RecordClient interface {
	GetSchool(ctx context.Context, schoolID string) (*mainapp.School, error)
	SyncSubscription(ctx context.Context, payload mainapp.SyncPayload) error
}

// RetryQueue accepts sync payloads that could not be delivered.
type RetryQueue interface {
	Enqueue(ctx context.Context, payload mainapp.SyncPayload) error
}

// ReceiptStore persists rendered receipt PDFs.
type ReceiptStore interface {
	Put(ctx context.Context, objectKey string, pdfBytes []byte) error
}

// CreateOrderInput is the validated order-creation request.
type CreateOrderInput struct {
	SchoolID     string
	Address      string
	City         string
	State        string
	Pincode      string
	GSTNumber    string
	PlanName     string
	PlanPrice    float64
	StudentCount int
	BillingCycle string
	ClientIP     string
	UserAgent    string
}

// CreateOrderResult is returned to the client to open the checkout widget.
type CreateOrderResult struct {
	OrderID        string  `json:"orderId"`
	Amount         float64 `json:"amount"`
	AmountPaise    int64   `json:"amountPaise"`
	Currency       string  `json:"currency"`
	SubscriptionID string  `json:"subscriptionId"`
	KeyID          string  `json:"keyId"`
}

// ConfirmPaymentInput carries the provider identifiers and signature the
// checkout widget hands back to the client.
type ConfirmPaymentInput struct {
	OrderID        string
	PaymentID      string
	Signature      string
	SubscriptionID string
}

// WebhookResult reports what the webhook handler did with an event.
type WebhookResult struct {
	Duplicate bool
	Ignored   bool
	Note      string
}

// webhookEnvelope is the provider's event wrapper. Only the identifiers the
// handlers dispatch on are decoded; the raw payload is logged verbatim.
type webhookEnvelope struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
		Subscription struct {
			Entity struct {
				ID    string            `json:"id"`
				Notes map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

func parseWebhookEnvelope(raw []byte) (*webhookEnvelope, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Event == "" {
		return nil, errors.New("webhook envelope missing event type")
	}
	return &env, nil
}
