package controllers

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/catalystschool/checkout/app/models"
	"github.com/catalystschool/checkout/internal/pkg/checkout"
	"github.com/catalystschool/checkout/internal/pkg/mainapp"
	"github.com/catalystschool/checkout/internal/pkg/pricing"
)

var (
	checkoutService *checkout.Service
	validate        = validator.New()
)

// SetCheckoutService injects the service all checkout handlers use. Called
// once from application startup.
func SetCheckoutService(svc *checkout.Service) {
	checkoutService = svc
}

// CreateOrderRequest is the order-creation payload from the checkout page.
type CreateOrderRequest struct {
	SchoolID     string  `json:"schoolId" validate:"required"`
	Address      string  `json:"address"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Pincode      string  `json:"pincode" validate:"omitempty,len=6,numeric"`
	GSTNumber    string  `json:"gstNumber"`
	PlanName     string  `json:"planName" validate:"required"`
	PlanPrice    float64 `json:"planPrice" validate:"required,gt=0"`
	StudentCount int     `json:"studentCount" validate:"required,gte=1"`
	BillingCycle string  `json:"billingCycle" validate:"required,oneof=monthly yearly"`
}

// VerifyPaymentRequest carries the identifiers the checkout widget returns
// after a successful payment. The razorpay_* field names are the provider's
// own; the frontend posts the widget's response object verbatim.
type VerifyPaymentRequest struct {
	OrderID        string `json:"razorpay_order_id" validate:"required"`
	PaymentID      string `json:"razorpay_payment_id" validate:"required"`
	Signature      string `json:"razorpay_signature" validate:"required"`
	SubscriptionID string `json:"subscriptionId" validate:"required"`
}

// HandleCreateOrder validates the request, recomputes the price server-side
// and opens a provider order.
func HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Request body is not valid JSON"})
	}
	if fields := validationFields(validate.Struct(&req)); fields != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": "Request validation failed", "fields": fields})
	}

	result, err := checkoutService.CreateOrder(c.Context(), checkout.CreateOrderInput{
		SchoolID:     req.SchoolID,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		Pincode:      req.Pincode,
		GSTNumber:    req.GSTNumber,
		PlanName:     req.PlanName,
		PlanPrice:    req.PlanPrice,
		StudentCount: req.StudentCount,
		BillingCycle: req.BillingCycle,
		ClientIP:     c.IP(),
		UserAgent:    c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrPriceMismatch):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "price_mismatch", "message": "Submitted price does not match the plan price"})
		case errors.Is(err, pricing.ErrUnknownPlan):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_plan", "message": "The requested plan does not exist"})
		case errors.Is(err, pricing.ErrSeatBounds):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "student_count_out_of_range", "message": "Student count is outside the plan limits"})
		case errors.Is(err, pricing.ErrInvalidCycle):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_billing_cycle", "message": "Billing cycle must be monthly or yearly"})
		case errors.Is(err, mainapp.ErrSchoolNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "school_not_found", "message": "School not found"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create payment order"})
		}
	}

	return c.JSON(result)
}

// HandleVerifyPayment checks the provider signature and provisions the trial.
func HandleVerifyPayment(c *fiber.Ctx) error {
	var req VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Request body is not valid JSON"})
	}
	if fields := validationFields(validate.Struct(&req)); fields != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": "Request validation failed", "fields": fields})
	}

	sub, err := checkoutService.ConfirmPayment(c.Context(), checkout.ConfirmPaymentInput{
		OrderID:        req.OrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.Signature,
		SubscriptionID: req.SubscriptionID,
	})
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrInvalidSignature):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature", "message": "Payment signature verification failed"})
		case errors.Is(err, checkout.ErrSubscriptionMismatch):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "subscription_mismatch", "message": "Subscription does not belong to this order"})
		case errors.Is(err, checkout.ErrPaymentAlreadyFailed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "payment_failed", "message": "This payment was already marked as failed"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Subscription not found"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to verify payment"})
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment verified successfully",
		"subscription": fiber.Map{
			"id":           sub.ID,
			"status":       sub.Status,
			"trialEndDate": formatTimePtr(sub.TrialEndDate),
		},
	})
}

// HandleGetPlans returns the static plan catalog for the checkout page.
func HandleGetPlans(c *fiber.Ctx) error {
	plans := pricing.Plans()
	out := make([]fiber.Map, 0, len(plans))
	for _, p := range plans {
		out = append(out, fiber.Map{
			"name":         p.Name,
			"pricePerSeat": p.PricePerSeat,
			"minStudents":  p.MinSeats,
			"maxStudents":  p.MaxSeats,
			"currency":     "INR",
		})
	}
	return c.JSON(fiber.Map{"plans": out})
}

// HandleGetSubscription returns the locally cached subscription state.
func HandleGetSubscription(c *fiber.Ctx) error {
	id := c.Params("id")
	sub, err := checkoutService.GetSubscription(c.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Subscription not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription"})
	}

	return c.JSON(subscriptionJSON(sub))
}

// HandleListSchoolSubscriptions returns every cached subscription for one
// school, newest first.
func HandleListSchoolSubscriptions(c *fiber.Ctx) error {
	subs, err := checkoutService.ListSchoolSubscriptions(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscriptions"})
	}

	out := make([]fiber.Map, 0, len(subs))
	for i := range subs {
		out = append(out, subscriptionJSON(&subs[i]))
	}
	return c.JSON(fiber.Map{"subscriptions": out})
}

func subscriptionJSON(sub *models.Subscription) fiber.Map {
	return fiber.Map{
		"id":              sub.ID,
		"schoolId":        sub.SchoolID,
		"planName":        sub.PlanName,
		"studentCount":    sub.StudentCount,
		"billingCycle":    sub.BillingCycle,
		"amount":          sub.Amount,
		"currency":        sub.Currency,
		"status":          sub.Status,
		"trialEndDate":    formatTimePtr(sub.TrialEndDate),
		"nextBillingDate": formatTimePtr(sub.NextBillingDate),
		"createdAt":       sub.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// validationFields flattens validator errors into a field -> message map.
func validationFields(err error) map[string]string {
	if err == nil {
		return nil
	}
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = "failed on " + fe.Tag()
		}
	} else {
		fields["_"] = err.Error()
	}
	return fields
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
