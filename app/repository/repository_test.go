package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/catalystschool/checkout/app/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		sqlDB.Close()
	})

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open gorm: %v", err)
	}
	return db, mock
}

func expectGuardedUpdate(mock sqlmock.Sqlmock, table string, rowsAffected int64) {
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "` + table + `" SET`).
		WillReturnResult(sqlmock.NewResult(0, rowsAffected))
	mock.ExpectCommit()
}

func TestTransitionToTrial(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubscriptionRepository(db)

	expectGuardedUpdate(mock, "subscriptions", 1)

	trialEnd := time.Now().AddDate(0, 0, 14)
	updated, err := repo.TransitionToTrial("sub_1", trialEnd, trialEnd)
	if err != nil {
		t.Fatalf("TransitionToTrial failed: %v", err)
	}
	if !updated {
		t.Fatal("expected the pending row to be updated")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionToTrialAlreadyLeftPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubscriptionRepository(db)

	// The status guard matches no rows when the subscription already left
	// pending; the caller sees updated=false, not an error.
	expectGuardedUpdate(mock, "subscriptions", 0)

	trialEnd := time.Now().AddDate(0, 0, 14)
	updated, err := repo.TransitionToTrial("sub_1", trialEnd, trialEnd)
	if err != nil {
		t.Fatalf("TransitionToTrial failed: %v", err)
	}
	if updated {
		t.Fatal("expected a no-op for a non-pending subscription")
	}
}

func TestAdvanceBillingReplayIsNoOp(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubscriptionRepository(db)

	expectGuardedUpdate(mock, "subscriptions", 0)

	updated, err := repo.AdvanceBilling("sub_1", time.Now())
	if err != nil {
		t.Fatalf("AdvanceBilling failed: %v", err)
	}
	if updated {
		t.Fatal("expected a no-op when the billing date is already current")
	}
}

func TestCancelIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubscriptionRepository(db)

	expectGuardedUpdate(mock, "subscriptions", 1)
	updated, err := repo.Cancel("sub_1")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !updated {
		t.Fatal("expected the first cancel to update the row")
	}

	expectGuardedUpdate(mock, "subscriptions", 0)
	updated, err = repo.Cancel("sub_1")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if updated {
		t.Fatal("expected the second cancel to be a no-op")
	}
}

func TestMarkPaidGuardedOnCreated(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	expectGuardedUpdate(mock, "payment_transactions", 1)
	updated, err := repo.MarkPaid("order_1", "pay_1", time.Now())
	if err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	if !updated {
		t.Fatal("expected the created row to be updated")
	}

	// A second delivery finds the row already terminal.
	expectGuardedUpdate(mock, "payment_transactions", 0)
	updated, err = repo.MarkPaid("order_1", "pay_1", time.Now())
	if err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	if updated {
		t.Fatal("expected a no-op for a terminal transaction")
	}
}

func TestMarkFailedNeverDemotesTerminalRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	expectGuardedUpdate(mock, "payment_transactions", 0)

	updated, err := repo.MarkFailed("order_1", "pay_1", "payment.failed webhook")
	if err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if updated {
		t.Fatal("expected a no-op against a row that already left created")
	}
}

func TestGetByProviderOrderIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "payment_transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByProviderOrderID("order_missing")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected gorm.ErrRecordNotFound, got %v", err)
	}
}

func TestWebhookLogCreateIfNotExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWebhookLogRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "payment_webhook_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "payment_webhook_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider_event_id"}).AddRow(1, "evt_1"))

	created, stored, err := repo.CreateIfNotExists(&models.WebhookLog{ProviderEventID: "evt_1"})
	if err != nil {
		t.Fatalf("CreateIfNotExists failed: %v", err)
	}
	if !created {
		t.Fatal("expected the first insert to create the row")
	}
	if stored.ProviderEventID != "evt_1" {
		t.Fatalf("unexpected stored event id %q", stored.ProviderEventID)
	}
}

func TestWebhookLogCreateIfNotExistsDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWebhookLogRepository(db)

	// ON CONFLICT DO NOTHING: the insert returns no rows, the re-read finds
	// the original delivery.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "payment_webhook_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "payment_webhook_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider_event_id"}).AddRow(1, "evt_1"))

	created, stored, err := repo.CreateIfNotExists(&models.WebhookLog{ProviderEventID: "evt_1"})
	if err != nil {
		t.Fatalf("CreateIfNotExists failed: %v", err)
	}
	if created {
		t.Fatal("expected the duplicate delivery to be detected")
	}
	if stored.ID != 1 {
		t.Fatalf("expected the original row back, got id %d", stored.ID)
	}
}

func TestSyncRetryDue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSyncRetryRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "sync_retry_queue"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payload_json", "retry_count", "next_retry_at", "status"}).
			AddRow("entry_1", "{}", 1, now.Add(-time.Minute), models.SyncRetryStatusPending))

	entries, err := repo.Due(now, 20)
	if err != nil {
		t.Fatalf("Due failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "entry_1" {
		t.Fatalf("unexpected due entries: %+v", entries)
	}
}
