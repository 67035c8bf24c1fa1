package services

import (
	"context"
	"errors"
	"testing"

	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/google/uuid"
)

func TestRejectWithdrawalRestoresReservedAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	organizerID, adminID := uuid.New(), uuid.New()
	f.profile(t, organizerID, models.PayoutStatusActive, false)
	event := f.readyEvent(t, organizerID, 10000, "HTG")

	w, err := f.withdrawals.CreateWithdrawal(ctx, organizerID, WithdrawalInput{EventID: event.EventID, Amount: 4000, Method: "bank"})
	if err != nil {
		t.Fatalf("CreateWithdrawal: %v", err)
	}
	reserved := f.reload(t, event.EventID)
	assertEarningsInvariant(t, reserved)
	if reserved.AvailableToWithdraw != 6000 {
		t.Fatalf("expected 6000 available after reservation, got %d", reserved.AvailableToWithdraw)
	}

	rejected, err := f.withdrawals.UpdateWithdrawal(ctx, adminID, w.ID, WithdrawalReject, "duplicate")
	if err != nil {
		t.Fatalf("UpdateWithdrawal: %v", err)
	}
	if rejected.Status != models.WithdrawalFailed {
		t.Fatalf("expected failed, got %s", rejected.Status)
	}

	restored := f.reload(t, event.EventID)
	assertEarningsInvariant(t, restored)
	if restored.AvailableToWithdraw != 10000 || restored.SettlementStatus != models.SettlementReady {
		t.Fatalf("expected full refund to ready, got available=%d status=%s", restored.AvailableToWithdraw, restored.SettlementStatus)
	}

	if _, err := f.withdrawals.UpdateWithdrawal(ctx, adminID, w.ID, WithdrawalFail, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("failing a failed withdrawal must not refund twice, got %v", err)
	}
	if again := f.reload(t, event.EventID); again.AvailableToWithdraw != 10000 {
		t.Fatalf("double refund detected: available=%d", again.AvailableToWithdraw)
	}
}

func TestFailLegacyWithdrawalRefundsNormalizedAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	organizerID := uuid.New()
	event := f.event(t, organizerID, 10000, "USD", models.SettlementLocked, nowUTC().Add(24*hour))

	f.db.Model(&models.EventEarnings{}).Where("event_id = ?", event.EventID).
		Updates(map[string]interface{}{"withdrawn_amount": 4500, "available_to_withdraw": 5500})

	legacy := models.Withdrawal{
		OrganizerID: organizerID,
		EventID:     event.EventID,
		Amount:      45,
		Currency:    "USD",
		Method:      models.WithdrawalMethodBank,
		Status:      models.WithdrawalProcessing,
	}
	if err := f.db.Create(&legacy).Error; err != nil {
		t.Fatalf("create legacy withdrawal: %v", err)
	}

	if _, err := f.withdrawals.UpdateWithdrawal(ctx, uuid.New(), legacy.ID, WithdrawalFail, "bank bounced"); err != nil {
		t.Fatalf("UpdateWithdrawal: %v", err)
	}

	e := f.reload(t, event.EventID)
	assertEarningsInvariant(t, e)
	if e.WithdrawnAmount != 0 || e.AvailableToWithdraw != 10000 {
		t.Fatalf("expected 4500 refunded, got withdrawn=%d available=%d", e.WithdrawnAmount, e.AvailableToWithdraw)
	}
	if e.SettlementStatus != models.SettlementReady {
		t.Fatalf("expected settlement reset to ready, got %s", e.SettlementStatus)
	}
}

func TestRefundClampsToWithdrawnAmount(t *testing.T) {
	f := newFixture(t)
	organizerID := uuid.New()
	event := f.readyEvent(t, organizerID, 10000, "HTG")
	f.db.Model(&models.EventEarnings{}).Where("event_id = ?", event.EventID).
		Updates(map[string]interface{}{"withdrawn_amount": 1000, "available_to_withdraw": 9000})

	w := models.Withdrawal{
		OrganizerID: organizerID, EventID: event.EventID, Amount: 7500, AmountUnit: models.AmountUnitMinor,
		Currency: "HTG", Method: models.WithdrawalMethodBank, Status: models.WithdrawalPending,
	}
	f.db.Create(&w)

	if _, err := f.withdrawals.UpdateWithdrawal(context.Background(), uuid.New(), w.ID, WithdrawalReject, ""); err != nil {
		t.Fatalf("UpdateWithdrawal: %v", err)
	}
	e := f.reload(t, event.EventID)
	assertEarningsInvariant(t, e)
	if e.WithdrawnAmount != 0 {
		t.Fatalf("expected clamp to zero, got %d", e.WithdrawnAmount)
	}
}

func TestWithdrawalTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	organizerID, adminID := uuid.New(), uuid.New()
	f.profile(t, organizerID, models.PayoutStatusActive, false)
	event := f.readyEvent(t, organizerID, 10000, "HTG")

	w, _ := f.withdrawals.CreateWithdrawal(ctx, organizerID, WithdrawalInput{EventID: event.EventID, Amount: 10000, Method: "bank"})

	if _, err := f.withdrawals.UpdateWithdrawal(ctx, adminID, w.ID, WithdrawalComplete, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete from pending must be rejected, got %v", err)
	}
	if _, err := f.withdrawals.UpdateWithdrawal(ctx, adminID, w.ID, WithdrawalApprove, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.withdrawals.UpdateWithdrawal(ctx, adminID, w.ID, WithdrawalReject, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reject from processing must be rejected, got %v", err)
	}
	done, err := f.withdrawals.UpdateWithdrawal(ctx, adminID, w.ID, WithdrawalComplete, "sent")
	if err != nil || done.Status != models.WithdrawalCompleted || done.CompletedAt == nil {
		t.Fatalf("complete: %+v %v", done, err)
	}
	if _, err := f.withdrawals.UpdateWithdrawal(ctx, adminID, w.ID, WithdrawalFail, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("fail after completion must be rejected, got %v", err)
	}

	e := f.reload(t, event.EventID)
	assertEarningsInvariant(t, e)
	if e.WithdrawnAmount != 10000 {
		t.Fatalf("completed withdrawal must keep its reservation, withdrawn=%d", e.WithdrawnAmount)
	}

	if _, err := f.withdrawals.UpdateWithdrawal(ctx, adminID, w.ID, "refund", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown action must be a validation error, got %v", err)
	}
	if _, err := f.withdrawals.UpdateWithdrawal(ctx, adminID, uuid.New(), WithdrawalFail, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateWithdrawalGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("exceeds event availability", func(t *testing.T) {
		f := newFixture(t)
		organizerID := uuid.New()
		f.profile(t, organizerID, models.PayoutStatusActive, false)
		event := f.readyEvent(t, organizerID, 10000, "HTG")

		_, err := f.withdrawals.CreateWithdrawal(ctx, organizerID, WithdrawalInput{EventID: event.EventID, Amount: 10001, Method: "bank"})
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("expected ErrInsufficientBalance, got %v", err)
		}
	})

	t.Run("respects an in-flight payout request", func(t *testing.T) {
		f := newFixture(t)
		organizerID := uuid.New()
		f.profile(t, organizerID, models.PayoutStatusActive, false)
		event := f.readyEvent(t, organizerID, 10000, "HTG")
		if _, err := f.payouts.RequestPayout(ctx, organizerID); err != nil {
			t.Fatalf("RequestPayout: %v", err)
		}

		_, err := f.withdrawals.CreateWithdrawal(ctx, organizerID, WithdrawalInput{EventID: event.EventID, Amount: 1000, Method: "bank"})
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("expected ErrInsufficientBalance, got %v", err)
		}
	})

	t.Run("settlement not ready", func(t *testing.T) {
		f := newFixture(t)
		organizerID := uuid.New()
		f.profile(t, organizerID, models.PayoutStatusActive, false)
		event := f.event(t, organizerID, 10000, "HTG", models.SettlementPending, nowUTC().Add(72*hour))

		_, err := f.withdrawals.CreateWithdrawal(ctx, organizerID, WithdrawalInput{EventID: event.EventID, Amount: 100, Method: "bank"})
		var conflict *ConflictError
		if !errors.As(err, &conflict) || conflict.Current != string(models.SettlementPending) {
			t.Fatalf("expected conflict naming pending, got %v", err)
		}
	})

	t.Run("another organizer's event", func(t *testing.T) {
		f := newFixture(t)
		organizerID := uuid.New()
		f.profile(t, organizerID, models.PayoutStatusActive, false)
		event := f.readyEvent(t, uuid.New(), 10000, "HTG")

		_, err := f.withdrawals.CreateWithdrawal(ctx, organizerID, WithdrawalInput{EventID: event.EventID, Amount: 100, Method: "bank"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("bad input", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.withdrawals.CreateWithdrawal(ctx, uuid.New(), WithdrawalInput{EventID: uuid.New(), Amount: 100, Method: "cheque"})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestInstantWithdrawalRecordsFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	organizerID := uuid.New()
	f.setPrefunding(t, true, true)
	f.profile(t, organizerID, models.PayoutStatusActive, true)
	event := f.readyEvent(t, organizerID, 100000, "HTG")

	w, err := f.withdrawals.CreateWithdrawal(ctx, organizerID, WithdrawalInput{EventID: event.EventID, Amount: 50000, Method: "moncash_instant"})
	if err != nil {
		t.Fatalf("CreateWithdrawal: %v", err)
	}
	if w.FeeCents != 1500 || w.PayoutAmountCents != 48500 || w.PayoutCurrency != "HTG" {
		t.Fatalf("unexpected instant pricing: fee=%d payout=%d currency=%s", w.FeeCents, w.PayoutAmountCents, w.PayoutCurrency)
	}

	f.setPrefunding(t, true, false)
	_, err = f.withdrawals.CreateWithdrawal(ctx, organizerID, WithdrawalInput{EventID: event.EventID, Amount: 1000, Method: "moncash_instant"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict when the pool is unavailable, got %v", err)
	}
}

func TestReserveRefundSequenceKeepsInvariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	organizerID, adminID := uuid.New(), uuid.New()
	f.profile(t, organizerID, models.PayoutStatusActive, false)
	event := f.readyEvent(t, organizerID, 30000, "HTG")

	actions := []WithdrawalAction{WithdrawalReject, WithdrawalFail, WithdrawalApprove, WithdrawalFail, WithdrawalReject}
	for i, action := range actions {
		w, err := f.withdrawals.CreateWithdrawal(ctx, organizerID, WithdrawalInput{EventID: event.EventID, Amount: int64(5000 + i*1000), Method: "bank"})
		if err != nil {
			t.Fatalf("step %d CreateWithdrawal: %v", i, err)
		}
		assertEarningsInvariant(t, f.reload(t, event.EventID))

		if action == WithdrawalApprove {
			if _, err := f.withdrawals.UpdateWithdrawal(ctx, adminID, w.ID, WithdrawalApprove, ""); err != nil {
				t.Fatalf("step %d approve: %v", i, err)
			}
			continue
		}
		if _, err := f.withdrawals.UpdateWithdrawal(ctx, adminID, w.ID, action, ""); err != nil {
			t.Fatalf("step %d %s: %v", i, action, err)
		}
		assertEarningsInvariant(t, f.reload(t, event.EventID))
	}

	e := f.reload(t, event.EventID)
	if e.WithdrawnAmount != 7000 {
		t.Fatalf("only the approved withdrawal should stay reserved, withdrawn=%d", e.WithdrawnAmount)
	}
}

func TestCreateWithdrawalOnMajorUnitEarningsConvertsRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	organizerID := uuid.New()
	f.profile(t, organizerID, models.PayoutStatusActive, false)
	event := f.readyEvent(t, organizerID, 10000, "HTG")
	f.db.Model(&models.EventEarnings{}).Where("event_id = ?", event.EventID).
		Updates(map[string]interface{}{
			"amount_unit": models.AmountUnitMajor, "gross_amount": 100, "net_amount": 100, "available_to_withdraw": 100,
		})

	balance, err := f.balances.GetOrganizerBalance(ctx, organizerID)
	if err != nil || balance.Available != 10000 {
		t.Fatalf("expected 10000 minor available, got %d (%v)", balance.Available, err)
	}

	if _, err := f.withdrawals.CreateWithdrawal(ctx, organizerID, WithdrawalInput{EventID: event.EventID, Amount: 4000, Method: "bank"}); err != nil {
		t.Fatalf("CreateWithdrawal: %v", err)
	}

	e := f.reload(t, event.EventID)
	assertEarningsInvariant(t, e)
	if e.AmountUnit != models.AmountUnitMinor || e.NetAmount != 10000 || e.WithdrawnAmount != 4000 {
		t.Fatalf("expected row rewritten in minor units, got unit=%s net=%d withdrawn=%d", e.AmountUnit, e.NetAmount, e.WithdrawnAmount)
	}

	_, err = f.withdrawals.CreateWithdrawal(ctx, organizerID, WithdrawalInput{EventID: event.EventID, Amount: 6001, Method: "bank"})
	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) || insufficient.Available != 6000 {
		t.Fatalf("expected InsufficientBalanceError with 6000 available, got %v", err)
	}
}
