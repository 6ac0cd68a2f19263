// README: Reservation service tests (state machine, lifecycle flow, settlement handoff).
package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"transferhub/internal/modules/pricing"
	"transferhub/internal/modules/settlement"
	"transferhub/internal/types"
)

// TestCanTransition verifies the state machine transition table without a database.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusPending, StatusConfirmed, true},
		{StatusConfirmed, StatusAssigned, true},
		{StatusAssigned, StatusStarted, true},
		{StatusStarted, StatusCompleted, true},
		// reassignment self-loop
		{StatusAssigned, StatusAssigned, true},
		// cancels from every non-terminal state
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusAssigned, StatusCancelled, true},
		{StatusStarted, StatusCancelled, true},
		// invalid: terminal states have no outgoing transitions
		{StatusCompleted, StatusStarted, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
		// invalid: skipping states
		{StatusPending, StatusAssigned, false},
		{StatusPending, StatusStarted, false},
		{StatusConfirmed, StatusStarted, false},
		{StatusConfirmed, StatusCompleted, false},
		{StatusAssigned, StatusCompleted, false},
		// invalid: going backwards
		{StatusStarted, StatusAssigned, false},
		{StatusAssigned, StatusConfirmed, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !Terminal(s) {
			t.Errorf("Terminal(%s) = false, want true", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusAssigned, StatusStarted} {
		if Terminal(s) {
			t.Errorf("Terminal(%s) = true, want false", s)
		}
	}
}

func newTestService(t *testing.T) (*Service, *settlement.Service) {
	t.Helper()
	pricer := pricing.NewService(pricing.StaticSource{Tariff: pricing.DefaultTariff("EUR")})
	settler := settlement.NewService(settlement.NewMemStore(), 0.25, nil)
	svc := NewService(NewMemStore(), pricer, settler, nil, nil)
	return svc, settler
}

func mustCreate(t *testing.T, svc *Service, method PaymentMethod) *Reservation {
	t.Helper()
	r, err := svc.Create(context.Background(), CreateCommand{
		CustomerID:    "c1",
		PickupRef:     "Airport Terminal 2",
		DropoffRef:    "Hotel Seeblick",
		PickupAt:      time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC),
		Passengers:    2,
		VehicleClass:  "standard",
		DistanceKm:    40,
		PaymentMethod: method,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return r
}

func assertStatus(t *testing.T, svc *Service, id types.ID, want Status) {
	t.Helper()
	r, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Status != want {
		t.Fatalf("status = %s, want %s", r.Status, want)
	}
}

func TestCreateEntryStates(t *testing.T) {
	svc, _ := newTestService(t)

	bank := mustCreate(t, svc, MethodBankTransfer)
	if bank.Status != StatusConfirmed {
		t.Errorf("bank transfer entry status = %s, want confirmed", bank.Status)
	}
	if bank.TotalPrice.Amount != 18000 || bank.TotalPrice.Currency != "EUR" {
		t.Errorf("total = %d %s, want 18000 EUR", bank.TotalPrice.Amount, bank.TotalPrice.Currency)
	}
	if bank.PaymentStatus != PaymentPending {
		t.Errorf("payment status = %s, want pending", bank.PaymentStatus)
	}

	card := mustCreate(t, svc, MethodCard)
	if card.Status != StatusPending {
		t.Errorf("card entry status = %s, want pending", card.Status)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cmd := CreateCommand{
		CustomerID:    "c1",
		PickupRef:     "A",
		DropoffRef:    "B",
		PickupAt:      time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC),
		Passengers:    1,
		VehicleClass:  "standard",
		DistanceKm:    10,
		PaymentMethod: MethodCard,
	}

	missing := cmd
	missing.CustomerID = ""
	if _, err := svc.Create(ctx, missing); !errors.Is(err, ErrValidation) {
		t.Errorf("missing customer: got %v, want ErrValidation", err)
	}

	badMethod := cmd
	badMethod.PaymentMethod = "cash"
	if _, err := svc.Create(ctx, badMethod); !errors.Is(err, ErrValidation) {
		t.Errorf("bad method: got %v, want ErrValidation", err)
	}

	badClass := cmd
	badClass.VehicleClass = "limousine"
	if _, err := svc.Create(ctx, badClass); !errors.Is(err, ErrPricing) {
		t.Errorf("bad class: got %v, want ErrPricing", err)
	}

	badDistance := cmd
	badDistance.DistanceKm = 0
	if _, err := svc.Create(ctx, badDistance); !errors.Is(err, ErrPricing) {
		t.Errorf("zero distance: got %v, want ErrPricing", err)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	svc, settler := newTestService(t)
	ctx := context.Background()

	r := mustCreate(t, svc, MethodBankTransfer)
	if err := svc.Confirm(ctx, r.ID); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}

	assigned, err := svc.AssignDriver(ctx, AssignCommand{ReservationID: r.ID, DriverID: "d1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.Status != StatusAssigned {
		t.Fatalf("status = %s, want assigned", assigned.Status)
	}
	if assigned.QRToken == "" {
		t.Fatal("assignment minted no token")
	}

	if _, err := svc.Activate(ctx, ActivateCommand{ReservationID: r.ID, Token: assigned.QRToken}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	assertStatus(t, svc, r.ID, StatusStarted)

	if _, err := svc.Complete(ctx, CompleteCommand{ReservationID: r.ID}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	assertStatus(t, svc, r.ID, StatusCompleted)

	st, err := settler.GetByReservation(ctx, r.ID)
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}
	if st.OperatorShare.Amount != 4500 {
		t.Errorf("operator share = %d, want 4500", st.OperatorShare.Amount)
	}
	if st.DriverShare.Amount != 13500 {
		t.Errorf("driver share = %d, want 13500", st.DriverShare.Amount)
	}
	if st.OperatorShare.Amount+st.DriverShare.Amount != st.Total.Amount {
		t.Errorf("shares do not sum to total")
	}
	if st.DriverID != "d1" {
		t.Errorf("settlement driver = %s, want d1", st.DriverID)
	}

	events, err := svc.Events(ctx, r.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	// none->confirmed, assign, activate, complete
	if len(events) != 4 {
		t.Fatalf("event count = %d, want 4", len(events))
	}
	if events[0].FromStatus != StatusNone || events[len(events)-1].ToStatus != StatusCompleted {
		t.Errorf("event trail endpoints wrong: %+v", events)
	}
}

func TestActivateWrongTokenAllowsRetry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r := mustCreate(t, svc, MethodBankTransfer)
	assigned, err := svc.AssignDriver(ctx, AssignCommand{ReservationID: r.ID, DriverID: "d1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	if _, err := svc.Activate(ctx, ActivateCommand{ReservationID: r.ID, Token: "not-the-token"}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong token: got %v, want ErrInvalidToken", err)
	}
	assertStatus(t, svc, r.ID, StatusAssigned)

	if _, err := svc.Activate(ctx, ActivateCommand{ReservationID: r.ID, Token: assigned.QRToken}); err != nil {
		t.Fatalf("retry with right token: %v", err)
	}
	assertStatus(t, svc, r.ID, StatusStarted)
}

func TestReassignRotatesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r := mustCreate(t, svc, MethodBankTransfer)
	first, err := svc.AssignDriver(ctx, AssignCommand{ReservationID: r.ID, DriverID: "d1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Same driver is a no-op: token survives.
	same, err := svc.Reassign(ctx, AssignCommand{ReservationID: r.ID, DriverID: "d1"})
	if err != nil {
		t.Fatalf("reassign same driver: %v", err)
	}
	if same.QRToken != first.QRToken {
		t.Error("reassigning the current driver rotated the token")
	}

	second, err := svc.Reassign(ctx, AssignCommand{ReservationID: r.ID, DriverID: "d2"})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if second.QRToken == first.QRToken {
		t.Fatal("reassignment kept the old token")
	}
	if second.DriverID == nil || *second.DriverID != "d2" {
		t.Fatalf("driver = %v, want d2", second.DriverID)
	}

	// The old token no longer activates.
	if _, err := svc.Activate(ctx, ActivateCommand{ReservationID: r.ID, Token: first.QRToken}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("stale token: got %v, want ErrInvalidToken", err)
	}
	if _, err := svc.Activate(ctx, ActivateCommand{ReservationID: r.ID, Token: second.QRToken}); err != nil {
		t.Fatalf("fresh token: %v", err)
	}
}

func TestCompleteRequiresCompletedPayment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r := mustCreate(t, svc, MethodBankTransfer)
	assigned, err := svc.AssignDriver(ctx, AssignCommand{ReservationID: r.ID, DriverID: "d1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.Activate(ctx, ActivateCommand{ReservationID: r.ID, Token: assigned.QRToken}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if _, err := svc.Complete(ctx, CompleteCommand{ReservationID: r.ID}); !errors.Is(err, ErrPaymentIncomplete) {
		t.Fatalf("unpaid complete: got %v, want ErrPaymentIncomplete", err)
	}

	if err := svc.Confirm(ctx, r.ID); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if _, err := svc.Complete(ctx, CompleteCommand{ReservationID: r.ID}); err != nil {
		t.Fatalf("paid complete: %v", err)
	}
}

func TestInvalidTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r := mustCreate(t, svc, MethodCard) // pending

	if _, err := svc.AssignDriver(ctx, AssignCommand{ReservationID: r.ID, DriverID: "d1"}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("assign pending: got %v, want ErrInvalidState", err)
	}
	if _, err := svc.Activate(ctx, ActivateCommand{ReservationID: r.ID, Token: "x"}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("activate pending: got %v, want ErrInvalidState", err)
	}
	if _, err := svc.Complete(ctx, CompleteCommand{ReservationID: r.ID}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("complete pending: got %v, want ErrInvalidState", err)
	}
	if _, err := svc.Reassign(ctx, AssignCommand{ReservationID: r.ID, DriverID: "d1"}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("reassign pending: got %v, want ErrInvalidState", err)
	}
}

func TestCancelIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r := mustCreate(t, svc, MethodBankTransfer)
	first, err := svc.Cancel(ctx, CancelCommand{ReservationID: r.ID, ActorType: "customer", Reason: "change of plans"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if first.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", first.Status)
	}
	if first.CancelReason == nil || *first.CancelReason != "change of plans" {
		t.Errorf("cancel reason not recorded: %v", first.CancelReason)
	}

	second, err := svc.Cancel(ctx, CancelCommand{ReservationID: r.ID, ActorType: "customer", Reason: "again"})
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if second.CancelReason == nil || *second.CancelReason != "change of plans" {
		t.Error("second cancel overwrote the original reason")
	}

	// Terminal: no resurrection through the payment path either.
	if err := svc.Confirm(ctx, r.ID); err != nil {
		t.Fatalf("confirm cancelled: %v", err)
	}
	assertStatus(t, svc, r.ID, StatusCancelled)
}

func TestCancelCompletedRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r := mustCreate(t, svc, MethodBankTransfer)
	if err := svc.Confirm(ctx, r.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	assigned, _ := svc.AssignDriver(ctx, AssignCommand{ReservationID: r.ID, DriverID: "d1"})
	if _, err := svc.Activate(ctx, ActivateCommand{ReservationID: r.ID, Token: assigned.QRToken}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := svc.Complete(ctx, CompleteCommand{ReservationID: r.ID}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := svc.Cancel(ctx, CancelCommand{ReservationID: r.ID, ActorType: "customer"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("cancel completed: got %v, want ErrInvalidState", err)
	}
}

func TestCompleteReplaySettlesOnce(t *testing.T) {
	svc, settler := newTestService(t)
	ctx := context.Background()

	r := mustCreate(t, svc, MethodBankTransfer)
	if err := svc.Confirm(ctx, r.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	assigned, _ := svc.AssignDriver(ctx, AssignCommand{ReservationID: r.ID, DriverID: "d1"})
	if _, err := svc.Activate(ctx, ActivateCommand{ReservationID: r.ID, Token: assigned.QRToken}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := svc.Complete(ctx, CompleteCommand{ReservationID: r.ID}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	st1, err := settler.GetByReservation(ctx, r.ID)
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}

	// Completing again must not double-settle.
	if _, err := svc.Complete(ctx, CompleteCommand{ReservationID: r.ID}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("replay complete: got %v, want ErrInvalidState", err)
	}
	st2, err := settler.GetByReservation(ctx, r.ID)
	if err != nil {
		t.Fatalf("settlement after replay: %v", err)
	}
	if st1.ID != st2.ID {
		t.Fatal("replay created a second settlement")
	}
}
