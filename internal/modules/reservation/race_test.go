// README: Concurrency tests for reservation state transitions (run with -race).
package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"transferhub/internal/types"
)

func TestConcurrentAssignOneWinner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r := mustCreate(t, svc, MethodBankTransfer)

	const drivers = 8
	errs := make(chan error, drivers)
	start := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.AssignDriver(ctx, AssignCommand{
				ReservationID: r.ID,
				DriverID:      types.ID(fmt.Sprintf("d%d", i)),
			})
			errs <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidState) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("assignment winners = %d, want exactly 1", success)
	}

	got, err := svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusAssigned || got.DriverID == nil {
		t.Fatalf("final state %s driver %v, want assigned with driver", got.Status, got.DriverID)
	}
}

func TestConcurrentAssignVsCancel(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r := mustCreate(t, svc, MethodBankTransfer)

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.AssignDriver(ctx, AssignCommand{ReservationID: r.ID, DriverID: "d1"})
		errs <- err
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.Cancel(ctx, CancelCommand{ReservationID: r.ID, ActorType: "customer", Reason: "raced"})
		errs <- err
	}()

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidState) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Whatever the interleaving, the reservation must land in a coherent
	// state: assigned (cancel lost) or cancelled (assign lost or cancel
	// followed assignment).
	got, err := svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusAssigned && got.Status != StatusCancelled {
		t.Fatalf("final status = %s, want assigned or cancelled", got.Status)
	}
}

func TestConcurrentCompleteSettlesOnce(t *testing.T) {
	svc, settler := newTestService(t)
	ctx := context.Background()

	r := mustCreate(t, svc, MethodBankTransfer)
	if err := svc.Confirm(ctx, r.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	assigned, err := svc.AssignDriver(ctx, AssignCommand{ReservationID: r.ID, DriverID: "d1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.Activate(ctx, ActivateCommand{ReservationID: r.ID, Token: assigned.QRToken}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	const attempts = 6
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Complete(ctx, CompleteCommand{ReservationID: r.ID})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidState) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assertStatus(t, svc, r.ID, StatusCompleted)
	st, err := settler.GetByReservation(ctx, r.ID)
	if err != nil {
		t.Fatalf("settlement missing after concurrent completes: %v", err)
	}
	if st.Total.Amount != 18000 {
		t.Errorf("settlement total = %d, want 18000", st.Total.Amount)
	}
}
