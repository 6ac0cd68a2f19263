// README: Commission engine tests (split math, write-once, payout marking).
package settlement

import (
	"context"
	"errors"
	"testing"

	"transferhub/internal/types"
)

func validCommand() SettleCommand {
	return SettleCommand{
		ReservationID:     types.NewID(),
		DriverID:          "d1",
		ReservationStatus: "completed",
		Total:             types.Money{Amount: 18000, Currency: "EUR"},
	}
}

func TestSettleSplit(t *testing.T) {
	svc := NewService(NewMemStore(), 0.25, nil)

	st, err := svc.Settle(context.Background(), validCommand())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if st.OperatorShare.Amount != 4500 {
		t.Errorf("operator share = %d, want 4500", st.OperatorShare.Amount)
	}
	if st.DriverShare.Amount != 13500 {
		t.Errorf("driver share = %d, want 13500", st.DriverShare.Amount)
	}
	if st.Rate != 0.25 {
		t.Errorf("rate = %f, want 0.25", st.Rate)
	}
	if st.Status != StatusPending {
		t.Errorf("status = %s, want pending", st.Status)
	}
}

// TestSharesAlwaysSumToTotal sweeps awkward totals and rates; the driver
// share is total minus the rounded operator share, so the sum must be exact
// for every input.
func TestSharesAlwaysSumToTotal(t *testing.T) {
	rates := []float64{0.1, 0.15, 0.2, 0.25, 0.3, 0.333, 0.5}
	totals := []int64{1, 2, 3, 99, 100, 101, 4501, 9999, 12345, 18000, 99999999}

	for _, rate := range rates {
		svc := NewService(NewMemStore(), rate, nil)
		for _, total := range totals {
			cmd := validCommand()
			cmd.Total.Amount = total
			st, err := svc.Settle(context.Background(), cmd)
			if err != nil {
				t.Fatalf("settle rate=%f total=%d: %v", rate, total, err)
			}
			if st.OperatorShare.Amount+st.DriverShare.Amount != total {
				t.Errorf("rate=%f total=%d: shares %d+%d != total",
					rate, total, st.OperatorShare.Amount, st.DriverShare.Amount)
			}
			if st.OperatorShare.Amount < 0 || st.DriverShare.Amount < 0 {
				t.Errorf("rate=%f total=%d: negative share", rate, total)
			}
		}
	}
}

func TestSettleWriteOnce(t *testing.T) {
	svc := NewService(NewMemStore(), 0.25, nil)
	cmd := validCommand()
	ctx := context.Background()

	first, err := svc.Settle(ctx, cmd)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	// Retrying with a different total must return the original record
	// untouched, not create or mutate anything.
	retry := cmd
	retry.Total.Amount = 99999
	second, err := svc.Settle(ctx, retry)
	if err != nil {
		t.Fatalf("retry settle: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("retry created a second settlement")
	}
	if second.Total.Amount != 18000 {
		t.Errorf("retry mutated total: %d", second.Total.Amount)
	}
}

func TestSettlePreconditions(t *testing.T) {
	svc := NewService(NewMemStore(), 0.25, nil)
	ctx := context.Background()

	notDone := validCommand()
	notDone.ReservationStatus = "started"
	if _, err := svc.Settle(ctx, notDone); !errors.Is(err, ErrPrecondition) {
		t.Errorf("incomplete reservation: got %v, want ErrPrecondition", err)
	}

	noDriver := validCommand()
	noDriver.DriverID = ""
	if _, err := svc.Settle(ctx, noDriver); !errors.Is(err, ErrPrecondition) {
		t.Errorf("missing driver: got %v, want ErrPrecondition", err)
	}

	negative := validCommand()
	negative.Total.Amount = -1
	if _, err := svc.Settle(ctx, negative); !errors.Is(err, ErrPrecondition) {
		t.Errorf("negative total: got %v, want ErrPrecondition", err)
	}
}

func TestMarkPaid(t *testing.T) {
	svc := NewService(NewMemStore(), 0.25, nil)
	ctx := context.Background()

	st, err := svc.Settle(ctx, validCommand())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	paid, err := svc.MarkPaid(ctx, st.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != StatusPaid {
		t.Fatalf("status = %s, want paid", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Fatal("paid_at not set")
	}

	// Second payout acknowledgement keeps the original timestamp.
	again, err := svc.MarkPaid(ctx, st.ID)
	if err != nil {
		t.Fatalf("second mark paid: %v", err)
	}
	if again.PaidAt == nil || !again.PaidAt.Equal(*paid.PaidAt) {
		t.Error("second mark paid changed paid_at")
	}

	if _, err := svc.MarkPaid(ctx, types.NewID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: got %v, want ErrNotFound", err)
	}
}
