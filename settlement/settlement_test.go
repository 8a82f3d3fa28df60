package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"groupbuy-backend/apperr"
	"groupbuy-backend/models"
	"groupbuy-backend/store"
	"groupbuy-backend/store/storetest"
)

var d = storetest.D

func newCoordinator(s *store.Store) *Coordinator {
	return NewCoordinator(s, d("0.02"), GroupArchive)
}

func equalBalances(t *testing.T, got, want []string) {
	t.Helper()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("member %d balance = %s, want %s", i, got[i], want[i])
		}
	}
}

func checkLedgerMatchesWallets(t *testing.T, sc *storetest.Scenario) {
	t.Helper()
	for _, id := range sc.Members {
		sum, err := sc.Store.LedgerBalance(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if got := storetest.Balance(t, sc.Store, id); sum.StringFixed(2) != got {
			t.Errorf("user %s ledger sum %s != wallet %s", id, sum.StringFixed(2), got)
		}
	}
}

func TestSettleThreeMemberOrder(t *testing.T) {
	s := storetest.Open(t)
	sc := storetest.NewScenario(t, s, []string{"100", "200", "300"}, "30", "15", "1000")
	sc.ApproveAll(t)

	wantFinal := []string{"102.50", "205.00", "307.50"}
	for i, split := range sc.Splits {
		if split.FinalAmount.StringFixed(2) != wantFinal[i] {
			t.Errorf("split %d final = %s, want %s", i, split.FinalAmount.StringFixed(2), wantFinal[i])
		}
	}

	res, err := newCoordinator(s).Attempt(context.Background(), sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits)
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if res.TotalAmount.StringFixed(2) != "615.00" {
		t.Errorf("total = %s, want 615.00", res.TotalAmount.StringFixed(2))
	}
	if res.PlatformFee.StringFixed(2) != "12.30" {
		t.Errorf("fee = %s, want 12.30", res.PlatformFee.StringFixed(2))
	}
	if res.Payout.StringFixed(2) != "602.70" {
		t.Errorf("payout = %s, want 602.70", res.Payout.StringFixed(2))
	}
	if len(res.Debits) != 2 {
		t.Errorf("debits = %d, want 2 (leader excluded)", len(res.Debits))
	}

	equalBalances(t, sc.Balances(t), []string{"1602.70", "795.00", "692.50"})
	checkLedgerMatchesWallets(t, sc)

	sc.Reload(t)
	if sc.Order.Status != models.OrderStatusCompleted || sc.Order.CompletedAt == nil {
		t.Errorf("order status = %s, completed_at = %v", sc.Order.Status, sc.Order.CompletedAt)
	}
	if sc.Order.PlatformFee == nil || sc.Order.PlatformFee.StringFixed(2) != "12.30" {
		t.Errorf("order platform fee = %v", sc.Order.PlatformFee)
	}
	group, err := s.GetGroup(context.Background(), sc.Group.ID)
	if err != nil {
		t.Fatal(err)
	}
	if group.Status != models.GroupStatusCompleted {
		t.Errorf("group status = %s, want completed", group.Status)
	}

	entries, err := s.LedgerEntriesForOrder(context.Background(), sc.Order.ID)
	if err != nil {
		t.Fatal(err)
	}
	var debits, credits int
	for _, e := range entries {
		if e.GroupID == nil || *e.GroupID != sc.Group.ID {
			t.Errorf("entry %s not tagged with group", e.ID)
		}
		switch e.Type {
		case models.EntryTypeDebit:
			debits++
			if e.UserID == sc.Leader {
				t.Error("leader was debited")
			}
		case models.EntryTypeCredit:
			credits++
			if e.PlatformFee == nil || e.PlatformFee.StringFixed(2) != "12.30" {
				t.Errorf("credit platform fee = %v", e.PlatformFee)
			}
		}
	}
	if debits != 2 || credits != 1 {
		t.Errorf("debits = %d, credits = %d; want 2, 1", debits, credits)
	}
}

func TestSettleDeletesGroupWhenConfigured(t *testing.T) {
	s := storetest.Open(t)
	sc := storetest.NewScenario(t, s, []string{"10", "20"}, "0", "0", "100")
	sc.ApproveAll(t)

	c := NewCoordinator(s, d("0.02"), GroupDelete)
	if _, err := c.Attempt(context.Background(), sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits); err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if _, err := s.GetGroup(context.Background(), sc.Group.ID); !errors.Is(err, apperr.ErrGroupNotFound) {
		t.Errorf("GetGroup() error = %v, want GROUP_NOT_FOUND", err)
	}
}

func TestLeaderSplitIsNotDebited(t *testing.T) {
	s := storetest.Open(t)
	sc := storetest.NewScenario(t, s, []string{"100", "200", "300"}, "30", "15", "0")
	// The leader holds nothing; only the other members need funds.
	storetest.Fund(t, s, sc.Members[1], "205")
	storetest.Fund(t, s, sc.Members[2], "307.50")
	sc.ApproveAll(t)

	if _, err := newCoordinator(s).Attempt(context.Background(), sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits); err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	equalBalances(t, sc.Balances(t), []string{"602.70", "0.00", "0.00"})
	checkLedgerMatchesWallets(t, sc)
}

func TestSettleIsAllOrNothing(t *testing.T) {
	s := storetest.Open(t)
	sc := storetest.NewScenario(t, s, []string{"100", "200", "300"}, "30", "15", "0")
	storetest.Fund(t, s, sc.Members[1], "1000")
	storetest.Fund(t, s, sc.Members[2], "300") // owes 307.50
	sc.ApproveAll(t)
	before := sc.Balances(t)

	_, err := newCoordinator(s).Attempt(context.Background(), sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits)
	if !errors.Is(err, apperr.ErrInsufficientBalance) {
		t.Fatalf("Attempt() error = %v, want INSUFFICIENT_BALANCE", err)
	}
	if apperr.UserOf(err) != sc.Members[2] {
		t.Errorf("offending user = %s, want %s", apperr.UserOf(err), sc.Members[2])
	}
	equalBalances(t, sc.Balances(t), before)

	sc.Reload(t)
	if sc.Order.Status != models.OrderStatusDelivering {
		t.Errorf("order status = %s, want delivering", sc.Order.Status)
	}
	entries, _ := s.LedgerEntriesForOrder(context.Background(), sc.Order.ID)
	if len(entries) != 0 {
		t.Errorf("got %d ledger entries for a failed settlement", len(entries))
	}
}

func TestSettleRollsBackMidBatchFailure(t *testing.T) {
	s := storetest.Open(t)
	sc := storetest.NewScenario(t, s, []string{"100", "200", "300"}, "30", "15", "1000")
	sc.ApproveAll(t)
	before := sc.Balances(t)

	// Fail the second wallet write: one member is already debited when it happens.
	boom := errors.New("disk full")
	var writes int
	err := s.DB().Callback().Update().Before("gorm:update").Register("test:fail_second_wallet", func(tx *gorm.DB) {
		if tx.Statement.Table == "wallets" {
			writes++
			if writes == 2 {
				tx.AddError(boom)
			}
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = newCoordinator(s).Attempt(context.Background(), sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits)
	if !errors.Is(err, boom) {
		t.Fatalf("Attempt() error = %v, want %v", err, boom)
	}
	if writes != 2 {
		t.Fatalf("wallet writes = %d, want 2", writes)
	}
	equalBalances(t, sc.Balances(t), before)
	sc.Reload(t)
	if sc.Order.Status == models.OrderStatusCompleted {
		t.Error("order completed despite rollback")
	}
}

func TestSettleRequiresEveryApproval(t *testing.T) {
	s := storetest.Open(t)
	sc := storetest.NewScenario(t, s, []string{"100", "200", "300"}, "30", "15", "1000")
	sc.Approve(t, sc.Members[0])
	sc.Approve(t, sc.Members[2])
	before := sc.Balances(t)

	c := newCoordinator(s)
	_, err := c.Attempt(context.Background(), sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits)
	if !errors.Is(err, apperr.ErrSplitsNotApproved) || apperr.UserOf(err) != sc.Members[1] {
		t.Fatalf("Attempt() error = %v, want SPLITS_NOT_APPROVED for member 1", err)
	}

	// Claiming approval in the request does not override the stored state.
	forged := append([]models.OrderSplit(nil), sc.Splits...)
	for i := range forged {
		forged[i].Approved = true
	}
	_, err = c.Attempt(context.Background(), sc.Group.ID, sc.Order.ID, sc.Leader, forged)
	if !errors.Is(err, apperr.ErrSplitsNotApproved) {
		t.Fatalf("Attempt() with forged approvals error = %v", err)
	}
	equalBalances(t, sc.Balances(t), before)
}

func TestSettleRejectsSplitsThatDifferFromStored(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	sc := storetest.NewScenario(t, s, []string{"100", "200", "300"}, "30", "15", "1000")
	c := newCoordinator(s)

	// Member 2 never approved and is left out of the request.
	sc.Approve(t, sc.Members[0])
	sc.Approve(t, sc.Members[1])
	before := sc.Balances(t)
	_, err := c.Attempt(ctx, sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits[:2])
	if !errors.Is(err, apperr.ErrSplitsNotApproved) || apperr.UserOf(err) != sc.Members[2] {
		t.Fatalf("Attempt() with a missing split error = %v, want SPLITS_NOT_APPROVED for member 2", err)
	}

	sc.Approve(t, sc.Members[2])
	tests := []struct {
		name   string
		splits func() []models.OrderSplit
		want   error
	}{
		{"inflated leader split", func() []models.OrderSplit {
			out := append([]models.OrderSplit(nil), sc.Splits...)
			out[0].FinalAmount = d("900")
			return out
		}, apperr.ErrInvalidItems},
		{"discounted member split", func() []models.OrderSplit {
			out := append([]models.OrderSplit(nil), sc.Splits...)
			out[2].FinalAmount = d("1")
			return out
		}, apperr.ErrInvalidItems},
		{"duplicate split", func() []models.OrderSplit {
			return append(append([]models.OrderSplit(nil), sc.Splits...), sc.Splits[1])
		}, apperr.ErrInvalidItems},
		{"outsider split", func() []models.OrderSplit {
			extra := models.OrderSplit{UserID: uuid.New(), FinalAmount: d("10"), Approved: true}
			return append(append([]models.OrderSplit(nil), sc.Splits...), extra)
		}, apperr.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Attempt(ctx, sc.Group.ID, sc.Order.ID, sc.Leader, tt.splits())
			if !errors.Is(err, tt.want) {
				t.Errorf("Attempt() error = %v, want %v", err, tt.want)
			}
			equalBalances(t, sc.Balances(t), before)
		})
	}

	if _, err := c.Attempt(ctx, sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits); err != nil {
		t.Fatalf("Attempt() with stored splits error = %v", err)
	}
	equalBalances(t, sc.Balances(t), []string{"1602.70", "795.00", "692.50"})
}

func TestSettleTwiceCommitsOnce(t *testing.T) {
	s := storetest.Open(t)
	sc := storetest.NewScenario(t, s, []string{"100", "200", "300"}, "30", "15", "1000")
	sc.ApproveAll(t)
	c := newCoordinator(s)

	if _, err := c.Attempt(context.Background(), sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits); err != nil {
		t.Fatalf("first Attempt() error = %v", err)
	}
	after := sc.Balances(t)

	_, err := c.Attempt(context.Background(), sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits)
	if !errors.Is(err, apperr.ErrOrderCompleted) {
		t.Fatalf("second Attempt() error = %v, want ORDER_COMPLETED", err)
	}
	equalBalances(t, sc.Balances(t), after)
}

func TestConcurrentSettlementsCommitOnce(t *testing.T) {
	s := storetest.Open(t)
	sc := storetest.NewScenario(t, s, []string{"100", "200", "300"}, "30", "15", "1000")
	sc.ApproveAll(t)
	e := NewEngine(s, Options{FeeRate: d("0.02"), Retry: fastPolicy(3)})

	const callers = 6
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.ProcessOrderCompletion(context.Background(), sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrOrderCompleted), errors.Is(err, apperr.ErrInvalidGroupStatus):
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d settlements committed, want 1", ok)
	}
	equalBalances(t, sc.Balances(t), []string{"1602.70", "795.00", "692.50"})
	checkLedgerMatchesWallets(t, sc)
}

func TestSettlePreconditions(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	sc := storetest.NewScenario(t, s, []string{"100", "200"}, "0", "0", "1000")
	sc.ApproveAll(t)
	c := newCoordinator(s)

	tests := []struct {
		name     string
		groupID  uuid.UUID
		orderID  uuid.UUID
		leaderID uuid.UUID
		want     error
	}{
		{"unknown order", sc.Group.ID, uuid.New(), sc.Leader, apperr.ErrOrderNotFound},
		{"order of another group", uuid.New(), sc.Order.ID, sc.Leader, apperr.ErrOrderNotFound},
		{"not the leader", sc.Group.ID, sc.Order.ID, sc.Members[1], apperr.ErrNotGroupLeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Attempt(ctx, tt.groupID, tt.orderID, tt.leaderID, sc.Splits)
			if !errors.Is(err, tt.want) {
				t.Errorf("Attempt() error = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("missing wallet", func(t *testing.T) {
		if err := s.DB().Where("user_id = ?", sc.Members[1]).Delete(&models.Wallet{}).Error; err != nil {
			t.Fatal(err)
		}
		defer storetest.Fund(t, s, sc.Members[1], "1000")
		_, err := c.Attempt(ctx, sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits)
		if !errors.Is(err, apperr.ErrWalletNotFound) || apperr.UserOf(err) != sc.Members[1] {
			t.Errorf("Attempt() error = %v, want WALLET_NOT_FOUND for member 1", err)
		}
	})

	t.Run("group not ordered", func(t *testing.T) {
		if err := s.SetGroupStatus(ctx, sc.Group.ID, models.GroupStatusCancelled); err != nil {
			t.Fatal(err)
		}
		_, err := c.Attempt(ctx, sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits)
		if !errors.Is(err, apperr.ErrInvalidGroupStatus) {
			t.Errorf("Attempt() error = %v, want INVALID_GROUP_STATUS", err)
		}
	})

	t.Run("cancelled order", func(t *testing.T) {
		if err := s.CancelOrder(ctx, sc.Order.ID); err != nil {
			t.Fatal(err)
		}
		_, err := c.Attempt(ctx, sc.Group.ID, sc.Order.ID, sc.Leader, sc.Splits)
		if !errors.Is(err, apperr.ErrOrderCancelled) {
			t.Errorf("Attempt() error = %v, want ORDER_CANCELLED", err)
		}
	})
}
