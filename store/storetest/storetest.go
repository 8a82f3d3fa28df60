// Package storetest builds throwaway SQLite-backed stores and seeded group
// orders for tests.
package storetest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"groupbuy-backend/calculator"
	"groupbuy-backend/database"
	"groupbuy-backend/models"
	"groupbuy-backend/store"
)

// Open returns a migrated store backed by a file in t.TempDir(). A single
// connection makes concurrent transactions queue like row locks would.
func Open(t testing.TB) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(db)
}

// D parses a decimal literal.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Fund creates userID's wallet and deposits amount into it.
func Fund(t testing.TB, s *store.Store, userID uuid.UUID, amount string) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.EnsureWallet(ctx, userID); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if D(amount).IsZero() {
		return
	}
	if _, err := s.Deposit(ctx, userID, D(amount), "test"); err != nil {
		t.Fatalf("deposit %s: %v", amount, err)
	}
}

// Balance returns userID's wallet balance as a fixed two-decimal string.
func Balance(t testing.TB, s *store.Store, userID uuid.UUID) string {
	t.Helper()
	w, err := s.GetWallet(context.Background(), userID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	return w.Balance.StringFixed(2)
}

// Scenario is a group order ready for settlement.
type Scenario struct {
	Store   *store.Store
	Leader  uuid.UUID
	Members []uuid.UUID // Members[0] is the leader
	Group   *models.Group
	Order   *models.Order
	Splits  []models.OrderSplit
}

// NewScenario seeds an ordered group of len(mrps) members, each funded with
// fund, and an order where member i bought an item at mrps[i]. Splits are
// computed from tax and discount and stored, but not approved.
func NewScenario(t testing.TB, s *store.Store, mrps []string, tax, discount, fund string) *Scenario {
	t.Helper()
	ctx := context.Background()

	sc := &Scenario{Store: s}
	for range mrps {
		id := uuid.New()
		sc.Members = append(sc.Members, id)
		Fund(t, s, id, fund)
	}
	sc.Leader = sc.Members[0]

	sc.Group = &models.Group{Name: "test group", CreatedBy: sc.Leader}
	if err := s.CreateGroup(ctx, sc.Group, decimal.Zero); err != nil {
		t.Fatalf("create group: %v", err)
	}
	for _, id := range sc.Members[1:] {
		if err := s.JoinGroup(ctx, sc.Group.ID, id, decimal.Zero); err != nil {
			t.Fatalf("join group: %v", err)
		}
	}
	for _, status := range []string{models.GroupStatusOrdering, models.GroupStatusOrdered} {
		if err := s.SetGroupStatus(ctx, sc.Group.ID, status); err != nil {
			t.Fatalf("set group %s: %v", status, err)
		}
	}

	order := &models.Order{GroupID: sc.Group.ID, LeaderID: sc.Leader, Screenshot: "receipt.png"}
	for i, mrp := range mrps {
		order.Items = append(order.Items, models.OrderItem{UserID: sc.Members[i], ItemMRP: D(mrp)})
	}
	if err := s.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	splits, err := calculator.CalculateSplit(order.Items, D(tax), D(discount))
	if err != nil {
		t.Fatalf("calculate split: %v", err)
	}
	if err := s.SaveSplits(ctx, order.ID, splits, D(tax), D(discount)); err != nil {
		t.Fatalf("save splits: %v", err)
	}
	sc.Order = order
	sc.Splits = splits
	return sc
}

// ApproveAll approves every member's split and refreshes Splits.
func (sc *Scenario) ApproveAll(t testing.TB) {
	t.Helper()
	for _, id := range sc.Members {
		sc.Approve(t, id)
	}
}

// Approve approves one member's split and refreshes Splits.
func (sc *Scenario) Approve(t testing.TB, userID uuid.UUID) {
	t.Helper()
	if _, err := sc.Store.ApproveSplit(context.Background(), sc.Order.ID, userID); err != nil {
		t.Fatalf("approve %s: %v", userID, err)
	}
	sc.Reload(t)
}

// Reload re-reads the order and its stored splits.
func (sc *Scenario) Reload(t testing.TB) {
	t.Helper()
	order, err := sc.Store.GetOrder(context.Background(), sc.Order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	sc.Order = order
	sc.Splits = order.Splits()
}

// Balances returns every member's balance keyed by member index.
func (sc *Scenario) Balances(t testing.TB) []string {
	t.Helper()
	out := make([]string, len(sc.Members))
	for i, id := range sc.Members {
		out[i] = Balance(t, sc.Store, id)
	}
	return out
}

func (sc *Scenario) String() string {
	return fmt.Sprintf("group %s order %s", sc.Group.ID, sc.Order.ID)
}
