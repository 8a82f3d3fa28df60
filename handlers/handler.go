package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"groupbuy-backend/settlement"
	"groupbuy-backend/store"
	"groupbuy-backend/utils"
)

// Handler serves the wallet, group and order API.
type Handler struct {
	store      *store.Store
	engine     *settlement.Engine
	collateral decimal.Decimal
	reconcile  bool
}

type Options struct {
	Collateral     decimal.Decimal // minimum balance to create or join a group
	ReconcileSplit bool            // push rounding drift onto the last split
}

func New(s *store.Store, engine *settlement.Engine, opts Options) *Handler {
	return &Handler{store: s, engine: engine, collateral: opts.Collateral, reconcile: opts.ReconcileSplit}
}

// Register mounts the routes on an authenticated group.
func (h *Handler) Register(api *gin.RouterGroup) {
	// Wallet
	api.GET("/wallet", h.GetWallet)
	api.GET("/wallet/ledger", h.GetLedger)
	api.GET("/wallet/audit", h.AuditWallet)

	// User
	api.GET("/users/me", h.GetProfile)
	api.PUT("/users/me/fcm-token", h.UpdateFCMToken)

	// Groups
	api.POST("/groups", h.CreateGroup)
	api.GET("/groups/:id", h.GetGroup)
	api.POST("/groups/:id/join", h.JoinGroup)
	api.POST("/groups/:id/leave", h.LeaveGroup)
	api.PUT("/groups/:id/status", h.UpdateGroupStatus)

	// Orders
	api.POST("/groups/:id/orders", h.CreateOrder)
	api.GET("/orders/:id", h.GetOrder)
	api.POST("/orders/:id/splits", h.CalculateSplits)
	api.POST("/orders/:id/approve", h.ApproveSplit)
	api.POST("/orders/:id/received", h.MarkReceived)
	api.POST("/orders/:id/cancel", h.CancelOrder)
	api.GET("/orders/:id/ledger", h.GetOrderLedger)
	api.POST("/splits/preview", h.PreviewSplit)

	// Settlement
	api.POST("/orders/:id/complete", h.CompleteOrder)
	api.POST("/orders/:id/no-show/:uid", h.ProcessNoShow)
}

// RegisterInternal mounts the routes only backend services may call. The
// group must sit behind middleware.ScopeRequired.
func (h *Handler) RegisterInternal(internal *gin.RouterGroup) {
	internal.POST("/wallets/:uid/deposit", h.Deposit)
}

func paramUUID(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequest(c, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}
