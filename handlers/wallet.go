package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groupbuy-backend/models"
	"groupbuy-backend/utils"
)

// GET /api/wallet
func (h *Handler) GetWallet(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	wallet, err := h.store.EnsureWallet(c.Request.Context(), userID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", wallet)
}

// POST /internal/wallets/:uid/deposit
// Called by the payment gateway once it has captured the top-up.
func (h *Handler) Deposit(c *gin.Context) {
	userID, ok := paramUUID(c, "uid", "user")
	if !ok {
		return
	}

	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	entry, err := h.store.Deposit(c.Request.Context(), userID, req.Amount, req.Reference)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Wallet topped up", entry)
}

// GET /api/wallet/ledger
func (h *Handler) GetLedger(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var page utils.PaginationQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	page.Normalize()

	entries, err := h.store.ListLedgerEntries(c.Request.Context(), userID, page.Limit, page.Offset())
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{
		"entries": entries,
		"page":    page.Page,
		"limit":   page.Limit,
	})
}
