package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groupbuy-backend/utils"
)

// GET /api/wallet/audit
// Compares the stored balance with the sum of completed ledger entries.
func (h *Handler) AuditWallet(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	wallet, err := h.store.GetWallet(c.Request.Context(), userID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	ledger, err := h.store.LedgerBalance(c.Request.Context(), userID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{
		"balance":        wallet.Balance,
		"ledger_balance": ledger,
		"consistent":     wallet.Balance.Equal(ledger),
	})
}
