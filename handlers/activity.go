package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groupbuy-backend/utils"
)

// GET /api/orders/:id/ledger
// Money movements for one order.
func (h *Handler) GetOrderLedger(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	order, ok := h.loadOrder(c)
	if !ok {
		return
	}
	if order.LeaderID != userID && order.Item(userID) == nil {
		utils.Forbidden(c, "You are not part of this order")
		return
	}

	entries, err := h.store.LedgerEntriesForOrder(c.Request.Context(), order.ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	// Members only see their own rows; the leader sees the whole order.
	if order.LeaderID != userID {
		mine := entries[:0]
		for _, e := range entries {
			if e.UserID == userID {
				mine = append(mine, e)
			}
		}
		entries = mine
	}

	utils.SuccessResponse(c, http.StatusOK, "", entries)
}
