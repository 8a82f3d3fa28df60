package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groupbuy-backend/apperr"
	"groupbuy-backend/utils"
)

// POST /api/orders/:id/complete
// Settles the order from its stored splits.
func (h *Handler) CompleteOrder(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	order, ok := h.loadOrder(c)
	if !ok {
		return
	}
	if order.LeaderID != userID {
		utils.HandleError(c, apperr.ForUser(apperr.KindNotGroupLeader, userID, "only the leader can complete the order"))
		return
	}

	result, err := h.engine.Settle(c.Request.Context(), order.GroupID, order.ID, userID, order.Splits())
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Order settled", result)
}

// POST /api/orders/:id/no-show/:uid
// Called by the leader or the pickup scheduler once the collection window
// has passed.
func (h *Handler) ProcessNoShow(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	order, ok := h.loadOrder(c)
	if !ok {
		return
	}
	memberID, ok := paramUUID(c, "uid", "user")
	if !ok {
		return
	}
	if order.LeaderID != userID {
		utils.HandleError(c, apperr.ForUser(apperr.KindNotGroupLeader, userID, "only the leader can report a no-show"))
		return
	}

	result, err := h.engine.ApplyNoShow(c.Request.Context(), order.GroupID, order.ID, memberID, userID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "No-show penalty applied", result)
}
