package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"groupbuy-backend/apperr"
	"groupbuy-backend/calculator"
	"groupbuy-backend/models"
	"groupbuy-backend/utils"
)

// POST /api/groups/:id/orders
// The leader uploads the purchase confirmation with each member's item MRP.
func (h *Handler) CreateOrder(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, ok := paramUUID(c, "id", "group")
	if !ok {
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	items, ok := parseItems(c, req.Items)
	if !ok {
		return
	}

	order := models.Order{
		GroupID:    groupID,
		LeaderID:   userID,
		Screenshot: req.Screenshot,
		Items:      items,
	}
	if err := h.store.CreateOrder(c.Request.Context(), &order); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Order created", order)
}

// GET /api/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	order, ok := h.loadOrder(c)
	if !ok {
		return
	}
	if order.LeaderID != userID && order.Item(userID) == nil {
		utils.Forbidden(c, "You are not part of this order")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", order)
}

// POST /api/orders/:id/splits
// Spreads tax and discount over the items and asks every member to approve.
func (h *Handler) CalculateSplits(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	order, ok := h.loadOrder(c)
	if !ok {
		return
	}
	if order.LeaderID != userID {
		utils.HandleError(c, apperr.ForUser(apperr.KindNotGroupLeader, userID, "only the leader can split the order"))
		return
	}

	var req models.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	splits, err := h.split(order.Items, req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if err := h.store.SaveSplits(c.Request.Context(), order.ID, splits, req.TotalTax, req.TotalDiscount); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Splits calculated", gin.H{
		"splits": splits,
		"total":  calculator.Total(splits),
	})
}

// POST /api/orders/:id/approve
func (h *Handler) ApproveSplit(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	orderID, ok := paramUUID(c, "id", "order")
	if !ok {
		return
	}

	order, err := h.store.ApproveSplit(c.Request.Context(), orderID, userID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Split approved", gin.H{"status": order.Status})
}

// POST /api/orders/:id/received
func (h *Handler) MarkReceived(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	orderID, ok := paramUUID(c, "id", "order")
	if !ok {
		return
	}

	if err := h.store.MarkReceived(c.Request.Context(), orderID, userID); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Pickup confirmed", nil)
}

// POST /api/orders/:id/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	order, ok := h.loadOrder(c)
	if !ok {
		return
	}
	if order.LeaderID != userID {
		utils.HandleError(c, apperr.ForUser(apperr.KindNotGroupLeader, userID, "only the leader can cancel the order"))
		return
	}

	if err := h.store.CancelOrder(c.Request.Context(), order.ID); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Order cancelled", nil)
}

// POST /api/splits/preview
func (h *Handler) PreviewSplit(c *gin.Context) {
	var req models.SplitPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	items, ok := parseItems(c, req.Items)
	if !ok {
		return
	}

	splits, err := h.split(items, models.SplitRequest{TotalTax: req.TotalTax, TotalDiscount: req.TotalDiscount})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{
		"splits":   splits,
		"total":    calculator.Total(splits),
		"expected": calculator.Expected(items, req.TotalTax, req.TotalDiscount),
	})
}

func (h *Handler) split(items []models.OrderItem, req models.SplitRequest) ([]models.OrderSplit, error) {
	splits, err := calculator.CalculateSplit(items, req.TotalTax, req.TotalDiscount)
	if err != nil {
		return nil, err
	}
	if h.reconcile {
		calculator.Reconcile(splits, calculator.Expected(items, req.TotalTax, req.TotalDiscount))
	}
	return splits, nil
}

func (h *Handler) loadOrder(c *gin.Context) (*models.Order, bool) {
	orderID, ok := paramUUID(c, "id", "order")
	if !ok {
		return nil, false
	}
	order, err := h.store.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		utils.HandleError(c, err)
		return nil, false
	}
	return order, true
}

func parseItems(c *gin.Context, reqs []models.OrderItemRequest) ([]models.OrderItem, bool) {
	items := make([]models.OrderItem, 0, len(reqs))
	for _, r := range reqs {
		id, err := uuid.Parse(r.UserID)
		if err != nil {
			utils.BadRequest(c, "Invalid user ID "+r.UserID)
			return nil, false
		}
		items = append(items, models.OrderItem{UserID: id, ItemMRP: r.ItemMRP})
	}
	return items, true
}
