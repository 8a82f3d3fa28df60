package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"groupbuy-backend/utils"
)

type UpdateFCMTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// GET /api/users/me
func (h *Handler) GetProfile(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	users, err := h.store.GetUsers(c.Request.Context(), []uuid.UUID{userID})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if len(users) == 0 {
		utils.NotFound(c, "User not found")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", users[0])
}

// PUT /api/users/me/fcm-token
func (h *Handler) UpdateFCMToken(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var req UpdateFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.store.SetFCMToken(c.Request.Context(), userID, req.Token); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "FCM token updated", nil)
}
