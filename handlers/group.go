package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groupbuy-backend/apperr"
	"groupbuy-backend/models"
	"groupbuy-backend/utils"
)

// POST /api/groups
func (h *Handler) CreateGroup(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var req models.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	if req.TargetAmount.IsNegative() || req.MaxMembers < 0 {
		utils.BadRequest(c, "target_amount and max_members cannot be negative")
		return
	}

	group := models.Group{
		Name:         req.Name,
		TargetAmount: req.TargetAmount,
		MaxMembers:   req.MaxMembers,
		CreatedBy:    userID,
	}
	if err := h.store.CreateGroup(c.Request.Context(), &group, h.collateral); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Group created", group)
}

// GET /api/groups/:id
func (h *Handler) GetGroup(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, ok := paramUUID(c, "id", "group")
	if !ok {
		return
	}

	group, err := h.store.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if !group.IsActiveMember(userID) {
		utils.Forbidden(c, "You are not a member of this group")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", group)
}

// POST /api/groups/:id/join
func (h *Handler) JoinGroup(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, ok := paramUUID(c, "id", "group")
	if !ok {
		return
	}

	if err := h.store.JoinGroup(c.Request.Context(), groupID, userID, h.collateral); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Joined group", nil)
}

// POST /api/groups/:id/leave
func (h *Handler) LeaveGroup(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, ok := paramUUID(c, "id", "group")
	if !ok {
		return
	}

	if err := h.store.LeaveGroup(c.Request.Context(), groupID, userID); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Left group", nil)
}

// PUT /api/groups/:id/status
func (h *Handler) UpdateGroupStatus(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, ok := paramUUID(c, "id", "group")
	if !ok {
		return
	}

	var req models.UpdateGroupStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	group, err := h.store.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if group.CreatedBy != userID {
		utils.HandleError(c, apperr.ForUser(apperr.KindNotGroupLeader, userID, "only the leader can change the group status"))
		return
	}

	if err := h.store.SetGroupStatus(c.Request.Context(), groupID, req.Status); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Group status updated", gin.H{"status": req.Status})
}
