package utils

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"groupbuy-backend/apperr"
)

// Standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody tells the client which member or field to fix.
type ErrorBody struct {
	Kind   string `json:"kind"`
	UserID string `json:"user_id,omitempty"`
	Field  string `json:"field,omitempty"`
}

func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusNotFound, message)
}

func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, message)
}

// HandleError writes err with the status its kind maps to. Untyped errors
// are logged and hidden behind a 500.
func HandleError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		slog.Error("Unhandled error", "path", c.FullPath(), "error", err)
		InternalError(c, "Something went wrong")
		return
	}

	body := &ErrorBody{Kind: string(appErr.Kind), Field: appErr.Field}
	if appErr.UserID != uuid.Nil {
		body.UserID = appErr.UserID.String()
	}
	c.JSON(StatusFor(appErr.Kind), APIResponse{
		Success: false,
		Message: appErr.Error(),
		Error:   body,
	})
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindOrderNotFound, apperr.KindGroupNotFound, apperr.KindUserNotFound, apperr.KindWalletNotFound:
		return http.StatusNotFound
	case apperr.KindNotGroupLeader:
		return http.StatusForbidden
	case apperr.KindOrderCompleted, apperr.KindOrderCancelled, apperr.KindInvalidGroupStatus,
		apperr.KindAlreadyNoShow, apperr.KindGroupFull:
		return http.StatusConflict
	case apperr.KindSplitsNotApproved, apperr.KindInsufficientBalance, apperr.KindInsufficientCollateral:
		return http.StatusUnprocessableEntity
	case apperr.KindInvalidItems, apperr.KindInvalidTax, apperr.KindInvalidDiscount,
		apperr.KindInvalidTotal, apperr.KindInvalidAmount:
		return http.StatusBadRequest
	case apperr.KindProcessing:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Parse UUID from string
func ParseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// Get current user ID from context (set by auth middleware)
func GetCurrentUserID(c *gin.Context) uuid.UUID {
	userID, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil
	}
	id, _ := userID.(uuid.UUID)
	return id
}

// Pagination helpers
type PaginationQuery struct {
	Page  int `form:"page,default=1"`
	Limit int `form:"limit,default=20"`
}

func (p *PaginationQuery) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Normalize clamps page and limit to sane values.
func (p *PaginationQuery) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > 100 {
		p.Limit = 20
	}
}
