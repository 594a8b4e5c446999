package handlers

import (
	"net/http"
	"strconv"

	"github.com/cockpit-trainer/cockpit-api/internal/middleware"
	"github.com/cockpit-trainer/cockpit-api/internal/models"
	"github.com/cockpit-trainer/cockpit-api/internal/services"
	"github.com/cockpit-trainer/cockpit-api/internal/store"

	"github.com/gin-gonic/gin"
)

// UserHandler exposes account management under /users
type UserHandler struct {
	users *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type editUserRequest struct {
	Email           *string `json:"email"`
	Username        *string `json:"username"`
	CurrentPassword *string `json:"currentPassword"`
	NewPassword     *string `json:"newPassword"`
}

type setPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

type setRoleRequest struct {
	Role models.Role `json:"role"`
}

// UserListResponse is one page of users
type UserListResponse struct {
	Users      []models.PublicUser    `json:"users"`
	Pagination store.PaginationResult `json:"pagination"`
}

// ListUsers godoc
//
//	@Summary	List users
//	@Tags		Users
//	@Security	BearerAuth
//	@Produce	json
//	@Param		page		query		int		false	"Page number"	default(1)
//	@Param		page_size	query		int		false	"Page size"		default(20)
//	@Param		search		query		string	false	"Username or email fragment"
//	@Success	200			{object}	UserListResponse
//	@Failure	403			{object}	errorResponse
//	@Router		/users/all [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	params := store.NewPaginationParams(page, pageSize, c.Query("search"))

	users, pagination, err := h.users.ListUsers(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, UserListResponse{Users: users, Pagination: pagination})
}

// EditUser godoc
//
//	@Summary		Edit own profile
//	@Description	Every field is optional. Changing the password requires currentPassword.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		editUserRequest	true	"Fields to change"
//	@Success		200		{object}	models.PublicUser
//	@Failure		400		{object}	errorResponse
//	@Failure		403		{object}	errorResponse
//	@Failure		409		{object}	errorResponse
//	@Router			/users/edit [patch]
func (h *UserHandler) EditUser(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
		return
	}

	var req editUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid profile body")
		return
	}

	updated, err := h.users.EditUser(c.Request.Context(), user.ID, services.EditUserInput{
		Email:           req.Email,
		Username:        req.Username,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// SetPassword godoc
//
//	@Summary	Set a first password on an OAuth-only account
//	@Tags		Users
//	@Security	BearerAuth
//	@Accept		json
//	@Param		body	body	setPasswordRequest	true	"New password"
//	@Success	204
//	@Failure	400	{object}	errorResponse
//	@Failure	409	{object}	errorResponse	"Password already set"
//	@Router		/users/password [post]
func (h *UserHandler) SetPassword(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
		return
	}

	var req setPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid password body")
		return
	}

	if err := h.users.SetPassword(c.Request.Context(), user.ID, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleVerified godoc
//
//	@Summary	Toggle a user's verified flag
//	@Tags		Users
//	@Security	BearerAuth
//	@Produce	json
//	@Param		userId	path		string	true	"User ID"
//	@Success	200		{object}	services.VerificationStatus
//	@Failure	404		{object}	errorResponse
//	@Router		/users/verify/{userId} [patch]
func (h *UserHandler) ToggleVerified(c *gin.Context) {
	status, err := h.users.ToggleVerified(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// SetRole godoc
//
//	@Summary	Change a user's role
//	@Tags		Users
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		userId	path		string			true	"User ID"
//	@Param		body	body		setRoleRequest	true	"USER, MODERATOR or ADMIN"
//	@Success	200		{object}	models.PublicUser
//	@Failure	400		{object}	errorResponse
//	@Failure	404		{object}	errorResponse
//	@Router		/users/{userId}/role [patch]
func (h *UserHandler) SetRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid role body")
		return
	}

	updated, err := h.users.SetRole(c.Request.Context(), c.Param("userId"), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
