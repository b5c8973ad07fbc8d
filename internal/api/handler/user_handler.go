package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/natours/tours-api/internal/core/domain"
	"github.com/natours/tours-api/internal/core/ports"
)

// UserHandler serves the self-service and admin account routes.
type UserHandler struct {
	service ports.AccountService
}

func NewUserHandler(service ports.AccountService) *UserHandler {
	return &UserHandler{service: service}
}

type updateMeRequest struct {
	Username        string `json:"username"        validate:"omitempty,max=40"`
	Email           string `json:"email"           validate:"omitempty,email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type listUsersQuery struct {
	Role  string `query:"role"  validate:"omitempty,oneof=user tour-guide lead-guide admin"`
	Page  int    `query:"page"  validate:"omitempty,min=1"`
	Limit int    `query:"limit" validate:"omitempty,min=1"`
}

// Me returns the logged-in account.
//
// @Summary      Current account
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userResponse
// @Failure      401  {object}  statusResponse
// @Router       /api/v1/users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	acc, err := mustAccount(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Status: "success", Data: userData{User: publicOf(acc)}})
}

// UpdateMe edits username and email of the logged-in account.
//
// @Summary      Update profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateMeRequest  true  "Profile fields"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  statusResponse
// @Failure      401   {object}  statusResponse
// @Router       /api/v1/users/updateMe [patch]
func (h *UserHandler) UpdateMe(c echo.Context) error {
	acc, err := mustAccount(c)
	if err != nil {
		return err
	}

	var req updateMeRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	updated, err := h.service.UpdateProfile(c.Request().Context(), ports.UpdateProfileInput{
		AccountID:       acc.ID,
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Status: "success", Data: userData{User: publicOf(updated)}})
}

// DeleteMe deactivates the logged-in account.
//
// @Summary      Deactivate account
// @Tags         users
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  statusResponse
// @Router       /api/v1/users/deleteMe [delete]
func (h *UserHandler) DeleteMe(c echo.Context) error {
	acc, err := mustAccount(c)
	if err != nil {
		return err
	}
	if err := h.service.Deactivate(c.Request().Context(), acc.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// List returns a page of active accounts.
//
// @Summary      List accounts
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        role   query     string  false  "Filter by role"
// @Param        page   query     int     false  "Page (1-based)"
// @Param        limit  query     int     false  "Page size (max 100)"
// @Success      200    {object}  listResponse
// @Failure      401    {object}  statusResponse
// @Failure      403    {object}  statusResponse
// @Router       /api/v1/users [get]
func (h *UserHandler) List(c echo.Context) error {
	var q listUsersQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return domain.Validation("Invalid query parameters")
	}
	if err := c.Validate(&q); err != nil {
		return err
	}

	res, err := h.service.ListAccounts(c.Request().Context(), ports.ListAccountsFilter{
		Role:  domain.Role(q.Role),
		Page:  q.Page,
		Limit: q.Limit,
	})
	if err != nil {
		return err
	}

	c.Response().Header().Set("X-Total-Count", strconv.FormatInt(res.Total, 10))

	users := make([]domain.PublicAccount, 0, len(res.Items))
	for _, acc := range res.Items {
		users = append(users, acc.Public())
	}
	return c.JSON(http.StatusOK, listResponse{
		Status:     "success",
		Results:    len(users),
		Total:      res.Total,
		Page:       res.Page,
		Limit:      res.Limit,
		TotalPages: res.TotalPages,
		Data:       listData{Users: users},
	})
}

// Get returns one active account by ID.
//
// @Summary      Get account
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Account ID"
// @Success      200  {object}  userResponse
// @Failure      403  {object}  statusResponse
// @Failure      404  {object}  statusResponse
// @Router       /api/v1/users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	acc, err := h.service.GetAccount(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Status: "success", Data: userData{User: publicOf(acc)}})
}
