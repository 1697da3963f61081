package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/educapi/account-service/internal/api/metrics"
	"github.com/educapi/account-service/internal/api/middleware"
	"github.com/educapi/account-service/internal/core/domain"
	"github.com/educapi/account-service/internal/core/ports"
)

// AccountHandler exposes registration, login and the current-account
// operations. Successful mutations are published to the audit trail.
type AccountHandler struct {
	accounts ports.AccountService
	events   ports.EventPublisher
	now      func() time.Time
}

func NewAccountHandler(accounts ports.AccountService, events ports.EventPublisher) *AccountHandler {
	return &AccountHandler{accounts: accounts, events: events, now: time.Now}
}

type accountRequest struct {
	Name     string `json:"name"     validate:"required"`
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type accountResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// Register creates a new account.
//
// @Summary      Register a new account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        body  body      accountRequest  true  "Account details"
// @Success      201   {object}  accountResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /users [post]
func (h *AccountHandler) Register(c echo.Context) error {
	var req accountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	account, err := h.accounts.Register(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}

	metrics.RegistrationsTotal.Inc()
	h.publish(c, domain.EventRegistered, account)
	return c.JSON(http.StatusCreated, toAccountResponse(account))
}

// Login authenticates an account and returns a session token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  tokenResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AccountHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := h.accounts.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		}
		return err
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	h.publish(c, domain.EventAuthenticated, &domain.Account{Email: req.Email})
	return c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// Current returns the account the session token belongs to.
//
// @Summary      Current account
// @Tags         auth
// @Produce      json
// @Param        Authorization  header    string  true  "Session token, optionally prefixed with Bearer"
// @Success      200            {object}  accountResponse
// @Failure      403            {object}  map[string]string
// @Router       /auth/users [get]
func (h *AccountHandler) Current(c echo.Context) error {
	account, err := h.accounts.ResolveCurrentAccount(c.Request().Context(), middleware.Token(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountResponse(account))
}

// Update overwrites name, e-mail and password of the current account.
//
// @Summary      Update current account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        Authorization  header    string          true  "Session token, optionally prefixed with Bearer"
// @Param        body           body      accountRequest  true  "New account details"
// @Success      200            {object}  accountResponse
// @Failure      400            {object}  map[string]string
// @Failure      403            {object}  map[string]string
// @Failure      409            {object}  map[string]string
// @Router       /auth/users [put]
func (h *AccountHandler) Update(c echo.Context) error {
	var req accountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	account, err := h.accounts.Update(c.Request().Context(), middleware.Token(c), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}

	h.publish(c, domain.EventUpdated, account)
	return c.JSON(http.StatusOK, toAccountResponse(account))
}

// Delete removes the current account and returns it as it was.
//
// @Summary      Delete current account
// @Tags         auth
// @Produce      json
// @Param        Authorization  header    string  true  "Session token, optionally prefixed with Bearer"
// @Success      200            {object}  accountResponse
// @Failure      403            {object}  map[string]string
// @Router       /auth/users [delete]
func (h *AccountHandler) Delete(c echo.Context) error {
	account, err := h.accounts.Delete(c.Request().Context(), middleware.Token(c))
	if err != nil {
		return err
	}

	h.publish(c, domain.EventDeleted, account)
	return c.JSON(http.StatusOK, toAccountResponse(account))
}

func (h *AccountHandler) publish(c echo.Context, eventType domain.AccountEventType, account *domain.Account) {
	if h.events == nil {
		return
	}
	h.events.Publish(ports.AccountEventInput{
		Type:       string(eventType),
		AccountID:  account.ID,
		Email:      account.Email,
		RequestID:  c.Response().Header().Get(echo.HeaderXRequestID),
		OccurredAt: h.now().UTC(),
	})
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
