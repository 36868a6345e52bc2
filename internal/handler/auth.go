package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-listings/internal/config"
	"github.com/iliyamo/property-listings/internal/mailer"
	"github.com/iliyamo/property-listings/internal/middleware"
	"github.com/iliyamo/property-listings/internal/model"
	"github.com/iliyamo/property-listings/internal/otp"
	"github.com/iliyamo/property-listings/internal/repository"
	"github.com/iliyamo/property-listings/internal/service"
	"github.com/iliyamo/property-listings/internal/utils"
)

// UserStore is implemented by *repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, in repository.NewUser) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	UpsertGoogle(ctx context.Context, email, name string) (model.User, error)
	SetEmailVerified(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, userID, hash string) error
	IsAdmin(ctx context.Context, email string) (bool, error)
}

// TokenStore is implemented by *repository.TokenRepo.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID string, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Tokens   TokenStore
	Codes    otp.Store
	Google   GoogleVerifier
	Runner   service.Runner
	Notifier service.Notifier
	Activity service.ActivityStore
	Errors   Errors
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"max=200"`
	Phone    string `json:"phone" validate:"omitempty,max=40"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	Phone         *string `json:"phone,omitempty"`
	Provider      string  `json:"provider"`
	EmailVerified bool    `json:"email_verified"`
	Role          string  `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toUserPart(u model.User, role string) userPart {
	return userPart{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Phone:         u.Phone,
		Provider:      u.Provider,
		EmailVerified: u.EmailVerified,
		Role:          role,
	}
}

// Register creates a credentials user, sends the welcome email in the
// background and returns tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := c.Validate(&req); err != nil {
		return h.Errors.Respond(c, err, "not found")
	}
	if err := utils.CheckPassword(req.Password); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return h.Errors.Internal(c, err, "hash password failed")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.Create(ctx, repository.NewUser{
		Email:        req.Email,
		Phone:        req.Phone,
		Name:         req.Name,
		PasswordHash: hash,
		Provider:     model.ProviderCredentials,
	})
	if err != nil {
		return h.Errors.Respond(c, err, "not found")
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return h.Errors.Internal(c, err, "issue tokens failed")
	}
	service.NotifyLater(h.Runner, h.Notifier, mailer.Message{
		Template: mailer.TemplateWelcome,
		To:       u.Email,
		Data:     map[string]string{"name": u.Name},
	})
	h.record(c, u.ID, model.ActionRegister)
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new token pair. Unknown email,
// wrong password and OAuth-only accounts all get the same 401.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return h.Errors.Internal(c, err, "query failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return h.Errors.Internal(c, err, "issue tokens failed")
	}
	h.record(c, u.ID, model.ActionLogin)
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates by hash, revokes the old token and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return h.Errors.Internal(c, err, "revoke refresh failed")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return h.Errors.Internal(c, err, "load user failed")
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return h.Errors.Internal(c, err, "issue tokens failed")
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the refresh token in the body, or every session of the
// bearer when no body token is given.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return h.Errors.Internal(c, err, "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}
	if uid := middleware.UserID(c); uid != "" {
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return h.Errors.Internal(c, err, "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	u, err := h.Users.GetByID(ctx, middleware.UserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
		}
		return h.Errors.Internal(c, err, "load user failed")
	}
	return c.JSON(http.StatusOK, toUserPart(u, middleware.Role(c)))
}

// issue derives the role from is_admin() and mints an access/refresh pair.
func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
	admin, err := h.Users.IsAdmin(ctx, u.Email)
	if err != nil {
		return authResp{}, err
	}
	role := model.RoleUser
	if admin {
		role = model.RoleAdmin
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    toUserPart(u, role),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

func (h *AuthHandler) record(c echo.Context, userID, action string) {
	if h.Runner == nil || h.Activity == nil {
		return
	}
	ip := c.RealIP()
	_ = h.Runner.Go("activity:"+action, func(ctx context.Context) error {
		return h.Activity.Log(ctx, userID, action, "", ip)
	})
}
