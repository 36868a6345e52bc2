package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-listings/internal/mailer"
	"github.com/iliyamo/property-listings/internal/otp"
	"github.com/iliyamo/property-listings/internal/repository"
	"github.com/iliyamo/property-listings/internal/service"
	"github.com/iliyamo/property-listings/internal/utils"
	"github.com/iliyamo/property-listings/internal/validation"
)

type emailReq struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyReq struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type resetReq struct {
	Email    string `json:"email" validate:"required,email"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

const otpDigits = 6

var forgotResp = echo.Map{"message": "if the account exists, a reset link has been sent"}

// SendOTP emails a six-digit verification code. The response is the same
// whether or not the address has an account.
func (h *AuthHandler) SendOTP(c echo.Context) error {
	var req emailReq
	if err := bindEmail(c, &req); err != nil {
		return h.Errors.Respond(c, err, "not found")
	}
	code, err := utils.RandomDigits(otpDigits)
	if err != nil {
		return h.Errors.Internal(c, err, "generate code failed")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Codes.Save(ctx, otp.PurposeVerifyEmail, req.Email, code, h.Cfg.OTPTTL); err != nil {
		return h.Errors.Internal(c, err, "store code failed")
	}
	service.NotifyLater(h.Runner, h.Notifier, mailer.Message{
		Template: mailer.TemplateOTP,
		To:       req.Email,
		Data:     map[string]string{"code": code, "expires_in": h.Cfg.OTPTTL.String()},
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "verification code sent"})
}

// VerifyOTP consumes the code and marks the email as verified.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Code = strings.TrimSpace(req.Code)
	if err := c.Validate(&req); err != nil {
		return h.Errors.Respond(c, err, "not found")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Codes.Consume(ctx, otp.PurposeVerifyEmail, req.Email, req.Code); err != nil {
		return h.Errors.Respond(c, err, "not found")
	}
	if err := h.Users.SetEmailVerified(ctx, req.Email); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return h.Errors.Internal(c, err, "verify email failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"verified": true})
}

// ForgotPassword emails a reset token when the account exists. The answer
// never reveals whether it does.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := bindEmail(c, &req); err != nil {
		return h.Errors.Respond(c, err, "not found")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusOK, forgotResp)
	}
	if err != nil {
		return h.Errors.Internal(c, err, "query failed")
	}
	token, err := utils.RandomToken(32)
	if err != nil {
		return h.Errors.Internal(c, err, "generate token failed")
	}
	if err := h.Codes.Save(ctx, otp.PurposePasswordReset, u.Email, token, h.Cfg.ResetTTL); err != nil {
		return h.Errors.Internal(c, err, "store token failed")
	}
	service.NotifyLater(h.Runner, h.Notifier, mailer.Message{
		Template: mailer.TemplatePasswordReset,
		To:       u.Email,
		Data:     map[string]string{"token": token, "email": u.Email, "expires_in": h.Cfg.ResetTTL.String()},
	})
	return c.JSON(http.StatusOK, forgotResp)
}

// ResetPassword consumes the reset token, stores the new password and
// signs out every session.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
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

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Codes.Consume(ctx, otp.PurposePasswordReset, req.Email, strings.TrimSpace(req.Token)); err != nil {
		return h.Errors.Respond(c, err, "not found")
	}
	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		return h.Errors.Respond(c, err, "user not found")
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return h.Errors.Internal(c, err, "hash password failed")
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return h.Errors.Internal(c, err, "update password failed")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		return h.Errors.Internal(c, err, "revoke sessions failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// bindEmail binds and validates an {"email"} body.
func bindEmail(c echo.Context, req *emailReq) error {
	if err := c.Bind(req); err != nil {
		return validation.New("body", "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	return c.Validate(req)
}
