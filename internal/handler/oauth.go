package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"google.golang.org/api/idtoken"

	"github.com/iliyamo/property-listings/internal/model"
)

// GoogleVerifier checks a Google ID token; *idtoken.Validator implements it.
type GoogleVerifier interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

type googleReq struct {
	IDToken string `json:"id_token"`
}

// GoogleLogin signs a user in with a Google ID token, creating the account
// on first use. The email must be verified by Google.
func (h *AuthHandler) GoogleLogin(c echo.Context) error {
	if h.Google == nil || h.Cfg.GoogleClientID == "" {
		return h.Errors.Internal(c, errors.New("GOOGLE_CLIENT_ID is not set"), "google sign-in is not configured")
	}
	var req googleReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.IDToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	payload, err := h.Google.Validate(ctx, strings.TrimSpace(req.IDToken), h.Cfg.GoogleClientID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid google token"})
	}
	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	if email == "" || !verified {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "google account email is not verified"})
	}
	name, _ := payload.Claims["name"].(string)

	u, err := h.Users.UpsertGoogle(ctx, email, name)
	if err != nil {
		return h.Errors.Internal(c, err, "google sign-in failed")
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return h.Errors.Internal(c, err, "issue tokens failed")
	}
	h.record(c, u.ID, model.ActionLogin)
	return c.JSON(http.StatusOK, resp)
}
