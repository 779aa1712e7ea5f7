package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tennis-court-reservation/internal/config"
	"github.com/iliyamo/tennis-court-reservation/internal/middleware"
	"github.com/iliyamo/tennis-court-reservation/internal/model"
	"github.com/iliyamo/tennis-court-reservation/internal/repository"
	"github.com/iliyamo/tennis-court-reservation/internal/utils"
)

// GuestAccounts is the guest persistence the auth and guest handlers use.
type GuestAccounts interface {
	Create(ctx context.Context, name, email, password, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (*model.Guest, error)
	GetByID(ctx context.Context, id uint64) (*model.Guest, error)
	ListAll(ctx context.Context) ([]model.Guest, error)
	ListByName(ctx context.Context, name string) ([]model.Guest, error)
	UpdateName(ctx context.Context, id uint64, name string) (*model.Guest, error)
	Delete(ctx context.Context, id uint64) error
}

// RefreshTokens stores hashed refresh tokens.
type RefreshTokens interface {
	StoreRefresh(ctx context.Context, guestID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForGuest(ctx context.Context, guestID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Guests GuestAccounts
	Tokens RefreshTokens
}

func NewAuthHandler(cfg config.Config, g GuestAccounts, t RefreshTokens) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Guests: g, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
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
type authResp struct {
	Guest   *model.Guest `json:"guest"`
	Access  tokenPart    `json:"access"`
	Refresh tokenPart    `json:"refresh"`
}

// Register creates a guest account and returns a token pair.  Emails listed
// in ADMIN_EMAILS are registered as ADMIN.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return badRequest(c, "name/email/password required")
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		return badRequest(c, err.Error())
	}
	role := model.RoleGuest
	if h.Cfg.AdminEmails[req.Email] {
		role = model.RoleAdmin
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	id, err := h.Guests.Create(ctx, req.Name, req.Email, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create guest failed"})
	}
	g, err := h.Guests.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load guest failed"})
	}
	resp, err := h.issue(ctx, g)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	g, err := h.Guests.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(g.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	resp, err := h.issue(ctx, g)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair
// issued.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	g, hash, rerr := h.guestFromRefresh(ctx, c)
	if rerr != nil {
		return rerr.render(c)
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		// Another request rotated this token first.
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}
	resp, err := h.issue(ctx, g)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token and keeps the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	g, _, rerr := h.guestFromRefresh(ctx, c)
	if rerr != nil {
		return rerr.render(c)
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, g.ID, g.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes the refresh token in the body, or every token of the
// bearer when no body token is given.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := requestContext(c)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC()); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return badRequest(c, "provide Authorization header or refresh_token")
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return unauthorized(c)
	}
	if err := h.Tokens.RevokeAllForGuest(ctx, claims.GuestID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me echoes the caller's identity.
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": id,
		"role":    middleware.Role(c),
	})
}

// refreshError is a failed refresh-token check, rendered as status/msg.
type refreshError struct {
	status int
	msg    string
}

func (e *refreshError) Error() string { return e.msg }

func (e *refreshError) render(c echo.Context) error {
	return c.JSON(e.status, echo.Map{"error": e.msg})
}

// guestFromRefresh validates the body's refresh token and loads its guest.
func (h *AuthHandler) guestFromRefresh(ctx context.Context, c echo.Context) (*model.Guest, string, *refreshError) {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return nil, "", &refreshError{http.StatusBadRequest, "refresh_token required"}
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))
	guestID, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC())
	if err != nil {
		return nil, "", &refreshError{http.StatusUnauthorized, "invalid refresh"}
	}
	g, err := h.Guests.GetByID(ctx, guestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", &refreshError{http.StatusUnauthorized, "invalid refresh"}
		}
		return nil, "", &refreshError{http.StatusInternalServerError, "load guest failed"}
	}
	return g, hash, nil
}

func (h *AuthHandler) issue(ctx context.Context, g *model.Guest) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, g.ID, g.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, errors.New("issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, errors.New("issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, g.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, errors.New("save refresh failed")
	}
	return authResp{
		Guest:   g,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}
