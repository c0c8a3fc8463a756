package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/faultdesk/internal/config"
	"github.com/iliyamo/faultdesk/internal/logging"
	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/repository"
	"github.com/iliyamo/faultdesk/internal/utils"
)

// AuthHandler bundles dependencies for auth and user endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	Username    string `json:"username" validate:"required,max=100"`
	DisplayName string `json:"display_name" validate:"max=100"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	Role        string `json:"role" validate:"required,oneof=admin technician viewer"`
}
type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func userOf(u model.User) userPart {
	return userPart{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Role: u.Role}
}

var errInvalidLogin = echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
var errInvalidRefresh = echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")

// issue creates a fresh access/refresh pair for u and stores the refresh hash.
func (h *AuthHandler) issue(c echo.Context, u model.User) (authResp, error) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Username, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, echo.NewHTTPError(http.StatusInternalServerError, "issue access failed").SetInternal(err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, echo.NewHTTPError(http.StatusInternalServerError, "issue refresh failed").SetInternal(err)
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, echo.NewHTTPError(http.StatusInternalServerError, "save refresh failed").SetInternal(err)
	}
	return authResp{
		User:    userOf(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errInvalidLogin
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed").SetInternal(err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return errInvalidLogin
	}

	resp, err := h.issue(c, u)
	if err != nil {
		return err
	}
	logging.Info(ctx, "login", slog.Int64("user_id", u.ID), slog.String("role", u.Role))
	return c.JSON(http.StatusOK, resp)
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := requestCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errInvalidRefresh
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "validate refresh failed").SetInternal(err)
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "revoke refresh failed").SetInternal(err)
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errInvalidRefresh
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "load user failed").SetInternal(err)
	}
	if !u.IsActive {
		return errInvalidRefresh
	}

	resp, err := h.issue(c, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the given refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errInvalidRefresh
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "logout failed").SetInternal(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	p := principal(c)
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.ErrUnauthorized
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "load user failed").SetInternal(err)
	}
	return c.JSON(http.StatusOK, userOf(u))
}

// Register: POST /v1/users, admin only. Duplicate usernames are a 409.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || strings.Contains(req.Username, ",") {
		return echo.NewHTTPError(http.StatusBadRequest, "username must be non-empty and contain no commas")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.Create(ctx, req.Username, strings.TrimSpace(req.DisplayName), req.Password, req.Role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return echo.NewHTTPError(http.StatusConflict, "username already exists")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "create user failed").SetInternal(err)
	}
	logging.Info(ctx, "user registered", slog.Int64("new_user_id", u.ID), slog.String("new_role", u.Role))
	return c.JSON(http.StatusCreated, userOf(u))
}
