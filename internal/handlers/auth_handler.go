package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classconnect-auth/internal/middleware"
	"classconnect-auth/internal/models"
	"classconnect-auth/internal/services"
)

type AuthHandler struct {
	credentials services.CredentialService
	log         *zap.Logger
}

func NewAuthHandler(credentials services.CredentialService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{credentials: credentials, log: log.Named("auth")}
}

// @Summary      Register
// @Description  Creates an unverified credential and the matching user profile
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.RegisterRequest  true  "Credentials and profile data"
// @Success      201   {object}  models.Credential
// @Failure      400   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cred, err := h.credentials.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, cred)
}

// @Summary      Log in
// @Description  Checks the password against the lockout guard and returns an access token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.LoginRequest  true  "Email and password"
// @Success      200   {object}  models.TokenResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse  "invalid_credentials or account_locked (with lock_until)"
// @Failure      403   {object}  ErrorResponse  "not_verified"
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.credentials.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Log in with Google
// @Description  Exchanges a Google access token for a service access token, creating the account on first use
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.GoogleLoginRequest  true  "Google access token"
// @Success      200   {object}  models.TokenResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse
// @Router       /auth/google [post]
func (h *AuthHandler) Google(c *gin.Context) {
	var req models.GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.credentials.LoginWithGoogle(c.Request.Context(), req.AccessToken)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Check token
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  MessageResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/protected [get]
func (h *AuthHandler) Protected(c *gin.Context) {
	c.JSON(http.StatusOK, MessageResponse{Message: "access granted for " + c.GetString(middleware.CtxEmail)})
}

// @Summary      Current credential
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.Credential
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	cred, err := h.credentials.GetByID(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}
