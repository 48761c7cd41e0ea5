package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classconnect-auth/internal/models"
	"classconnect-auth/internal/services"
)

type VerifyHandler struct {
	verification services.VerificationService
	log          *zap.Logger
}

func NewVerifyHandler(verification services.VerificationService, log *zap.Logger) *VerifyHandler {
	return &VerifyHandler{verification: verification, log: log.Named("verify")}
}

// issue binds a NotifyRequest and runs send for the parsed channel.
func (h *VerifyHandler) issue(c *gin.Context, send func(email, to string, ch services.Channel) error, msg string) {
	var req models.NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ch, err := services.ParseChannel(req.Channel)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if err := send(req.Email, req.To, ch); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: msg})
}

// @Summary      Send verification PIN
// @Description  Issues a fresh account verification PIN. "to" defaults to the email for the email channel.
// @Tags         Verification
// @Accept       json
// @Produce      json
// @Param        body  body      models.NotifyRequest  true  "Account and delivery channel"
// @Success      200   {object}  MessageResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse  "already_verified"
// @Failure      429   {object}  ErrorResponse
// @Failure      502   {object}  ErrorResponse  "provider rejected the message"
// @Failure      503   {object}  ErrorResponse
// @Router       /auth/notify [post]
func (h *VerifyHandler) Notify(c *gin.Context) {
	ctx := c.Request.Context()
	h.issue(c, func(email, to string, ch services.Channel) error {
		return h.verification.NotifyUser(ctx, email, to, ch)
	}, "verification pin sent")
}

// @Summary      Verify account
// @Tags         Verification
// @Accept       json
// @Produce      json
// @Param        body  body      models.PinRequest  true  "Email and PIN"
// @Success      200   {object}  MessageResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      410   {object}  ErrorResponse  "pin_expired"
// @Router       /auth/verify [post]
func (h *VerifyHandler) Verify(c *gin.Context) {
	var req models.PinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.verification.VerifyPin(c.Request.Context(), req.Email, req.Pin); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "account verified"})
}

// @Summary      Send recovery PIN
// @Tags         Recovery
// @Accept       json
// @Produce      json
// @Param        body  body      models.NotifyRequest  true  "Account and delivery channel"
// @Success      200   {object}  MessageResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Failure      502   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse
// @Router       /auth/recovery [post]
func (h *VerifyHandler) Recovery(c *gin.Context) {
	ctx := c.Request.Context()
	h.issue(c, func(email, to string, ch services.Channel) error {
		return h.verification.SendRecoveryPin(ctx, email, to, ch)
	}, "recovery pin sent")
}

// @Summary      Confirm recovery PIN
// @Tags         Recovery
// @Accept       json
// @Produce      json
// @Param        body  body      models.PinRequest  true  "Email and PIN"
// @Success      200   {object}  MessageResponse
// @Failure      401   {object}  ErrorResponse  "pin_incorrect, too_many_attempts or pin_invalidated"
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      410   {object}  ErrorResponse
// @Router       /auth/recovery/confirm [post]
func (h *VerifyHandler) ConfirmRecovery(c *gin.Context) {
	var req models.PinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.verification.ConfirmRecoveryPin(c.Request.Context(), req.Email, req.Pin); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "pin confirmed, password may be changed"})
}

// @Summary      Change password
// @Description  Sets a new password after the recovery PIN was confirmed. Consumes the PIN.
// @Tags         Recovery
// @Accept       json
// @Produce      json
// @Param        body  body      models.ChangePasswordRequest  true  "Email and new password"
// @Success      200   {object}  MessageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /auth/recovery/password [post]
func (h *VerifyHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.verification.ChangePassword(c.Request.Context(), req.Email, req.NewPassword); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}
