package status

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-group-bot/internal/supervisor"
	"github.com/gdbrns/go-whatsapp-group-bot/pkg/router"
	"github.com/gdbrns/go-whatsapp-group-bot/pkg/whatsapp"
)

// Session is the slice of the WhatsApp client the status surface reads
// and controls.
type Session interface {
	IsConnected() bool
	IsLoggedIn() bool
	PairingQR() (string, error)
	Logout(ctx context.Context) error
}

// Handler serves the operator-facing status endpoints. The surface is
// unauthenticated and meant to be bound to an operator-local address.
type Handler struct {
	session   Session
	sup       *supervisor.Supervisor
	startedAt time.Time
}

func NewHandler(session Session, sup *supervisor.Supervisor) *Handler {
	return &Handler{
		session:   session,
		sup:       sup,
		startedAt: time.Now(),
	}
}

func (h *Handler) Index(c *fiber.Ctx) error {
	return router.ResponseSuccess(c, "Go WhatsApp Group Bot is running")
}

func (h *Handler) Health(c *fiber.Ctx) error {
	state, since := h.sup.State()
	return router.ResponseSuccessWithData(c, "Success get health status", fiber.Map{
		"state":       string(state),
		"state_since": since.UTC().Format(time.RFC3339),
		"connected":   h.session.IsConnected(),
		"logged_in":   h.session.IsLoggedIn(),
		"uptime":      time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// PairingQR serves the current first-run pairing QR code as a PNG data
// URI. Once the device is paired there is nothing to serve.
func (h *Handler) PairingQR(c *fiber.Ctx) error {
	qrImage, err := h.session.PairingQR()
	if err != nil {
		if errors.Is(err, whatsapp.ErrNoPairingQR) {
			return router.ResponseNotFound(c, "No pending pairing QR code")
		}
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccessWithData(c, "Success get pairing QR code", fiber.Map{
		"qr_image": qrImage,
	})
}

// Logout ends the WhatsApp session and wipes the stored credentials.
// The bot must be restarted and paired again by scanning a fresh QR code.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.session.Logout(c.UserContext()); err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccess(c, "Success logout device, restart and scan the QR code to pair again")
}
