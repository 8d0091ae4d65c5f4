package internal

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-group-bot/internal/status"
	"github.com/gdbrns/go-whatsapp-group-bot/internal/supervisor"
	"github.com/gdbrns/go-whatsapp-group-bot/pkg/whatsapp"
)

func Routes(app *fiber.App, client *whatsapp.Client, sup *supervisor.Supervisor) {
	handler := status.NewHandler(client, sup)

	app.Get("/", handler.Index)
	app.Get("/health", handler.Health)
	app.Get("/qr", handler.PairingQR)
	app.Post("/logout", handler.Logout)
}
