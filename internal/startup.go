package internal

import (
	"context"

	"github.com/gdbrns/go-whatsapp-group-bot/pkg/log"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-group-bot/pkg/whatsapp"
)

// Startup opens the session datastore and builds the WhatsApp client
// from the stored device, if any. Pairing and connecting happen later,
// after event handlers are registered.
func Startup(ctx context.Context) (*pkgWhatsApp.Client, error) {
	log.Print(nil).Info("Running Startup Tasks")

	datastore, err := pkgWhatsApp.InitDatastore(ctx)
	if err != nil {
		return nil, err
	}

	device, err := datastore.GetFirstDevice(ctx)
	if err != nil {
		return nil, err
	}

	if device.ID != nil {
		log.Print(nil).Info("Restoring WhatsApp session for " + pkgWhatsApp.MaskJIDForLog(device.ID.User))
	} else {
		log.Print(nil).Info("No stored WhatsApp session, QR pairing will be required")
	}

	return pkgWhatsApp.NewClient(device), nil
}
