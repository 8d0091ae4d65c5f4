package internal

import (
	"github.com/robfig/cron/v3"

	"github.com/gdbrns/go-whatsapp-group-bot/pkg/env"
	"github.com/gdbrns/go-whatsapp-group-bot/pkg/log"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-group-bot/pkg/whatsapp"
)

// Routines schedules the periodic client health check. whatsmeow exposes
// IsConnected/IsLoggedIn but performs no periodic health reporting of
// its own.
func Routines(c *cron.Cron, client *pkgWhatsApp.Client) {
	log.Print(nil).Info("Running Routine Tasks")

	if env.GetEnvBoolOrDefault("WHATSAPP_ENABLE_HEALTH_CHECK_CRON", true) {
		spec := env.GetEnvStringOrDefault("WHATSAPP_HEALTH_CHECK_CRON_SPEC", "0 */5 * * * *")
		_, err := c.AddFunc(spec, func() {
			masked := pkgWhatsApp.MaskJIDForLog(client.OwnJID().User)
			if err := client.IsClientOK(); err != nil {
				log.Print(nil).Warn("Client unhealthy: " + masked + ": " + err.Error())
				return
			}
			log.Print(nil).Info("Client healthy: " + masked)
		})
		if err != nil {
			log.Print(nil).WithError(err).Error("Failed to add health check cron job")
		}
	} else {
		log.Print(nil).Info("Health check cron disabled; relying on whatsmeow event handlers")
	}

	c.Start()
}
