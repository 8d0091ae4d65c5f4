package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/gofiber/fiber/v2"
	fiberRecover "github.com/gofiber/fiber/v2/middleware/recover"

	"golang.org/x/time/rate"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-group-bot/pkg/env"
	"github.com/gdbrns/go-whatsapp-group-bot/pkg/log"
	"github.com/gdbrns/go-whatsapp-group-bot/pkg/router"

	"github.com/gdbrns/go-whatsapp-group-bot/internal"
	"github.com/gdbrns/go-whatsapp-group-bot/internal/bot"
	"github.com/gdbrns/go-whatsapp-group-bot/internal/supervisor"
)

func main() {
	ctx := context.Background()

	// Intialize Cron
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
	), cron.WithSeconds())

	// Open Datastore and Restore Session
	client, err := internal.Startup(ctx)
	if err != nil {
		log.Print(nil).WithError(err).Fatal("Failed to initialize WhatsApp client")
	}

	// Command Dispatcher
	dispatcher, err := bot.NewDispatcher(client, bot.DispatcherConfig{
		CommandPrefix: env.GetEnvStringOrDefault("BOT_COMMAND_PREFIX", bot.DefaultCommandPrefix),
		BatchSize:     env.GetEnvIntOrDefault("BOT_BATCH_SIZE", bot.DefaultBatchSize),
		SendRate:      rate.Limit(env.GetEnvIntOrDefault("BOT_SEND_RATE", 1)),
	})
	if err != nil {
		log.Print(nil).WithError(err).Fatal("Invalid bot configuration")
	}

	// Membership-Change Notifier
	notifier := bot.NewNotifier(client)

	// Connection Supervisor
	sup := supervisor.New(supervisor.Policy{
		Retries:     env.GetEnvIntOrDefault("BOT_RECONNECT_RETRIES", 10),
		BackoffBase: env.GetEnvDurationOrDefault("BOT_RECONNECT_BACKOFF_BASE", 2*time.Second),
		BackoffMax:  env.GetEnvDurationOrDefault("BOT_RECONNECT_BACKOFF_MAX", 30*time.Second),
		JitterMax:   env.GetEnvDurationOrDefault("BOT_RECONNECT_JITTER_MAX", 500*time.Millisecond),
	}, client.Reconnect)

	client.AddEventHandler(sup.HandleEvent)
	client.AddEventHandler(func(evt interface{}) {
		defer func() {
			if r := recover(); r != nil {
				log.Print(nil).Error(fmt.Sprintf("Recovered from panic in event handler: %v", r))
			}
		}()
		switch e := evt.(type) {
		case *events.Message:
			dispatcher.HandleMessage(ctx, e)
		case *events.GroupInfo:
			notifier.HandleGroupInfo(ctx, e)
		}
	})

	// Status Server
	var app *fiber.App
	if env.GetEnvBoolOrDefault("STATUS_SERVER_ENABLED", true) {
		app = fiber.New(fiber.Config{
			ErrorHandler:          router.HttpErrorHandler,
			DisableStartupMessage: true,
		})
		app.Use(fiberRecover.New())
		internal.Routes(app, client, sup)

		address := env.GetEnvStringOrDefault("SERVER_ADDRESS", "0.0.0.0")
		port := env.GetEnvStringOrDefault("SERVER_PORT", "7001")
		go func() {
			if err := app.Listen(address + ":" + port); err != nil {
				log.Print(nil).Fatal(err.Error())
			}
		}()
	}

	// Connect, pairing on first run. Handlers must already be registered
	// so the first Connected event reaches the supervisor.
	if err := client.Login(ctx); err != nil {
		log.Print(nil).WithError(err).Fatal("Failed to log in to WhatsApp")
	}

	// Running Routines Tasks
	internal.Routines(c, client)

	// Watch for Shutdown Signal
	sigShutdown := make(chan os.Signal, 1)
	signal.Notify(sigShutdown, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-sigShutdown

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if app != nil {
		if err := app.ShutdownWithContext(ctxShutdown); err != nil {
			log.Print(nil).Error(err.Error())
		}
	}

	c.Stop()
	client.Disconnect()
}
