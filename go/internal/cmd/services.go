package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/chylnx/hub/go/clients/paystack"
	"github.com/chylnx/hub/go/internal/gate"
	"github.com/chylnx/hub/go/internal/gateway"
	"github.com/chylnx/hub/go/internal/identity"
	"github.com/chylnx/hub/go/internal/messages"
	"github.com/chylnx/hub/go/internal/payments"
	"github.com/chylnx/hub/go/internal/presence"
	"github.com/chylnx/hub/go/internal/session"
	"github.com/chylnx/hub/go/internal/settings"
	"github.com/chylnx/hub/go/internal/timers"

	identitydb "github.com/chylnx/hub/go/internal/identity/db"
	messagesdb "github.com/chylnx/hub/go/internal/messages/db"
	paymentsdb "github.com/chylnx/hub/go/internal/payments/db"
	settingsdb "github.com/chylnx/hub/go/internal/settings/db"
	timersdb "github.com/chylnx/hub/go/internal/timers/db"
)

type Services struct {
	Identity *identity.App
	Messages *messages.App
	Payments *payments.App
	Settings *settings.App
	Timers   *timers.App
	Presence *presence.Registry
	Gate     *gate.Gate
	Session  *session.Controller
	Gateway  *gateway.Service
}

func setupServices(database *sql.DB, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Gateway

	// Identity
	identityQueries := identitydb.New(database)
	identityRepo := identity.NewRepository(identityQueries)
	identityApp := identity.NewApp(identityRepo)

	// Messages
	messageQueries := messagesdb.New(database)
	messageRepo := messages.NewRepository(messageQueries)
	messageApp := messages.NewApp(messageRepo)

	// Settings
	settingQueries := settingsdb.New(database)
	settingRepo := settings.NewRepository(settingQueries)
	settingApp := settings.NewApp(settingRepo)

	// Payments
	secretKey := os.Getenv("PAYSTACK_SECRET_KEY")
	if secretKey == "" {
		return nil, fmt.Errorf("PAYSTACK_SECRET_KEY environment variable is required")
	}
	processor := paystack.NewClient(secretKey)
	paymentQueries := paymentsdb.New(database)
	paymentRepo := payments.NewRepository(paymentQueries)
	paymentApp := payments.NewApp(paymentRepo, processor)

	// Timers
	timerQueries := timersdb.New(database)
	timerRepo := timers.NewRepository(timerQueries, database)
	timerApp := timers.NewApp(timerRepo, settingApp, clockwork.NewRealClock())

	// Presence and gate
	registry := presence.NewRegistry()
	accessGate := gate.New(paymentApp, settingApp)

	// Session controller
	sessionController := session.NewController(accessGate, paymentApp, settingApp, registry)

	// Gateway
	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.DefaultAmount = config.Payments.Amount
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		gatewayConfig.FanoutEnabled = true
		gatewayConfig.FanoutConfig.URL = natsURL
	}

	gatewayService, err := gateway.NewService(gatewayConfig, gateway.Deps{
		Registry:   registry,
		Gate:       accessGate,
		Identities: identityApp,
		Messages:   messageApp,
		Timers:     timerApp,
		Session:    sessionController,
		Settings:   settingApp,
		Payments:   paymentApp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway service: %w", err)
	}

	// Domain apps publish through the gateway's broadcaster
	timerApp.SetBroadcaster(gatewayService.Broadcaster())
	sessionController.SetBroadcaster(gatewayService.Broadcaster())

	return &Services{
		Identity: identityApp,
		Messages: messageApp,
		Payments: paymentApp,
		Settings: settingApp,
		Timers:   timerApp,
		Presence: registry,
		Gate:     accessGate,
		Session:  sessionController,
		Gateway:  gatewayService,
	}, nil
}
