// Package bot assembles the Telegram transport around the conversation
// engine: registry wiring, routing, and event application.
package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/waygroup/numbot/bot/engine"
	"github.com/waygroup/numbot/bot/session"
	"github.com/waygroup/numbot/bot/ui"
	"github.com/waygroup/numbot/core/buildinfo"
	coreconfig "github.com/waygroup/numbot/core/config"
	coretelegram "github.com/waygroup/numbot/core/telegram"
	"github.com/waygroup/numbot/core/telegram/callbacks"
	"github.com/waygroup/numbot/core/telegram/commands"
	tghelpers "github.com/waygroup/numbot/core/telegram/helpers"
	"github.com/waygroup/numbot/core/telegram/router"
	tgsender "github.com/waygroup/numbot/core/telegram/sender"
	"github.com/waygroup/numbot/services/auth"
	"github.com/waygroup/numbot/services/ledger"
	"github.com/waygroup/numbot/services/numbers"
	"github.com/waygroup/numbot/services/telephony"

	tele "gopkg.in/telebot.v4"
)

var countryNames = map[string]string{
	"CA": "Canada",
	"US": "United States",
	"GB": "United Kingdom",
}

// App is the assembled bot: engine plus transport wiring.
type App struct {
	cfg    *coreconfig.Config
	store  *session.Store
	engine *engine.Engine

	startedAt  time.Time
	dispatcher atomic.Pointer[tgsender.Dispatcher]
}

// CoreConfig implements the runner's ConfigCarrier.
func (a *App) CoreConfig() *coreconfig.Config {
	return a.cfg
}

// New builds the app from configuration and an optional ledger database.
func New(cfg *coreconfig.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config provided")
	}

	store := session.NewStore()
	factory := telephony.NewTwilioFactory(cfg.Twilio.RequestsPerSecond)
	gate := auth.NewGate(cfg.Auth.AllowlistPath, factory)
	manager := numbers.NewManager(store, ledger.New(db), numbers.Options{
		Country:     cfg.Twilio.Country,
		SearchLimit: cfg.Twilio.SearchLimit,
	})

	countryName := countryNames[cfg.Twilio.Country]
	eng := engine.New(store, gate, manager, factory, engine.Options{
		ShopURL:     cfg.Contact.ShopURL,
		Mentors:     cfg.Contact.Mentors,
		CountryName: countryName,
	})

	return &App{
		cfg:       cfg,
		store:     store,
		engine:    eng,
		startedAt: time.Now(),
	}, nil
}

// TelegramRunOptions wires the registry, routes, and middleware chain.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Show the login keyboard",
	})
	reg.RegisterCommand("/buy", commands.Command{
		Handler:     a.handleBuyCommand,
		Description: "Search numbers by area code",
	})
	reg.RegisterCommand("/health", commands.Command{
		Handler:     a.handleHealth,
		Description: "Runtime status",
		AdminOnly:   true,
		Hidden:      true,
	})

	for _, key := range []string{
		ui.CallbackLogin,
		ui.CallbackBuyMenu,
		ui.CallbackBuy,
		ui.CallbackManualBuy,
		ui.CallbackInbox,
		ui.CallbackDelete,
		ui.CallbackLogout,
	} {
		if err := reg.RegisterCallback(key, a.handleCallback); err != nil {
			return coretelegram.RunOptions{}, err
		}
	}

	reg.SetTextFallback(a.handleText)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(a, reg, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.dispatcher.Store(rt.Dispatcher)
			return nil
		},
	}, nil
}

// InProgress implements router.Conversation.
func (a *App) InProgress(userID int64) bool {
	return a.engine.InProgress(userID)
}

// HandleStep implements router.Conversation; the engine classifies the
// text itself, so dialog steps and plain messages share one path.
func (a *App) HandleStep(c tele.Context) error {
	return a.handleText(c)
}

func (a *App) withLock(c tele.Context, fn func(ctx context.Context, userID int64) []engine.Event) error {
	userID := c.Sender().ID
	unlock := a.store.Acquire(userID)
	defer unlock()

	ctx := tghelpers.BuildContext(c)
	events := fn(ctx, userID)
	return applyEvents(c, a.store, userID, events)
}

func (a *App) handleStart(c tele.Context) error {
	return a.withLock(c, func(ctx context.Context, userID int64) []engine.Event {
		return a.engine.Start(ctx, userID)
	})
}

func (a *App) handleText(c tele.Context) error {
	return a.withLock(c, func(ctx context.Context, userID int64) []engine.Event {
		return a.engine.HandleText(ctx, userID, c.Text())
	})
}

func (a *App) handleBuyCommand(c tele.Context) error {
	return a.withLock(c, func(ctx context.Context, userID int64) []engine.Event {
		return a.engine.BuyCommand(ctx, userID, c.Args())
	})
}

func (a *App) handleCallback(c tele.Context) error {
	key, payload := callbacks.ParseCallbackData(c.Callback())
	return a.withLock(c, func(ctx context.Context, userID int64) []engine.Event {
		return a.engine.HandleCallback(ctx, userID, key, payload)
	})
}

func (a *App) handleHealth(c tele.Context) error {
	uptime := time.Since(a.startedAt).Round(time.Second)
	var sendErrs uint64
	if d := a.dispatcher.Load(); d != nil {
		sendErrs = d.ErrorCount()
	}
	return c.Send(fmt.Sprintf("numbot %s\nuptime: %s\nsend errors: %d",
		buildinfo.Version, uptime, sendErrs))
}
