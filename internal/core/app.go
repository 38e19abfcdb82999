// Package core wires the application together: config, logging, transport,
// GPIO, devices, schedules, and the command dispatch loop.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"waterbot/internal/bot"
	"waterbot/internal/config"
	"waterbot/internal/device"
	"waterbot/internal/gpio"
	"waterbot/internal/runtime/supervisor"
	"waterbot/internal/schedule"
	kit "waterbot/internal/transport"
	"waterbot/internal/transport/telegram"
	logx "waterbot/pkg/logx"
)

type App struct {
	cfg     *config.Config
	manager *config.Manager

	logSvc *logx.Service
	log    logx.Logger

	adapter *telegram.Adapter
	port    gpio.Port
	reg     *device.Registry
	ctrl    *device.Controller
	store   *schedule.Store
	engine  *schedule.Engine
	facade  *bot.Facade

	allowed    map[int64]bool
	notifyChat int64

	sup *supervisor.Supervisor
}

func NewApp(configPath string) (*App, error) {
	manager := config.NewManager(configPath)
	cfg, err := manager.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}

	// The adapter exists before the log service because the service forwards
	// selected log lines through it. Until then it logs to the console.
	boot := logx.NewConsole(cfg.Logging.Level)

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, boot)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	logSvc, log := logx.New(logxConfig(cfg.Logging), adapter)
	if cfg.Logging.Telegram.Enabled {
		logSvc.SetTelegramTarget(cfg.Logging.Telegram.ChatID)
	}
	manager.SetLogger(log.With(logx.String("component", "config")))

	reg, err := device.LoadRegistry(cfg.Devices)
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("devices: %w", err)
	}

	var port gpio.Port
	switch strings.ToLower(strings.TrimSpace(cfg.GPIO.Mode)) {
	case "", "hardware":
		port, err = gpio.NewRealPort(cfg.GPIO.Chip, reg.Pins())
		if err != nil {
			logSvc.Close()
			return nil, fmt.Errorf("gpio: %w", err)
		}
	case "emulation":
		log.Info("gpio emulation mode, no hardware will be driven")
		port = gpio.NewFakePort(log.With(logx.String("component", "gpio")))
	default:
		logSvc.Close()
		return nil, fmt.Errorf("gpio: unknown mode %q (want hardware or emulation)", cfg.GPIO.Mode)
	}

	ctrl := device.NewController(reg, port, log.With(logx.String("component", "device")))

	busyTimeout, err := config.ParseDurationField("schedule.busy_timeout", cfg.Schedule.BusyTimeout)
	if err != nil {
		_ = port.Close()
		logSvc.Close()
		return nil, err
	}
	storePath := strings.TrimSpace(cfg.Schedule.Path)
	if storePath == "" {
		storePath = "schedules.json"
	}
	store, err := schedule.Open(schedule.Config{
		Driver:      cfg.Schedule.Driver,
		Path:        storePath,
		BusyTimeout: busyTimeout,
	}, reg, log.With(logx.String("component", "schedule")))
	if err != nil {
		_ = port.Close()
		logSvc.Close()
		return nil, fmt.Errorf("schedule store: %w", err)
	}

	tick, err := config.ParseDurationOrDefault("schedule.tick", cfg.Schedule.Tick, time.Minute)
	if err != nil {
		_ = store.Close()
		_ = port.Close()
		logSvc.Close()
		return nil, err
	}
	engine := schedule.NewEngine(schedule.EngineConfig{
		Tick:     tick,
		Timezone: cfg.Schedule.Timezone,
	}, ctrl, store, log.With(logx.String("component", "engine")))

	defaultTimeout, err := config.ParseDurationOrDefault("default_timeout", cfg.DefaultTimeout, time.Hour)
	if err != nil {
		_ = store.Close()
		_ = port.Close()
		logSvc.Close()
		return nil, err
	}
	facade := bot.NewFacade(reg, ctrl, store, engine, defaultTimeout, log.With(logx.String("component", "bot")))

	allowed := make(map[int64]bool, len(cfg.Telegram.AllowedChatIDs))
	for _, id := range cfg.Telegram.AllowedChatIDs {
		allowed[id] = true
	}

	// Scheduled fires are announced to the log chat when configured,
	// otherwise to the first allowed chat.
	var notifyChat int64
	if cfg.Logging.Telegram.Enabled && cfg.Logging.Telegram.ChatID != 0 {
		notifyChat = cfg.Logging.Telegram.ChatID
	} else if len(cfg.Telegram.AllowedChatIDs) > 0 {
		notifyChat = cfg.Telegram.AllowedChatIDs[0]
	}

	a := &App{
		cfg:        cfg,
		manager:    manager,
		logSvc:     logSvc,
		log:        log,
		adapter:    adapter,
		port:       port,
		reg:        reg,
		ctrl:       ctrl,
		store:      store,
		engine:     engine,
		facade:     facade,
		allowed:    allowed,
		notifyChat: notifyChat,
	}
	if a.notifyChat != 0 {
		engine.SetNotifier(a.notifySchedule)
	}
	return a, nil
}

func logxConfig(lc config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    lc.Telegram.Enabled,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

func (a *App) notifySchedule(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := a.adapter.SendText(ctx, kit.ChatTarget{ChatID: a.notifyChat}, text, nil); err != nil {
		a.log.Warn("schedule notification failed", logx.Err(err))
	}
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	updates := make(chan kit.Message, 64)
	if err := a.adapter.Start(a.sup.Context(), updates); err != nil {
		return fmt.Errorf("start telegram: %w", err)
	}

	if a.cfg.Schedule.Enabled {
		a.engine.Start(a.sup.Context())
	} else {
		a.log.Info("schedule engine disabled")
	}

	a.sup.Go("config.watch", a.manager.Watch)
	cfgUpdates := a.manager.Subscribe(1)
	a.sup.Go0("config.apply", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case cfg := <-cfgUpdates:
				if cfg == nil {
					continue
				}
				// Only logging is applied live; the rest needs a restart.
				a.logSvc.Apply(logxConfig(cfg.Logging))
				if cfg.Logging.Telegram.Enabled {
					a.logSvc.SetTelegramTarget(cfg.Logging.Telegram.ChatID)
				} else {
					a.logSvc.SetTelegramTarget(0)
				}
			}
		}
	})

	a.sup.Go0("dispatch", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-updates:
				a.handle(ctx, msg)
			}
		}
	})

	a.log.Info("started",
		logx.Int("devices", len(a.reg.Names())),
		logx.Bool("schedule", a.cfg.Schedule.Enabled))
	return nil
}

func (a *App) handle(ctx context.Context, msg kit.Message) {
	if len(a.allowed) > 0 && !a.allowed[msg.ChatID] {
		a.log.Warn("message from disallowed chat",
			logx.Int64("chat_id", msg.ChatID),
			logx.String("from", msg.FromUsername))
		return
	}

	action := bot.Parse(msg.Text)
	res := a.facade.Execute(ctx, action)
	if !res.OK {
		a.log.Debug("command failed",
			logx.String("text", msg.Text),
			logx.String("reply", res.Text))
	}

	sctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if _, err := a.adapter.SendText(sctx, kit.ChatTarget{ChatID: msg.ChatID}, res.Text, nil); err != nil {
		a.log.Warn("reply failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
	}
}

// Wait blocks until the supervised goroutines stop or ctx is cancelled.
func (a *App) Wait(ctx context.Context) error {
	if a.sup == nil {
		return errors.New("not started")
	}
	err := a.sup.Wait(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop shuts everything down in dependency order: no new commands, no more
// scheduled fires, pending timed reverts cancelled, outputs driven safe.
func (a *App) Stop(ctx context.Context) {
	a.engine.Stop(ctx)
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("telegram stop", logx.Err(err))
	}
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			a.log.Warn("supervisor stop", logx.Err(err))
		}
	}
	a.ctrl.CancelTimers()
	if err := a.port.Close(); err != nil {
		a.log.Warn("gpio close", logx.Err(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("schedule store close", logx.Err(err))
	}
	a.log.Info("stopped")
	a.logSvc.Close()
}
