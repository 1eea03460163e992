// hass-watch connects to a Home Assistant instance, watches the entities
// named on the command line, and prints every state change. With --mock it
// runs entirely from fixtures, demonstrating the client without a hub.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/dlwiest/hass-go/internal/config"
	"github.com/dlwiest/hass-go/internal/ha"
	"github.com/dlwiest/hass-go/internal/haerr"
	"github.com/dlwiest/hass-go/internal/metric"
	"github.com/dlwiest/hass-go/internal/session"
	"github.com/dlwiest/hass-go/internal/store"
)

var (
	stateOn          = color.New(color.FgGreen)
	stateOff         = color.New(color.FgRed)
	stateUnavailable = color.New(color.FgYellow)
	statusLine       = color.New(color.FgCyan, color.Bold)
)

func main() {
	cmd := &cli.Command{
		Name:  "hass-watch",
		Usage: "Watch Home Assistant entity state from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "hub WebSocket endpoint (ws://host:8123/api/websocket)",
				Sources: cli.EnvVars("HA_URL"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "long-lived access token",
				Sources: cli.EnvVars("HA_TOKEN"),
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a YAML config file",
			},
			&cli.StringSliceFlag{
				Name:    "entity",
				Aliases: []string{"e"},
				Usage:   "entity id to watch (repeatable)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve Prometheus metrics on this address",
			},
			&cli.BoolFlag{
				Name:  "mock",
				Usage: "run from fixtures with no network activity",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	// No .env file is fine; plain environment variables still apply.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := buildConfig(c, logger)
	if err != nil {
		return err
	}

	metrics := metric.New()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	cfg.Metrics = metrics

	if addr := c.String("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			logger.Info("Serving metrics", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	sess, err := session.New(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Connect(ctx); err != nil {
		if haerr.IsAuth(err) {
			return fmt.Errorf("authentication failed: %w", err)
		}
		// Recoverable; the supervisor keeps retrying in the background.
		logger.Warn("Initial connection failed, retrying", zap.Error(err))
	}

	unsubStatus := sess.WatchStatus(func(st session.Status) {
		statusLine.Printf("** connection %s\n", st)
	})
	defer unsubStatus()

	entities := c.StringSlice("entity")
	if len(entities) == 0 && cfg.MockMode {
		for _, fixture := range cfg.MockStates {
			entities = append(entities, fixture.EntityID)
		}
	}
	if len(entities) == 0 {
		return fmt.Errorf("no entities to watch; pass --entity at least once")
	}

	for _, id := range entities {
		printState(sess.Store().Get(id))
		unsub := sess.Store().Watch(id, printState)
		defer unsub()
	}

	if cfg.MockMode {
		go runMockActivity(ctx, sess, entities)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Watching entities", zap.Strings("entities", entities))
	<-sigChan

	logger.Info("Shutting down")
	return nil
}

func buildConfig(c *cli.Command, logger *zap.Logger) (session.Config, error) {
	var cfg session.Config
	if path := c.String("config"); path != "" {
		f, err := config.Load(path, logger)
		if err != nil {
			return session.Config{}, err
		}
		if cfg, err = f.SessionConfig(logger); err != nil {
			return session.Config{}, err
		}
	}

	if v := c.String("url"); v != "" {
		cfg.URL = v
	}
	if v := c.String("token"); v != "" {
		cfg.Token = v
	}
	if c.Bool("mock") {
		cfg.MockMode = true
	}
	if cfg.MockMode && len(cfg.MockStates) == 0 {
		cfg.MockStates = defaultFixtures()
	}
	cfg.Logger = logger
	return cfg, nil
}

func defaultFixtures() []ha.State {
	now := time.Now()
	return []ha.State{
		{
			EntityID:    "light.kitchen",
			State:       "on",
			Attributes:  map[string]any{"brightness": float64(128), "friendly_name": "Kitchen"},
			LastChanged: now,
			LastUpdated: now,
		},
		{
			EntityID:    "sensor.living_room_temperature",
			State:       "21.5",
			Attributes:  map[string]any{"unit_of_measurement": "°C"},
			LastChanged: now,
			LastUpdated: now,
		},
		{
			EntityID:    "cover.garage_door",
			State:       "closed",
			Attributes:  map[string]any{"supported_features": float64(15)},
			LastChanged: now,
			LastUpdated: now,
		},
	}
}

// runMockActivity toggles the first watched entity periodically so the
// event path is visible in mock demos.
func runMockActivity(ctx context.Context, sess *session.Session, entities []string) {
	mock := sess.MockTransport()
	if mock == nil || len(entities) == 0 {
		return
	}

	id := entities[0]
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	on := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			on = !on
			next := "off"
			if on {
				next = "on"
			}
			mock.EmitStateChange(id, next, sess.Store().Get(id).Attributes)
		}
	}
}

func printState(rec ha.State) {
	c := stateOff
	switch {
	case store.IsUnavailable(rec):
		c = stateUnavailable
	case rec.State == "on" || rec.State == "open" || rec.State == "home":
		c = stateOn
	}
	fmt.Printf("%s  ", time.Now().Format("15:04:05"))
	c.Printf("%-40s %s\n", rec.EntityID, rec.State)
}
