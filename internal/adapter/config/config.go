package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Database   *Database
	HTTP       *HTTP
	Redis      *Redis
	Gateway    *Gateway
	Settlement *Settlement
	App        *App
}

const AppModeProduction = "PROD"
const AppModeDevelop = "DEV"

type App struct {
	LogLevel string `env:"LOG_LEVEL"`
	Mode     string
}

type Database struct {
	DSN string `env:"DATABASE_URI"`
}

type HTTP struct {
	HostString string `env:"RUN_ADDRESS"`
}

type Redis struct {
	Addr string        `env:"REDIS_ADDRESS"`
	TTL  time.Duration `env:"REPLAY_CACHE_TTL" envDefault:"72h"`
}

type Gateway struct {
	DefaultMethod string `env:"DEFAULT_PAY_METHOD"`
	// ConfirmTimeout bounds the confirmation pipeline so responses
	// stay inside the gateway's redelivery window.
	ConfirmTimeout time.Duration `env:"CONFIRM_TIMEOUT"`
}

type Settlement struct {
	CommissionRate    string        `env:"COMMISSION_RATE"`
	PayoutDelayDays   int           `env:"PAYOUT_DELAY_DAYS"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL"`
}

func NewConfig() (*Config, error) {
	var db Database
	var http HTTP
	var redis Redis
	var gateway Gateway
	var settlement Settlement
	var app App

	flag.StringVar(&db.DSN, "d", "", "Database string")
	flag.StringVar(&http.HostString, "a", `localhost:8080`, "HTTP server endpoint")
	flag.StringVar(&redis.Addr, "r", "", "Redis address for the replay cache (empty disables it)")
	flag.StringVar(&gateway.DefaultMethod, "pm", `CARD`, "Payment method used when the gateway omits one")
	flag.DurationVar(&gateway.ConfirmTimeout, "ct", 5*time.Second, "Webhook confirmation pipeline timeout")
	flag.StringVar(&settlement.CommissionRate, "c", `0.10`, "Platform commission rate")
	flag.IntVar(&settlement.PayoutDelayDays, "p", 7, "Days between payment and scheduled payout")
	flag.DurationVar(&settlement.ReconcileInterval, "ri", 5*time.Minute, "Paid-but-unsettled sweep interval")
	flag.StringVar(&app.LogLevel, "l", `error`, "Log level")
	flag.StringVar(&app.Mode, "m", `DEV`, "PROD / DEV")
	flag.Parse()

	err := env.Parse(&db)
	if err != nil {
		return nil, fmt.Errorf("error parsing env database config: %w", err)
	}
	err = env.Parse(&http)
	if err != nil {
		return nil, fmt.Errorf("error parsing http config: %w", err)
	}
	err = env.Parse(&redis)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis config: %w", err)
	}
	err = env.Parse(&gateway)
	if err != nil {
		return nil, fmt.Errorf("error parsing gateway config: %w", err)
	}
	err = env.Parse(&settlement)
	if err != nil {
		return nil, fmt.Errorf("error parsing settlement config: %w", err)
	}
	err = env.Parse(&app)
	if err != nil {
		return nil, fmt.Errorf("error parsing app config: %w", err)
	}

	config := Config{
		Database:   &db,
		HTTP:       &http,
		Redis:      &redis,
		Gateway:    &gateway,
		Settlement: &settlement,
		App:        &app,
	}

	return &config, nil
}
