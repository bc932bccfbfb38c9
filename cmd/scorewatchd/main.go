package main

import (
	"flag"
	"net/http"
	"time"

	"scorewatch-backend/lib/configutil"
	"scorewatch-backend/lib/ocr"
	"scorewatch-backend/lib/sqliteutil"
	"scorewatch-backend/lib/util/serviceutil"
	"scorewatch-backend/services/monitor"
	monitordb "scorewatch-backend/services/monitor/db"
)

type PortalConfig struct {
	BaseUrl       string `json:"base_url"`
	LoginAttempts int    `json:"login_attempts"`
}

type OcrConfig struct {
	Endpoint string `json:"endpoint"`
}

type Config struct {
	Port        int    `json:"port"`
	AccessToken string `json:"access_token"`
	Database    string `json:"database"`

	Portal PortalConfig `json:"portal"`
	Ocr    OcrConfig    `json:"ocr"`

	CheckIntervalMinutes int   `json:"check_interval_minutes"`
	MaxConcurrentChecks  int64 `json:"max_concurrent_checks"`
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8444
	}

	database, err := sqliteutil.OpenDB(monitordb.Schema, cfg.Database)
	if err != nil {
		serviceutil.Fatal("open database", err)
	}

	svc := monitor.NewService(
		database,
		ocr.NewClient(cfg.Ocr.Endpoint),
		monitor.NewDingTalkNotifier(),
		monitor.Options{
			PortalBaseUrl: cfg.Portal.BaseUrl,
			LoginAttempts: cfg.Portal.LoginAttempts,
			CheckInterval: time.Minute * time.Duration(cfg.CheckIntervalMinutes),
			MaxConcurrent: cfg.MaxConcurrentChecks,
		},
	)
	svc.Start(ctx)

	api := http.NewServeMux()
	RegisterRoutes(api, svc)

	mux := http.NewServeMux()
	mux.Handle("/", serviceutil.VerifyBearerToken(cfg.AccessToken, api))

	go serviceutil.StartHttpServer(cfg.Port, mux)
	<-ctx.Done()
}
