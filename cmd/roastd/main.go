package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/roastr-ai/roast-engine/internal/approval"
	"github.com/roastr-ai/roast-engine/internal/config"
	"github.com/roastr-ai/roast-engine/internal/generation"
	"github.com/roastr-ai/roast-engine/internal/httpapi"
	"github.com/roastr-ai/roast-engine/internal/logging"
	"github.com/roastr-ai/roast-engine/internal/provider"
	"github.com/roastr-ai/roast-engine/internal/queue"
	"github.com/roastr-ai/roast-engine/internal/review"
	"github.com/roastr-ai/roast-engine/internal/store"
	"github.com/roastr-ai/roast-engine/internal/toxicity"
	"github.com/roastr-ai/roast-engine/internal/transparency"
	"github.com/roastr-ai/roast-engine/internal/usage"
)

// #region main
func main() {
	configPath := flag.String("config", os.Getenv("ROAST_CONFIG"), "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	log := logging.Component(logger, "roastd")
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize stores over one database
	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer st.Close()

	ledger, err := usage.NewLedger(st.DB(), cfg.Limits(), logging.Component(logger, "usage"))
	if err != nil {
		log.WithError(err).Fatal("init usage ledger")
	}
	audit, err := logging.NewAuditLog(st.DB())
	if err != nil {
		log.WithError(err).Fatal("init audit log")
	}
	jobs, err := queue.NewDBQueue(st.DB(), logging.Component(logger, "queue"))
	if err != nil {
		log.WithError(err).Fatal("init delivery queue")
	}
	disclaimers, err := transparency.NewService(st.DB(), transparency.DefaultConfig(), logging.Component(logger, "transparency"))
	if err != nil {
		log.WithError(err).Fatal("init transparency")
	}

	// Provider routing
	table, err := cfg.RouteTable()
	if err != nil {
		log.WithError(err).Fatal("build route table")
	}
	factory := provider.NewFactory(table, cfg.Dialer(), cfg.Offline(), logging.Component(logger, "provider"))

	gen := generation.NewGenerator(generation.Deps{
		Chats:      generation.FactorySource{Factory: factory},
		Plans:      cfg.PlanSource(),
		Disclaimer: disclaimers,
		Reviews:    audit,
	}, generation.Options{
		RQCEnabled:  cfg.EnableRQC,
		DefaultMode: cfg.DefaultMode,
		Review:      review.DefaultConfig(),
	}, logging.Component(logger, "generation"))

	svc := approval.NewService(approval.Deps{
		Store:     st,
		Credits:   ledger,
		Generator: gen,
		Queue:     jobs,
		Audit:     audit,
	}, cfg.MaxVariantsPerRoast, logging.Component(logger, "approval"))

	var scorer httpapi.Scorer
	if cfg.ToxicityAddr != "" {
		tox, err := toxicity.NewClient(cfg.ToxicityAddr, toxicity.DefaultTimeout, logging.Component(logger, "toxicity"))
		if err != nil {
			log.WithError(err).Fatal("connect toxicity scorer")
		}
		defer tox.Close()
		scorer = tox
	}

	handler := httpapi.NewHandler(svc, scorer, table, st.DB(), logging.Component(logger, "http"))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithFields(logrus.Fields{
			"event":   "server_started",
			"addr":    cfg.Addr,
			"db":      cfg.DBPath,
			"offline": cfg.Offline(),
			"rqc":     cfg.EnableRQC,
		}).Info("roastd ready")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
	log.WithField("event", "server_stopped").Info("roastd stopped")
}

// #endregion main
