package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aluiziolira/sheethook/archive"
	"github.com/aluiziolira/sheethook/config"
	"github.com/aluiziolira/sheethook/models"
	"github.com/aluiziolira/sheethook/notifier"
	"github.com/aluiziolira/sheethook/pipeline"
	"github.com/aluiziolira/sheethook/processor"
	"github.com/aluiziolira/sheethook/service"
	"github.com/aluiziolira/sheethook/sheet"
	"github.com/aluiziolira/sheethook/watch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var errNoWebhook = errors.New("webhook URL is not configured")

// offlineSender stands in for the notifier in commands that only touch the
// workbook.
type offlineSender struct{}

func (offlineSender) Notify(context.Context, models.Notification) error {
	return errNoWebhook
}

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	store    *sheet.Store
	notifier *notifier.Notifier
	pipe     *pipeline.Pipeline
	svc      *service.Service
}

func newApp(cfg *config.Config, online bool) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &app{cfg: cfg, registry: registry}

	var sender processor.Sender = offlineSender{}
	if online {
		n, err := notifier.New(cfg, notifier.NewMetrics(registry))
		if err != nil {
			return nil, err
		}
		a.notifier = n
		sender = n
	}

	var detector *watch.Detector
	if cfg.Watch {
		d, err := watch.NewDetector(cfg.WatchCacheSize)
		if err != nil {
			return nil, err
		}
		detector = d
	}

	a.store = sheet.NewFileStore(cfg.WorkbookPath, cfg.SheetName)
	a.pipe = pipeline.New(64)
	a.pipe.Start()

	a.svc = service.New(
		cfg,
		a.store,
		a.pipe,
		processor.New(cfg, sender, processor.NewMetrics(registry)),
		archive.NewSweeper(cfg, registry),
		detector,
	)
	return a, nil
}

func (a *app) close() {
	if err := a.pipe.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
	}
}
