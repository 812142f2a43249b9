package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"image-library/internal/codec"
	"image-library/internal/descriptions"
	"image-library/internal/document"
	"image-library/internal/events"
	"image-library/internal/filesystem"
	"image-library/internal/geometry"
	"image-library/internal/handlers"
	"image-library/internal/logging"
	"image-library/internal/memory"
	"image-library/internal/metrics"
	"image-library/internal/middleware"
	"image-library/internal/session"
	"image-library/internal/startup"

	"github.com/gorilla/mux"
)

// sessionStats adapts the session and description index to the metrics
// collector.
type sessionStats struct {
	session *session.Session
	index   *descriptions.Index
}

// GetStats implements metrics.StatsProvider
func (s *sessionStats) GetStats() metrics.Stats {
	pixels := s.session.DocumentPixels()
	return metrics.Stats{
		DescriptionEntries: s.index.Len(),
		DocumentOpen:       pixels > 0,
		DocumentPixels:     pixels,
	}
}

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	memory.Configure(config.MemoryLimit, config.MemoryRatio)

	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		filesystem.SetObserver(metrics.NewFilesystemObserver())
	}

	imageCodec := newCodec(config)

	bus := events.NewBus()
	idx := descriptions.New()

	loadStart := time.Now()
	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	n, loadErr := idx.LoadReplacing(loadCtx, config.DescriptionsFile)
	cancel()
	startup.LogDescriptionsInit(config.DescriptionsFile, n, time.Since(loadStart), loadErr)
	stopFollowing := idx.Follow(bus)

	sess := session.New(imageCodec, bus, documentOptions(config))

	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(&sessionStats{session: sess, index: idx}, config.StatsInterval)
		collector.Start()
	}

	h := handlers.New(sess, idx, config)
	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.LogRequests)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, config, idx, loadErr, collector, stopFollowing)
		close(done)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// newCodec returns the libvips decoder when requested and available, and the
// pure Go one otherwise.
func newCodec(config *startup.Config) codec.Codec {
	base := codec.NewImagingCodec(config.JPEGQuality)
	if !config.VipsEnabled {
		startup.LogCodecInit(base.Name(), false, false)
		return base
	}

	if err := codec.InitVips(); err != nil {
		logging.Warn("libvips initialization failed: %v", err)
	}
	if !codec.IsVipsAvailable() {
		startup.LogCodecInit(base.Name(), true, false)
		return base
	}

	c := codec.NewVipsCodec(base)
	startup.LogCodecInit(c.Name(), true, true)
	return c
}

func documentOptions(config *startup.Config) document.Options {
	return document.Options{
		MinCropSize: config.MinCropSize,
		Container:   geometry.Size{Width: config.FitWidth, Height: config.FitHeight},
	}
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.Enabled = config.LogRequests

	r.Use(middleware.Compression(middleware.DefaultCompressionConfig()))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(loggingConfig))
	if config.MetricsEnabled {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	h.Register(r)
	return r
}

func handleShutdown(srv *http.Server, config *startup.Config, idx *descriptions.Index, loadErr error, collector *metrics.Collector, stopFollowing func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("HTTP server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	stopFollowing()

	startup.LogShutdownStep("Saving descriptions")
	if err := saveDescriptions(ctx, idx, config.DescriptionsFile, loadErr); err != nil {
		logging.Error("Failed to save descriptions: %v", err)
	} else {
		startup.LogShutdownStepComplete("Descriptions saved")
	}

	if config.VipsEnabled {
		codec.ShutdownVips()
	}

	startup.LogShutdownComplete()
}

// saveDescriptions writes the index back on shutdown. If the startup load
// failed, the entries on disk were never in memory, so they are merged in
// first; when the file still cannot be read it is left alone instead of
// being overwritten with this run's entries only.
func saveDescriptions(ctx context.Context, idx *descriptions.Index, file string, startupErr error) error {
	if startupErr != nil {
		n, err := idx.Load(ctx, file)
		if err != nil {
			return fmt.Errorf("not overwriting unreadable description index: %w", err)
		}
		logging.Info("Recovered %d descriptions from %s before saving", n, file)
	}
	return idx.Save(ctx, file)
}
