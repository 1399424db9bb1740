package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coach-service/internal/factory"
	"coach-service/internal/handler"
	"coach-service/internal/util"
)

func main() {
	appFactory, err := factory.NewFactory()
	if err != nil {
		util.Init("development", "info", "console")
		util.Error("Failed to initialize application", util.ErrorField(err))
		os.Exit(1)
	}
	defer appFactory.Close()

	cfg := appFactory.Config()
	services := appFactory.ServiceFactory()

	pipelineHandler := handler.NewPipelineHandler(
		services.AdmissionService(),
		services.ChainService(),
		services.JobService(),
		services.DispatchService(),
		util.Get(),
	)

	router := handler.NewRouter(pipelineHandler, util.Get())

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		util.Info("Starting HTTP server",
			util.String("address", server.Addr),
			util.String("environment", cfg.Environment),
			util.Bool("tls", cfg.Server.EnableTLS),
		)

		var serveErr error
		if cfg.Server.EnableTLS {
			serveErr = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			util.Error("HTTP server failed", util.ErrorField(serveErr))
			os.Exit(1)
		}
	}()

	waitForShutdown(server)
}

// waitForShutdown blocks until SIGINT/SIGTERM, then drains the server.
func waitForShutdown(server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	util.Info("Shutdown signal received", util.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		util.Error("Server forced to shutdown", util.ErrorField(err))
		return
	}

	util.Info("Server exited gracefully")
}
