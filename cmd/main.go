package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Magraj71/NewMeetSUM/config"
	"github.com/Magraj71/NewMeetSUM/internal/service"
	"github.com/Magraj71/NewMeetSUM/internal/store"
	httpx "github.com/Magraj71/NewMeetSUM/internal/transport/http"
	"github.com/Magraj71/NewMeetSUM/internal/transport/ws"
	"github.com/Magraj71/NewMeetSUM/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting meetsum",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- in-memory state ---
	st := store.New(store.Limits{
		SignalRetention: cfg.SignalRetention(),
		SignalQueueMax:  cfg.Rooms.SignalQueueMax,
		ChatCap:         cfg.Rooms.ChatCap,
		ChatWindow:      cfg.ChatWindow(),
	})

	// --- services ---
	memberSvc := service.NewMemberService(st.Registry)
	signalSvc := service.NewSignalService(st.Mailbox)
	chatSvc := service.NewChatService(st.Chat)

	// --- WS hub & server ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, memberSvc, signalSvc, chatSvc)

	// --- HTTP ---
	handler := httpx.NewHandler(memberSvc, signalSvc, chatSvc)
	router := httpx.NewRouter(handler, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
