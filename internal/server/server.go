package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/peaksell/peaksell/internal/config"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

type Server struct {
	port        uint
	httpLog     bool
	store       *config.Store
	rootContext *actor.RootContext
	masterActor *actor.PID
	logger      *zap.Logger
}

func NewServer(store *config.Store, rootContext *actor.RootContext, masterActor *actor.PID, logger *zap.Logger) *http.Server {
	cfg := store.Get()
	NewServer := &Server{
		port:        cfg.Port,
		httpLog:     cfg.HttpLog,
		store:       store,
		rootContext: rootContext,
		masterActor: masterActor,
		logger:      logger,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return server
}
