// microservice-b is the peer the relays call.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/0xReLogic/Tandem/internal/app"
	"github.com/0xReLogic/Tandem/internal/config"
	"github.com/0xReLogic/Tandem/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := app.RunBackend(ctx, config.Defaults{
		ServiceID:   "Microservice B",
		RelayFormat: "arrow",
		Greeting:    "Hello from Microservice B",
	})
	if err != nil {
		logging.GetLogger().Fatal("failed_to_start_backend", zap.Error(err))
	}
	logging.GetLogger().Info("shutting_down")
}
