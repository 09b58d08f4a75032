// microservice-a-labeled answers GET / with
// "<id>. Response from Microservice B: <peer body>".
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

	err := app.Run(ctx, config.Defaults{
		ServiceID:   "Microservice-a v2",
		RelayFormat: "labeled",
	})
	if err != nil {
		logging.GetLogger().Fatal("failed_to_start_relay", zap.Error(err))
	}
	logging.GetLogger().Info("shutting_down")
}
