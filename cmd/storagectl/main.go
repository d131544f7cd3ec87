package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openoj/judgehub/cmd/storagectl/cmds"
	"github.com/openoj/judgehub/internal/logger"
)

func main() {
	logger.LogLevel.Set(slog.LevelInfo)
	logger.InitSlog()

	ctx, cancelSignal := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer cancelSignal()

	if err := cmds.Execute(ctx); err != nil {
		logger.Logger.Error("error executing subcommands", "error", err)
		os.Exit(1)
	}
}
