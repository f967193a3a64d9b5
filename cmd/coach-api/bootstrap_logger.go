package main

import (
	config "github.com/NordCoder/posecoach/internal/config/coach-api"
	"github.com/NordCoder/posecoach/internal/obs"
	"go.uber.org/zap"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
}
