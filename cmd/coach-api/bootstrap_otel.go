package main

import (
	"context"

	config "github.com/NordCoder/posecoach/internal/config/coach-api"
	"github.com/NordCoder/posecoach/internal/obs"
)

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	oc := cfg.OTEL.AsOTELConfig()
	if oc.ServiceName == "" {
		oc.ServiceName = "posecoach-" + cfg.App.Name
	}
	oc.Version = cfg.App.Version
	tracing, err := obs.SetupOTel(ctx, oc)
	if err != nil {
		return nil, err
	}
	return tracing.Shutdown, nil
}
