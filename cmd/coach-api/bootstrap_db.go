package main

import (
	"context"

	config "github.com/NordCoder/posecoach/internal/config/coach-api"
	"github.com/NordCoder/posecoach/internal/domain/outbox"
	"github.com/NordCoder/posecoach/internal/domain/session"
	"github.com/NordCoder/posecoach/internal/domain/user"
	"github.com/NordCoder/posecoach/internal/repository/memory"
	pg "github.com/NordCoder/posecoach/internal/repository/postgres"
	sessionsvc "github.com/NordCoder/posecoach/internal/services/coach-api/session"
	"go.uber.org/zap"
)

// memoryDSN runs the API against process memory. Nothing survives a restart
// and no relay drains the outbox; it exists for local front-end work.
const memoryDSN = "memory"

type storage struct {
	users    user.Repo
	slot     user.RefreshSlot
	sessions session.Repo
	progress session.ProgressRepo
	outbox   outbox.Repository
	tx       sessionsvc.Transactor
	ping     func(context.Context) error
	close    func()
	// relayed is set when something drains the outbox: the session-relay
	// binary for Postgres, the inline relay in memory mode. Without it,
	// session events are not enqueued at all.
	relayed  bool
}

func memoryStorage() *storage {
	m := memory.New()
	return &storage{
		users:    m.Users(),
		slot:     m.RefreshSlot(),
		sessions: m.Sessions(),
		progress: m.Progress(),
		outbox:   m.Outbox(),
		tx:       m.Transactor(),
		ping:     func(context.Context) error { return nil },
		close:    func() {},
	}
}

func initStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.DB.DSN == memoryDSN {
		logger.Warn("using in-memory storage, data is lost on restart")
		return memoryStorage(), nil
	}

	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &storage{
		users:    pg.NewUserRepo(db),
		slot:     pg.NewRefreshTokenRepo(db),
		sessions: pg.NewSessionRepo(db),
		progress: pg.NewProgressRepo(db),
		outbox:   pg.NewOutboxRepo(db),
		tx:       pg.NewTransactor(db, logger),
		ping:     db.Ping,
		close:    db.Close,
		relayed:  true,
	}, nil
}
