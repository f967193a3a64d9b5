// Package memory implements the repository ports on process memory. It backs
// the HTTP and usecase tests; transactions run inline without isolation.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/NordCoder/posecoach/internal/domain"
	"github.com/NordCoder/posecoach/internal/domain/outbox"
	"github.com/NordCoder/posecoach/internal/domain/session"
	"github.com/NordCoder/posecoach/internal/domain/user"
	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*user.User
	sessions []storedSession
	progress []session.Progress
	outbox   []outbox.Message
	seq      int
}

type storedSession struct {
	rec session.Record
	seq int
}

func New() *Store {
	return &Store{users: make(map[uuid.UUID]*user.User)}
}

func (s *Store) Users() *UserRepo              { return &UserRepo{s: s} }
func (s *Store) RefreshSlot() *SlotRepo        { return &SlotRepo{s: s} }
func (s *Store) Sessions() *SessionRepo        { return &SessionRepo{s: s} }
func (s *Store) Progress() *ProgressRepo       { return &ProgressRepo{s: s} }
func (s *Store) Outbox() *OutboxRepo           { return &OutboxRepo{s: s} }
func (s *Store) Transactor() *InlineTransactor { return &InlineTransactor{} }

type InlineTransactor struct{}

func (InlineTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type UserRepo struct{ s *Store }

var _ user.Repo = (*UserRepo)(nil)

func (r *UserRepo) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.users {
		if x.Username == u.Username || x.Email == u.Email {
			return domain.ErrDuplicate
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) FindByIdentifier(_ context.Context, email, username string) (*user.User, error) {
	email, username = user.Normalize(email), user.Normalize(username)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var byName *user.User
	for _, u := range r.s.users {
		if email != "" && u.Email == email {
			cp := *u
			return &cp, nil
		}
		if username != "" && u.Username == username {
			byName = u
		}
	}
	if byName == nil {
		return nil, domain.ErrNotFound
	}
	cp := *byName
	return &cp, nil
}

func (r *UserRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

type SlotRepo struct{ s *Store }

var _ user.RefreshSlot = (*SlotRepo)(nil)

func (r *SlotRepo) Set(_ context.Context, id uuid.UUID, hash *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	if hash == nil {
		u.RefreshTokenHash = nil
	} else {
		h := *hash
		u.RefreshTokenHash = &h
	}
	return nil
}

func (r *SlotRepo) Swap(_ context.Context, id uuid.UUID, expected, next string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || u.RefreshTokenHash == nil || *u.RefreshTokenHash != expected {
		return false, nil
	}
	u.RefreshTokenHash = &next
	return true, nil
}

type SessionRepo struct{ s *Store }

var _ session.Repo = (*SessionRepo)(nil)

func (r *SessionRepo) Insert(_ context.Context, rec *session.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	r.s.seq++
	r.s.sessions = append(r.s.sessions, storedSession{rec: *rec, seq: r.s.seq})
	return nil
}

func (r *SessionRepo) ListRecent(_ context.Context, owner session.Owner, limit int) ([]session.Record, error) {
	out := r.list(owner, func(session.Record) bool { return true })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SessionRepo) ListSince(_ context.Context, owner session.Owner, since time.Time) ([]session.Record, error) {
	return r.list(owner, func(rec session.Record) bool { return !rec.OccurredAt.Before(since) }), nil
}

// list applies the same scoping and ordering as the SQL queries: guests only
// see owner-less rows, newest first.
func (r *SessionRepo) list(owner session.Owner, keep func(session.Record) bool) []session.Record {
	wantID, isAccount := session.OwnerID(owner)

	r.s.mu.Lock()
	matched := make([]storedSession, 0, len(r.s.sessions))
	for _, st := range r.s.sessions {
		id, ok := session.OwnerID(st.rec.Owner)
		if ok != isAccount || id != wantID || !keep(st.rec) {
			continue
		}
		matched = append(matched, st)
	}
	r.s.mu.Unlock()

	slices.SortFunc(matched, func(a, b storedSession) int {
		if c := b.rec.OccurredAt.Compare(a.rec.OccurredAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
	out := make([]session.Record, 0, len(matched))
	for _, st := range matched {
		out = append(out, st.rec)
	}
	return out
}

type ProgressRepo struct{ s *Store }

var _ session.ProgressRepo = (*ProgressRepo)(nil)

func (r *ProgressRepo) Insert(_ context.Context, p *session.Progress) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.s.progress = append(r.s.progress, *p)
	return nil
}

func (r *ProgressRepo) All() []session.Progress {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.progress)
}

type OutboxRepo struct{ s *Store }

var _ outbox.Repository = (*OutboxRepo)(nil)

func (r *OutboxRepo) Enqueue(_ context.Context, m outbox.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.outbox {
		if x.IdempotencyKey == m.IdempotencyKey {
			return nil
		}
	}
	m.Status = outbox.StatusCreated
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt
	r.s.outbox = append(r.s.outbox, m)
	return nil
}

func (r *OutboxRepo) PickBatch(_ context.Context, batch int, ttl time.Duration) ([]outbox.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	var out []outbox.Message
	for i := range r.s.outbox {
		if len(out) >= batch {
			break
		}
		m := &r.s.outbox[i]
		if m.Status == outbox.StatusCreated || (m.Status == outbox.StatusInProgress && m.UpdatedAt.Before(now.Add(-ttl))) {
			m.Status = outbox.StatusInProgress
			m.UpdatedAt = now
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *OutboxRepo) MarkSuccess(_ context.Context, keys []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.outbox {
		if slices.Contains(keys, r.s.outbox[i].IdempotencyKey) {
			r.s.outbox[i].Status = outbox.StatusSuccess
			r.s.outbox[i].UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (r *OutboxRepo) All() []outbox.Message {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.outbox)
}
