package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	authcore "github.com/NordCoder/posecoach/internal/auth"
	"github.com/NordCoder/posecoach/internal/domain"
	domainauth "github.com/NordCoder/posecoach/internal/domain/auth"
	"github.com/NordCoder/posecoach/internal/domain/user"
	"github.com/NordCoder/posecoach/internal/security"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const minPasswordLen = 8

var (
	ErrRegisterFields     = fmt.Errorf("username, email, fullName, password are required: %w", domain.ErrValidation)
	ErrLoginFields        = fmt.Errorf("username or email and password are required: %w", domain.ErrValidation)
	ErrInvalidEmail       = fmt.Errorf("email is not valid: %w", domain.ErrValidation)
	ErrWeakPassword       = fmt.Errorf("password must be at least 8 characters: %w", domain.ErrValidation)
	ErrUserExists         = fmt.Errorf("user with same username or email exists: %w", domain.ErrDuplicate)
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrAuthentication)
	ErrNoRefreshToken     = fmt.Errorf("no refresh token: %w", domain.ErrAuthentication)
)

var tokenRotations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "posecoach_token_rotations_total",
	Help: "Refresh token rotations by outcome.",
}, []string{"result"})

type Config struct {
	BcryptCost int
	Now        func() time.Time
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

// Session is an account together with a freshly minted token pair.
type Session struct {
	User   *user.User
	Tokens domainauth.TokenPair
}

type Usecase struct {
	users  user.Repo
	slot   user.RefreshSlot
	tokens domainauth.Tokens
	clean  *security.TextSanitizer
	cfg    Config
}

func NewUseCase(users user.Repo, slot user.RefreshSlot, tokens domainauth.Tokens, cfg Config) *Usecase {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Usecase{users: users, slot: slot, tokens: tokens, clean: security.NewTextSanitizer(), cfg: cfg}
}

func IdentityOf(u *user.User) domainauth.Identity {
	return domainauth.Identity{ID: u.ID, Username: u.Username, Email: u.Email, FullName: u.FullName}
}

func (u *Usecase) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	username := user.Normalize(in.Username)
	email := user.Normalize(in.Email)
	fullName := u.clean.Clean(in.FullName)
	if username == "" || email == "" || fullName == "" || in.Password == "" {
		return nil, ErrRegisterFields
	}
	if !u.tokens.Ready() {
		return nil, fmt.Errorf("register: %w", domain.ErrConfiguration)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if len(in.Password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	exists, err := u.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := authcore.HashPassword(in.Password, u.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}
	avatar := strings.TrimSpace(in.Avatar)
	if avatar == "" {
		avatar = user.DefaultAvatar
	}
	now := u.cfg.Now()
	acc := &user.User{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		Avatar:       avatar,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.users.Create(ctx, acc); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("register: %w", err)
	}
	return u.startSession(ctx, acc)
}

// Login never tells an unknown account apart from a wrong password, and both
// paths pay for one bcrypt comparison.
func (u *Usecase) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := user.Normalize(in.Email)
	username := user.Normalize(in.Username)
	if in.Password == "" || (email == "" && username == "") {
		return nil, ErrLoginFields
	}
	if !u.tokens.Ready() {
		return nil, fmt.Errorf("login: %w", domain.ErrConfiguration)
	}

	acc, err := u.users.FindByIdentifier(ctx, email, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			authcore.DummyCompare(in.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if !authcore.CheckPassword(acc.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}
	return u.startSession(ctx, acc)
}

// Refresh rotates the single refresh slot. Only the token currently stored in
// the slot is accepted, and of two concurrent rotations with the same token
// exactly one succeeds.
func (u *Usecase) Refresh(ctx context.Context, presented string) (*Session, error) {
	s, result, err := u.rotate(ctx, presented)
	tokenRotations.WithLabelValues(result).Inc()
	return s, err
}

func (u *Usecase) rotate(ctx context.Context, presented string) (*Session, string, error) {
	if presented == "" {
		return nil, "missing", ErrNoRefreshToken
	}
	claims, err := u.tokens.Verify(presented, domainauth.KindRefresh)
	if err != nil {
		if errors.Is(err, domainauth.ErrTokenExpired) {
			return nil, "expired", err
		}
		if errors.Is(err, domain.ErrConfiguration) {
			return nil, "error", fmt.Errorf("refresh: %w", err)
		}
		return nil, "invalid", err
	}

	acc, err := u.users.GetByID(ctx, claims.Identity.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "invalid", domainauth.ErrTokenInvalid
		}
		return nil, "error", fmt.Errorf("refresh: %w", err)
	}
	current := authcore.HashToken(presented)
	if acc.RefreshTokenHash == nil || !authcore.EqualHash(*acc.RefreshTokenHash, current) {
		return nil, "mismatch", domainauth.ErrTokenMismatch
	}

	pair, err := u.mint(acc)
	if err != nil {
		return nil, "error", fmt.Errorf("refresh: %w", err)
	}
	ok, err := u.slot.Swap(ctx, acc.ID, current, authcore.HashToken(pair.Refresh))
	if err != nil {
		return nil, "error", fmt.Errorf("refresh: %w", err)
	}
	if !ok {
		return nil, "mismatch", domainauth.ErrTokenMismatch
	}
	return &Session{User: acc, Tokens: pair}, "ok", nil
}

// Logout empties the slot of the given account.
func (u *Usecase) Logout(ctx context.Context, id uuid.UUID) error {
	if err := u.slot.Set(ctx, id, nil); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// LogoutRefresh empties the slot of the account a refresh token was issued
// to. It covers logouts whose access token has already expired.
func (u *Usecase) LogoutRefresh(ctx context.Context, presented string) (uuid.UUID, error) {
	if presented == "" {
		return uuid.Nil, ErrNoRefreshToken
	}
	claims, err := u.tokens.Verify(presented, domainauth.KindRefresh)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.Identity.ID, u.Logout(ctx, claims.Identity.ID)
}

func (u *Usecase) Me(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return u.users.GetByID(ctx, id)
}

func (u *Usecase) startSession(ctx context.Context, acc *user.User) (*Session, error) {
	pair, err := u.mint(acc)
	if err != nil {
		return nil, err
	}
	h := authcore.HashToken(pair.Refresh)
	if err := u.slot.Set(ctx, acc.ID, &h); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	acc.RefreshTokenHash = &h
	return &Session{User: acc, Tokens: pair}, nil
}

func (u *Usecase) mint(acc *user.User) (domainauth.TokenPair, error) {
	var (
		pair domainauth.TokenPair
		err  error
	)
	pair.Access, pair.AccessExpires, err = u.tokens.IssueAccess(IdentityOf(acc))
	if err != nil {
		return pair, fmt.Errorf("issue access token: %w", err)
	}
	pair.Refresh, pair.RefreshExpires, err = u.tokens.IssueRefresh(acc.ID)
	if err != nil {
		return pair, fmt.Errorf("issue refresh token: %w", err)
	}
	return pair, nil
}
