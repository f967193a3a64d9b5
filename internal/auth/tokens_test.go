package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NordCoder/posecoach/internal/domain"
	domainauth "github.com/NordCoder/posecoach/internal/domain/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestService(c *clock) *TokenService {
	return NewTokenService(TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     time.Hour,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    240 * time.Hour,
		Issuer:        "posecoach-test",
		Now:           c.Now,
	}, nil)
}

func testIdentity() domainauth.Identity {
	return domainauth.Identity{
		ID:       uuid.New(),
		Username: "jane",
		Email:    "jane@example.com",
		FullName: "Jane Doe",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	t.Parallel()
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestService(c)
	id := testIdentity()

	tok, exp, err := s.IssueAccess(id)
	require.NoError(t, err)
	assert.Equal(t, c.t.Add(time.Hour), exp)

	claims, err := s.Verify(tok, domainauth.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, id, claims.Identity)
	assert.NotEmpty(t, claims.TokenID)
	assert.Equal(t, domainauth.KindAccess, claims.Kind)
}

func TestAccessTokenExpires(t *testing.T) {
	t.Parallel()
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestService(c)

	tok, _, err := s.IssueAccess(testIdentity())
	require.NoError(t, err)

	c.t = c.t.Add(59 * time.Minute)
	_, err = s.Verify(tok, domainauth.KindAccess)
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Minute)
	_, err = s.Verify(tok, domainauth.KindAccess)
	require.ErrorIs(t, err, domainauth.ErrTokenExpired)
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestVerifyRejectsCrossDomainTokens(t *testing.T) {
	t.Parallel()
	c := &clock{t: time.Now().UTC()}
	s := newTestService(c)
	id := testIdentity()

	access, _, err := s.IssueAccess(id)
	require.NoError(t, err)
	refresh, _, err := s.IssueRefresh(id.ID)
	require.NoError(t, err)

	_, err = s.Verify(access, domainauth.KindRefresh)
	require.ErrorIs(t, err, domainauth.ErrTokenInvalid)

	_, err = s.Verify(refresh, domainauth.KindAccess)
	require.ErrorIs(t, err, domainauth.ErrTokenInvalid)

	claims, err := s.Verify(refresh, domainauth.KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, id.ID, claims.Identity.ID)
	assert.Empty(t, claims.Identity.Username)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	t.Parallel()
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestService(c)
	id := uuid.New()

	a, _, err := s.IssueRefresh(id)
	require.NoError(t, err)
	b, _, err := s.IssueRefresh(id)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyMalformed(t *testing.T) {
	t.Parallel()
	s := newTestService(&clock{t: time.Now().UTC()})

	for _, tok := range []string{"", "abc", "a.b.c"} {
		_, err := s.Verify(tok, domainauth.KindAccess)
		require.ErrorIs(t, err, domainauth.ErrTokenInvalid, tok)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()
	c := &clock{t: time.Now().UTC()}
	s := newTestService(c)

	claims := accessClaims{RegisteredClaims: s.registered(uuid.New(), c.t, c.t.Add(time.Hour))}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.Verify(tok, domainauth.KindAccess)
	require.ErrorIs(t, err, domainauth.ErrTokenInvalid)
}

func TestUnconfiguredService(t *testing.T) {
	t.Parallel()
	s := NewTokenService(TokenConfig{AccessSecret: "only-access"}, nil)
	require.False(t, s.Ready())

	_, _, err := s.IssueAccess(testIdentity())
	require.ErrorIs(t, err, domain.ErrConfiguration)
	_, _, err = s.IssueRefresh(uuid.New())
	require.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = s.Verify("x.y.z", domainauth.KindAccess)
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestHashTokenAndBearer(t *testing.T) {
	t.Parallel()
	require.Equal(t, HashToken("abc"), HashToken("abc"))
	require.NotEqual(t, HashToken("abc"), HashToken("abd"))
	require.True(t, EqualHash(HashToken("abc"), HashToken("abc")))
	require.False(t, EqualHash(HashToken("abc"), HashToken("abd")))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, Bearer(r))
	r.Header.Set("Authorization", "BEARER tok-1")
	require.Equal(t, "tok-1", Bearer(r))
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	require.Empty(t, Bearer(r))
}

func TestPassword(t *testing.T) {
	t.Parallel()
	hash, err := HashPassword("s3cret-pass", 4)
	require.NoError(t, err)
	require.NotEqual(t, "s3cret-pass", hash)
	require.True(t, CheckPassword(hash, "s3cret-pass"))
	require.False(t, CheckPassword(hash, "wrong"))
}
