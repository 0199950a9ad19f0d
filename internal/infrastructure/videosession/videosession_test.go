package videosession

import (
	"testing"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := New(config.VideoSessionConfig{
		TokenSecret:   testSecret,
		RoomNamespace: "6ba7b812-9dad-11d1-80b4-00c04fd430c8",
	})
	require.NoError(t, err)
	return s
}

func TestNewRejectsBadNamespace(t *testing.T) {
	_, err := New(config.VideoSessionConfig{TokenSecret: testSecret, RoomNamespace: "not-a-uuid"})
	assert.Error(t, err)
}

func TestRoomIDIsDeterministicPerMatch(t *testing.T) {
	s := newTestService(t)

	assert.Equal(t, s.RoomID(42), s.RoomID(42))
	assert.NotEqual(t, s.RoomID(42), s.RoomID(43))
}

func TestTokenCarriesRoomGrant(t *testing.T) {
	s := newTestService(t)
	exp := time.Now().Add(time.Minute).Truncate(time.Second)

	signed, err := s.Token(42, 7, exp)
	require.NoError(t, err)

	tok, err := jwt.Parse(signed, func(tok *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	require.True(t, tok.Valid)

	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, s.RoomID(42), claims["room"])
	assert.Equal(t, "7", claims["sub"])

	got, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.Equal(t, exp.Unix(), got.Unix())
}

func TestTokenExpires(t *testing.T) {
	s := newTestService(t)

	signed, err := s.Token(42, 7, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = jwt.Parse(signed, func(tok *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
