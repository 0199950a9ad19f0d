// Package videosession is the hand-off boundary to the external media
// service. The engine only derives a room identifier from the match and
// signs a short-lived token the client presents to the media service; it
// never touches media state itself.
package videosession

import (
	"fmt"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Service struct {
	secret    []byte
	namespace uuid.UUID
}

func New(cfg config.VideoSessionConfig) (*Service, error) {
	ns, err := uuid.Parse(cfg.RoomNamespace)
	if err != nil {
		return nil, fmt.Errorf("parse room namespace: %w", err)
	}
	return &Service{secret: []byte(cfg.TokenSecret), namespace: ns}, nil
}

// RoomID is deterministic (UUIDv5 of the match id), so both participants
// derive the same room without coordination.
func (s *Service) RoomID(matchID int64) string {
	return uuid.NewSHA1(s.namespace, []byte(fmt.Sprintf("match:%d", matchID))).String()
}

// Token signs the room grant the client hands to the media service. The
// expiry matches the date window; the media service enforces it.
func (s *Service) Token(matchID, userID int64, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"room": s.RoomID(matchID),
		"sub":  fmt.Sprintf("%d", userID),
		"exp":  expiresAt.Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign room token: %w", err)
	}
	return signed, nil
}
