package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	sessionCookie = "callfacts_session"
	sessionHeader = "Session-ID"
)

// SessionCodec signs session ids into cookie values and verifies them
type SessionCodec struct {
	key []byte
	ttl time.Duration
}

// NewSessionCodec creates a codec signing with key. A zero ttl issues
// tokens without expiry.
func NewSessionCodec(key string, ttl time.Duration) (*SessionCodec, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("session signing key is required (set APP_KEY)")
	}
	return &SessionCodec{key: []byte(key), ttl: ttl}, nil
}

// Encode returns a signed token carrying sessionID
func (s *SessionCodec) Encode(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  sessionID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// Decode verifies token and returns the session id it carries
func (s *SessionCodec) Decode(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse session token: %w", err)
	}
	return claims.Subject, nil
}

// bindSession stores sessionID in the signed cookie
func (s *Server) bindSession(c *gin.Context, sessionID string) error {
	token, err := s.sessions.Encode(sessionID)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, int(s.config.SessionTTL.Seconds()), "/", "", s.config.SecureCookie, true)
	return nil
}

// sessionID returns the caller's session: the signed cookie first, then the
// Session-ID header. Empty when neither is present or the cookie is invalid
// and no header is sent.
func (s *Server) sessionID(c *gin.Context) string {
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		id, err := s.sessions.Decode(token)
		if err == nil {
			return id
		}
		s.logger.Debug("rejected session cookie", zap.Error(err))
	}
	return strings.TrimSpace(c.GetHeader(sessionHeader))
}
