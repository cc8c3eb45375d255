package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrInvalidToken covers every token failure: bad signature, malformed
// string, expiry, missing user id. Callers respond 401 without
// differentiating.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by a session token.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenManager issues and resolves signed, time-limited session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}, nil
}

// Issue creates an HS256-signed token encoding the user id, issue time,
// expiry, and a unique token id used for revocation.
func (m *TokenManager) Issue(userID int64) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Resolve validates a token string and returns its claims, or
// ErrInvalidToken.
func (m *TokenManager) Resolve(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoker tracks revoked token ids in Redis. Tokens are stateless, so
// logout stores the jti with the token's remaining lifetime as TTL; Redis
// forgets it once the token would have expired anyway.
type Revoker struct {
	rdb *redis.Client
}

// NewRevoker dials the Redis backing the denylist and verifies the
// connection with a ping before handing the client out.
func NewRevoker(ctx context.Context, addr, password string) (*Revoker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return &Revoker{rdb: rdb}, nil
}

func (r *Revoker) Close() error {
	return r.rdb.Close()
}

// Revoke denylists the token until its expiry.
func (r *Revoker) Revoke(ctx context.Context, claims *Claims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, "revoked:"+claims.ID, "1", ttl).Err()
}

// IsRevoked reports whether the token id has been denylisted.
func (r *Revoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := r.rdb.Get(ctx, "revoked:"+jti).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
