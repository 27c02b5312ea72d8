package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and verifies session tokens for provisioned accounts.
type TokenService struct {
	key    *rsa.PrivateKey
	kid    string
	issuer string
	ttl    time.Duration
}

func NewTokenService(issuer string, ttl time.Duration) (*TokenService, error) {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	pubBytes, _ := json.Marshal(k.PublicKey)
	h := sha256.Sum256(pubBytes)
	kid := base64.RawURLEncoding.EncodeToString(h[:8])
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenService{key: k, kid: kid, issuer: issuer, ttl: ttl}, nil
}

// Issue signs a session token carrying the account id and role.
func (s *TokenService) Issue(c Caller) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  s.issuer,
		"sub":  c.AccountID,
		"role": string(c.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.kid
	return tok.SignedString(s.key)
}

// Verify parses a session token and rebuilds the caller it was issued to.
func (s *TokenService) Verify(token string) (Caller, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return &s.key.PublicKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil || !tkn.Valid {
		return Caller{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	roleStr, _ := claims["role"].(string)
	role, err := ParseRole(roleStr)
	if err != nil || sub == "" {
		return Caller{}, ErrInvalidToken
	}
	return Caller{AccountID: sub, Role: role}, nil
}
