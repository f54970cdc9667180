package gateway

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "voicegw"

// MintAccessToken creates a session access token using HMAC-SHA256. The
// session id travels in the 'sub' claim and is recovered on verification.
func MintAccessToken(secret, sessionID string, ttlSeconds int) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("gateway secret required")
	}
	if sessionID == "" {
		return "", fmt.Errorf("session id required")
	}
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}

	now := time.Now().Unix()
	exp := time.Now().Add(time.Duration(ttlSeconds) * time.Second).Unix()

	// random jti
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate jti: %w", err)
	}
	jti := hex.EncodeToString(b)

	claims := jwt.MapClaims{
		"jti": jti,
		"iss": tokenIssuer,
		"nbf": now,
		"exp": exp,
		"sub": sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken validates the signature and time claims and returns the
// session id the token was minted for.
func VerifyAccessToken(secret, tokenString string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("gateway secret required")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("token has no session id")
	}
	return sub, nil
}
