// ABOUTME: Token Verifier: validates bearer tokens against a shared secret and extracts the Token Payload
// ABOUTME: Uses HS256-signed JWTs with a configurable clock-skew leeway

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum HMAC secret length this verifier accepts.
// A short secret makes the signature brute-forceable; reject it at
// construction rather than at the first forged token.
const MinSecretLength = 32

var (
	ErrWeakSecret   = errors.New("auth: secret must be at least 32 bytes")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: token expired")
	ErrMissingClaim = errors.New("auth: missing required claim")
)

// TokenPayload is the decoded, verified contents of a bearer token.
type TokenPayload struct {
	UserID        string
	WalletAddress *string
	Exp           int64
	Iat           int64
}

// TokenVerifier validates a bearer token string and returns its payload, or
// a typed failure (expired, invalid signature, malformed).
type TokenVerifier interface {
	Verify(tokenString string) (TokenPayload, error)
}

// JWTVerifier implements TokenVerifier using HS256-signed JWTs. It never
// consults any external store; a token is valid iff its signature verifies
// against the configured secret and it has not expired within the
// configured leeway.
type JWTVerifier struct {
	secret []byte
	leeway time.Duration
}

// NewJWTVerifier constructs a JWTVerifier. leeway widens the expiration
// check to tolerate clock skew between the token issuer and this process;
// pass 0 for strict wall-clock comparison.
func NewJWTVerifier(secret []byte, leeway time.Duration) (*JWTVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: got %d bytes, want at least %d", ErrWeakSecret, len(secret), MinSecretLength)
	}
	return &JWTVerifier{secret: secret, leeway: leeway}, nil
}

// Verify validates tokenString and extracts its Token Payload. An expired
// token yields ErrExpiredToken; a bad signature or a malformed token yields
// an error wrapping both ErrInvalidToken and jwt.ErrTokenSignatureInvalid
// or jwt.ErrTokenMalformed respectively.
func (v *JWTVerifier) Verify(tokenString string) (TokenPayload, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithLeeway(v.leeway), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenPayload{}, ErrExpiredToken
		}
		return TokenPayload{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return TokenPayload{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return TokenPayload{}, ErrInvalidToken
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return TokenPayload{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	payload := TokenPayload{UserID: userID}

	if exp, ok := claims["exp"].(float64); ok {
		payload.Exp = int64(exp)
	}
	if iat, ok := claims["iat"].(float64); ok {
		payload.Iat = int64(iat)
	}
	if wallet, ok := claims["wallet_address"].(string); ok && wallet != "" {
		payload.WalletAddress = &wallet
	}

	return payload, nil
}

// Generate creates a signed token for userID. Used by tests; production
// tokens are minted by the identity-issuing service Courier only verifies
// against.
func (v *JWTVerifier) Generate(userID string, walletAddress *string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	if walletAddress != nil {
		claims["wallet_address"] = *walletAddress
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
