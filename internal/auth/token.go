package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens issues and verifies stateless HS256 session tokens. A token carries
// only the user id (sub) and issue time (iat). Tokens are not stored, so
// logging out cannot revoke one server side; the max age bounds how long a
// leaked token stays usable.
type Tokens struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewTokens returns a Tokens signing with secret. A maxAge of zero disables
// the age check.
func NewTokens(secret []byte, maxAge time.Duration) *Tokens {
	return &Tokens{
		secret: secret,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (t *Tokens) MaxAge() time.Duration {
	return t.maxAge
}

func (t *Tokens) Issue(userID int64) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(userID, 10),
		IssuedAt: jwt.NewNumericDate(t.now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the user id bound to token. Every failure wraps
// ErrInvalidToken; tokens past their max age return ErrTokenExpired.
func (t *Tokens) Verify(token string) (int64, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)

	var claims jwt.RegisteredClaims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.IssuedAt == nil {
		return 0, ErrInvalidToken
	}

	if t.maxAge > 0 && t.now().Sub(claims.IssuedAt.Time) > t.maxAge {
		return 0, ErrTokenExpired
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}
