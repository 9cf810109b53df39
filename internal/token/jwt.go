package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type jwtClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// jwtCodec signs HMAC JWTs. Only the configured algorithm is accepted on decode.
type jwtCodec struct {
	method *jwt.SigningMethodHMAC
	secret []byte
	parser *jwt.Parser
}

func newJWTCodec(alg string, secret []byte) (*jwtCodec, error) {
	var method *jwt.SigningMethodHMAC
	switch alg {
	case AlgHS256:
		method = jwt.SigningMethodHS256
	case AlgHS384:
		method = jwt.SigningMethodHS384
	case AlgHS512:
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", alg)
	}

	return &jwtCodec{
		method: method,
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

func (c *jwtCodec) encode(claims Claims) (string, error) {
	t := jwt.NewWithClaims(c.method, jwtClaims{
		Scope: string(claims.Scope),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.ID,
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	return t.SignedString(c.secret)
}

func (c *jwtCodec) decode(raw string) (*Claims, error) {
	var parsed jwtClaims
	_, err := c.parser.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if parsed.Subject == "" || parsed.ExpiresAt == nil {
		return nil, errors.New("jwt is missing required claims")
	}

	claims := &Claims{
		ID:        parsed.ID,
		Subject:   parsed.Subject,
		Scope:     Scope(parsed.Scope),
		ExpiresAt: parsed.ExpiresAt.Time,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	return claims, nil
}
