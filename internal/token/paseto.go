package token

import (
	"fmt"

	"aidanwoods.dev/go-paseto"
)

// pasetoCodec handles PASETO v4.local tokens
// (symmetric encryption with XChaCha20-Poly1305)
type pasetoCodec struct {
	symmetricKey paseto.V4SymmetricKey
	parser       paseto.Parser
}

func newPasetoCodec(symmetricKey []byte) (*pasetoCodec, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("symmetric key must be exactly 32 bytes, got %d", len(symmetricKey))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	return &pasetoCodec{
		symmetricKey: key,
		parser:       paseto.NewParserWithoutExpiryCheck(),
	}, nil
}

func (c *pasetoCodec) encode(claims Claims) (string, error) {
	t := paseto.NewToken()
	t.SetJti(claims.ID)
	t.SetSubject(claims.Subject)
	t.SetIssuedAt(claims.IssuedAt)
	t.SetExpiration(claims.ExpiresAt)
	t.SetString("scope", string(claims.Scope))

	return t.V4Encrypt(c.symmetricKey, nil), nil
}

func (c *pasetoCodec) decode(raw string) (*Claims, error) {
	t, err := c.parser.ParseV4Local(c.symmetricKey, raw, nil)
	if err != nil {
		return nil, err
	}

	subject, err := t.GetSubject()
	if err != nil {
		return nil, err
	}
	expiresAt, err := t.GetExpiration()
	if err != nil {
		return nil, err
	}
	scope, err := t.GetString("scope")
	if err != nil {
		return nil, err
	}

	claims := &Claims{
		Subject:   subject,
		Scope:     Scope(scope),
		ExpiresAt: expiresAt,
	}
	if jti, err := t.GetJti(); err == nil {
		claims.ID = jti
	}
	if iat, err := t.GetIssuedAt(); err == nil {
		claims.IssuedAt = iat
	}
	return claims, nil
}
