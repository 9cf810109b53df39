package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const emailCooldown = 2 * time.Minute

// CheckEmailCooldown claims the confirmation-email cooldown for address.
// It returns true when a message was already requested within the last two
// minutes. The check and the claim are one atomic store operation.
func (l *Limiter) CheckEmailCooldown(ctx context.Context, address string) (bool, error) {
	res, err := l.store.Increment(ctx, emailCooldownKey(address), 1, emailCooldown)
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}
	return !res.Allowed, nil
}

// emailCooldownKey hashes the address so Redis never holds it in clear text
func emailCooldownKey(address string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(address))))
	return "cooldown:email:" + hex.EncodeToString(sum[:])
}
