package user

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// GravatarURL is the default avatar for a new account
func GravatarURL(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon", hex.EncodeToString(sum[:]))
}
