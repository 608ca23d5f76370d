package ledger

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/edulearn/backend/internal/config"
)

// Hasher derives argon2id credential hashes stored as "salt$hash".
type Hasher struct {
	cfg config.Argon2Config
}

func NewHasher(cfg *config.Argon2Config) *Hasher {
	return &Hasher{cfg: *cfg}
}

func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := h.derive(secret, salt)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func (h *Hasher) Verify(secret, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computed := h.derive(secret, salt)
	return subtle.ConstantTimeCompare(hash, computed) == 1
}

func (h *Hasher) derive(secret string, salt []byte) []byte {
	return argon2.IDKey([]byte(secret), salt, h.cfg.Time, h.cfg.Memory, h.cfg.Threads, h.cfg.KeyLength)
}

func generateAccountNumber() (string, error) {
	const digits = "0123456789"
	b := make([]byte, 10)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		b[i] = digits[n.Int64()]
	}
	return string(b), nil
}
