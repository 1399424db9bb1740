package hashing

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"coach-service/internal/config"
)

// IdentifierHasher derives stable, non-reversible rate-limit keys from
// caller identifiers that carry PII (emails). IPs and composite keys pass
// through the limiter unhashed; anything email-shaped must go through here
// before it is used as a store key.
type IdentifierHasher struct {
	pepper []byte
}

func NewIdentifierHasher(cfg *config.Config) *IdentifierHasher {
	return &IdentifierHasher{
		pepper: []byte(cfg.Hashing.IdentifierPepper),
	}
}

// HashIdentifier returns a short hex digest of the identifier keyed with the
// service pepper. The same input always maps to the same key, so quota
// accounting is unaffected.
func (h *IdentifierHasher) HashIdentifier(identifier string) string {
	mac, err := blake2b.New256(h.pepper)
	if err != nil {
		// blake2b only rejects keys longer than 64 bytes; config peppers are short.
		sum := blake2b.Sum256(append(h.pepper, identifier...))
		return hex.EncodeToString(sum[:16])
	}
	mac.Write([]byte(identifier))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}
