// Package password derives and verifies password hashes.
//
// New hashes are always scrypt. Two older encodings are still accepted so
// accounts can be migrated lazily: the salted HMAC-SHA256 records written by
// the first version of the service, and argon2id PHC strings imported from
// other systems. Callers check NeedsUpgrade after a successful Verify and
// store a fresh Hash when it returns true.
package password

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/exposureshield/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

// Format tags a stored hash encoding.
type Format string

const (
	FormatUnknown    Format = ""
	FormatScrypt     Format = "scrypt"
	FormatHMACLegacy Format = "hmac-legacy"
	FormatArgon2id   Format = "argon2id"
)

// Current scrypt parameters. ln is log2(N).
const (
	scryptVersion = 1
	DefaultCost   = 15
	scryptR       = 8
	scryptP       = 1
	scryptKeyLen  = 32
	SaltLen       = 16

	// MinCost is the lowest log2(N) WithCost accepts.
	MinCost = 4
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")

// Hasher hashes with scrypt at a fixed cost and verifies every known format.
type Hasher struct {
	ln int
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithCost sets log2(N) for new scrypt hashes.
func WithCost(ln int) Option {
	return func(h *Hasher) {
		if ln >= MinCost {
			h.ln = ln
		}
	}
}

// NewHasher creates a Hasher using DefaultCost unless overridden.
func NewHasher(opts ...Option) *Hasher {
	h := &Hasher{ln: DefaultCost}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash returns $scrypt$v=1$ln=15,r=8,p=1$<salt>$<key>, both base64 without padding.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := common.GenerateRandByteArray(SaltLen)

	key, err := scrypt.Key([]byte(password), salt, 1<<h.ln, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("scrypt: %w", err)
	}
	defer common.WipeByteArray(key)

	return fmt.Sprintf("$scrypt$v=%d$ln=%d,r=%d,p=%d$%s$%s",
		scryptVersion, h.ln, scryptR, scryptP,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. Malformed or unknown
// records never match.
func (h *Hasher) Verify(password, encoded string) bool {
	switch DetectFormat(encoded) {
	case FormatScrypt:
		rec, err := parseScrypt(encoded)
		if err != nil {
			return false
		}
		key, err := scrypt.Key([]byte(password), rec.salt, 1<<rec.ln, rec.r, rec.p, len(rec.key))
		if err != nil {
			return false
		}
		return subtle.ConstantTimeCompare(key, rec.key) == 1
	case FormatHMACLegacy:
		return verifyHMAC(password, encoded)
	case FormatArgon2id:
		return verifyArgon2id(password, encoded)
	default:
		return false
	}
}

// NeedsUpgrade is true for every non-scrypt record and for scrypt records
// weaker than the hasher's current cost.
func (h *Hasher) NeedsUpgrade(encoded string) bool {
	if DetectFormat(encoded) != FormatScrypt {
		return true
	}
	rec, err := parseScrypt(encoded)
	if err != nil {
		return true
	}
	return rec.ln < h.ln || rec.r != scryptR || rec.p != scryptP || len(rec.key) != scryptKeyLen
}

// DetectFormat inspects the record prefix; it does not validate the body.
func DetectFormat(encoded string) Format {
	switch {
	case strings.HasPrefix(encoded, "$scrypt$"):
		return FormatScrypt
	case strings.HasPrefix(encoded, "$argon2id$"):
		return FormatArgon2id
	case strings.Count(encoded, ":") == 1 && !strings.HasPrefix(encoded, "$"):
		return FormatHMACLegacy
	default:
		return FormatUnknown
	}
}

type scryptRecord struct {
	ln, r, p int
	salt     []byte
	key      []byte
}

var errInvalidHash = errors.New("invalid password hash")

func parseScrypt(encoded string) (*scryptRecord, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != string(FormatScrypt) {
		return nil, errInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != scryptVersion {
		return nil, errInvalidHash
	}

	rec := &scryptRecord{}
	if _, err := fmt.Sscanf(parts[3], "ln=%d,r=%d,p=%d", &rec.ln, &rec.r, &rec.p); err != nil {
		return nil, errInvalidHash
	}
	// Bounds keep a tampered record from requesting absurd work.
	if rec.ln < 1 || rec.ln > 22 || rec.r < 1 || rec.r > 32 || rec.p < 1 || rec.p > 16 {
		return nil, errInvalidHash
	}

	var err error
	if rec.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(rec.salt) == 0 {
		return nil, errInvalidHash
	}
	if rec.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(rec.key) < 16 || len(rec.key) > 128 {
		return nil, errInvalidHash
	}

	return rec, nil
}

// verifyHMAC checks <hex salt>:<hex HMAC-SHA256(salt, password)>.
func verifyHMAC(password, encoded string) bool {
	saltHex, digestHex, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return false
	}
	want, err := hex.DecodeString(digestHex)
	if err != nil || len(want) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(password))

	return subtle.ConstantTimeCompare(mac.Sum(nil), want) == 1
}

// verifyArgon2id checks a PHC string $argon2id$v=19$m=..,t=..,p=..$salt$key.
func verifyArgon2id(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != string(FormatArgon2id) {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}
	if threads == 0 || threads > 255 || iterations == 0 || memory == 0 || memory > 1<<21 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 || len(want) > 128 {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, uint8(threads), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
