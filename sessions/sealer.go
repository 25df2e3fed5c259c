package sessions

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	apperrors "github.com/jrsteele09/go-admin-gate/internal/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 work factor.
	DefaultIterations = 100_000
	// DefaultSalt is the application-level salt used when none is configured.
	DefaultSalt = "admin-gate-salt"

	keyLength = 32 // AES-256
	ivLength  = 12
)

// Key is a derived AES-256-GCM key.
type Key [keyLength]byte

// DeriveKey runs PBKDF2-HMAC-SHA256 over the fingerprint with a fixed salt.
// The sealed session is tamper-evident, not confidential: anything running in the
// same browser can reproduce the key. Trust decisions belong to the authorization store.
func DeriveKey(fp Fingerprint, salt string, iterations int) Key {
	if salt == "" {
		salt = DefaultSalt
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	var k Key
	copy(k[:], pbkdf2.Key([]byte(fp.String()), []byte(salt), iterations, keyLength, sha256.New))
	return k
}

// Sealed is IV || AES-GCM ciphertext of a JSON encoded Record.
type Sealed []byte

// Encode returns the text form kept in tab storage.
func (s Sealed) Encode() string {
	return base64.StdEncoding.EncodeToString(s)
}

// DecodeSealed parses the text form produced by Encode.
func DecodeSealed(v string) (Sealed, error) {
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrDecrypt, "decode sealed session")
	}
	return Sealed(b), nil
}

// Seal encrypts the record under key with a fresh random IV.
func Seal(rec Record, key Key) (Sealed, error) {
	plain, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("[sessions Seal] marshal record: %w", err)
	}
	return sealRaw(plain, key)
}

func sealRaw(payload []byte, key Key) (Sealed, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("[sessions Seal] iv: %w", err)
	}
	return Sealed(gcm.Seal(iv, iv, payload, nil)), nil
}

// Unseal decrypts a sealed record. Every failure, whether a truncated blob, a key from
// another device or a corrupt payload, is reported as ErrDecrypt.
func Unseal(sealed Sealed, key Key) (Record, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return Record{}, err
	}
	if len(sealed) < ivLength+gcm.Overhead() {
		return Record{}, apperrors.Wrapf(apperrors.ErrDecrypt, "sealed session truncated")
	}
	iv, ciphertext := sealed[:ivLength], sealed[ivLength:]
	plain, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return Record{}, apperrors.Wrapf(apperrors.ErrDecrypt, "open sealed session")
	}
	var rec Record
	if err := json.Unmarshal(plain, &rec); err != nil {
		return Record{}, apperrors.Wrapf(apperrors.ErrDecrypt, "parse sealed session")
	}
	return rec, nil
}

func newGCM(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("[sessions] cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("[sessions] gcm: %w", err)
	}
	return gcm, nil
}
