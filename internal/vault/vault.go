package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Envelope format version prefix. Old ciphertexts keep decrypting if a
// future version changes the algorithm, since the prefix selects the codec.
const envelopePrefix = "enc_v1:"

const algAESGCM = "aes-256-gcm"

// envelope is the JSON payload inside the version-prefixed container.
type envelope struct {
	Alg  string `json:"alg"`
	IV   string `json:"iv"`
	Tag  string `json:"tag"`
	Data string `json:"data"`
}

// FormatError indicates the ciphertext container is malformed or carries
// an unknown version prefix.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "vault: invalid ciphertext format: " + e.Reason
}

// AuthenticationError indicates the GCM tag did not verify, i.e. the
// ciphertext was tampered with or a different key was used.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return "vault: ciphertext authentication failed"
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// deriveKey hashes arbitrary key material down to a 32 byte AES-256 key.
// SHA-256 is not a KDF; the key material is expected to already be a
// high-entropy secret from the environment.
func deriveKey(keyMaterial string) []byte {
	sum := sha256.Sum256([]byte(keyMaterial))
	return sum[:]
}

// Encrypt seals plaintext with AES-256-GCM and wraps the result in a
// versioned, self-describing envelope.
func Encrypt(plaintext, keyMaterial string) (string, error) {
	if keyMaterial == "" {
		return "", fmt.Errorf("vault: key material cannot be empty")
	}

	block, err := aes.NewCipher(deriveKey(keyMaterial))
	if err != nil {
		return "", fmt.Errorf("vault: failed to init cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: failed to init GCM: %w", err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("vault: failed to generate IV: %w", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)

	// gcm.Seal appends the 16 byte tag to the ciphertext. Store them as
	// separate envelope fields.
	tagStart := len(sealed) - gcm.Overhead()
	data := sealed[:tagStart]
	tag := sealed[tagStart:]

	env := envelope{
		Alg:  algAESGCM,
		IV:   base64.StdEncoding.EncodeToString(iv),
		Tag:  base64.StdEncoding.EncodeToString(tag),
		Data: base64.StdEncoding.EncodeToString(data),
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("vault: failed to marshal envelope: %w", err)
	}

	return envelopePrefix + base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt opens a versioned envelope produced by Encrypt. It returns a
// FormatError for malformed input and an AuthenticationError when the tag
// does not verify. It never returns partially decrypted bytes.
func Decrypt(ciphertext, keyMaterial string) (string, error) {
	if !strings.HasPrefix(ciphertext, envelopePrefix) {
		return "", &FormatError{Reason: "missing or unknown version prefix"}
	}

	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, envelopePrefix))
	if err != nil {
		return "", &FormatError{Reason: "container is not valid base64"}
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", &FormatError{Reason: "container is not valid JSON"}
	}

	if env.Alg != algAESGCM {
		return "", &FormatError{Reason: "unsupported algorithm " + env.Alg}
	}

	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return "", &FormatError{Reason: "invalid IV encoding"}
	}

	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	if err != nil {
		return "", &FormatError{Reason: "invalid tag encoding"}
	}

	data, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return "", &FormatError{Reason: "invalid data encoding"}
	}

	block, err := aes.NewCipher(deriveKey(keyMaterial))
	if err != nil {
		return "", fmt.Errorf("vault: failed to init cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: failed to init GCM: %w", err)
	}

	if len(iv) != gcm.NonceSize() {
		return "", &FormatError{Reason: "unexpected IV length"}
	}

	plaintext, err := gcm.Open(nil, iv, append(data, tag...), nil)
	if err != nil {
		return "", &AuthenticationError{Err: err}
	}

	return string(plaintext), nil
}
