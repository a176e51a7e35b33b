package journal

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/ports"
)

const envelopeKey = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	ports.Journal
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts change values and snapshot
// states with AES-GCM. Paths, actions and sequence numbers stay readable.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.Journal) ports.Journal {
		return &encryptionMiddleware{
			Journal: next,
			config:  config,
		}
	}
}

func (m *encryptionMiddleware) Record(ctx context.Context, rec domain.Record) error {
	changes := make(domain.Delta, len(rec.Changes))
	for i, c := range rec.Changes {
		var err error
		if c.OldValue, err = m.seal(c.OldValue); err != nil {
			return err
		}
		if c.NewValue, err = m.seal(c.NewValue); err != nil {
			return err
		}
		changes[i] = c
	}
	rec.Changes = changes
	return m.Journal.Record(ctx, rec)
}

func (m *encryptionMiddleware) Records(ctx context.Context, after uint64, limit int) ([]domain.Record, error) {
	records, err := m.Journal.Records(ctx, after, limit)
	if err != nil {
		return nil, err
	}
	for i := range records {
		for j := range records[i].Changes {
			c := &records[i].Changes[j]
			if c.OldValue, err = m.open(c.OldValue); err != nil {
				return nil, fmt.Errorf("record %d: %w", records[i].Seq, err)
			}
			if c.NewValue, err = m.open(c.NewValue); err != nil {
				return nil, fmt.Errorf("record %d: %w", records[i].Seq, err)
			}
		}
	}
	return records, nil
}

func (m *encryptionMiddleware) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	ciphertext, err := encrypt(snap.State, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}
	envelope, err := json.Marshal(map[string]string{
		envelopeKey: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return err
	}
	snap.State = envelope
	return m.Journal.SaveSnapshot(ctx, snap)
}

func (m *encryptionMiddleware) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	snap, err := m.Journal.LoadSnapshot(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}

	var envelope map[string]string
	if err := json.Unmarshal(snap.State, &envelope); err != nil || envelope[envelopeKey] == "" {
		// Fail secure: a plain snapshot means encryption was bypassed.
		return domain.Snapshot{}, errors.New("snapshot is missing encrypted data envelope")
	}
	plainText, err := m.decode(envelope[envelopeKey])
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to decrypt snapshot: %w", err)
	}
	snap.State = plainText
	return snap, nil
}

func (m *encryptionMiddleware) seal(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	plainText, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt value: %w", err)
	}
	return map[string]any{envelopeKey: base64.StdEncoding.EncodeToString(ciphertext)}, nil
}

func (m *encryptionMiddleware) open(v any) (any, error) {
	envelope, ok := v.(map[string]any)
	if !ok {
		return v, nil
	}
	encoded, ok := envelope[envelopeKey].(string)
	if !ok {
		return v, nil
	}
	plainText, err := m.decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt value: %w", err)
	}
	var out any
	if err := json.Unmarshal(plainText, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted value: %w", err)
	}
	return out, nil
}

func (m *encryptionMiddleware) decode(encoded string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	return decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
