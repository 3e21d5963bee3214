package credentials

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/crypto/chacha20poly1305"
)

const keyCredentialPrefix = "cred/"

// encryptedSecret is the at-rest form of a secret key.
type encryptedSecret struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Record is the public view of a stored credential. The secret never appears
// here.
type Record struct {
	AccessKeyID string    `json:"access_key_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type storedCredential struct {
	Record
	Secret encryptedSecret `json:"secret"`
}

type cipherAead interface {
	NonceSize() int
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
}

// BadgerStore persists credentials in badger with secrets sealed under
// XChaCha20-Poly1305. The AEAD key is derived from the master key by SHA-256.
type BadgerStore struct {
	db   *badger.DB
	aead cipherAead
}

// OpenBadgerStore opens (or creates) the store under dataDir.
func OpenBadgerStore(dataDir string, masterKey string) (*BadgerStore, error) {
	if strings.TrimSpace(masterKey) == "" {
		return nil, errors.New("master key is required")
	}

	opts := badger.DefaultOptions(path.Join(dataDir, "badger"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	derived := sha256.Sum256([]byte(masterKey))
	aead, err := chacha20poly1305.NewX(derived[:])
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init xchacha20poly1305: %w", err)
	}

	return &BadgerStore{db: db, aead: aead}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Put creates or replaces the credential for an access key id.
func (s *BadgerStore) Put(_ context.Context, accessKeyID string, secret string) (Record, error) {
	accessKeyID = strings.TrimSpace(accessKeyID)
	if accessKeyID == "" {
		return Record{}, errors.New("access key id is required")
	}
	if secret == "" {
		return Record{}, errors.New("secret key is required")
	}

	now := time.Now().UTC()
	record := Record{AccessKeyID: accessKeyID, CreatedAt: now, UpdatedAt: now}

	blob, err := s.encryptSecret(accessKeyID, secret)
	if err != nil {
		return Record{}, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if item, err := txn.Get(credentialKey(accessKeyID)); err == nil {
			// Preserve the original creation time on overwrite.
			err = item.Value(func(val []byte) error {
				var existing storedCredential
				if err := json.Unmarshal(val, &existing); err != nil {
					return err
				}
				record.CreatedAt = existing.CreatedAt
				return nil
			})
			if err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		payload, err := json.Marshal(storedCredential{Record: record, Secret: blob})
		if err != nil {
			return err
		}
		return txn.Set(credentialKey(accessKeyID), payload)
	})
	if err != nil {
		return Record{}, err
	}
	return record, nil
}

// Lookup implements Store. A missing id maps to ErrUnknownCredential.
func (s *BadgerStore) Lookup(_ context.Context, accessKeyID string) (string, error) {
	var stored storedCredential
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(credentialKey(accessKeyID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrUnknownCredential, accessKeyID)
	}
	if err != nil {
		return "", err
	}
	return s.decryptSecret(accessKeyID, stored.Secret)
}

// Delete removes a credential. Deleting an unknown id returns
// ErrUnknownCredential.
func (s *BadgerStore) Delete(_ context.Context, accessKeyID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(credentialKey(accessKeyID)); err != nil {
			return err
		}
		return txn.Delete(credentialKey(accessKeyID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownCredential, accessKeyID)
	}
	return err
}

// List returns the stored records, sorted by access key id.
func (s *BadgerStore) List(_ context.Context) ([]Record, error) {
	records := make([]Record, 0, 8)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyCredentialPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var stored storedCredential
				if err := json.Unmarshal(val, &stored); err != nil {
					return err
				}
				records = append(records, stored.Record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].AccessKeyID < records[j].AccessKeyID
	})
	return records, nil
}

func (s *BadgerStore) encryptSecret(accessKeyID string, plaintext string) (encryptedSecret, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return encryptedSecret{}, err
	}
	aad := []byte(keyCredentialPrefix + accessKeyID)
	ciphertext := s.aead.Seal(nil, nonce, []byte(plaintext), aad)
	return encryptedSecret{
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(ciphertext),
	}, nil
}

func (s *BadgerStore) decryptSecret(accessKeyID string, blob encryptedSecret) (string, error) {
	nonce, err := base64.RawStdEncoding.DecodeString(blob.Nonce)
	if err != nil {
		return "", err
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(blob.Ciphertext)
	if err != nil {
		return "", err
	}
	aad := []byte(keyCredentialPrefix + accessKeyID)
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func credentialKey(accessKeyID string) []byte {
	return []byte(keyCredentialPrefix + accessKeyID)
}
