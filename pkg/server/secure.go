package server

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

const secureTag = "rsa_oaep_b64"

// keyring holds the ephemeral keypair browsers use to encrypt passwords
// before posting them.
type keyring struct {
	mu    sync.RWMutex
	keyID string
	priv  *rsa.PrivateKey
}

func newKeyring(bits int) (*keyring, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &keyring{keyID: "k-" + uuid.NewString(), priv: priv}, nil
}

// publicKey returns the key id and the base64 SPKI encoding of the
// public key.
func (k *keyring) publicKey() (string, string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	der, err := x509.MarshalPKIXPublicKey(&k.priv.PublicKey)
	if err != nil {
		return "", "", err
	}
	return k.keyID, base64.StdEncoding.EncodeToString(der), nil
}

var errDecrypt = errors.New("could not decrypt the submitted credentials")

func (k *keyring) decrypt(ciphertextB64, keyID string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if keyID != "" && keyID != k.keyID {
		return "", fmt.Errorf("%w: unknown key id", errDecrypt)
	}
	ct, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext encoding", errDecrypt)
	}
	pt, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, k.priv, ct, nil)
	if err != nil {
		return "", errDecrypt
	}
	return string(pt), nil
}

// decryptFields decrypts in place the string fields of *ptr tagged
// `secure:"rsa_oaep_b64"`. A `secure_key:"Field"` tag names the field
// holding the key id. Empty fields are left alone.
func (k *keyring) decryptFields(ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decryptFields expects a pointer to struct, got %T", ptr)
	}
	v := rv.Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get("secure") != secureTag {
			continue
		}
		f := v.Field(i)
		if f.Kind() != reflect.String || f.String() == "" {
			continue
		}

		keyID := ""
		if name := sf.Tag.Get("secure_key"); name != "" {
			if kf := v.FieldByName(name); kf.IsValid() && kf.Kind() == reflect.String {
				keyID = kf.String()
			}
		}
		plain, err := k.decrypt(f.String(), keyID)
		if err != nil {
			return err
		}
		f.SetString(plain)
	}
	return nil
}
