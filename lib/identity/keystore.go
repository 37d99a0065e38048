// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

const (
	privateKeyFile       = "vat-signing-key"
	sealedPrivateKeyFile = "vat-signing-key.age"
	publicKeyFile        = "vat-signing-key.pub"
)

// Save writes the keypair to dir, creating it if needed. When sealing is non-nil the private
// key is encrypted to it with age and written as vat-signing-key.age;
// otherwise it is written in the clear with mode 0600. The public key
// file always holds the multibase text form, so operators can paste it
// into a join URL.
func Save(dir string, id *Identity, sealing age.Recipient) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if sealing != nil {
		var ciphertext bytes.Buffer
		writer, err := age.Encrypt(&ciphertext, sealing)
		if err != nil {
			return fmt.Errorf("creating age encryptor: %w", err)
		}
		if _, err := writer.Write(id.private); err != nil {
			return fmt.Errorf("sealing private key: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("finalizing sealed private key: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, sealedPrivateKeyFile), ciphertext.Bytes(), 0600); err != nil {
			return fmt.Errorf("writing sealed private key: %w", err)
		}
	} else {
		if err := os.WriteFile(filepath.Join(dir, privateKeyFile), id.private, 0600); err != nil {
			return fmt.Errorf("writing private key: %w", err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), []byte(EncodePublicKey(id.public)+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

// Load reads the keypair from dir. A sealed key requires unsealing; a
// plaintext key ignores it. The public key file is checked against the
// private key so a mismatched pair is reported rather than silently
// producing a different identity.
func Load(dir string, unsealing age.Identity) (*Identity, error) {
	private, err := readPrivateKey(dir, unsealing)
	if err != nil {
		return nil, err
	}
	id, err := FromPrivateKey(private)
	if err != nil {
		return nil, fmt.Errorf("loading private key: %w", err)
	}

	publicText, err := os.ReadFile(filepath.Join(dir, publicKeyFile))
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	public, err := ParsePublicKey(strings.TrimSpace(string(publicText)))
	if err != nil {
		return nil, fmt.Errorf("parsing public key file: %w", err)
	}
	if !public.Equal(id.public) {
		return nil, fmt.Errorf("public key file does not match private key in %s", dir)
	}
	return id, nil
}

// LoadOrGenerate loads the keypair from dir, or generates and saves one
// if no key files exist. The boolean reports whether a new key was
// generated. Corrupt or unreadable key files are an error, never a
// reason to mint a new identity.
func LoadOrGenerate(dir string, sealing *age.X25519Identity) (*Identity, bool, error) {
	var unsealing age.Identity
	var recipient age.Recipient
	if sealing != nil {
		unsealing = sealing
		recipient = sealing.Recipient()
	}

	id, err := Load(dir, unsealing)
	if err == nil {
		return id, false, nil
	}
	for _, name := range []string{privateKeyFile, sealedPrivateKeyFile, publicKeyFile} {
		if _, statErr := os.Stat(filepath.Join(dir, name)); statErr == nil {
			return nil, false, err
		}
	}

	id, err = Generate()
	if err != nil {
		return nil, false, err
	}
	if err := Save(dir, id, recipient); err != nil {
		return nil, false, err
	}
	return id, true, nil
}

// ReadSealingIdentity parses an age X25519 identity file (the
// AGE-SECRET-KEY-1... format written by age-keygen).
func ReadSealingIdentity(path string) (*age.X25519Identity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sealing identity: %w", err)
	}
	defer file.Close()

	identities, err := age.ParseIdentities(file)
	if err != nil {
		return nil, fmt.Errorf("parsing sealing identity %s: %w", path, err)
	}
	for _, candidate := range identities {
		if x25519, ok := candidate.(*age.X25519Identity); ok {
			return x25519, nil
		}
	}
	return nil, fmt.Errorf("sealing identity %s contains no X25519 key", path)
}

func readPrivateKey(dir string, unsealing age.Identity) (ed25519.PrivateKey, error) {
	sealed, err := os.ReadFile(filepath.Join(dir, sealedPrivateKeyFile))
	switch {
	case err == nil:
		if unsealing == nil {
			return nil, fmt.Errorf("private key in %s is sealed and no sealing identity is configured", dir)
		}
		reader, err := age.Decrypt(bytes.NewReader(sealed), unsealing)
		if err != nil {
			return nil, fmt.Errorf("unsealing private key: %w", err)
		}
		private, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("reading unsealed private key: %w", err)
		}
		return private, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("reading sealed private key: %w", err)
	}

	private, err := os.ReadFile(filepath.Join(dir, privateKeyFile))
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	return private, nil
}
