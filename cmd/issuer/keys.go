package main

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/term"
)

// signingKeyFromEnv loads the issuer's signing key:
//   - ISSUER_PRIVATE_KEY takes priority: a hex-encoded private key decoded
//     directly.
//   - Otherwise ISSUER_KEYSTORE must point at a keystore file. If
//     ISSUER_KEYSTORE_PASSWORD is set it is used to decrypt; otherwise the
//     user is prompted.
func signingKeyFromEnv() (*ecdsa.PrivateKey, error) {
	if privateKeyHex := os.Getenv("ISSUER_PRIVATE_KEY"); privateKeyHex != "" {
		return crypto.HexToECDSA(privateKeyHex)
	}

	keystoreFile := os.Getenv("ISSUER_KEYSTORE")
	if keystoreFile == "" {
		return nil, errors.New("ISSUER_PRIVATE_KEY or ISSUER_KEYSTORE must be set")
	}

	password, havePassword := os.LookupEnv("ISSUER_KEYSTORE_PASSWORD")
	return privateKeyFromKeystoreFile(keystoreFile, password, !havePassword)
}

// privateKeyFromKeystoreFile decrypts a private key from a keystore file.
// If prompt is true the user is interactively asked for the password.
func privateKeyFromKeystoreFile(keystoreFile, password string, prompt bool) (*ecdsa.PrivateKey, error) {
	keystoreContent, err := os.ReadFile(keystoreFile)
	if err != nil {
		return nil, err
	}

	if prompt {
		fmt.Printf("Password for keystore (%s): ", keystoreFile)
		passwordRaw, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		fmt.Print("\n")
		password = string(passwordRaw)
	}

	key, err := keystore.DecryptKey(keystoreContent, password)
	if err != nil {
		return nil, err
	}
	return key.PrivateKey, nil
}
