// Package wallet handles Ethereum account identifiers: address
// normalisation and recovery of the signer of a personal_sign message.
package wallet

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/rohits-web03/chainforge/internal/common"
	"golang.org/x/crypto/sha3"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Normalize validates a hex account address and lowercases it. Lowercase is
// the canonical form for every ownership comparison.
func Normalize(address string) (string, error) {
	a := strings.TrimSpace(address)
	if a == "" {
		return "", fmt.Errorf("%w: wallet address is required", common.ErrValidation)
	}
	if !addressPattern.MatchString(a) {
		return "", fmt.Errorf("%w: malformed wallet address %q", common.ErrValidation, address)
	}
	return strings.ToLower(a), nil
}

// LoginMessage is the exact text a wallet signs to prove control of address.
func LoginMessage(address, nonce string) string {
	return fmt.Sprintf("Sign in to ChainForge\n\nWallet: %s\nNonce: %s", strings.ToLower(address), nonce)
}

// Verify checks that signature is a personal_sign signature of message made
// by address.
func Verify(address, message, signature string) error {
	want, err := Normalize(address)
	if err != nil {
		return err
	}
	got, err := RecoverAddress(message, signature)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: signature does not match wallet", common.ErrUnauthorized)
	}
	return nil
}

// RecoverAddress returns the lowercase address that produced a 65-byte
// r||s||v signature over the EIP-191 hash of message.
func RecoverAddress(message, signature string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "0x"))
	if err != nil {
		return "", fmt.Errorf("%w: signature is not hex", common.ErrUnauthorized)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("%w: signature must be 65 bytes, got %d", common.ErrUnauthorized, len(sig))
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return "", fmt.Errorf("%w: bad recovery id %d", common.ErrUnauthorized, sig[64])
	}

	// decred expects the recovery byte first.
	compact := make([]byte, 65)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, HashMessage([]byte(message)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}
	return PublicKeyToAddress(pub), nil
}

// HashMessage is keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
func HashMessage(msg []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "\x19Ethereum Signed Message:\n%d", len(msg))
	h.Write(msg)
	return h.Sum(nil)
}

// PublicKeyToAddress derives the account address of a secp256k1 key.
func PublicKeyToAddress(pub *secp256k1.PublicKey) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub.SerializeUncompressed()[1:])
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[12:])
}
