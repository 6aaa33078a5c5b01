// Package wallet validates Solana wallet addresses referenced by trade
// fingerprints. Addresses are base58-encoded ed25519 public keys;
// program-derived addresses are off the curve and are not wallets.
package wallet

import (
	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// pubkeyLen is the byte length of an ed25519 public key.
const pubkeyLen = 32

// IsValidAddress reports whether addr decodes to a 32-byte base58
// payload.
func IsValidAddress(addr string) bool {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return false
	}
	return len(decoded) == pubkeyLen
}

// IsOnCurve reports whether addr is an on-curve ed25519 point, i.e. a
// keypair-controlled wallet rather than a PDA.
func IsOnCurve(addr string) bool {
	decoded, err := base58.Decode(addr)
	if err != nil || len(decoded) != pubkeyLen {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}

// FilterWallets returns the subset of addrs that are valid, on-curve
// wallet addresses. Order is preserved.
func FilterWallets(addrs []string) []string {
	var out []string
	for _, a := range addrs {
		if IsOnCurve(a) {
			out = append(out, a)
		}
	}
	return out
}
