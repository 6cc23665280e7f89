package services

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// WalletService handles wallet operations
type WalletService struct{}

// NewWalletService creates a new WalletService
func NewWalletService() *WalletService {
	return &WalletService{}
}

// VerifySignature verifies a signature over a message against the given
// public key. 64-byte signatures are treated as Schnorr (Taproot), anything
// else as DER-encoded ECDSA.
func (s *WalletService) VerifySignature(message, pubKeyHex, sigHex string) (bool, error) {
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid signature format: %w", err)
	}

	pubKeyBytes, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("invalid public key format: %w", err)
	}

	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false, fmt.Errorf("failed to parse public key: %w", err)
	}

	msgHash := chainhash.HashB([]byte(message))

	if len(sigBytes) == schnorr.SignatureSize {
		sig, err := schnorr.ParseSignature(sigBytes)
		if err != nil {
			return false, fmt.Errorf("failed to parse Schnorr signature: %w", err)
		}
		return sig.Verify(msgHash, pubKey), nil
	}

	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false, fmt.Errorf("failed to parse ECDSA signature: %w", err)
	}
	return sig.Verify(msgHash, pubKey), nil
}

// IsAddressValid checks if a wallet address looks plausible.
func (s *WalletService) IsAddressValid(address string) bool {
	// TODO: verify the checksum instead of the prefix only
	prefixes := []string{"1", "3", "bc1", "tb1"}

	for _, prefix := range prefixes {
		if len(address) > len(prefix) && address[:len(prefix)] == prefix {
			return true
		}
	}

	return false
}
