package models

import (
	"time"
)

// Challenge represents a login challenge issued for a wallet address
type Challenge struct {
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChallengeRequest represents a request for a login challenge
type ChallengeRequest struct {
	Address string `json:"address"`
}

// WalletAuthRequest represents a request to authenticate with a wallet
type WalletAuthRequest struct {
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

// AuthToken represents the authentication token response
type AuthToken struct {
	Token     string    `json:"token"`
	Address   string    `json:"address"`
	ExpiresAt time.Time `json:"expires_at"`
}
