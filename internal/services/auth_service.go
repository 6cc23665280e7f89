package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cruzzer/bazaar-api/internal/config"
	"github.com/cruzzer/bazaar-api/internal/models"
)

// Claims represents the JWT claims
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

type challenge struct {
	message   string
	expiresAt time.Time
}

// AuthService issues login challenges for wallet addresses and exchanges a
// valid signature over a challenge for a JWT whose subject is the wallet
// address. Challenges are single-use and expire.
type AuthService struct {
	walletService *WalletService
	cfg           config.AuthConfig

	mu         sync.Mutex
	challenges map[string]challenge // keyed by wallet address
}

// NewAuthService creates a new AuthService
func NewAuthService(walletService *WalletService, cfg config.AuthConfig) *AuthService {
	return &AuthService{
		walletService: walletService,
		cfg:           cfg,
		challenges:    make(map[string]challenge),
	}
}

// NewChallenge issues a fresh login challenge for a wallet address,
// replacing any outstanding one.
func (s *AuthService) NewChallenge(address string) (*models.Challenge, error) {
	if !s.walletService.IsAddressValid(address) {
		return nil, fmt.Errorf("invalid wallet address")
	}

	message := fmt.Sprintf(
		"Sign this message to authenticate with Bazaar: %s (nonce: %s)",
		address, uuid.New().String(),
	)
	expiresAt := time.Now().Add(time.Duration(s.cfg.ChallengeExpiration) * time.Minute)

	s.mu.Lock()
	s.challenges[address] = challenge{message: message, expiresAt: expiresAt}
	s.mu.Unlock()

	return &models.Challenge{
		Address:   address,
		Message:   message,
		ExpiresAt: expiresAt,
	}, nil
}

// AuthenticateWithWallet verifies a signature over the outstanding challenge
// and returns a token for the wallet address. The challenge is consumed
// whether or not verification succeeds.
func (s *AuthService) AuthenticateWithWallet(req models.WalletAuthRequest) (*models.AuthToken, error) {
	s.mu.Lock()
	ch, ok := s.challenges[req.Address]
	delete(s.challenges, req.Address)
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no challenge outstanding for %s", req.Address)
	}
	if time.Now().After(ch.expiresAt) {
		return nil, fmt.Errorf("challenge expired")
	}

	valid, err := s.walletService.VerifySignature(ch.message, req.PublicKey, req.Signature)
	if err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}
	if !valid {
		return nil, fmt.Errorf("invalid signature")
	}

	token, expiresAt, err := s.generateToken(req.Address)
	if err != nil {
		return nil, err
	}

	return &models.AuthToken{
		Token:     token,
		Address:   req.Address,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT and returns the wallet address it was issued
// for.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid || claims.Address == "" {
		return "", fmt.Errorf("invalid token")
	}

	return claims.Address, nil
}

func (s *AuthService) generateToken(address string) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(s.cfg.JWTExpiration) * time.Hour)

	claims := &Claims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}
