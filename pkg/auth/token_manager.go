package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TokenManager caches a token for one grant and re-mints it shortly before
// it expires.
type TokenManager struct {
	minter        *Minter
	grant         Grant
	accessToken   string
	expiresAt     time.Time
	refreshMargin time.Duration
	mu            sync.RWMutex
}

// NewTokenManager creates a token manager for grant
func NewTokenManager(minter *Minter, grant Grant) *TokenManager {
	return &TokenManager{
		minter:        minter,
		grant:         grant,
		refreshMargin: 30 * time.Second, // Refresh 30 seconds before expiry
	}
}

// GetAccessToken returns a valid access token, minting a new one if necessary
func (tm *TokenManager) GetAccessToken(ctx context.Context) (string, error) {
	tm.mu.RLock()

	if tm.accessToken != "" && tm.minter.clock().Before(tm.expiresAt.Add(-tm.refreshMargin)) {
		token := tm.accessToken
		tm.mu.RUnlock()
		return token, nil
	}

	tm.mu.RUnlock()

	return tm.refreshAccessToken(ctx)
}

// refreshAccessToken mints a replacement token
func (tm *TokenManager) refreshAccessToken(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.accessToken != "" && tm.minter.clock().Before(tm.expiresAt.Add(-tm.refreshMargin)) {
		return tm.accessToken, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	token, exp, err := tm.minter.Mint(tm.grant)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	tm.accessToken = token
	tm.expiresAt = exp

	return tm.accessToken, nil
}

// IsExpired checks if the current token is expired
func (tm *TokenManager) IsExpired() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	return tm.accessToken == "" || tm.minter.clock().After(tm.expiresAt)
}
