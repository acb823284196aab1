package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/picogrid/squad-sim/pkg/client"
)

// Default environment variables holding the API credentials.
const (
	DefaultKeyEnv    = "LIVEKIT_API_KEY"
	DefaultSecretEnv = "LIVEKIT_API_SECRET"
)

// Credentials is an API key/secret pair.
type Credentials struct {
	APIKey    string
	APISecret string
}

// ResolveCredentials reads the API key and secret from the named environment
// variables and prompts for whatever is missing.
func ResolveCredentials(keyEnv, secretEnv string) (Credentials, error) {
	if keyEnv == "" {
		keyEnv = DefaultKeyEnv
	}
	if secretEnv == "" {
		secretEnv = DefaultSecretEnv
	}

	creds := Credentials{
		APIKey:    os.Getenv(keyEnv),
		APISecret: os.Getenv(secretEnv),
	}

	if creds.APIKey != "" && creds.APISecret != "" {
		fmt.Println("🔐 Using API credentials from environment")
		return creds, nil
	}

	fmt.Println("🔐 Room Server Credentials")
	fmt.Println(strings.Repeat("=", 50))

	if creds.APIKey == "" {
		fmt.Print("API Key: ")
		if _, err := fmt.Scanln(&creds.APIKey); err != nil {
			return Credentials{}, err
		}
	}

	if creds.APISecret == "" {
		fmt.Print("API Secret: ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return Credentials{}, fmt.Errorf("failed to read secret: %w", err)
		}
		fmt.Println() // New line after secret input
		creds.APISecret = string(secret)
	}

	if creds.APIKey == "" || creds.APISecret == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return creds, nil
}

// ParticipantTokens mints a join-and-publish token per entity for one room.
type ParticipantTokens struct {
	Minter *Minter
	Room   string
}

// Token implements session.TokenSource.
func (p *ParticipantTokens) Token(ctx context.Context, identity, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	token, _, err := p.Minter.Mint(ParticipantGrant(identity, name, p.Room))
	return token, err
}

// CreateRoomServiceClient creates an admin API client authenticated with a
// self-refreshing admin token
func CreateRoomServiceClient(baseURL string, minter *Minter, room string) (*client.RoomService, error) {
	return client.NewClient(client.Config{
		BaseURL:      baseURL,
		TokenManager: NewTokenManager(minter, AdminGrant(room)),
	})
}
