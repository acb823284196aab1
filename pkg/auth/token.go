package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long minted tokens stay valid.
const DefaultTTL = 6 * time.Hour

// ErrMissingCredentials is returned when no API key or secret is available.
var ErrMissingCredentials = errors.New("auth: api key and secret are required")

// VideoGrant is the room permission block carried in the "video" claim.
type VideoGrant struct {
	RoomCreate     bool   `json:"roomCreate,omitempty"`
	RoomList       bool   `json:"roomList,omitempty"`
	RoomAdmin      bool   `json:"roomAdmin,omitempty"`
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	Room           string `json:"room,omitempty"`
	CanPublish     *bool  `json:"canPublish,omitempty"`
	CanPublishData *bool  `json:"canPublishData,omitempty"`
	CanSubscribe   *bool  `json:"canSubscribe,omitempty"`
}

// Claims are the JWT claims of a room access token.
type Claims struct {
	jwt.RegisteredClaims
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
}

// Grant describes who a token is for and what it allows.
type Grant struct {
	Identity string
	Name     string
	Video    VideoGrant
}

// ParticipantGrant lets identity join room and publish media and data.
func ParticipantGrant(identity, name, room string) Grant {
	yes, no := true, false
	return Grant{
		Identity: identity,
		Name:     name,
		Video: VideoGrant{
			RoomJoin:       true,
			Room:           room,
			CanPublish:     &yes,
			CanPublishData: &yes,
			CanSubscribe:   &no,
		},
	}
}

// AdminGrant allows the room service calls used by the CLI.
func AdminGrant(room string) Grant {
	return Grant{
		Video: VideoGrant{
			RoomCreate: true,
			RoomList:   true,
			RoomAdmin:  true,
			Room:       room,
		},
	}
}

// Minter signs access tokens with an API key/secret pair.
type Minter struct {
	APIKey    string
	APISecret string
	TTL       time.Duration

	now func() time.Time
}

// NewMinter creates a minter. A zero ttl uses DefaultTTL.
func NewMinter(apiKey, apiSecret string, ttl time.Duration) (*Minter, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, ErrMissingCredentials
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Minter{APIKey: apiKey, APISecret: apiSecret, TTL: ttl, now: time.Now}, nil
}

func (m *Minter) clock() time.Time {
	if m.now == nil {
		return time.Now()
	}
	return m.now()
}

// Mint returns a signed HS256 token for g and its expiry.
func (m *Minter) Mint(g Grant) (string, time.Time, error) {
	now := m.clock()
	exp := now.Add(m.TTL)

	video := g.Video
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.APIKey,
			Subject:   g.Identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Name:  g.Name,
		Video: &video,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.APISecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, exp, nil
}

// Verify checks signature, issuer and expiry and returns the claims.
func (m *Minter) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(m.APISecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.APIKey),
		jwt.WithTimeFunc(m.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// Identity verifies token and returns its subject.
func (m *Minter) Identity(token string) (string, error) {
	claims, err := m.Verify(token)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no identity")
	}
	return claims.Subject, nil
}
