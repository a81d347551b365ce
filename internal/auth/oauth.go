package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	ProviderGoogle = "google"

	googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	stateTTL          = 10 * time.Minute
)

var (
	ErrStateMismatch = errors.New("oauth state mismatch")
	ErrNoEmail       = errors.New("identity has no verified email")
)

// Identity is what the provider tells us about the person signing in.
type Identity struct {
	Provider string
	Subject  string
	Email    string
}

// Google drives the authorization-code flow against Google.
// States are single use and expire after stateTTL.
type Google struct {
	Config      *oauth2.Config
	UserInfoURL string
	states      *cache.Cache
}

func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email"},
		},
		UserInfoURL: googleUserInfoURL,
		states:      cache.New(stateTTL, 2*stateTTL),
	}
}

// AuthCodeURL remembers a fresh state and returns the consent page URL.
func (g *Google) AuthCodeURL() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	g.states.Set(state, struct{}{}, cache.DefaultExpiration)
	return g.Config.AuthCodeURL(state), nil
}

// Exchange consumes state, trades code for a token and reads the userinfo document.
func (g *Google) Exchange(ctx context.Context, state, code string) (Identity, error) {
	if state == "" {
		return Identity{}, ErrStateMismatch
	}
	if _, ok := g.states.Get(state); !ok {
		return Identity{}, ErrStateMismatch
	}
	g.states.Delete(state)

	tok, err := g.Config.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("oauth exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.UserInfoURL, nil)
	if err != nil {
		return Identity{}, err
	}
	resp, err := g.Config.Client(ctx, tok).Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Identity{}, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return Identity{}, errors.New("userinfo missing sub")
	}
	if info.Email == "" || !info.EmailVerified {
		return Identity{}, ErrNoEmail
	}

	return Identity{
		Provider: ProviderGoogle,
		Subject:  info.Sub,
		Email:    strings.ToLower(strings.TrimSpace(info.Email)),
	}, nil
}
