// Package auth holds the identity-provider clients and the account-linking
// orchestrator that reconciles them against local user records.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	users "github.com/gin728/ginblog/internal/user"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Assertion is the normalized result of a completed provider authentication:
// the provider-scoped external id plus display name and avatar. It is
// consumed once by the orchestrator and discarded.
type Assertion struct {
	ExternalID string
	Username   string
	Avatar     *string
}

type profileFunc func(ctx context.Context, client *http.Client, profileURL string) (*Assertion, error)

// Provider wraps one OAuth issuer: the oauth2 client used for the
// authorization URL and code exchange, plus the profile endpoint that turns
// an access token into an Assertion. Protocol internals stay inside
// golang.org/x/oauth2; everything here is orchestration.
type Provider struct {
	Name       string
	Config     *oauth2.Config
	UsesPKCE   bool
	ProfileURL string

	fetch profileFunc
}

const (
	githubProfileURL  = "https://api.github.com/user"
	googleProfileURL  = "https://www.googleapis.com/oauth2/v3/userinfo"
	discordProfileURL = "https://discord.com/api/users/@me"
)

func NewGithubProvider(clientID, clientSecret, callbackURL string) *Provider {
	return &Provider{
		Name: users.ProviderGithub,
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Endpoint:     endpoints.GitHub,
		},
		ProfileURL: githubProfileURL,
		fetch:      fetchGithubProfile,
	}
}

func NewGoogleProvider(clientID, clientSecret, callbackURL string) *Provider {
	return &Provider{
		Name: users.ProviderGoogle,
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     endpoints.Google,
		},
		UsesPKCE:   true,
		ProfileURL: googleProfileURL,
		fetch:      fetchGoogleProfile,
	}
}

func NewDiscordProvider(clientID, clientSecret, callbackURL string) *Provider {
	return &Provider{
		Name: users.ProviderDiscord,
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"identify", "email"},
			Endpoint:     endpoints.Discord,
		},
		UsesPKCE:   true,
		ProfileURL: discordProfileURL,
		fetch:      fetchDiscordProfile,
	}
}

// LoadProviders builds the provider registry from environment credentials.
// Providers with missing credentials are omitted, not fatal; a personal
// deployment may configure only a subset.
func LoadProviders() map[string]*Provider {
	providers := make(map[string]*Provider)

	if id, secret := os.Getenv("GITHUB_CLIENT_ID"), os.Getenv("GITHUB_CLIENT_SECRET"); id != "" && secret != "" {
		providers[users.ProviderGithub] = NewGithubProvider(id, secret, os.Getenv("GITHUB_CALLBACK_URL"))
	}
	if id, secret := os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"); id != "" && secret != "" {
		providers[users.ProviderGoogle] = NewGoogleProvider(id, secret, os.Getenv("GOOGLE_CALLBACK_URL"))
	}
	if id, secret := os.Getenv("DISCORD_CLIENT_ID"), os.Getenv("DISCORD_CLIENT_SECRET"); id != "" && secret != "" {
		providers[users.ProviderDiscord] = NewDiscordProvider(id, secret, os.Getenv("DISCORD_CALLBACK_URL"))
	}

	return providers
}

// GenerateState returns the random state value bound to one login attempt.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthCodeURL builds the provider authorization URL. verifier is ignored for
// providers that do not use PKCE.
func (p *Provider) AuthCodeURL(state, verifier string) string {
	if p.UsesPKCE {
		return p.Config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	}
	return p.Config.AuthCodeURL(state)
}

// Exchange trades the authorization code for an access token.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	if p.UsesPKCE {
		return p.Config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	}
	return p.Config.Exchange(ctx, code)
}

// FetchProfile resolves the access token into a provider identity assertion.
func (p *Provider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Assertion, error) {
	client := p.Config.Client(ctx, token)
	assertion, err := p.fetch(ctx, client, p.ProfileURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s profile: %w", p.Name, err)
	}
	return assertion, nil
}

func fetchProfileJSON(ctx context.Context, client *http.Client, profileURL string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("profile endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return json.Unmarshal(body, dest)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func fetchGithubProfile(ctx context.Context, client *http.Client, profileURL string) (*Assertion, error) {
	var profile struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := fetchProfileJSON(ctx, client, profileURL, &profile); err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, fmt.Errorf("empty user id in profile response")
	}

	var avatar *string
	if profile.AvatarURL != "" {
		avatar = &profile.AvatarURL
	}
	return &Assertion{
		ExternalID: strconv.FormatInt(profile.ID, 10),
		Username:   profile.Login,
		Avatar:     avatar,
	}, nil
}

func fetchGoogleProfile(ctx context.Context, client *http.Client, profileURL string) (*Assertion, error) {
	var profile struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := fetchProfileJSON(ctx, client, profileURL, &profile); err != nil {
		return nil, err
	}
	if profile.Sub == "" {
		return nil, fmt.Errorf("empty sub in profile response")
	}

	var avatar *string
	if profile.Picture != "" {
		avatar = &profile.Picture
	}
	return &Assertion{
		ExternalID: profile.Sub,
		Username:   profile.Name,
		Avatar:     avatar,
	}, nil
}

func fetchDiscordProfile(ctx context.Context, client *http.Client, profileURL string) (*Assertion, error) {
	var profile struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
	}
	if err := fetchProfileJSON(ctx, client, profileURL, &profile); err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("empty user id in profile response")
	}

	var avatar *string
	if profile.Avatar != "" {
		url := fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", profile.ID, profile.Avatar)
		avatar = &url
	}
	return &Assertion{
		ExternalID: profile.ID,
		Username:   profile.Username,
		Avatar:     avatar,
	}, nil
}
