package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var (
	ErrInvalidProviderConfig = errors.New("auth: invalid google provider config")
	ErrExchange              = errors.New("auth: authorization code exchange failed")
	ErrIdentityMissing       = errors.New("auth: provider returned no identity")
)

// ExternalIdentity is the normalized profile obtained from the provider
// during one callback. It is never persisted directly.
type ExternalIdentity struct {
	Subject   string
	Email     string
	FullName  string
	AvatarURL string
}

// GoogleProviderConfig bundles configuration required to instantiate a GoogleProvider.
// Endpoint and UserInfoURL default to Google's production endpoints.
type GoogleProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
	HTTPClient   *http.Client
}

// GoogleProvider builds consent URLs and exchanges authorization codes
// for verified external identities.
type GoogleProvider struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewGoogleProvider constructs a provider with validated configuration.
func NewGoogleProvider(cfg GoogleProviderConfig) (*GoogleProvider, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id required", ErrInvalidProviderConfig)
	}
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: client secret required", ErrInvalidProviderConfig)
	}
	redirectURL := strings.TrimSpace(cfg.RedirectURL)
	if redirectURL == "" {
		return nil, fmt.Errorf("%w: redirect url required", ErrInvalidProviderConfig)
	}

	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	userInfoURL := strings.TrimSpace(cfg.UserInfoURL)
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}

	return &GoogleProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
		httpClient:  cfg.HTTPClient,
	}, nil
}

// LoginURL returns the provider consent URL. Offline access and forced
// re-consent are requested so every login yields a refresh-capable grant
// and fresh profile data.
func (p *GoogleProvider) LoginURL(state string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange swaps an authorization code for the authenticated user's
// normalized identity.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (ExternalIdentity, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	return p.fetchIdentity(ctx, token)
}

// userInfoPayload models the loosely-typed profile document returned by
// the userinfo endpoint. Every field except the subject is optional.
type userInfoPayload struct {
	Subject   string `json:"sub"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	GivenName string `json:"given_name"`
	Picture   string `json:"picture"`
}

func (p *GoogleProvider) fetchIdentity(ctx context.Context, token *oauth2.Token) (ExternalIdentity, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	response, err := p.oauthConfig.Client(ctx, token).Do(request)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("%w: %v", ErrExchange, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return ExternalIdentity{}, fmt.Errorf("%w: userinfo request returned status %d", ErrExchange, response.StatusCode)
	}

	var payload userInfoPayload
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return ExternalIdentity{}, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	subject := strings.TrimSpace(payload.Subject)
	if subject == "" {
		return ExternalIdentity{}, ErrIdentityMissing
	}

	fullName := strings.TrimSpace(payload.Name)
	if fullName == "" {
		fullName = strings.TrimSpace(payload.GivenName)
	}

	return ExternalIdentity{
		Subject:   subject,
		Email:     strings.TrimSpace(payload.Email),
		FullName:  fullName,
		AvatarURL: strings.TrimSpace(payload.Picture),
	}, nil
}
