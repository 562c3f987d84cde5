package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleBridge exchanges a Google authorization code for a verified email
// and feeds it into the federated-login path of the Service.
type GoogleBridge struct {
	oauth       *oauth2.Config
	service     *Service
	userinfoURL string
}

// NewGoogleBridge creates a GoogleBridge with the given OAuth credentials.
func NewGoogleBridge(clientID, clientSecret, redirectURI string, service *Service) *GoogleBridge {
	return &GoogleBridge{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.profile",
				"https://www.googleapis.com/auth/userinfo.email",
			},
			Endpoint: google.Endpoint,
		},
		service:     service,
		userinfoURL: googleUserinfoURL,
	}
}

// oauthState is the client context carried through the OAuth redirect so the
// callback can bind the session to the device that started the flow.
type oauthState struct {
	UserAgent string `json:"userAgent"`
	IP        string `json:"ip"`
}

// AuthorizationURL returns the Google consent URL with {userAgent, ip}
// encoded as base64 JSON state.
func (b *GoogleBridge) AuthorizationURL(userAgent, ip string) (string, error) {
	raw, err := json.Marshal(oauthState{UserAgent: userAgent, IP: ip})
	if err != nil {
		return "", fmt.Errorf("encode oauth state: %w", err)
	}
	state := base64.StdEncoding.EncodeToString(raw)
	return b.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Callback exchanges the authorization code for the user's Google profile
// and logs them in, creating the account on first sight. A state that fails
// to decode falls back to unknown device context rather than failing the
// login.
func (b *GoogleBridge) Callback(ctx context.Context, code, state string) (TokenPair, error) {
	userAgent, ip := decodeState(state)

	token, err := b.oauth.Exchange(ctx, code)
	if err != nil {
		return TokenPair{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	identity, err := b.fetchIdentity(ctx, token)
	if err != nil {
		return TokenPair{}, err
	}

	return b.service.FederatedLogin(ctx, identity, userAgent, ip)
}

func decodeState(state string) (userAgent, ip string) {
	userAgent, ip = "unknown", "unknown"
	raw, err := base64.StdEncoding.DecodeString(state)
	if err != nil {
		return
	}
	var st oauthState
	if err := json.Unmarshal(raw, &st); err != nil {
		return
	}
	if st.UserAgent != "" {
		userAgent = st.UserAgent
	}
	if st.IP != "" {
		ip = st.IP
	}
	return
}

type googleUserinfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (b *GoogleBridge) fetchIdentity(ctx context.Context, token *oauth2.Token) (ExternalIdentity, error) {
	client := b.oauth.Client(ctx, token)
	resp, err := client.Get(b.userinfoURL)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ExternalIdentity{}, fmt.Errorf("fetch userinfo: unexpected status %d", resp.StatusCode)
	}

	var info googleUserinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ExternalIdentity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" {
		return ExternalIdentity{}, fmt.Errorf("userinfo response has no email")
	}

	return ExternalIdentity{Email: info.Email, Name: info.Name, Avatar: info.Picture}, nil
}
