// Package uclapi talks to the institutional OAuth provider: authorize
// URL construction, code-for-token exchange and the user-data lookup.
package uclapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mentor-portal/internal/config"

	"golang.org/x/oauth2"
)

// ErrAuthFailed is the single error surfaced for any exchange or
// user-info failure. Detail goes to the server log only.
var ErrAuthFailed = errors.New("authentication failed")

// Profile is the verified identity payload returned by the provider,
// mapped onto the shape the session manager consumes.
type Profile struct {
	Email      string
	GivenName  string
	Surname    string
	FullName   string
	CN         string
	Department string
	StudentID  string
	StaffID    string
	IsStudent  bool
	IsStaff    bool
	UPI        string
	Groups     []string
	UserTypes  []string
}

type Client struct {
	oauth        *oauth2.Config
	clientSecret string
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
}

// NewClient builds a client for the configured provider.
func NewClient(cfg config.OAuthConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       []string{"user:read"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth/authorize",
				TokenURL:  base + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		clientSecret: cfg.ClientSecret,
		baseURL:      base,
		httpClient:   &http.Client{Timeout: timeout},
		timeout:      timeout,
	}
}

// AuthURL returns the provider authorize URL for the given redirect
// URI and opaque state blob.
func (c *Client) AuthURL(redirectURI, state string) string {
	conf := *c.oauth
	conf.RedirectURL = redirectURI
	return conf.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	conf := *c.oauth
	conf.RedirectURL = redirectURI
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		log.Printf("uclapi: token exchange failed: %v", err)
		return "", fmt.Errorf("exchange code: %w", ErrAuthFailed)
	}
	if tok.AccessToken == "" {
		log.Printf("uclapi: token exchange returned no access token")
		return "", fmt.Errorf("exchange code: %w", ErrAuthFailed)
	}
	return tok.AccessToken, nil
}

// userDataResponse mirrors the provider's user-data payload.
type userDataResponse struct {
	OK         bool     `json:"ok"`
	Error      string   `json:"error"`
	Email      string   `json:"email"`
	GivenName  string   `json:"given_name"`
	SN         string   `json:"sn"`
	FullName   string   `json:"full_name"`
	CN         string   `json:"cn"`
	Department string   `json:"department"`
	StudentID  string   `json:"student_id"`
	StaffID    string   `json:"staff_id"`
	IsStudent  bool     `json:"is_student"`
	UPI        string   `json:"upi"`
	UCLGroups  []string `json:"ucl_groups"`
	UserTypes  []string `json:"user_types"`
}

// UserInfo fetches the profile behind an access token. The provider
// expects both the token and the client secret as query parameters.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("token", accessToken)
	q.Set("client_secret", c.clientSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/oauth/user/data?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("user info: %w", ErrAuthFailed)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("uclapi: user data request failed: %v", err)
		return nil, fmt.Errorf("user info: %w", ErrAuthFailed)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("uclapi: read user data response: %v", err)
		return nil, fmt.Errorf("user info: %w", ErrAuthFailed)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("uclapi: user data request returned %d: %s", resp.StatusCode, body)
		return nil, fmt.Errorf("user info: %w", ErrAuthFailed)
	}

	var data userDataResponse
	if err := json.Unmarshal(body, &data); err != nil {
		log.Printf("uclapi: decode user data response: %v", err)
		return nil, fmt.Errorf("user info: %w", ErrAuthFailed)
	}
	if !data.OK {
		log.Printf("uclapi: user data response not ok: %s", data.Error)
		return nil, fmt.Errorf("user info: %w", ErrAuthFailed)
	}

	return &Profile{
		Email:      data.Email,
		GivenName:  data.GivenName,
		Surname:    data.SN,
		FullName:   data.FullName,
		CN:         data.CN,
		Department: data.Department,
		StudentID:  data.StudentID,
		StaffID:    data.StaffID,
		IsStudent:  data.IsStudent,
		IsStaff:    !data.IsStudent, // provider does not send a staff flag
		UPI:        data.UPI,
		Groups:     data.UCLGroups,
		UserTypes:  data.UserTypes,
	}, nil
}

// VerifyToken reports whether an access token still resolves to a
// profile.
func (c *Client) VerifyToken(ctx context.Context, accessToken string) bool {
	_, err := c.UserInfo(ctx, accessToken)
	return err == nil
}
