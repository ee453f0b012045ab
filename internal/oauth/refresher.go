package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gcli-nexus-go/internal/credential"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
)

// Refresher exchanges refresh tokens for access tokens at Google's OAuth2
// token endpoint. It never mutates the credential it is given; the pool
// writes results back under its own serialization.
type Refresher struct {
	httpClient *http.Client
	tokenURL   string
	now        func() time.Time
}

// Option customizes Refresher creation.
type Option func(*Refresher)

// NewRefresher creates a refresher against Google's token endpoint.
func NewRefresher(opts ...Option) *Refresher {
	r := &Refresher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokenURL:   google.Endpoint.TokenURL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// WithHTTPClient overrides the HTTP client used for token requests.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Refresher) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// WithTokenURL overrides the token endpoint.
func WithTokenURL(tokenURL string) Option {
	return func(r *Refresher) {
		if tokenURL != "" {
			r.tokenURL = tokenURL
		}
	}
}

// WithNowFunc overrides the clock used for expiry calculation (testing).
func WithNowFunc(now func() time.Time) Option {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Refresh performs the refresh_token grant for rec and returns the new
// access token with its absolute expiry.
func (r *Refresher) Refresh(ctx context.Context, rec credential.Record) (string, time.Time, error) {
	if strings.TrimSpace(rec.RefreshToken) == "" {
		return "", time.Time{}, &RefreshError{Kind: KindMalformedResponse, err: fmt.Errorf("credential %d has no refresh token", rec.ID)}
	}

	form := url.Values{
		"client_id":     {rec.ClientID},
		"client_secret": {rec.ClientSecret},
		"refresh_token": {rec.RefreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, &RefreshError{Kind: KindTokenRequestFailed, err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, &RefreshError{Kind: KindTokenRequestFailed, err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", time.Time{}, &RefreshError{Kind: KindTokenRequestFailed, err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var oerr tokenErrorResponse
		if json.Unmarshal(body, &oerr) == nil && oerr.Error != "" {
			return "", time.Time{}, &RefreshError{Kind: KindProviderRejected, Code: oerr.Error,
				err: fmt.Errorf("token endpoint: %s (%s)", oerr.Error, oerr.ErrorDescription)}
		}
		return "", time.Time{}, &RefreshError{Kind: KindProviderRejected,
			err: fmt.Errorf("token endpoint returned status %d", resp.StatusCode)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", time.Time{}, &RefreshError{Kind: KindMalformedResponse, err: err}
	}
	if tok.AccessToken == "" || tok.ExpiresIn <= 0 {
		return "", time.Time{}, &RefreshError{Kind: KindMalformedResponse,
			err: fmt.Errorf("token response missing access_token or expires_in")}
	}

	expiry := r.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	log.WithField("credential_id", rec.ID).Debug("access token refreshed")
	return tok.AccessToken, expiry, nil
}
