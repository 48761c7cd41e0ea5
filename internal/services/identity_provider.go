package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"classconnect-auth/internal/apperrors"
	"classconnect-auth/internal/models"
)

var (
	ErrIdentityInvalid     = apperrors.New(apperrors.Unauthorized, "identity_invalid", "google token invalid or expired")
	ErrIdentityUnavailable = apperrors.New(apperrors.Unavailable, "identity_unavailable", "could not reach google, try again later")
	ErrIdentityNoEmail     = apperrors.New(apperrors.BadRequest, "identity_no_email", "could not obtain the user's email from google")
)

// IdentityProvider resolves a federated access token into a trusted identity.
type IdentityProvider interface {
	UserInfo(ctx context.Context, accessToken string) (*models.Identity, error)
}

type googleIdentity struct {
	userInfoURL string
	base        *http.Client
}

// NewGoogleIdentity queries the Google userinfo endpoint with the caller's
// access token. base may carry a timeout; nil uses http.DefaultClient.
func NewGoogleIdentity(userInfoURL string, base *http.Client) IdentityProvider {
	return &googleIdentity{userInfoURL: userInfoURL, base: base}
}

type googleUserInfo struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

func (g *googleIdentity) UserInfo(ctx context.Context, accessToken string) (*models.Identity, error) {
	if g.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.base)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Unavailable, ErrIdentityUnavailable.Type, ErrIdentityUnavailable.Message, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrIdentityInvalid
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.New(apperrors.Internal, "identity_error", fmt.Sprintf("unexpected google status %d", resp.StatusCode))
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, ErrIdentityNoEmail
	}
	return &models.Identity{
		Email:    info.Email,
		Name:     info.GivenName,
		LastName: info.FamilyName,
		Picture:  info.Picture,
	}, nil
}
