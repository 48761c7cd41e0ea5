package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"classconnect-auth/internal/apperrors"
	"classconnect-auth/internal/models"
)

var ErrProfileUnavailable = apperrors.New(apperrors.Unavailable, "profile_unavailable", "error creating profile")

type ProfileClient interface {
	CreateProfile(ctx context.Context, p models.Profile) error
}

type profileClient struct {
	baseURL string
	client  *http.Client
}

func NewProfileClient(baseURL string, client *http.Client) ProfileClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &profileClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *profileClient) CreateProfile(ctx context.Context, p models.Profile) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/profile", bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(apperrors.Unavailable, ErrProfileUnavailable.Type, ErrProfileUnavailable.Message, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.Unavailable, ErrProfileUnavailable.Type, ErrProfileUnavailable.Message, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.Wrap(apperrors.Unavailable, ErrProfileUnavailable.Type, ErrProfileUnavailable.Message,
			fmt.Errorf("profile service status %d", resp.StatusCode))
	}
	return nil
}
