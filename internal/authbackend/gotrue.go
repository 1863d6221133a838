package authbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pulseboard/internal/model"

	"github.com/pkg/errors"
)

// GoTrue is a client for a Supabase-style GoTrue identity server.
type GoTrue struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewGoTrue(projectURL, apiKey string, timeout time.Duration) *GoTrue {
	return &GoTrue{
		baseURL:    strings.TrimRight(projectURL, "/") + "/auth/v1",
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	User         gotrueUser `json:"user"`
}

func (g *GoTrue) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var out gotrueSession
	body := map[string]string{"email": email, "password": password}
	if err := g.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &out, ErrInvalidCredentials); err != nil {
		return nil, err
	}
	return out.session()
}

func (g *GoTrue) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var out gotrueSession
	body := map[string]string{"refresh_token": refreshToken}
	if err := g.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &out, ErrInvalidToken); err != nil {
		return nil, err
	}
	return out.session()
}

func (g *GoTrue) GetUser(ctx context.Context, accessToken string) (model.Identity, error) {
	var out gotrueUser
	if err := g.do(ctx, http.MethodGet, "/user", accessToken, nil, &out, ErrInvalidToken); err != nil {
		return model.Identity{}, err
	}
	return model.Identity{ID: out.ID, Email: out.Email}, nil
}

func (g *GoTrue) SignOut(ctx context.Context, accessToken string) error {
	return g.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil, ErrInvalidToken)
}

func (s gotrueSession) session() (*Session, error) {
	if s.AccessToken == "" || s.RefreshToken == "" || s.User.ID == "" {
		return nil, errors.Wrap(ErrUnavailable, "incomplete session in provider response")
	}
	return &Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		Identity:     model.Identity{ID: s.User.ID, Email: s.User.Email},
	}, nil
}

// do sends one request. 4xx answers map to rejectErr, everything else that is not 2xx
// (and transport failures) maps to ErrUnavailable.
func (g *GoTrue) do(ctx context.Context, method, path, bearer string, body, out any, rejectErr error) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("apikey", g.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(fmt.Errorf("%w: %w", ErrUnavailable, err), method+" "+path)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return errors.Wrapf(rejectErr, "provider answered %d", resp.StatusCode)
	default:
		return errors.Wrapf(ErrUnavailable, "provider answered %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(ErrUnavailable, "decode provider response: "+err.Error())
	}
	return nil
}
