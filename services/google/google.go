package googlesvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	userInfoURL   = "https://www.googleapis.com/oauth2/v3/userinfo"
	siteVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

	ErrInvalidAccessToken = errors.New("invalid Google access token")
	ErrCaptchaFailed      = errors.New("reCAPTCHA verification failed")
)

// UserInfo is the subset of Google's OAuth2 userinfo payload we care about.
type UserInfo struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type Client struct {
	httpClient      *http.Client
	recaptchaSecret string
}

func NewClient(recaptchaSecret string) *Client {
	return &Client{
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		recaptchaSecret: recaptchaSecret,
	}
}

// GetUserInfo resolves a Google OAuth2 access token to the holder's profile.
func (c *Client) GetUserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return UserInfo{}, errors.Wrap(err, "building userinfo request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return UserInfo{}, errors.Wrap(err, "fetching userinfo")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return UserInfo{}, ErrInvalidAccessToken
	}

	var info UserInfo
	if err = json.NewDecoder(res.Body).Decode(&info); err != nil {
		return UserInfo{}, errors.Wrap(err, "decoding userinfo")
	}
	if info.Email == "" {
		return UserInfo{}, ErrInvalidAccessToken
	}
	return info, nil
}

// VerifyCaptcha checks a reCAPTCHA response token against Google's siteverify API.
func (c *Client) VerifyCaptcha(ctx context.Context, token string) error {
	form := url.Values{}
	form.Set("secret", c.recaptchaSecret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, siteVerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "building siteverify request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "verifying captcha")
	}
	defer res.Body.Close()

	var body struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return errors.Wrap(err, "decoding siteverify response")
	}
	if !body.Success {
		return ErrCaptchaFailed
	}
	return nil
}
