package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Platform error codes that mean the cached access token is stale.
const (
	errCodeTokenInvalid = 40014
	errCodeTokenExpired = 42001
)

// tokenRefreshMargin renews the token before the platform expiry (7200s)
// actually hits, so in-flight sends never race the cutoff.
const tokenRefreshMargin = 5 * time.Minute

// Client talks to the WeCom send API. Access tokens are cached and
// refreshed ahead of expiry under a mutex.
type Client struct {
	corpID     string
	corpSecret string
	agentID    int
	apiBase    string
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a send API client. apiBase defaults to the public
// qyapi endpoint when empty.
func NewClient(corpID, corpSecret string, agentID int, apiBase string) *Client {
	if apiBase == "" {
		apiBase = "https://qyapi.weixin.qq.com/cgi-bin"
	}
	return &Client{
		corpID:     corpID,
		corpSecret: corpSecret,
		agentID:    agentID,
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// AccessToken returns a valid cached token or fetches a fresh one.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenRefreshMargin)) {
		return c.accessToken, nil
	}
	return c.refreshTokenLocked(ctx)
}

func (c *Client) refreshTokenLocked(ctx context.Context) (string, error) {
	u := fmt.Sprintf("%s/gettoken?corpid=%s&corpsecret=%s",
		c.apiBase, url.QueryEscape(c.corpID), url.QueryEscape(c.corpSecret))

	httpReq, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var tokenResp struct {
		ErrCode     int    `json:"errcode"`
		ErrMsg      string `json:"errmsg"`
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tokenResp.ErrCode != 0 {
		return "", fmt.Errorf("token API error %d: %s", tokenResp.ErrCode, tokenResp.ErrMsg)
	}

	expiresIn := tokenResp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 7200
	}
	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	slog.Info("Access token refreshed", "expires_in", expiresIn)
	return c.accessToken, nil
}

// invalidateToken drops the cached token so the next call re-fetches.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

// SendText sends one text message to a user. A stale-token error code
// triggers exactly one forced refresh and retry.
func (c *Client) SendText(ctx context.Context, userID, content string) error {
	errCode, err := c.sendTextOnce(ctx, userID, content)
	if err != nil && (errCode == errCodeTokenInvalid || errCode == errCodeTokenExpired) {
		c.invalidateToken()
		_, err = c.sendTextOnce(ctx, userID, content)
	}
	return err
}

func (c *Client) sendTextOnce(ctx context.Context, userID, content string) (int, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return 0, err
	}

	body := map[string]any{
		"touser":  userID,
		"msgtype": "text",
		"agentid": c.agentID,
		"text": map[string]any{
			"content": content,
		},
		"safe": 0,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal send request: %w", err)
	}

	u := fmt.Sprintf("%s/message/send?access_token=%s", c.apiBase, url.QueryEscape(token))
	httpReq, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(jsonBody))
	if err != nil {
		return 0, fmt.Errorf("create send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("execute send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read send response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("send API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var sendResp struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return 0, fmt.Errorf("parse send response: %w", err)
	}
	if sendResp.ErrCode != 0 {
		return sendResp.ErrCode, fmt.Errorf("send API error %d: %s", sendResp.ErrCode, sendResp.ErrMsg)
	}
	return 0, nil
}

// SendSegments sends multiple text segments to a user in order, with a
// short pause between them so the conversation reads naturally. Partial
// failure is reported but does not stop the remaining segments.
func (c *Client) SendSegments(ctx context.Context, userID string, segments []string) error {
	var failed int
	for i, segment := range segments {
		if err := c.SendText(ctx, userID, segment); err != nil {
			slog.Error("Segment send failed", "user", userID, "segment", i+1, "error", err)
			failed++
			continue
		}
		if i < len(segments)-1 {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if failed == len(segments) && failed > 0 {
		return fmt.Errorf("all %d segments failed for user %s", failed, userID)
	}
	return nil
}
