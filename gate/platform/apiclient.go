package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/humancheck/gatekeeper/util"

	"github.com/carlmjohnson/versioninfo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// Client for a platform moderation HTTP API, scoped to a single community.
//
// Requests are rate-limited client-side, and retried on connection errors and 5xx/429 responses.
type APIClient struct {
	Client    *http.Client
	Host      string
	Community string
	Token     string
	Limiter   *rate.Limiter
	Logger    *slog.Logger
}

var _ Client = (*APIClient)(nil)

// ratelimit is in requests per second; zero disables client-side rate limiting
func NewAPIClient(host, community, token string, ratelimit float64, logger *slog.Logger) *APIClient {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratelimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratelimit), 1)
	}
	client := util.RobustHTTPClient(logger)
	client.Transport = otelhttp.NewTransport(client.Transport)
	return &APIClient{
		Client:    client,
		Host:      host,
		Community: community,
		Token:     token,
		Limiter:   limiter,
		Logger:    logger.With("component", "platform-client"),
	}
}

type removeContentReq struct {
	Spam bool `json:"spam"`
}

type reasonReq struct {
	Reason string `json:"reason"`
}

type banUserReq struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
	Context string `json:"context,omitempty"`
}

type modNoteReq struct {
	Note  string `json:"note"`
	Label string `json:"label,omitempty"`
}

type messageReq struct {
	ConversationID string `json:"conversationId,omitempty"`
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

type messageResp struct {
	ConversationID string `json:"conversationId"`
}

type moderatorsResp struct {
	Moderators []Moderator `json:"moderators"`
}

type bannedResp struct {
	Banned bool `json:"banned"`
}

func (c *APIClient) RemoveContent(ctx context.Context, contentID string, asSpam bool) error {
	return c.do(ctx, "remove", http.MethodPost, "/content/"+url.PathEscape(contentID)+"/remove", removeContentReq{Spam: asSpam}, nil)
}

func (c *APIClient) ReportContent(ctx context.Context, contentID, reason string) error {
	return c.do(ctx, "report", http.MethodPost, "/content/"+url.PathEscape(contentID)+"/report", reasonReq{Reason: reason}, nil)
}

func (c *APIClient) BanUser(ctx context.Context, username, reason, message, contextID string) error {
	body := banUserReq{Reason: reason, Message: message, Context: contextID}
	return c.do(ctx, "ban", http.MethodPost, "/users/"+url.PathEscape(username)+"/ban", body, nil)
}

func (c *APIClient) AddModNote(ctx context.Context, username, note, label string) error {
	return c.do(ctx, "modnote", http.MethodPost, "/users/"+url.PathEscape(username)+"/notes", modNoteReq{Note: note, Label: label}, nil)
}

func (c *APIClient) SendOrAppendMessage(ctx context.Context, conversationID, to, subject, body string) (string, error) {
	var out messageResp
	req := messageReq{ConversationID: conversationID, To: to, Subject: subject, Body: body}
	if err := c.do(ctx, "message", http.MethodPost, "/messages", req, &out); err != nil {
		return "", err
	}
	if out.ConversationID == "" {
		return conversationID, nil
	}
	return out.ConversationID, nil
}

func (c *APIClient) ArchiveConversation(ctx context.Context, conversationID string) error {
	return c.do(ctx, "archive", http.MethodPost, "/messages/"+url.PathEscape(conversationID)+"/archive", nil, nil)
}

func (c *APIClient) ListModerators(ctx context.Context) ([]Moderator, error) {
	var out moderatorsResp
	if err := c.do(ctx, "moderators", http.MethodGet, "/moderators", nil, &out); err != nil {
		return nil, err
	}
	return out.Moderators, nil
}

func (c *APIClient) GetUserProfile(ctx context.Context, username string) (*UserProfile, error) {
	var out UserProfile
	if err := c.do(ctx, "profile", http.MethodGet, "/users/"+url.PathEscape(username), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) IsBanned(ctx context.Context, username string) (bool, error) {
	var out bannedResp
	if err := c.do(ctx, "banned", http.MethodGet, "/users/"+url.PathEscape(username)+"/ban", nil, &out); err != nil {
		return false, err
	}
	return out.Banned, nil
}

func (c *APIClient) do(ctx context.Context, method, verb, path string, body, out any) error {
	if err := c.Limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	u := fmt.Sprintf("%s/api/v1/communities/%s%s", c.Host, url.PathEscape(c.Community), path)
	req, err := http.NewRequestWithContext(ctx, verb, u, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "gatekeeper/"+versioninfo.Short())
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	defer func() {
		platformAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	c.Logger.Debug("platform API request", "method", method, "path", path)
	resp, err := c.Client.Do(req)
	if err != nil {
		platformAPICount.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("platform %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	platformAPICount.WithLabelValues(method, fmt.Sprint(resp.StatusCode)).Inc()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: platform %s %s", ErrNotFound, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("platform %s request failed statusCode=%d", method, resp.StatusCode)
	}
	if out == nil {
		return nil
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read platform %s response body: %w", method, err)
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("failed to parse platform %s response JSON: %w", method, err)
	}
	return nil
}
