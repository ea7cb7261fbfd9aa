package engagementclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/apperrors"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Client calls the engagement service, one request per action.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials contract.ICredentialProvider
	requestIDs  contract.IUUIDGenerator
}

// Option is a function that configures the Client.
type Option func(*Client)

// NewClient creates an engagement service client rooted at baseURL.
func NewClient(baseURL string, credentials contract.ICredentialProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: defaultTimeout},
		credentials: credentials,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRequestIDs stamps every call with an X-Request-ID from gen.
func WithRequestIDs(gen contract.IUUIDGenerator) Option {
	return func(c *Client) {
		c.requestIDs = gen
	}
}

func (c *Client) Like(ctx context.Context, subjectID string) (*entity.EngagementResult, error) {
	return c.act(ctx, entity.ActionLike, subjectID, nil)
}

func (c *Client) Dislike(ctx context.Context, subjectID string) (*entity.EngagementResult, error) {
	return c.act(ctx, entity.ActionDislike, subjectID, nil)
}

func (c *Client) Save(ctx context.Context, subjectID string) (*entity.EngagementResult, error) {
	return c.act(ctx, entity.ActionSave, subjectID, nil)
}

func (c *Client) Share(ctx context.Context, subjectID string) (*entity.EngagementResult, error) {
	return c.act(ctx, entity.ActionShare, subjectID, nil)
}

func (c *Client) Report(ctx context.Context, subjectID, reason string) (*entity.EngagementResult, error) {
	return c.act(ctx, entity.ActionReport, subjectID, map[string]string{"reason": reason})
}

func (c *Client) act(ctx context.Context, action entity.ActionType, subjectID string, payload interface{}) (*entity.EngagementResult, error) {
	endpoint := fmt.Sprintf("%s/engagement/%s/%s", c.baseURL, url.PathEscape(subjectID), action)
	body, err := c.do(ctx, http.MethodPost, endpoint, string(action), subjectID, payload)
	if err != nil {
		return nil, err
	}
	result, err := normalizeResult(action, body)
	if err != nil {
		return nil, &apperrors.TransportError{Action: string(action), SubjectID: subjectID, Err: err}
	}
	return result, nil
}

// do executes an authenticated request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, endpoint, op, subjectID string, payload interface{}) ([]byte, error) {
	token, err := c.credentials.Token(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrAuthRequired) {
			return nil, err
		}
		return nil, &apperrors.TransportError{Action: op, SubjectID: subjectID, Err: err}
	}
	if token == "" {
		return nil, apperrors.ErrAuthRequired
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &apperrors.TransportError{Action: op, SubjectID: subjectID, Err: err}
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, &apperrors.TransportError{Action: op, SubjectID: subjectID, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.requestIDs != nil {
		req.Header.Set("X-Request-ID", c.requestIDs.NewUUID())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperrors.TransportError{Action: op, SubjectID: subjectID, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperrors.TransportError{Action: op, SubjectID: subjectID, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%s %s: %w", op, subjectID, apperrors.ErrAuthRequired)
	case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
		return nil, fmt.Errorf("%s: %w", subjectID, apperrors.ErrSubjectNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &apperrors.TransportError{Action: op, SubjectID: subjectID, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	return data, nil
}

var _ contract.IEngagementClient = (*Client)(nil)
