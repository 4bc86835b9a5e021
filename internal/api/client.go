package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const defaultPageSize = 20

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

// WithRateLimit paces outgoing requests to rps with the given burst.
// A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewClient(baseURL, token string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    httpClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticated reports whether a bearer token is configured.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

func (c *Client) ListArtworks(ctx context.Context, page, limit int) (ArtworkPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}

	q := make(url.Values)
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out ArtworkPage
	if err := c.doJSON(ctx, "list artworks", http.MethodGet, "/artworks?"+q.Encode(), nil, false, &out); err != nil {
		return ArtworkPage{}, err
	}
	return out, nil
}

func (c *Client) ToggleLike(ctx context.Context, id ItemID) (LikeResult, error) {
	if id == "" {
		return LikeResult{}, fmt.Errorf("toggle like: empty artwork id")
	}
	var out likeResponse
	path := "/artworks/" + url.PathEscape(string(id)) + "/like"
	if err := c.doJSON(ctx, "toggle like", http.MethodPost, path, nil, true, &out); err != nil {
		return LikeResult{}, err
	}
	return out.result()
}

// ListLikedIDs returns the identifiers the current user has liked in feed.
// The response shape varies across feeds, so it is parsed leniently.
func (c *Client) ListLikedIDs(ctx context.Context, feed string) ([]ItemID, error) {
	feed = strings.Trim(feed, "/")
	if feed == "" {
		feed = "artworks"
	}
	body, err := c.do(ctx, "list liked "+feed, http.MethodGet, "/"+feed+"/liked", nil, true)
	if err != nil {
		return nil, err
	}
	ids, err := parseLikedIDs(body)
	if err != nil {
		return nil, fmt.Errorf("decode liked %s response: %w", feed, err)
	}
	return ids, nil
}

func (c *Client) TrackEvent(ctx context.Context, event EngagementEvent) error {
	_, err := c.do(ctx, "track engagement", http.MethodPost, "/engagement/track", event, true)
	return err
}

func (c *Client) TrackBatch(ctx context.Context, batchID string, events []EngagementEvent) error {
	if len(events) == 0 {
		return nil
	}
	_, err := c.do(ctx, "track engagement batch", http.MethodPost, "/engagement/batch", batchRequest{BatchID: batchID, Events: events}, true)
	return err
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, payload any, auth bool, out any) error {
	body, err := c.do(ctx, op, method, path, payload, auth)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any, auth bool) ([]byte, error) {
	if auth && c.token == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: wait for rate limiter: %w", op, err)
		}
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := c.newRequest(ctx, method, path, body, auth)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}
	return raw, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, auth bool) (*http.Request, error) {
	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

var likedIDKeys = []string{"_id", "id", "artworkId", "artwork._id", "artwork.id"}

func parseLikedIDs(body []byte) ([]ItemID, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json")
	}
	root := gjson.ParseBytes(body)
	list := root
	if root.IsObject() {
		found := false
		root.ForEach(func(_, value gjson.Result) bool {
			if value.IsArray() {
				list = value
				found = true
				return false
			}
			return true
		})
		if !found {
			return nil, fmt.Errorf("no id list in object")
		}
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("expected array, got %s", list.Type)
	}

	values := list.Array()
	ids := make([]ItemID, 0, len(values))
	for _, v := range values {
		switch v.Type {
		case gjson.String, gjson.Number:
			ids = append(ids, ItemID(v.String()))
		case gjson.JSON:
			for _, key := range likedIDKeys {
				if id := v.Get(key); id.Exists() && id.String() != "" {
					ids = append(ids, ItemID(id.String()))
					break
				}
			}
		}
	}
	return ids, nil
}
