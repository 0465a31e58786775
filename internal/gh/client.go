package gh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noraneko-dev/cachesweep/internal/models"

	"go.uber.org/zap"
)

const (
	apiVersion = "2022-11-28"
	perPage    = 100
)

// Client talks to the GitHub Actions cache REST API for a single repository.
type Client struct {
	baseURL string
	token   string
	owner   string
	repo    string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, token, repo string, logger *zap.Logger) (*Client, error) {
	owner, name, ok := splitRepo(repo)
	if !ok {
		return nil, fmt.Errorf("repository must be in owner/name form, got %q", repo)
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		owner:   owner,
		repo:    name,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}, nil
}

func splitRepo(repo string) (string, string, bool) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}

type cacheList struct {
	TotalCount    int                 `json:"total_count"`
	ActionsCaches []models.CacheEntry `json:"actions_caches"`
}

// ListCaches pages through the repository's caches and emits each entry.
// The sequence reflects the order the API returns entries in; it is a
// point-in-time snapshot with no consistency guarantee across pages.
// A failed page fetch terminates the stream with an Err-carrying entry.
func (c *Client) ListCaches(ctx context.Context) <-chan models.CacheEntry {
	entries := make(chan models.CacheEntry)

	go func() {
		defer close(entries)

		for page := 1; ; page++ {
			list, err := c.fetchPage(ctx, page)
			if err != nil {
				entries <- models.CacheEntry{Err: err}
				return
			}

			for _, e := range list.ActionsCaches {
				entries <- e
			}

			if len(list.ActionsCaches) < perPage {
				return
			}
		}
	}()

	return entries
}

func (c *Client) fetchPage(ctx context.Context, page int) (*cacheList, error) {
	q := url.Values{}
	q.Set("per_page", fmt.Sprint(perPage))
	q.Set("page", fmt.Sprint(page))

	endpoint := fmt.Sprintf("%s/repos/%s/%s/actions/caches?%s", c.baseURL, c.owner, c.repo, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	c.logger.Debug("Fetching caches page", zap.Int("page", page))

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing caches (page %d): %w", page, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			c.logger.Warn("Cannot close response body", zap.Error(err))
		}
	}()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing caches (page %d): %s", page, apiError(res))
	}

	var list cacheList
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding caches page %d: %w", page, err)
	}

	return &list, nil
}

// DeleteCache deletes a single cache by id. Already-deleted entries come
// back as 404 and are reported as an error; the caller decides whether
// that is fatal.
func (c *Client) DeleteCache(ctx context.Context, id int64) error {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/actions/caches/%d", c.baseURL, c.owner, c.repo, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deleting cache %d: %w", id, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			c.logger.Warn("Cannot close response body", zap.Error(err))
		}
	}()

	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		return fmt.Errorf("deleting cache %d: %s", id, apiError(res))
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
}

func apiError(res *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(res.Body, 512))
	if err != nil || len(strings.TrimSpace(string(body))) == 0 {
		return res.Status
	}
	return fmt.Sprintf("%s: %s", res.Status, strings.TrimSpace(string(body)))
}
