package hn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zhfeed/hnzh/internal/logger"
	"github.com/zhfeed/hnzh/internal/models"
)

// maxParallelFetches bounds concurrent item-detail requests in FetchMany.
const maxParallelFetches = 10

// Item is the wire shape of a Hacker News item as returned by the
// Firebase API. Absent fields unmarshal to their zero values.
type Item struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	By          string  `json:"by"`
	Time        int64   `json:"time"`
	Text        string  `json:"text"`
	Dead        bool    `json:"dead"`
	Deleted     bool    `json:"deleted"`
	Kids        []int64 `json:"kids"`
	URL         string  `json:"url"`
	Score       int     `json:"score"`
	Title       string  `json:"title"`
	Descendants int     `json:"descendants"`
}

// Client fetches listings and item details from the Hacker News API.
// Transient failures are retried a bounded number of times; terminal
// failures surface as "no data", never as errors.
type Client struct {
	http *resty.Client
}

// NewClient builds a client against the given API base URL,
// e.g. "https://hacker-news.firebaseio.com/v0".
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(3).
			SetRetryWaitTime(1 * time.Second).
			SetRetryMaxWaitTime(10 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= http.StatusInternalServerError
			}),
	}
}

// ListIDs fetches the current listing for a category. It returns an
// empty slice on terminal failure.
func (c *Client) ListIDs(ctx context.Context, category models.Category) []int64 {
	var ids []int64

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetResult(&ids).
		Get(category.ListingPath())

	if err != nil {
		logger.Get().Error().Err(err).Str("category", string(category)).Msg("Failed to fetch listing")
		return []int64{}
	}
	if resp.StatusCode() != http.StatusOK {
		logger.Get().Error().
			Int("status", resp.StatusCode()).
			Str("category", string(category)).
			Msg("Unexpected status fetching listing")
		return []int64{}
	}

	return ids
}

// FetchItem fetches one item's detail. The second return value is false
// when the upstream has no such id or the fetch failed terminally.
func (c *Client) FetchItem(ctx context.Context, id int64) (*Item, bool) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(fmt.Sprintf("/item/%d.json", id))

	if err != nil {
		logger.Get().Error().Err(err).Int64("id", id).Msg("Failed to fetch item")
		return nil, false
	}
	if resp.StatusCode() != http.StatusOK {
		logger.Get().Error().Int("status", resp.StatusCode()).Int64("id", id).Msg("Unexpected status fetching item")
		return nil, false
	}

	// The API answers 200 with a literal null body for unknown ids.
	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 || string(body) == "null" {
		return nil, false
	}

	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		logger.Get().Error().Err(err).Int64("id", id).Msg("Failed to decode item")
		return nil, false
	}
	if item.ID == 0 {
		return nil, false
	}

	return &item, true
}

// FetchMany fetches each id independently with bounded parallelism and
// discards absent results. Result order follows the input id order.
func (c *Client) FetchMany(ctx context.Context, ids []int64) []Item {
	if len(ids) == 0 {
		return []Item{}
	}

	slots := make([]*Item, len(ids))
	semaphore := make(chan struct{}, maxParallelFetches)
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(i int, id int64) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if item, ok := c.FetchItem(ctx, id); ok {
				slots[i] = item
			}
		}(i, id)
	}
	wg.Wait()

	items := make([]Item, 0, len(ids))
	for _, item := range slots {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items
}
