package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"twittermoo/internal/model"
)

// DefaultAPIURL is the base URL of the classic REST timeline API.
const DefaultAPIURL = "https://api.twitter.com/1.1"

const (
	timelinePath       = "/statuses/friends_timeline.json"
	directMessagesPath = "/direct_messages.json"
)

type apiUser struct {
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

type apiStatus struct {
	ID        int64    `json:"id"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"created_at"`
	User      *apiUser `json:"user"`
	Sender    *apiUser `json:"sender"`
}

// API is a Client for the JSON timeline API using HTTP basic credentials.
type API struct {
	client *resty.Client
}

// NewAPI creates an API client for baseURL authenticating as user.
func NewAPI(baseURL, user, password string) *API {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", "twittermoo/2.0").
		SetHeader("Accept", "application/json")
	if user != "" {
		c.SetBasicAuth(user, password)
	}
	return &API{client: c}
}

// Timeline fetches the friends timeline.
func (a *API) Timeline(ctx context.Context) ([]model.Item, error) {
	return a.get(ctx, timelinePath)
}

// DirectMessages fetches direct messages addressed to the account.
func (a *API) DirectMessages(ctx context.Context) ([]model.Item, error) {
	return a.get(ctx, directMessagesPath)
}

func (a *API) get(ctx context.Context, path string) ([]model.Item, error) {
	resp, err := a.client.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
	case code == http.StatusTooManyRequests || code >= 500:
		return nil, fmt.Errorf("get %s: %w: status %d", path, ErrUnavailable, code)
	default:
		return nil, fmt.Errorf("get %s: unexpected status %d: %s", path, code, truncateBody(resp.Body()))
	}

	var statuses []apiStatus
	if err := json.Unmarshal(resp.Body(), &statuses); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	items := make([]model.Item, 0, len(statuses))
	for _, s := range statuses {
		item, err := s.toItem()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s apiStatus) toItem() (model.Item, error) {
	created, err := time.Parse(time.RubyDate, s.CreatedAt)
	if err != nil {
		return model.Item{}, fmt.Errorf("status %d: parse created_at: %w", s.ID, err)
	}
	author := s.User
	if author == nil {
		author = s.Sender
	}
	if author == nil {
		return model.Item{}, fmt.Errorf("status %d: no author", s.ID)
	}
	return model.Item{
		ID:           strconv.FormatInt(s.ID, 10),
		AuthorName:   author.Name,
		AuthorHandle: author.ScreenName,
		Text:         s.Text,
		CreatedAt:    created,
	}, nil
}

func truncateBody(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}
