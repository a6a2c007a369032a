// Package notion binds a notionapi client to one student database.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jomei/notionapi"
)

const (
	apiBaseURL    = "https://api.notion.com/v1"
	notionVersion = "2022-06-28"
)

// Client implements gateway.Provider against a single database
type Client struct {
	api        *notionapi.Client
	http       *http.Client
	token      string
	databaseID notionapi.DatabaseID
}

// Options configures NewClient
type Options struct {
	Token      string
	DatabaseID string
	Timeout    time.Duration
	HTTPClient *http.Client // overrides Timeout when set
}

// NewClient creates a Client. No request is made until the first call.
func NewClient(opts Options) *Client {
	var hc http.Client
	if opts.HTTPClient != nil {
		hc = *opts.HTTPClient
	} else {
		hc.Timeout = opts.Timeout
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc.Transport = apiErrorTransport{base: base}

	return &Client{
		api:        notionapi.NewClient(notionapi.Token(opts.Token), notionapi.WithHTTPClient(&hc)),
		http:       &hc,
		token:      opts.Token,
		databaseID: notionapi.DatabaseID(opts.DatabaseID),
	}
}

// QueryDatabase fetches one batch of pages starting at cursor
func (c *Client) QueryDatabase(ctx context.Context, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := c.api.Database.Query(ctx, c.databaseID, &notionapi.DatabaseQueryRequest{StartCursor: cursor})
	if err != nil {
		return nil, apiError(err)
	}
	return resp, nil
}

// CreatePage adds a page to the bound database
func (c *Client) CreatePage(ctx context.Context, props notionapi.Properties) (*notionapi.Page, error) {
	page, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: c.databaseID,
		},
		Properties: props,
	})
	if err != nil {
		return nil, apiError(err)
	}
	return page, nil
}

// notionapi.PageUpdateRequest always sends "archived", which would restore
// an archived page on every property edit. These bodies carry one key each.
type propertiesPatch struct {
	Properties notionapi.Properties `json:"properties"`
}

type archivePatch struct {
	Archived bool `json:"archived"`
}

// UpdateProperties patches the given properties and nothing else
func (c *Client) UpdateProperties(ctx context.Context, id notionapi.PageID, props notionapi.Properties) (*notionapi.Page, error) {
	return c.patchPage(ctx, id, propertiesPatch{Properties: props})
}

// ArchivePage sets the archived flag without touching properties
func (c *Client) ArchivePage(ctx context.Context, id notionapi.PageID) (*notionapi.Page, error) {
	return c.patchPage(ctx, id, archivePatch{Archived: true})
}

func (c *Client) patchPage(ctx context.Context, id notionapi.PageID, body interface{}) (*notionapi.Page, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page update: %w", err)
	}

	endpoint := apiBaseURL + "/pages/" + url.PathEscape(string(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, apiError(err)
	}
	defer res.Body.Close()

	var page notionapi.Page
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	return &page, nil
}

// apiError unwraps the *APIError produced by the transport so callers see
// the provider message without the URL prefix added by net/http
func apiError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return err
}
