// Package remote is the HTTP client for the storefront backend. It covers
// the catalog, chat, order, cart, and login endpoints and satisfies the
// capability interfaces the conversation engine is built against.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cosmocart/cosmocart/internal/nlu"
	"github.com/cosmocart/cosmocart/internal/retry"
	"github.com/cosmocart/cosmocart/pkg/models"
)

const (
	searchLimit   = 50
	categoryLimit = 500
)

// Client talks to the storefront backend. All calls go through a shared
// rate limiter and transient failures are retried with backoff.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCfg   retry.Config
	token      string
}

// Option customizes a Client.
type Option func(*Client)

// WithToken attaches a bearer token to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient swaps the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryConfig overrides the backoff policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) { c.retryCfg = cfg }
}

// WithRateLimit overrides the default request budget.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(c *Client) { c.limiter = limiter }
}

// NewClient builds a client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
		retryCfg:   retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token after login.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	return retry.Do(ctx, c.retryCfg, method+" "+path, func() error {
		var body io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("encoding request: %w", err)
			}
			body = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
}

func rowsToProducts(rows []models.ProductRow) []models.Product {
	products := make([]models.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.Product())
	}
	return products
}

// SearchProducts runs a keyword search over the catalog.
func (c *Client) SearchProducts(ctx context.Context, query string) ([]models.Product, error) {
	q := url.Values{}
	q.Set("search", query)
	q.Set("limit", fmt.Sprint(searchLimit))
	var rows []models.ProductRow
	if err := c.do(ctx, http.MethodGet, "/products", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}
	return rowsToProducts(rows), nil
}

// ProductsByCategory lists a whole department.
func (c *Client) ProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("limit", fmt.Sprint(categoryLimit))
	var rows []models.ProductRow
	if err := c.do(ctx, http.MethodGet, "/products", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("fetching category %q: %w", category, err)
	}
	return rowsToProducts(rows), nil
}

// ProductsBySubCategory lists one section of a department.
func (c *Client) ProductsBySubCategory(ctx context.Context, category, sub string) ([]models.Product, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("sub_category", sub)
	q.Set("limit", fmt.Sprint(categoryLimit))
	var rows []models.ProductRow
	if err := c.do(ctx, http.MethodGet, "/products", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("fetching subcategory %q: %w", sub, err)
	}
	return rowsToProducts(rows), nil
}

// Categories lists the browseable departments.
func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &names); err != nil {
		return nil, fmt.Errorf("fetching categories: %w", err)
	}
	categories := make([]models.Category, 0, len(names))
	for _, n := range names {
		categories = append(categories, models.Category{
			ID:    strings.ReplaceAll(strings.ToLower(n), " ", "_"),
			Label: n,
		})
	}
	return categories, nil
}

// SubCategories lists the sections of one department.
func (c *Client) SubCategories(ctx context.Context, category string) ([]models.SubCategory, error) {
	q := url.Values{}
	q.Set("category", category)
	var subs []models.SubCategory
	if err := c.do(ctx, http.MethodGet, "/subcategories", q, nil, &subs); err != nil {
		return nil, fmt.Errorf("fetching subcategories: %w", err)
	}
	return subs, nil
}

// Chat sends an utterance to the NLU endpoint and validates the reply at
// the boundary.
func (c *Client) Chat(ctx context.Context, message string) (nlu.Reply, error) {
	var raw json.RawMessage
	payload := map[string]string{"message": message}
	if err := c.do(ctx, http.MethodPost, "/api/chat", nil, payload, &raw); err != nil {
		return nlu.Reply{}, fmt.Errorf("chat request: %w", err)
	}
	reply, err := nlu.DecodeReply(raw)
	if err != nil {
		return reply, fmt.Errorf("decoding chat reply: %w", err)
	}
	return reply, nil
}

// CreateOrder places an order and returns the persisted record.
func (c *Client) CreateOrder(ctx context.Context, payload models.OrderPayload) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodPost, "/orders", nil, payload, &order); err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}
	return &order, nil
}

// Orders returns the user's most recent orders, newest first.
func (c *Client) Orders(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(userID), nil, nil, &orders); err != nil {
		return nil, fmt.Errorf("fetching orders: %w", err)
	}
	return orders, nil
}

type cartSyncRequest struct {
	UserID string             `json:"user_id"`
	Items  []models.OrderItem `json:"items"`
}

// FetchCart loads the persisted cart for session hydration.
func (c *Client) FetchCart(ctx context.Context, userID string) ([]models.CartLine, error) {
	var items []models.OrderItem
	if err := c.do(ctx, http.MethodGet, "/cart/"+url.PathEscape(userID), nil, nil, &items); err != nil {
		return nil, fmt.Errorf("fetching cart: %w", err)
	}
	lines := make([]models.CartLine, 0, len(items))
	for _, item := range items {
		p := models.Product{
			ID:           item.ProductID,
			Name:         item.ProductName,
			Price:        item.Price,
			PerUnitPrice: item.Price,
			ImageURL:     item.ImageURL,
		}
		if item.Weight != "" && item.Weight != "std" {
			p.SelectedWeight = item.Weight
		}
		lines = append(lines, models.CartLine{Product: p, Quantity: item.Quantity})
	}
	return lines, nil
}

// SaveCart replaces the persisted cart with the given snapshot.
func (c *Client) SaveCart(ctx context.Context, userID string, lines []models.CartLine) error {
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		weight := l.Product.SelectedWeight
		if weight == "" {
			weight = "std"
		}
		items = append(items, models.OrderItem{
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			Price:       l.Product.Price,
			Weight:      weight,
			ImageURL:    l.Product.ImageURL,
		})
	}
	if err := c.do(ctx, http.MethodPost, "/cart", nil, cartSyncRequest{UserID: userID, Items: items}, nil); err != nil {
		return fmt.Errorf("saving cart: %w", err)
	}
	return nil
}

// SendOTP requests a login code for the mobile number.
func (c *Client) SendOTP(ctx context.Context, mobile string) error {
	payload := map[string]string{"mobile_number": mobile}
	if err := c.do(ctx, http.MethodPost, "/send-otp", nil, payload, nil); err != nil {
		return fmt.Errorf("requesting otp: %w", err)
	}
	return nil
}

// LoginResult is the verified-login response: a bearer token plus the
// resolved user.
type LoginResult struct {
	Status string      `json:"status"`
	Token  string      `json:"token"`
	User   models.User `json:"user"`
}

// VerifyOTP exchanges the code for a token and stores it on the client.
func (c *Client) VerifyOTP(ctx context.Context, mobile, otp, name string) (*LoginResult, error) {
	payload := map[string]string{"mobile_number": mobile, "otp": otp, "name": name}
	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/verify-otp", nil, payload, &result); err != nil {
		return nil, fmt.Errorf("verifying otp: %w", err)
	}
	c.token = result.Token
	return &result, nil
}
