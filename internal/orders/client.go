package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/foodsearch/storefront/pkg/config"
	pkgerrors "github.com/foodsearch/storefront/pkg/errors"
	"github.com/foodsearch/storefront/pkg/logger"
)

const submitPath = "/api/pedidos/"

// maxErrorBodyBytes caps how much of a rejection body is read for the detail.
const maxErrorBodyBytes = 4 << 10

// Client talks to the external order service. It holds no cart or checkout
// state; callers own every transition driven by its results.
type Client struct {
	http    *http.Client
	baseURL string
	logg    *logger.Logger
}

// NewClient builds the order service client from the backend config.
func NewClient(cfg config.BackendConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("backend base url required")
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logg:    logg,
	}, nil
}

// Submit posts the order. It requires a bearer token up front and classifies
// the outcome: transport problems are network errors, any non-2xx response is
// a rejection carrying the backend detail.
func (c *Client) Submit(ctx context.Context, submission Submission, token string) (*Order, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required to place an order")
	}
	if len(submission.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}

	payload, err := json.Marshal(submission)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+submitPath, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build order request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "submit order")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.rejectionError(resp)
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "decode order confirmation")
	}

	if c.logg != nil {
		c.logg.Info(c.logg.WithOrderID(ctx, order.ID), "order.submitted")
	}
	return &order, nil
}

// List fetches the shopper's order history.
func (c *Client) List(ctx context.Context, token string) ([]Order, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required to view orders")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+submitPath, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build orders request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "list orders")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.rejectionError(resp)
	}

	var orders []Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "decode order history")
	}
	return orders, nil
}

func (c *Client) rejectionError(resp *http.Response) error {
	detail := readErrorDetail(resp.Body)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "order service refused the credentials")
	default:
		msg := "order rejected by the store"
		if detail != "" {
			msg = detail
		}
		return pkgerrors.New(pkgerrors.CodeRejected, msg).WithDetails(map[string]any{
			"status": resp.StatusCode,
		})
	}
}

// readErrorDetail pulls a human-readable message out of a DRF error body,
// which may arrive as {"erro": ...}, {"detail": ...}, or free text.
func readErrorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var structured map[string]any
	if err := json.Unmarshal(raw, &structured); err == nil {
		for _, key := range []string{"erro", "detail", "error"} {
			if value, ok := structured[key].(string); ok && value != "" {
				return value
			}
		}
		return ""
	}
	return strings.TrimSpace(string(raw))
}
