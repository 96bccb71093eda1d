package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/foodsearch/storefront/pkg/config"
	pkgerrors "github.com/foodsearch/storefront/pkg/errors"
	"github.com/foodsearch/storefront/pkg/logger"
)

const (
	productsPath   = "/api/produtos/"
	categoriesPath = "/api/categorias/"
)

// Client reads and, for staff, writes the product catalog.
type Client struct {
	http    *http.Client
	baseURL string
	logg    *logger.Logger
}

// NewClient builds the catalog client from the backend config.
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

// Filter narrows a catalog listing. Nome matches product names as a
// substring, Categoria restricts to one category id. Zero values are omitted.
type Filter struct {
	Nome      string
	Categoria string
}

func (f Filter) encode() string {
	params := url.Values{}
	if strings.TrimSpace(f.Nome) != "" {
		params.Set("nome", strings.TrimSpace(f.Nome))
	}
	if strings.TrimSpace(f.Categoria) != "" {
		params.Set("categoria", strings.TrimSpace(f.Categoria))
	}
	return params.Encode()
}

// List fetches the catalog, narrowed by the filter.
func (c *Client) List(ctx context.Context, filter Filter) ([]Product, error) {
	path := productsPath
	if query := filter.encode(); query != "" {
		path += "?" + query
	}
	var products []Product
	if err := c.do(ctx, http.MethodGet, path, nil, "", &products); err != nil {
		return nil, err
	}
	return products, nil
}

// Get fetches a single product by id.
func (c *Client) Get(ctx context.Context, id int64) (*Product, error) {
	var product Product
	if err := c.do(ctx, http.MethodGet, productPath(id), nil, "", &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// Categories fetches the category list.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.do(ctx, http.MethodGet, categoriesPath, nil, "", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// Create adds a product to the catalog. Staff only.
func (c *Client) Create(ctx context.Context, product Product, token string) (*Product, error) {
	var created Product
	if err := c.do(ctx, http.MethodPost, productsPath, product, token, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces a product. Staff only.
func (c *Client) Update(ctx context.Context, product Product, token string) (*Product, error) {
	if product.ID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	var updated Product
	if err := c.do(ctx, http.MethodPut, productPath(product.ID), product, token, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a product from the catalog. Staff only.
func (c *Client) Delete(ctx context.Context, id int64, token string) error {
	return c.do(ctx, http.MethodDelete, productPath(id), nil, token, nil)
}

func productPath(id int64) string {
	return productsPath + strconv.FormatInt(id, 10) + "/"
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, out any) error {
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode catalog request")
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build catalog request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "reach product catalog")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "catalog write requires staff credentials")
	case resp.StatusCode == http.StatusBadRequest:
		return pkgerrors.New(pkgerrors.CodeValidation, "catalog rejected the product").WithDetails(map[string]any{
			"status": resp.StatusCode,
		})
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return pkgerrors.New(pkgerrors.CodeNetwork, "catalog returned an unexpected status").WithDetails(map[string]any{
			"status": resp.StatusCode,
		})
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "decode catalog response")
	}
	return nil
}
