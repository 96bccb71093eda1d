package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/foodsearch/storefront/internal/cart"
	"github.com/foodsearch/storefront/internal/catalog"
	"github.com/foodsearch/storefront/internal/checkout"
	"github.com/foodsearch/storefront/internal/orders"
	"github.com/foodsearch/storefront/internal/session"
	"github.com/foodsearch/storefront/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

// fakeBackend plays the auth, catalog, and order roles of the FoodSearch API.
type fakeBackend struct {
	server       *httptest.Server
	accessToken  string
	orderCalls   int
	rejectOrders bool
	productQuery url.Values
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}

	claims := jwt.MapClaims{
		"username": "maria",
		"is_staff": false,
		"email":    "maria@example.com",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	fb.accessToken = signed

	fb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/token/":
			_ = json.NewEncoder(w).Encode(map[string]string{"access": fb.accessToken, "refresh": "refresh-1"})
		case r.URL.Path == "/api/produtos/7/":
			_, _ = w.Write([]byte(`{"id": 7, "nome": "Café", "preco": "18.00", "estoque": 5, "categoria": 1}`))
		case r.URL.Path == "/api/produtos/":
			fb.productQuery = r.URL.Query()
			_, _ = w.Write([]byte(`[{"id": 7, "nome": "Café", "preco": "18.00", "estoque": 5, "categoria": 1}]`))
		case r.URL.Path == "/api/pedidos/" && r.Method == http.MethodPost:
			fb.orderCalls++
			if fb.rejectOrders {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"erro":"Estoque insuficiente para Café"}`))
				return
			}
			if r.Header.Get("Authorization") != "Bearer "+fb.accessToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 42, "status": "AB", "total": "36.00"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(fb.server.Close)
	return fb
}

type testApp struct {
	handler http.Handler
	backend *fakeBackend
	cart    *cart.Store
	machine *checkout.Machine
	manager *session.Manager
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	backend := newFakeBackend(t)
	cfg := config.BackendConfig{BaseURL: backend.server.URL, Timeout: 2 * time.Second}

	manager, err := session.NewManager(session.NewMemoryTokenSlot(), cfg, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	cartStore, err := cart.NewStore(nil, cart.NewMemorySnapshots(), nil, nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	catalogClient, err := catalog.NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("catalog.NewClient failed: %v", err)
	}
	orderClient, err := orders.NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("orders.NewClient failed: %v", err)
	}

	machine, err := checkout.NewMachine(cartStore, orderClient, manager, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewMachine failed: %v", err)
	}

	session.Bind(manager, cartStore, machine, nil)

	handler := NewRouter(nil, stubPinger{}, nil, nil, manager, cartStore, catalogClient, orderClient, machine)
	return &testApp{handler: handler, backend: backend, cart: cartStore, machine: machine, manager: manager}
}

func (a *testApp) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) login(t *testing.T) {
	t.Helper()
	rec := a.request(t, http.MethodPost, "/api/session/login", map[string]string{
		"username": "maria",
		"password": "pw",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
}

func (a *testApp) addCoffee(t *testing.T) {
	t.Helper()
	rec := a.request(t, http.MethodPost, "/api/cart/items", map[string]any{
		"produto_id": 7,
		"quantidade": 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item failed: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := app.request(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s returned %d", path, rec.Code)
		}
	}
}

func TestCartEndpointsEnrichFromCatalog(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.addCoffee(t)

	rec := app.request(t, http.MethodGet, "/api/cart/", nil)
	var envelope struct {
		Data struct {
			Items      []cart.LineItem `json:"items"`
			TotalItems int             `json:"total_items"`
			TotalPrice string          `json:"total_price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.Items[0].Name != "Café" {
		t.Fatalf("cart line not enriched from catalog: %+v", envelope.Data)
	}
	if envelope.Data.TotalItems != 2 || envelope.Data.TotalPrice != "36.00" {
		t.Fatalf("unexpected totals: %+v", envelope.Data)
	}
}

func TestProductListingForwardsFilters(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	rec := app.request(t, http.MethodGet, "/api/produtos/?nome=caf&categoria=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("listing returned %d: %s", rec.Code, rec.Body.String())
	}
	if app.backend.productQuery.Get("nome") != "caf" || app.backend.productQuery.Get("categoria") != "1" {
		t.Fatalf("filters not forwarded to the backend: %v", app.backend.productQuery)
	}
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.login(t)
	app.addCoffee(t)

	steps := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/checkout/review", nil},
		{http.MethodPost, "/api/checkout/details", nil},
		{http.MethodPut, "/api/checkout/details", map[string]string{
			"forma_pagamento":  "pix",
			"endereco_entrega": "Rua das Flores, 100",
		}},
	}
	for _, step := range steps {
		rec := app.request(t, step.method, step.path, step.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s returned %d: %s", step.method, step.path, rec.Code, rec.Body.String())
		}
	}

	rec := app.request(t, http.MethodPost, "/api/checkout/submit", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit returned %d: %s", rec.Code, rec.Body.String())
	}
	if app.backend.orderCalls != 1 {
		t.Fatalf("expected one backend order call, got %d", app.backend.orderCalls)
	}
	if len(app.cart.Items()) != 0 {
		t.Fatal("cart must be empty after a completed checkout")
	}
}

func TestSubmitRequiresSession(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.addCoffee(t)

	rec := app.request(t, http.MethodPost, "/api/checkout/submit", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
	if app.backend.orderCalls != 0 {
		t.Fatal("no order may be placed without a session")
	}
}

func TestRejectedSubmitKeepsCart(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.login(t)
	app.addCoffee(t)
	app.backend.rejectOrders = true

	for _, step := range []string{"/api/checkout/review", "/api/checkout/details"} {
		if rec := app.request(t, http.MethodPost, step, nil); rec.Code != http.StatusOK {
			t.Fatalf("%s returned %d", step, rec.Code)
		}
	}
	if rec := app.request(t, http.MethodPut, "/api/checkout/details", map[string]string{
		"forma_pagamento":  "pix",
		"endereco_entrega": "Rua das Flores, 100",
	}); rec.Code != http.StatusOK {
		t.Fatalf("details returned %d", rec.Code)
	}

	rec := app.request(t, http.MethodPost, "/api/checkout/submit", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "ORDER_REJECTED" || envelope.Error.Message != "Estoque insuficiente para Café" {
		t.Fatalf("backend detail not surfaced: %+v", envelope.Error)
	}
	if len(app.cart.Items()) == 0 {
		t.Fatal("a rejected order must keep the cart")
	}
}

func TestLogoutDropsSessionBoundState(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.login(t)
	app.addCoffee(t)

	if rec := app.request(t, http.MethodPost, "/api/checkout/review", nil); rec.Code != http.StatusOK {
		t.Fatalf("review returned %d", rec.Code)
	}

	rec := app.request(t, http.MethodPost, "/api/session/logout", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout returned %d", rec.Code)
	}

	if len(app.cart.Items()) != 0 {
		t.Fatal("logout must clear the cart")
	}
	if got := fmt.Sprint(app.machine.State()); got != "browsing" {
		t.Fatalf("logout must reset the checkout, got %s", got)
	}
	if app.manager.LoggedIn() {
		t.Fatal("session must be gone after logout")
	}
}

func TestValidationErrorsFromBodyDecoding(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	rec := app.request(t, http.MethodPost, "/api/cart/items", map[string]any{
		"produto_id": 7,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing quantity, got %d: %s", rec.Code, rec.Body.String())
	}
}
