package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/order-service/internal/adapter/cache"
	"github.com/example/order-service/internal/adapter/httpapi"
	"github.com/example/order-service/internal/auth"
	"github.com/example/order-service/internal/domain"
	"github.com/example/order-service/internal/usecase"
)

type fakeOrderRepo struct {
	sync.RWMutex
	store map[uuid.UUID]domain.Order
}

func (f *fakeOrderRepo) Add(_ context.Context, order domain.Order) (domain.Order, error) {
	f.Lock()
	defer f.Unlock()
	order.ID = uuid.New()
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	f.store[order.ID] = order
	return order, nil
}

func (f *fakeOrderRepo) GetBy(_ context.Context, _ string, value any) (domain.Order, error) {
	f.RLock()
	defer f.RUnlock()
	order, ok := f.store[value.(uuid.UUID)]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) Update(_ context.Context, id uuid.UUID, fields map[string]any) (domain.Order, error) {
	f.Lock()
	defer f.Unlock()
	order, ok := f.store[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if status, ok := fields["status"].(string); ok {
		order.Status = domain.OrderStatus(status)
	}
	order.UpdatedAt = time.Now().UTC()
	f.store[id] = order
	return order, nil
}

func (f *fakeOrderRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Order, error) {
	f.RLock()
	defer f.RUnlock()
	orders := make([]domain.Order, 0)
	for _, order := range f.store {
		if order.UserID == userID {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

type fakeUserRepo struct {
	sync.RWMutex
	byEmail map[string]domain.User
}

func (f *fakeUserRepo) Add(_ context.Context, email, password string) (domain.User, error) {
	f.Lock()
	defer f.Unlock()
	if _, ok := f.byEmail[email]; ok {
		return domain.User{}, domain.ErrConflict
	}
	now := time.Now().UTC()
	user := domain.User{ID: uuid.New(), CreatedAt: now, UpdatedAt: now, Email: email, Password: password}
	f.byEmail[email] = user
	return user, nil
}

func (f *fakeUserRepo) GetBy(_ context.Context, _ string, value any) (domain.User, error) {
	f.RLock()
	defer f.RUnlock()
	user, ok := f.byEmail[value.(string)]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, []byte) error { return nil }

func newTestServer() *httpapi.Server {
	orders := &fakeOrderRepo{store: make(map[uuid.UUID]domain.Order)}
	users := &fakeUserRepo{byEmail: make(map[string]domain.User)}
	store := cache.NewMemory()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	return httpapi.NewServer(httpapi.Deps{
		Register: usecase.RegisterUser{Repo: users},
		Token:    usecase.IssueToken{Repo: users, Tokens: tokens},
		Create:   usecase.CreateOrder{Repo: orders, Publisher: noopPublisher{}},
		Get:      usecase.GetOrder{Repo: orders, Cache: store},
		Update:   usecase.UpdateStatus{Repo: orders, Cache: store},
		List:     usecase.ListOrders{Repo: orders},
		Verifier: tokens,
	})
}

func doJSON(t *testing.T, srv *httpapi.Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, req)
	return w
}

func obtainToken(t *testing.T, srv *httpapi.Server, email, password string) string {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/token/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "bearer", resp.TokenType)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestRegister(t *testing.T) {
	srv := newTestServer()

	w := doJSON(t, srv, http.MethodPost, "/register/", "", map[string]string{
		"email": "a@b.c", "password": "secret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "a@b.c")
	require.NotContains(t, w.Body.String(), "secret")

	w = doJSON(t, srv, http.MethodPost, "/register/", "", map[string]string{
		"email": "a@b.c", "password": "secret",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/register/", "", map[string]string{
		"email": "", "password": "secret",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToken(t *testing.T) {
	srv := newTestServer()
	w := doJSON(t, srv, http.MethodPost, "/register/", "", map[string]string{
		"email": "a@b.c", "password": "secret",
	})
	require.Equal(t, http.StatusOK, w.Code)

	obtainToken(t, srv, "a@b.c", "secret")

	form := url.Values{"username": {"a@b.c"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/token/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrdersRequireAuth(t *testing.T) {
	srv := newTestServer()

	w := doJSON(t, srv, http.MethodPost, "/orders/", "", map[string]any{
		"items": map[string]any{"sku": 1}, "total_price": 10,
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/orders/"+uuid.NewString(), "bad-token", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestOrderLifecycle(t *testing.T) {
	srv := newTestServer()
	w := doJSON(t, srv, http.MethodPost, "/register/", "", map[string]string{
		"email": "a@b.c", "password": "secret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	token := obtainToken(t, srv, "a@b.c", "secret")

	// create
	w = doJSON(t, srv, http.MethodPost, "/orders/", token, map[string]any{
		"items": map[string]any{"sku-1": 2}, "total_price": 49.90,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var order domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	require.Equal(t, domain.StatusPending, order.Status)

	// read, twice to cover the cached path
	for i := 0; i < 2; i++ {
		w = doJSON(t, srv, http.MethodGet, "/orders/"+order.ID.String(), token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got domain.Order
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Equal(t, order.ID, got.ID)
		require.Equal(t, domain.StatusPending, got.Status)
	}

	// pay
	w = doJSON(t, srv, http.MethodPatch, "/orders/"+order.ID.String(), token, map[string]string{"status": "paid"})
	require.Equal(t, http.StatusOK, w.Code)

	// the very next read must not be the stale cached pending
	w = doJSON(t, srv, http.MethodGet, "/orders/"+order.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, domain.StatusPaid, got.Status)

	// illegal transition
	w = doJSON(t, srv, http.MethodPatch, "/orders/"+order.ID.String(), token, map[string]string{"status": "pending"})
	require.Equal(t, http.StatusConflict, w.Code)

	// unknown status value
	w = doJSON(t, srv, http.MethodPatch, "/orders/"+order.ID.String(), token, map[string]string{"status": "teleported"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// list
	w = doJSON(t, srv, http.MethodGet, "/orders/user/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var orders []domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
}

func TestOrderOwnership(t *testing.T) {
	srv := newTestServer()
	for _, email := range []string{"owner@b.c", "other@b.c"} {
		w := doJSON(t, srv, http.MethodPost, "/register/", "", map[string]string{
			"email": email, "password": "secret",
		})
		require.Equal(t, http.StatusOK, w.Code)
	}
	ownerToken := obtainToken(t, srv, "owner@b.c", "secret")
	otherToken := obtainToken(t, srv, "other@b.c", "secret")

	w := doJSON(t, srv, http.MethodPost, "/orders/", ownerToken, map[string]any{
		"items": map[string]any{"sku": 1}, "total_price": 10,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var order domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))

	// warm the owner's cache, then probe as the other user
	w = doJSON(t, srv, http.MethodGet, "/orders/"+order.ID.String(), ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/orders/"+order.ID.String(), otherToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, srv, http.MethodPatch, "/orders/"+order.ID.String(), otherToken, map[string]string{"status": "paid"})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetOrderNotFound(t *testing.T) {
	srv := newTestServer()
	w := doJSON(t, srv, http.MethodPost, "/register/", "", map[string]string{
		"email": "a@b.c", "password": "secret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	token := obtainToken(t, srv, "a@b.c", "secret")

	w = doJSON(t, srv, http.MethodGet, "/orders/"+uuid.NewString(), token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/orders/not-a-uuid", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOrdersEmpty(t *testing.T) {
	srv := newTestServer()
	w := doJSON(t, srv, http.MethodPost, "/register/", "", map[string]string{
		"email": "a@b.c", "password": "secret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	token := obtainToken(t, srv, "a@b.c", "secret")

	w = doJSON(t, srv, http.MethodGet, "/orders/user/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "[]\n", w.Body.String())
}
