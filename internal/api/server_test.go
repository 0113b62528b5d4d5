package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmocart/cosmocart/internal/nlu"
	"github.com/cosmocart/cosmocart/internal/store"
	"github.com/cosmocart/cosmocart/pkg/models"
)

type fakeCatalog struct {
	products []models.Product
	subs     []models.SubCategory
}

func (f *fakeCatalog) SearchProducts(ctx context.Context, query string) ([]models.Product, error) {
	var out []models.Product
	for _, p := range f.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	var out []models.Product
	for _, p := range f.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ProductsBySubCategory(ctx context.Context, category, sub string) ([]models.Product, error) {
	var out []models.Product
	for _, p := range f.products {
		if p.Category == category && p.SubCategory == sub {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) CategoryNames(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var names []string
	for _, p := range f.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			names = append(names, p.Category)
		}
	}
	return names, nil
}

func (f *fakeCatalog) SubCategories(ctx context.Context, category string) ([]models.SubCategory, error) {
	return f.subs, nil
}

type fakeOrders struct {
	created []models.OrderPayload
	nextID  int64
	history []models.Order
}

func (f *fakeOrders) CreateOrder(ctx context.Context, payload models.OrderPayload) (*models.Order, error) {
	f.created = append(f.created, payload)
	f.nextID++
	return &models.Order{
		ID:          f.nextID,
		UserID:      payload.UserID,
		UserName:    payload.UserName,
		TotalAmount: payload.TotalAmount,
		Status:      "Processing",
		Items:       payload.Items,
	}, nil
}

func (f *fakeOrders) Orders(ctx context.Context, userID string) ([]models.Order, error) {
	return f.history, nil
}

type fakeCarts struct {
	saved map[string][]models.CartLine
}

func (f *fakeCarts) FetchCart(ctx context.Context, userID string) ([]models.CartLine, error) {
	return f.saved[userID], nil
}

func (f *fakeCarts) SaveCart(ctx context.Context, userID string, lines []models.CartLine) error {
	if f.saved == nil {
		f.saved = map[string][]models.CartLine{}
	}
	f.saved[userID] = lines
	return nil
}

type fakeAuth struct {
	otps  map[string]string
	users map[string]string
}

func (f *fakeAuth) SaveOTP(ctx context.Context, mobile, otp string) error {
	if f.otps == nil {
		f.otps = map[string]string{}
	}
	f.otps[mobile] = otp
	return nil
}

func (f *fakeAuth) ConsumeOTP(ctx context.Context, mobile, otp string) error {
	if f.otps[mobile] != otp {
		return store.ErrInvalidOTP
	}
	delete(f.otps, mobile)
	return nil
}

func (f *fakeAuth) UpsertUser(ctx context.Context, mobile, name string) (*models.User, error) {
	if f.users == nil {
		f.users = map[string]string{}
	}
	f.users[mobile] = name
	return &models.User{ID: "7", Name: name, Mobile: mobile}, nil
}

type fakeAgent struct {
	reply nlu.Reply
}

func (f *fakeAgent) Answer(ctx context.Context, message string) nlu.Reply {
	return f.reply
}

type fakeQueue struct {
	enqueued []int64
}

func (f *fakeQueue) EnqueueOrderProcess(ctx context.Context, orderID int64, userID string) error {
	f.enqueued = append(f.enqueued, orderID)
	return nil
}

func catalogFixture() *fakeCatalog {
	return &fakeCatalog{
		products: []models.Product{
			{ID: 1, Name: "Fresh Milk", Category: "Dairy", SubCategory: "Milk", Price: 50, PerUnitPrice: 50, UnitType: models.UnitLitre, IsVeg: true},
			{ID: 2, Name: "Basmati Rice", Category: "Grocery", SubCategory: "Rice", Price: 200, PerUnitPrice: 200, UnitType: models.UnitKilogram, IsVeg: true},
		},
		subs: []models.SubCategory{{Name: "Milk", ImageURL: "milk.png"}},
	}
}

func newTestServer(t *testing.T) (*Server, *fakeOrders, *fakeCarts, *fakeAuth, *fakeQueue) {
	t.Helper()
	orders := &fakeOrders{}
	carts := &fakeCarts{}
	auth := &fakeAuth{}
	queue := &fakeQueue{}
	srv := NewServer("127.0.0.1", 0, Deps{
		Catalog: catalogFixture(),
		Orders:  orders,
		Carts:   carts,
		Auth:    auth,
		Agent:   &fakeAgent{reply: nlu.Reply{Kind: nlu.QueryCheckout, Success: true, Message: "Starting checkout"}},
		Queue:   queue,
		Tokens:  NewTokenService("test-secret"),
	})
	return srv, orders, carts, auth, queue
}

func doJSON(t *testing.T, srv *Server, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGetProductsSearch(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/products?search=milk", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []models.ProductRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Fresh Milk", rows[0].Name)
	assert.Equal(t, 50, rows[0].SalePrice)
}

func TestGetProductsByCategoryAndSub(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/products?category=Grocery", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []models.ProductRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Basmati Rice", rows[0].Name)

	rec = doJSON(t, srv, http.MethodGet, "/products?category=Dairy&sub_category=Milk", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Fresh Milk", rows[0].Name)
}

func TestGetProductsRequiresQuery(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/products", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCategoriesAndSubCategories(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Equal(t, []string{"Dairy", "Grocery"}, names)

	rec = doJSON(t, srv, http.MethodGet, "/subcategories?category=Dairy", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []models.SubCategory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, "Milk", subs[0].Name)

	rec = doJSON(t, srv, http.MethodGet, "/subcategories", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostChatReturnsTypedReply(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/chat", `{"message":"checkout please"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	reply, err := nlu.DecodeReply(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, nlu.QueryCheckout, reply.Kind)
	assert.True(t, reply.Success)
}

func TestPostChatRequiresMessage(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/chat", `{"message":"  "}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderEnqueuesProcessing(t *testing.T) {
	srv, orders, _, _, queue := newTestServer(t)

	body := `{"user_id":"42","user_name":"Asha","total_amount":100,"payment_method":"online","items":[{"product_id":1,"product_name":"Fresh Milk","quantity":2,"price":50,"weight":"std"}]}`
	rec := doJSON(t, srv, http.MethodPost, "/orders", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, int64(1), order.ID)
	assert.Equal(t, "Processing", order.Status)

	require.Len(t, orders.created, 1)
	assert.Equal(t, "42", orders.created[0].UserID)
	assert.Equal(t, []int64{1}, queue.enqueued)
}

func TestCreateOrderRejectsEmpty(t *testing.T) {
	srv, _, _, _, queue := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/orders", `{"user_id":"42","items":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, queue.enqueued)
}

func TestCreateOrderUsesAuthenticatedUser(t *testing.T) {
	srv, orders, _, _, _ := newTestServer(t)

	token, err := srv.deps.Tokens.Issue(models.User{ID: "7", Name: "Asha", Mobile: "9876543210"})
	require.NoError(t, err)

	body := `{"user_id":"guest","total_amount":50,"items":[{"product_id":1,"product_name":"Fresh Milk","quantity":1,"price":50,"weight":"std"}]}`
	rec := doJSON(t, srv, http.MethodPost, "/orders", body, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, orders.created, 1)
	assert.Equal(t, "7", orders.created[0].UserID)
	assert.Equal(t, "Asha", orders.created[0].UserName)
}

func TestInvalidTokenRejected(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/categories", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetOrdersEmptyIsList(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/orders/42", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestCartRoundTrip(t *testing.T) {
	srv, _, carts, _, _ := newTestServer(t)

	body := `{"user_id":"42","items":[{"product_id":2,"product_name":"Basmati Rice","quantity":1,"price":110,"weight":"500g"}]}`
	rec := doJSON(t, srv, http.MethodPost, "/cart", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, carts.saved["42"], 1)
	assert.Equal(t, "500g", carts.saved["42"][0].Product.SelectedWeight)

	rec = doJSON(t, srv, http.MethodGet, "/cart/42", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []models.OrderItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "500g", items[0].Weight)
	assert.Equal(t, 110, items[0].Price)
}

func TestSaveCartRequiresUser(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/cart", `{"items":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOTPLoginFlow(t *testing.T) {
	srv, _, _, auth, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/send-otp", `{"mobile_number":"9876543210"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	otp := auth.otps["9876543210"]
	require.Len(t, otp, 6)

	if otp != "000000" {
		rec = doJSON(t, srv, http.MethodPost, "/verify-otp", `{"mobile_number":"9876543210","otp":"000000","name":"Asha"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	body := `{"mobile_number":"9876543210","otp":"` + otp + `","name":"Asha"}`
	rec = doJSON(t, srv, http.MethodPost, "/verify-otp", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var login loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, "success", login.Status)
	assert.Equal(t, "Asha", login.User.Name)

	claims, err := srv.deps.Tokens.Verify(login.Token)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.UserID)
	assert.Equal(t, "9876543210", claims.Mobile)
}

func TestSendOTPRejectsBadMobile(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/send-otp", `{"mobile_number":"12345"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
