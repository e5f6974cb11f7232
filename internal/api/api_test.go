package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/core"
	"github.com/example/storefront/internal/identity"
	"github.com/example/storefront/internal/models"
)

type stubVerifier map[string]string

func (s stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*identity.VerifiedToken, error) {
	uid, ok := s[idToken]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return &identity.VerifiedToken{UID: uid, Claims: map[string]interface{}{"email": uid + "@example.com"}}, nil
}

type stubAdmin struct {
	caller *models.Caller
	list   models.ListUsersRequest
	create models.CreateUserRequest
	update models.UpdateUserRequest
	err    error
}

func (s *stubAdmin) ListUsers(_ context.Context, caller *models.Caller, req models.ListUsersRequest) (*models.ListUsersResult, error) {
	s.caller, s.list = caller, req
	if s.err != nil {
		return nil, s.err
	}
	return &models.ListUsersResult{Users: []models.UserSummary{{UID: "u1", Email: "u1@example.com"}}}, nil
}

func (s *stubAdmin) CreateUser(_ context.Context, caller *models.Caller, req models.CreateUserRequest) (*models.CreateUserResult, error) {
	s.caller, s.create = caller, req
	if s.err != nil {
		return nil, s.err
	}
	return &models.CreateUserResult{UID: "new-uid"}, nil
}

func (s *stubAdmin) UpdateUser(_ context.Context, caller *models.Caller, req models.UpdateUserRequest) (*models.MessageResult, error) {
	s.caller, s.update = caller, req
	if s.err != nil {
		return nil, s.err
	}
	return &models.MessageResult{Message: "User updated successfully"}, nil
}

func (s *stubAdmin) DeleteUser(_ context.Context, caller *models.Caller, _ models.DeleteUserRequest) (*models.MessageResult, error) {
	s.caller = caller
	if s.err != nil {
		return nil, s.err
	}
	return &models.MessageResult{Message: "User deleted successfully"}, nil
}

func (s *stubAdmin) UpdateAdminProfile(_ context.Context, caller *models.Caller, req models.UpdateAdminProfileRequest) (*models.AdminMarker, error) {
	s.caller = caller
	return &models.AdminMarker{UID: caller.UID, Name: req.Name, Email: req.Email}, s.err
}

func (s *stubAdmin) Analytics(_ context.Context, caller *models.Caller) (*models.Analytics, error) {
	s.caller = caller
	if s.err != nil {
		return nil, s.err
	}
	return &models.Analytics{TotalUsers: 4, TotalProducts: 9}, nil
}

func (s *stubAdmin) Authorize(_ context.Context, caller *models.Caller, action string) error {
	return stubAuthorize(caller, action)
}

// stubAuthorize treats admin-1 as the only administrator.
func stubAuthorize(caller *models.Caller, action string) error {
	if caller == nil || caller.UID == "" {
		return core.Unauthenticated("The function must be called while authenticated.")
	}
	if caller.UID != "admin-1" {
		return core.PermissionDenied("Only admins can " + action + ".")
	}
	return nil
}

type stubUsers struct{}

func (stubUsers) SyncProfile(_ context.Context, caller *models.Caller) (*models.UserProfile, error) {
	return &models.UserProfile{UID: caller.UID, Email: caller.Email}, nil
}

func (stubUsers) GetProfile(_ context.Context, uid string) (*models.UserProfile, error) {
	if uid == "ghost" {
		return nil, core.NotFound("User profile not found")
	}
	return &models.UserProfile{UID: uid}, nil
}

type stubProducts struct {
	items    map[string]*models.Product
	filter   models.ProductFilter
	upload   string
	reserved map[string]int
}

func (s *stubProducts) Authorize(_ context.Context, caller *models.Caller) error {
	return stubAuthorize(caller, "manage products")
}

func (s *stubProducts) List(_ context.Context, f models.ProductFilter) (*models.ProductPage, error) {
	s.filter = f
	return &models.ProductPage{Products: []*models.Product{}}, nil
}

func (s *stubProducts) Get(_ context.Context, id string) (*models.Product, error) {
	p, ok := s.items[id]
	if !ok {
		return nil, core.NotFound("Product not found")
	}
	c := *p
	return &c, nil
}

func (s *stubProducts) Create(_ context.Context, _ *models.Caller, req models.CreateProductRequest) (*models.Product, error) {
	return &models.Product{ID: "p-new", Name: req.Name}, nil
}

func (s *stubProducts) Update(_ context.Context, _ *models.Caller, id string, _ models.UpdateProductRequest) (*models.Product, error) {
	return s.Get(context.Background(), id)
}

func (s *stubProducts) Delete(context.Context, *models.Caller, string) error { return nil }

func (s *stubProducts) ReplaceImage(_ context.Context, _ *models.Caller, id, filename, _ string, r io.Reader) (*models.Product, error) {
	data, _ := io.ReadAll(r)
	s.upload = filename + ":" + string(data)
	return s.Get(context.Background(), id)
}

func (s *stubProducts) Reserve(_ context.Context, qty map[string]int) (map[string]int64, error) {
	s.reserved = qty
	prices := make(map[string]int64, len(qty))
	for id := range qty {
		if p, ok := s.items[id]; ok {
			prices[id] = p.Price
		}
	}
	return prices, nil
}

type stubChecker map[string]bool

func (c stubChecker) IsAdmin(_ context.Context, uid string) bool { return c[uid] }

type testServer struct {
	router   *gin.Engine
	admin    *stubAdmin
	products *stubProducts
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ts := &testServer{
		router: gin.New(),
		admin:  &stubAdmin{},
		products: &stubProducts{items: map[string]*models.Product{
			"p1": {ID: "p1", Name: "Bag", Price: 1000, Stock: 5},
			"p2": {ID: "p2", Name: "Hat", Price: 550, Stock: 0},
		}},
	}
	SetupRoutes(ts.router, zap.NewNop(), stubVerifier{"admin-token": "admin-1", "member-token": "member-1"}, Services{
		Admin:    ts.admin,
		Users:    stubUsers{},
		Products: ts.products,
		Carts:    core.NewCartService(cart.NewMemoryStore(), ts.products, zap.NewNop()),
		Checker:  stubChecker{"admin-1": true},
	})
	return ts
}

func (ts *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestCallable_Envelope(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/callable/createUser", "admin-token",
		`{"data":{"email":"new@example.com","password":"secret1","displayName":"Newbie","isAdmin":true}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":{"uid":"new-uid"}}`, w.Body.String())
	assert.Equal(t, "admin-1", ts.admin.caller.UID)
	assert.Equal(t, models.CreateUserRequest{Email: "new@example.com", Password: "secret1", DisplayName: "Newbie", IsAdmin: true}, ts.admin.create)

	w = ts.do(http.MethodPost, "/api/v1/callable/updateUser", "admin-token",
		`{"data":{"uid":"u1","isAdmin":false,"expectedUpdateTime":"2024-01-01T00:00:00Z"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":{"message":"User updated successfully"}}`, w.Body.String())
	require.NotNil(t, ts.admin.update.IsAdmin)
	assert.False(t, *ts.admin.update.IsAdmin)
	assert.NotNil(t, ts.admin.update.ExpectedUpdateTime)
	assert.Nil(t, ts.admin.update.DisplayName)

	w = ts.do(http.MethodPost, "/api/v1/callable/deleteUser", "admin-token", `{"data":{"uid":"u1"}}`)
	assert.JSONEq(t, `{"result":{"message":"User deleted successfully"}}`, w.Body.String())
}

func TestCallable_ListUsersWithoutData(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{"", `{}`, `{"data":null}`} {
		w := ts.do(http.MethodPost, "/api/v1/callable/listUsers", "admin-token", body)
		require.Equal(t, http.StatusOK, w.Code, body)
		assert.Equal(t, models.ListUsersRequest{}, ts.admin.list)
	}

	w := ts.do(http.MethodPost, "/api/v1/callable/listUsers", "admin-token", `{"data":{"pageSize":2,"pageToken":"abc"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ListUsersRequest{PageSize: 2, PageToken: "abc"}, ts.admin.list)
}

func TestCallable_Auth(t *testing.T) {
	ts := newTestServer(t)

	// No token: the handler runs with no caller and the service decides.
	ts.admin.err = core.Unauthenticated("The function must be called while authenticated.")
	w := ts.do(http.MethodPost, "/api/v1/callable/listUsers", "", `{"data":{}}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":{"status":"UNAUTHENTICATED","message":"The function must be called while authenticated."}}`, w.Body.String())
	assert.Nil(t, ts.admin.caller)

	ts.admin.caller = nil
	w = ts.do(http.MethodPost, "/api/v1/callable/listUsers", "forged", `{"data":{}}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, ts.admin.caller, "service not reached with an invalid token")
}

func TestCallable_ErrorMapping(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{core.PermissionDenied("Only admins can list users."), http.StatusForbidden, "PERMISSION_DENIED", "Only admins can list users."},
		{core.InvalidArgument("email must be a valid email"), http.StatusBadRequest, "INVALID_ARGUMENT", "email must be a valid email"},
		{core.NotFound("User not found"), http.StatusNotFound, "NOT_FOUND", "User not found"},
		{core.AlreadyExists("Email already in use"), http.StatusConflict, "ALREADY_EXISTS", "Email already in use"},
		{core.FailedPrecondition("stale"), http.StatusBadRequest, "FAILED_PRECONDITION", "stale"},
		{core.Internal("Error listing users", errors.New("rpc timeout")), http.StatusInternalServerError, "INTERNAL", "Error listing users"},
		{errors.New("leaky detail"), http.StatusInternalServerError, "INTERNAL", "Internal error"},
	}
	for _, tc := range cases {
		ts := newTestServer(t)
		ts.admin.err = tc.err
		w := ts.do(http.MethodPost, "/api/v1/callable/listUsers", "member-token", `{"data":{}}`)
		assert.Equal(t, tc.status, w.Code)

		var resp ErrorResponse
		decode(t, w, &resp)
		assert.Equal(t, tc.code, string(resp.Error.Status))
		assert.Equal(t, tc.message, resp.Error.Message)
	}
}

func TestCallable_MalformedBody(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/v1/callable/createUser", "admin-token", `{"data":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/callable/createUser", "admin-token", `{"data":{"email":42}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_ARGUMENT")
}

func TestCallable_MalformedDataChecksCallerFirst(t *testing.T) {
	ops := map[string]string{
		"listUsers":  "list users",
		"createUser": "create users",
		"updateUser": "update users",
		"deleteUser": "delete users",
	}
	for op, action := range ops {
		ts := newTestServer(t)
		path := "/api/v1/callable/" + op
		body := `{"data":{"uid":5,"email":42,"pageSize":"x"}}`

		w := ts.do(http.MethodPost, path, "", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code, op)
		assert.JSONEq(t, `{"error":{"status":"UNAUTHENTICATED","message":"The function must be called while authenticated."}}`, w.Body.String(), op)

		w = ts.do(http.MethodPost, path, "member-token", body)
		assert.Equal(t, http.StatusForbidden, w.Code, op)
		assert.JSONEq(t, `{"error":{"status":"PERMISSION_DENIED","message":"Only admins can `+action+`."}}`, w.Body.String(), op)

		w = ts.do(http.MethodPost, path, "member-token", `{"data":`)
		assert.Equal(t, http.StatusForbidden, w.Code, op)

		w = ts.do(http.MethodPost, path, "admin-token", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, op)
		assert.Contains(t, w.Body.String(), "INVALID_ARGUMENT", op)
		assert.NotContains(t, w.Body.String(), "Go struct", op)
		assert.NotContains(t, w.Body.String(), "json:", op)

		assert.Nil(t, ts.admin.caller, "%s: service not reached with undecodable data", op)
	}
}

func TestProducts_ListQuery(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/products?category=bags&featured=true&limit=5&cursor=p9", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, ts.products.filter.Featured)
	assert.True(t, *ts.products.filter.Featured)
	assert.Equal(t, "bags", ts.products.filter.Category)
	assert.Equal(t, 5, ts.products.filter.Limit)
	assert.Equal(t, "p9", ts.products.filter.Cursor)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/v1/products?featured=maybe", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/v1/products?limit=0", "", "").Code)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/v1/products/p1", "", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/products/zzz", "", "").Code)
}

func TestProducts_ReplaceImage(t *testing.T) {
	ts := newTestServer(t)

	upload := func(contentType string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="image"; filename="bag.png"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, _ = part.Write([]byte("PNGDATA"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/products/p1/image", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer admin-token")
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, upload("text/plain").Code)
	assert.Empty(t, ts.products.upload)

	w := upload("image/png")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bag.png:PNGDATA", ts.products.upload)
}

func TestCart_Flow(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/v1/cart", "", "").Code)

	w := ts.do(http.MethodPost, "/api/v1/cart/items", "member-token", `{"productId":"p1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/cart/items", "member-token", `{"productId":"p2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "out of stock")
	assert.Contains(t, w.Body.String(), "FAILED_PRECONDITION")

	w = ts.do(http.MethodPut, "/api/v1/cart/items/p1", "member-token", `{"quantity":6}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "above stock")

	w = ts.do(http.MethodPut, "/api/v1/cart/items/p1", "member-token", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, w.Code)
	var got CartResponse
	decode(t, w, &got)
	assert.Equal(t, 3, got.TotalItems)
	assert.Equal(t, int64(3000), got.TotalPrice)
	assert.Equal(t, "₦30.00", got.TotalFormatted)

	w = ts.do(http.MethodPut, "/api/v1/cart/items/p1", "member-token", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "quantity required")

	w = ts.do(http.MethodPost, "/api/v1/cart/checkout", "member-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]int{"p1": 3}, ts.products.reserved)

	w = ts.do(http.MethodGet, "/api/v1/cart", "member-token", "")
	decode(t, w, &got)
	assert.Empty(t, got.Items)
	assert.Equal(t, "NGN", got.Currency)
}

func TestUsers_Endpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/users/sync", "member-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	var profile models.UserProfile
	decode(t, w, &profile)
	assert.Equal(t, "member-1@example.com", profile.Email)

	w = ts.do(http.MethodGet, "/api/v1/users/me/session", "admin-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"signedIn","user":{"uid":"admin-1","email":"admin-1@example.com","displayName":"","photoURL":"","isAdmin":true}}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/v1/users/me", "", "").Code)
}

func TestAdmin_Endpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/admin/analytics", "admin-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalUsers":4,"totalProducts":9}`, w.Body.String())

	ts.admin.err = core.PermissionDenied("Only admins can view analytics.")
	w = ts.do(http.MethodGet, "/api/v1/admin/analytics", "member-token", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdmin_InvalidBodyChecksCallerFirst(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/admin/products", "member-token", `{}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":{"status":"PERMISSION_DENIED","message":"Only admins can manage products."}}`, w.Body.String())

	w = ts.do(http.MethodPut, "/api/v1/admin/products/p1", "member-token", `{"price":"free"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodPut, "/api/v1/admin/profile", "member-token", `{"name":""}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Only admins can update their admin profile.")

	w = ts.do(http.MethodPost, "/api/v1/admin/products", "admin-token", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":{"status":"INVALID_ARGUMENT","message":"name is required"}}`, w.Body.String())

	w = ts.do(http.MethodPut, "/api/v1/admin/products/p1", "admin-token", `{"price":"free"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":{"status":"INVALID_ARGUMENT","message":"price has the wrong type"}}`, w.Body.String())

	w = ts.do(http.MethodPut, "/api/v1/admin/products/p1", "admin-token", `{"stock":-1}`)
	assert.JSONEq(t, `{"error":{"status":"INVALID_ARGUMENT","message":"stock must be at least 0"}}`, w.Body.String())
}

func TestCart_InvalidBody(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/cart/items", "member-token", `{}`)
	assert.JSONEq(t, `{"error":{"status":"INVALID_ARGUMENT","message":"productId is required"}}`, w.Body.String())

	w = ts.do(http.MethodPut, "/api/v1/cart/items/p1", "member-token", `{"quantity":"two"}`)
	assert.JSONEq(t, `{"error":{"status":"INVALID_ARGUMENT","message":"quantity has the wrong type"}}`, w.Body.String())

	w = ts.do(http.MethodPost, "/api/v1/cart/items", "member-token", `not json`)
	assert.JSONEq(t, `{"error":{"status":"INVALID_ARGUMENT","message":"Invalid request payload"}}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", "", "").Code)
	w := ts.do(http.MethodGet, "/ping", "", "")
	assert.Equal(t, "pong", w.Body.String())
}
