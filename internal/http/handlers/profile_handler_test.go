package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-profile-backend/internal/domain"
	"github.com/tbourn/go-profile-backend/internal/http/middleware"
	"github.com/tbourn/go-profile-backend/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

// ----- stub collaborators behind a real controller -----

type stubCustomers struct {
	cust      *domain.Customer
	getErr    error
	updateOK  bool
	updateErr error
}

func (s *stubCustomers) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return s.cust, s.getErr
}

func (s *stubCustomers) Update(ctx context.Context, userID int64, cust *domain.Customer) (bool, error) {
	return s.updateOK, s.updateErr
}

type stubOrders struct {
	orders    []domain.Order
	listErr   error
	cancelErr error
	cancelled []int64
}

func (s *stubOrders) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	return s.orders, s.listErr
}

func (s *stubOrders) Cancel(ctx context.Context, orderID int64) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.cancelled = append(s.cancelled, orderID)
	return nil
}

type stubNotifications struct{ created int }

func (s *stubNotifications) Create(ctx context.Context, n domain.Notification) error {
	s.created++
	return nil
}

type stubUploads struct{ img *services.UploadedImage }

func (s *stubUploads) UploadImage(ctx context.Context, payload string) (*services.UploadedImage, error) {
	return s.img, nil
}

type stubChannel struct{ sent int }

func (s *stubChannel) Open() error  { return nil }
func (s *stubChannel) Close() error { return nil }
func (s *stubChannel) Send(msg domain.ChatMessage) error {
	s.sent++
	return nil
}

type recordedIdem struct {
	userID, orderID, key string
	status               int
	calls                int
	err                  error
}

func (r *recordedIdem) Record(ctx context.Context, userID, orderID, key string, status int) error {
	r.calls++
	r.userID, r.orderID, r.key, r.status = userID, orderID, key, status
	return r.err
}

type fixture struct {
	customers     *stubCustomers
	orders        *stubOrders
	notifications *stubNotifications
	uploads       *stubUploads
	channel       *stubChannel
	idem          *recordedIdem
	registry      *services.Registry
	router        *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		customers: &stubCustomers{
			cust:     &domain.Customer{UserID: 7, Name: "Linh Tran", Email: "linh@example.com"},
			updateOK: true,
		},
		orders: &stubOrders{orders: []domain.Order{
			{ID: 42, Status: domain.StatusPending},
			{ID: 43, Status: domain.StatusCompleted},
		}},
		notifications: &stubNotifications{},
		uploads:       &stubUploads{},
		channel:       &stubChannel{},
		idem:          &recordedIdem{},
	}
	f.registry = services.NewRegistry(services.Deps{
		Customers:     f.customers,
		Orders:        f.orders,
		Notifications: f.notifications,
		Uploads:       f.uploads,
		Channel:       f.channel,
		Log:           zerolog.Nop(),
	})

	h := NewProfileHandler(f.registry, f.idem)
	r := gin.New()
	r.GET("/profile", h.GetProfile)
	r.GET("/profile/orders", h.RefreshOrders)
	r.PUT("/profile", h.UpdateProfile)
	r.DELETE("/profile/session", h.FinalizeSession)
	r.POST("/orders/:id/cancel", h.CancelOrder)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(buf)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "linh@example.com")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, w.Body.String())
	}
	return e
}

// ----- tests -----

func TestGetProfile_RequiresIdentity(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if e := decodeErr(t, w); e.Code != CodeUnauthorized {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestGetProfile_ReturnsSnapshot(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/profile", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp profileResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Customer == nil || resp.Customer.Name != "Linh Tran" {
		t.Fatalf("customer = %+v", resp.Customer)
	}
	if len(resp.Orders) != 2 || resp.CompletedCount != 1 {
		t.Fatalf("orders = %d completed = %d", len(resp.Orders), resp.CompletedCount)
	}
}

func TestGetProfile_CustomerLookupFailureRedirects(t *testing.T) {
	f := newFixture(t)
	f.customers.cust = nil
	f.customers.getErr = errors.New("down")

	w := f.do(t, http.MethodGet, "/profile", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	e := decodeErr(t, w)
	if e.Code != CodeCustomerLookupFailed {
		t.Fatalf("code = %q", e.Code)
	}
	if e.Redirect != "/" {
		t.Fatalf("redirect = %q, want home destination", e.Redirect)
	}
}

func TestGetProfile_LocalizedMessage(t *testing.T) {
	f := newFixture(t)
	f.customers.cust = nil
	f.customers.getErr = errors.New("down")

	w := f.do(t, http.MethodGet, "/profile", nil, map[string]string{"Accept-Language": "vi"})
	if e := decodeErr(t, w); e.Message != "Lỗi thông tin" {
		t.Fatalf("message = %q, want Vietnamese catalog entry", e.Message)
	}
}

func TestRefreshOrders_UpstreamFailure(t *testing.T) {
	f := newFixture(t)
	// Activate the session while the order service is healthy.
	if w := f.do(t, http.MethodGet, "/profile", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("activation failed: %d", w.Code)
	}
	f.orders.listErr = errors.New("down")

	w := f.do(t, http.MethodGet, "/profile/orders", nil, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if e := decodeErr(t, w); e.Code != CodeOrderLookupFailed {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestRefreshOrders_ServerErrorToastTitle(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodGet, "/profile", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("activation failed: %d", w.Code)
	}
	f.orders.listErr = errors.New("down")

	w := f.do(t, http.MethodGet, "/profile/orders", nil, map[string]string{"Accept-Language": "vi"})
	e := decodeErr(t, w)
	if e.Message != "Lỗi server" || e.Context != "Hệ thống" {
		t.Fatalf("message/context = %q/%q, want Vietnamese server-error toast", e.Message, e.Context)
	}
}

func TestCancelOrder_InvalidID(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/orders/abc/cancel", cancelOrderRequest{Confirmed: true}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(f.orders.cancelled) != 0 {
		t.Fatalf("malformed id reached the order service")
	}
}

func TestCancelOrder_SentinelID(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/orders/-1/cancel", "/orders/0/cancel"} {
		w := f.do(t, http.MethodPost, path, cancelOrderRequest{Confirmed: true}, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", path, w.Code)
		}
		if e := decodeErr(t, w); e.Code != CodeBadRequest {
			t.Fatalf("%s: code = %q", path, e.Code)
		}
	}
	if len(f.orders.cancelled) != 0 {
		t.Fatalf("non-positive id reached the order service")
	}
	if f.idem.calls != 0 {
		t.Fatalf("non-positive id recorded an idempotency row")
	}
}

func TestCancelOrder_Declined(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/orders/42/cancel", cancelOrderRequest{Confirmed: false}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp cancelOrderResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Cancelled {
		t.Fatalf("declined cancel reported as cancelled")
	}
	if len(f.orders.cancelled) != 0 || f.notifications.created != 0 || f.channel.sent != 0 {
		t.Fatalf("declined cancel reached collaborators")
	}
}

func TestCancelOrder_Success(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/orders/42/cancel", cancelOrderRequest{Confirmed: true}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp cancelOrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Cancelled {
		t.Fatalf("cancelled = false")
	}
	if resp.Message != "Order cancelled successfully!" {
		t.Fatalf("message = %q", resp.Message)
	}
	if len(f.orders.cancelled) != 1 || f.orders.cancelled[0] != 42 {
		t.Fatalf("cancelled = %v", f.orders.cancelled)
	}
	if f.notifications.created != 1 || f.channel.sent != 1 {
		t.Fatalf("notification/broadcast = %d/%d, want 1/1", f.notifications.created, f.channel.sent)
	}
	// No Idempotency-Key was sent, so nothing is recorded.
	if f.idem.calls != 0 {
		t.Fatalf("idempotency recorded without a key")
	}
}

func TestCancelOrder_RecordsIdempotencyKey(t *testing.T) {
	f := newFixture(t)

	// Simulate the validator having stored the key in the context.
	f.router = gin.New()
	f.router.POST("/orders/:id/cancel",
		middleware.IdempotencyValidator(nil),
		NewProfileHandler(f.registry, f.idem).CancelOrder)

	key := "3b241101-e2bb-4255-8caf-4136c566a962"
	w := f.do(t, http.MethodPost, "/orders/42/cancel", cancelOrderRequest{Confirmed: true},
		map[string]string{"Idempotency-Key": key})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if f.idem.calls != 1 {
		t.Fatalf("record calls = %d, want 1", f.idem.calls)
	}
	if f.idem.userID != "linh@example.com" || f.idem.orderID != "42" || f.idem.key != key {
		t.Fatalf("recorded = %+v", f.idem)
	}
	if f.idem.status != http.StatusOK {
		t.Fatalf("recorded status = %d", f.idem.status)
	}
}

func TestCancelOrder_ReplaySkipsSideEffects(t *testing.T) {
	f := newFixture(t)

	lookup := func(c *gin.Context, userID, orderID, key string) (int, bool, error) {
		return http.StatusOK, true, nil
	}
	f.router = gin.New()
	f.router.POST("/orders/:id/cancel",
		middleware.IdempotencyValidator(lookup),
		NewProfileHandler(f.registry, f.idem).CancelOrder)

	w := f.do(t, http.MethodPost, "/orders/42/cancel", nil,
		map[string]string{"Idempotency-Key": "3b241101-e2bb-4255-8caf-4136c566a962"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp cancelOrderResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Cancelled {
		t.Fatalf("replay must report the recorded outcome")
	}
	if len(f.orders.cancelled) != 0 || f.notifications.created != 0 || f.channel.sent != 0 {
		t.Fatalf("replay re-ran side effects")
	}
}

func TestCancelOrder_UpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.orders.cancelErr = errors.New("409 not cancellable")

	w := f.do(t, http.MethodPost, "/orders/42/cancel", cancelOrderRequest{Confirmed: true}, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if e := decodeErr(t, w); e.Code != CodeCancelFailed {
		t.Fatalf("code = %q", e.Code)
	}
	if f.notifications.created != 0 || f.channel.sent != 0 {
		t.Fatalf("failed cancel must not notify or broadcast")
	}
}

func TestUpdateProfile_Success(t *testing.T) {
	f := newFixture(t)
	blob := "data:image/png;base64,AAAA"
	f.uploads.img = &services.UploadedImage{SecureURL: "https://cdn.example.com/new.png"}

	w := f.do(t, http.MethodPut, "/profile", updateProfileRequest{
		Name:      "Linh T.",
		ImageBlob: &blob,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp updateProfileResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Customer.Name != "Linh T." {
		t.Fatalf("customer = %+v", resp.Customer)
	}
	if resp.Customer.Image != "https://cdn.example.com/new.png" {
		t.Fatalf("image = %q, want canonical URL", resp.Customer.Image)
	}
	if resp.Message != "Profile updated successfully!" {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestUpdateProfile_NotApplied(t *testing.T) {
	f := newFixture(t)
	f.customers.updateOK = false

	w := f.do(t, http.MethodPut, "/profile", updateProfileRequest{Name: "x"}, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if e := decodeErr(t, w); e.Code != CodeUpdateNotApplied {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestUpdateProfile_BadBody(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPut, "/profile", bytes.NewReader([]byte("{bad")))
	req.Header.Set("X-User-ID", "linh@example.com")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestFinalizeSession(t *testing.T) {
	f := newFixture(t)
	// Activate, then dispose.
	if w := f.do(t, http.MethodGet, "/profile", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("activation failed")
	}
	w := f.do(t, http.MethodDelete, "/profile/session", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	// Disposing again is a no-op.
	w = f.do(t, http.MethodDelete, "/profile/session", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("second dispose status = %d, want 204", w.Code)
	}
}
