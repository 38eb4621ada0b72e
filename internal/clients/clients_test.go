package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-profile-backend/internal/domain"
)

const testTimeout = 5 * time.Second

// ----- CustomerClient -----

func TestCustomerClient_GetByEmail(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(domain.Customer{
			UserID: 7, Name: "Linh Tran", Email: "linh@example.com",
		})
	}))
	defer srv.Close()

	c := NewCustomerClient(srv.URL, testTimeout, zerolog.Nop())
	cust, err := c.GetByEmail(context.Background(), "linh@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if gotPath != "/api/customers/by-email/linh@example.com" {
		t.Fatalf("path = %q", gotPath)
	}
	if cust.UserID != 7 || cust.Name != "Linh Tran" {
		t.Fatalf("customer = %+v", cust)
	}
}

func TestCustomerClient_GetByEmail_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewCustomerClient(srv.URL, testTimeout, zerolog.Nop())
	if _, err := c.GetByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCustomerClient_GetByEmail_NullBodyIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	c := NewCustomerClient(srv.URL, testTimeout, zerolog.Nop())
	if _, err := c.GetByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCustomerClient_Update(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody domain.Customer
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("true"))
	}))
	defer srv.Close()

	c := NewCustomerClient(srv.URL, testTimeout, zerolog.Nop())
	ok, err := c.Update(context.Background(), 7, &domain.Customer{UserID: 7, Name: "Linh T."})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !ok {
		t.Fatalf("ok = false, want true")
	}
	if gotMethod != http.MethodPut || gotPath != "/api/customers/7" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotBody.Name != "Linh T." {
		t.Fatalf("body = %+v", gotBody)
	}
}

func TestCustomerClient_Update_FalsyBodyIsSoftFailure(t *testing.T) {
	for _, body := range []string{"", "null", "false"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		c := NewCustomerClient(srv.URL, testTimeout, zerolog.Nop())
		ok, err := c.Update(context.Background(), 7, &domain.Customer{UserID: 7})
		srv.Close()
		if err != nil {
			t.Fatalf("body %q: err = %v", body, err)
		}
		if ok {
			t.Fatalf("body %q: ok = true, want soft failure", body)
		}
	}
}

func TestCustomerClient_Update_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCustomerClient(srv.URL, testTimeout, zerolog.Nop())
	_, err := c.Update(context.Background(), 7, &domain.Customer{UserID: 7})
	var upErr *Error
	if !errors.As(err, &upErr) || upErr.Status != http.StatusInternalServerError {
		t.Fatalf("err = %v, want *Error with status 500", err)
	}
}

// ----- OrderClient -----

func TestOrderClient_ListByEmail(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode([]domain.Order{
			{ID: 1, Status: domain.StatusCompleted, Total: 120000},
			{ID: 2, Status: domain.StatusPending, Total: 45000},
		})
	}))
	defer srv.Close()

	c := NewOrderClient(srv.URL, testTimeout, zerolog.Nop())
	orders, err := c.ListByEmail(context.Background(), "linh@example.com")
	if err != nil {
		t.Fatalf("ListByEmail: %v", err)
	}
	if gotQuery != "email=linh%40example.com" {
		t.Fatalf("query = %q", gotQuery)
	}
	if len(orders) != 2 || orders[0].Status != domain.StatusCompleted {
		t.Fatalf("orders = %+v", orders)
	}
}

func TestOrderClient_ListByEmail_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := NewOrderClient(srv.URL, testTimeout, zerolog.Nop())
	orders, err := c.ListByEmail(context.Background(), "linh@example.com")
	if err != nil {
		t.Fatalf("ListByEmail: %v", err)
	}
	if orders == nil || len(orders) != 0 {
		t.Fatalf("orders = %#v, want empty non-nil slice", orders)
	}
}

func TestOrderClient_Cancel(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.Write([]byte("true"))
	}))
	defer srv.Close()

	c := NewOrderClient(srv.URL, testTimeout, zerolog.Nop())
	if err := c.Cancel(context.Background(), 42); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/api/orders/42/cancel" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
}

func TestOrderClient_Cancel_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not cancellable", http.StatusConflict)
	}))
	defer srv.Close()

	c := NewOrderClient(srv.URL, testTimeout, zerolog.Nop())
	err := c.Cancel(context.Background(), 42)
	var upErr *Error
	if !errors.As(err, &upErr) || upErr.Status != http.StatusConflict {
		t.Fatalf("err = %v, want *Error with status 409", err)
	}
}

// ----- NotificationClient -----

func TestNotificationClient_Create(t *testing.T) {
	var gotBody domain.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/notifications" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewNotificationClient(srv.URL, testTimeout, zerolog.Nop())
	err := c.Create(context.Background(), domain.Notification{Content: "Linh Tran cancelled an order (42)"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if gotBody.Content != "Linh Tran cancelled an order (42)" {
		t.Fatalf("body = %+v", gotBody)
	}
}

// ----- UploadClient -----

func TestUploadClient_UploadImage(t *testing.T) {
	var gotReq uploadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload/customer" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(UploadedImage{SecureURL: "https://cdn.example.com/x.png", PublicID: "x"})
	}))
	defer srv.Close()

	c := NewUploadClient(srv.URL, testTimeout, zerolog.Nop())
	img, err := c.UploadImage(context.Background(), "data:image/png;base64,AAAA")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if gotReq.Data != "data:image/png;base64,AAAA" {
		t.Fatalf("payload = %q", gotReq.Data)
	}
	if img == nil || img.SecureURL != "https://cdn.example.com/x.png" {
		t.Fatalf("img = %+v", img)
	}
}

func TestUploadClient_UploadImage_FalsyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	c := NewUploadClient(srv.URL, testTimeout, zerolog.Nop())
	img, err := c.UploadImage(context.Background(), "data:image/png;base64,AAAA")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if img != nil {
		t.Fatalf("img = %+v, want nil soft failure", img)
	}
}

func TestUploadClient_UploadImage_MissingURLIsSoftFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"public_id":"x"}`))
	}))
	defer srv.Close()

	c := NewUploadClient(srv.URL, testTimeout, zerolog.Nop())
	img, err := c.UploadImage(context.Background(), "payload")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if img != nil {
		t.Fatalf("img = %+v, want nil when secure_url absent", img)
	}
}

// ----- shared plumbing -----

func TestDoJSON_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	hc := newHTTPClient(testTimeout)
	if _, err := doJSON(ctx, hc, http.MethodGet, srv.URL, nil); err == nil {
		t.Fatalf("expected context deadline error")
	}
}

func TestDecodeInto_TruthyAndFalsy(t *testing.T) {
	var out map[string]string
	ok, err := decodeInto([]byte(`{"a":"b"}`), &out)
	if err != nil || !ok || out["a"] != "b" {
		t.Fatalf("ok=%v err=%v out=%v", ok, err, out)
	}
	for _, raw := range []string{"", "  ", "null", "false"} {
		ok, err := decodeInto([]byte(raw), &out)
		if err != nil || ok {
			t.Fatalf("raw %q: ok=%v err=%v", raw, ok, err)
		}
	}
	if _, err := decodeInto([]byte(`{bad`), &out); err == nil {
		t.Fatalf("malformed body must error")
	}
}
