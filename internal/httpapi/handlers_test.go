package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/larrybwosi/multitenancy-sub007/internal/cache"
	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
	"github.com/larrybwosi/multitenancy-sub007/internal/service"
	"github.com/larrybwosi/multitenancy-sub007/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded(zap.NewNop())
	svc := service.New(repo, cache.NoopLocker{}, zap.NewNop(), service.Options{})
	auth := NewAuthManager("test-secret-key-with-enough-length", time.Hour, repo, zap.NewNop())

	return New(svc, auth, "*", zap.NewNop())
}

func loginAs(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	payload, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.AccessToken
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if raw, ok := payload.(string); ok {
			body.WriteString(raw)
		} else if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload := domain.LoginRequest{Username: "Cashier", Password: "cashier123"}
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	decodeBody(t, rec, &resp)
	if resp.AccessToken == "" || resp.OrganizationID != memory.DemoOrganizationID || resp.MemberID != memory.DemoCashierID {
		t.Fatalf("unexpected login response %+v", resp)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: "wrongpassword"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestProtectedRoutesRequireTokenAndRole(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashier := loginAs(t, handler, "cashier", "cashier123")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{name: "no token", method: http.MethodGet, path: "/api/v1/products", want: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodGet, path: "/api/v1/products", token: "not-a-jwt", want: http.StatusUnauthorized},
		{name: "cashier on admin route", method: http.MethodGet, path: "/api/v1/inventory/batches", token: cashier, want: http.StatusForbidden},
		{name: "cashier creating product", method: http.MethodPost, path: "/api/v1/products", token: cashier,
			body: domain.ProductCreateRequest{SKU: "X1", Name: "X"}, want: http.StatusForbidden},
		{name: "cashier reading products", method: http.MethodGet, path: "/api/v1/products", token: cashier, want: http.StatusOK},
		{name: "wrong method", method: http.MethodPut, path: "/api/v1/sales", token: cashier, body: map[string]any{}, want: http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, handler, tc.method, tc.path, tc.token, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d (body: %s)", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSaleLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"customerId":    "cust-wanjiku",
		"paymentMethod": domain.PaymentCash,
		"items": []map[string]any{
			{"productId": "prod-rice", "quantity": 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Sale domain.Sale `json:"sale"`
	}
	decodeBody(t, rec, &created)
	if created.Sale.LocationID != memory.DemoMainLocationID || created.Sale.FinalAmount.String() != "640" {
		t.Fatalf("unexpected sale %+v", created.Sale)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/"+created.Sale.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for sale lookup, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales?dateRange=all_time&paymentMethod=CASH", token, nil)
	var list domain.SaleListResponse
	decodeBody(t, rec, &list)
	if list.TotalCount != 1 || len(list.Sales) != 1 {
		t.Fatalf("expected one sale listed, got %+v", list)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/cust-wanjiku/loyalty", token, nil)
	var loyalty struct {
		Transactions []domain.LoyaltyTransaction `json:"transactions"`
	}
	decodeBody(t, rec, &loyalty)
	if len(loyalty.Transactions) != 1 || loyalty.Transactions[0].Points != 640 {
		t.Fatalf("expected one earn entry of 640 points, got %+v", loyalty.Transactions)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/sale-missing", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sale, got %d", rec.Code)
	}
}

func TestSaleErrorsMapToStatus(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"paymentMethod": domain.PaymentCash,
		"items":         []map[string]any{{"productId": "prod-milk", "quantity": 25}},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"paymentMethod": "BARTER",
		"items":         []map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid sale, got %d", rec.Code)
	}
	var body struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	decodeBody(t, rec, &body)
	if body.Details["paymentMethod"] == "" {
		t.Fatalf("expected paymentMethod details, got %+v", body)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, `{"paymentMethod":"CASH","unknown":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown fields, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales?dateRange=fortnight", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown date range, got %d", rec.Code)
	}
}

func TestAttendanceOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashier := loginAs(t, handler, "cashier", "cashier123")
	admin := loginAs(t, handler, "admin", "admin123")

	checkIn := domain.CheckInRequest{LocationID: memory.DemoWarehouseID}
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/attendance/check-in", cashier, checkIn); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/attendance/check-in", cashier, checkIn); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for double check-in, got %d", rec.Code)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/attendance/open", admin, nil)
	var open struct {
		Attendance []domain.AttendanceLog `json:"attendance"`
	}
	decodeBody(t, rec, &open)
	if len(open.Attendance) != 1 {
		t.Fatalf("expected one open session, got %d", len(open.Attendance))
	}

	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/attendance/check-out", cashier, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for check-out, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/attendance/check-out", cashier, nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second check-out, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/attendance/logs?memberId="+memory.DemoAdminMemberID, cashier, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another member's history, got %d", rec.Code)
	}
}

func TestAutoCheckoutSettingsAndSweepOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	admin := loginAs(t, handler, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/settings/auto-checkout", admin, map[string]any{
		"enableAutoCheckout": true,
		"autoCheckoutTime":   "25:00",
		"defaultTimezone":    "Africa/Nairobi",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid time, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/settings/auto-checkout", admin, map[string]any{
		"enableAutoCheckout": true,
		"autoCheckoutTime":   "19:15",
		"defaultTimezone":    "Africa/Nairobi",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/settings/auto-checkout", admin, nil)
	var got struct {
		Settings domain.OrganizationSettings `json:"settings"`
	}
	decodeBody(t, rec, &got)
	if got.Settings.AutoCheckoutTime == nil || *got.Settings.AutoCheckoutTime != "19:15" {
		t.Fatalf("unexpected settings %+v", got.Settings)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/attendance/sweep", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for manual sweep, got %d", rec.Code)
	}
	var report domain.SweepReport
	decodeBody(t, rec, &report)
	if report.OrganizationsScanned != 1 {
		t.Fatalf("expected the demo tenant to be scanned, got %+v", report)
	}
}

func TestCreatedMemberCanLogIn(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	admin := loginAs(t, handler, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/members", admin, domain.MemberCreateRequest{
		Name: "Weekend Cashier", Username: "weekend", Password: "weekend-pass",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	token := loginAs(t, handler, "weekend", "weekend-pass")
	actor, err := api.auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Role != domain.RoleCashier || actor.OrganizationID != memory.DemoOrganizationID || actor.MemberID == "" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}
