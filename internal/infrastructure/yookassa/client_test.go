package yookassa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/payment"
)

func newTestClient(url string) *Client {
	c := NewClient("shop-1", "secret", "https://t.me/testbot", 5*time.Second, nil)
	c.SetBaseURL(url)
	return c
}

func TestCreatePayment(t *testing.T) {
	var mu sync.Mutex
	var idemKeys []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "shop-1" || pass != "secret" {
			t.Error("missing or wrong basic auth")
		}
		mu.Lock()
		idemKeys = append(idemKeys, r.Header.Get("Idempotence-Key"))
		mu.Unlock()

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Amount.Value != "1000.00" || req.Amount.Currency != "RUB" {
			t.Errorf("unexpected amount: %+v", req.Amount)
		}
		if !req.Capture || req.Confirmation.Type != "redirect" {
			t.Errorf("unexpected payment shape: %+v", req)
		}

		_ = json.NewEncoder(w).Encode(Payment{
			ID:     "pay-123",
			Status: payment.StatusPending,
			Confirmation: confirmation{
				Type:            "redirect",
				ConfirmationURL: "https://pay.example/redirect",
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	id, url, err := c.CreatePayment(context.Background(), 100000, "Заказ ЭКОамулет для +79990000000", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "pay-123" || url != "https://pay.example/redirect" {
		t.Errorf("unexpected result: %s %s", id, url)
	}

	// second call must carry a fresh idempotence key
	if _, _, err := c.CreatePayment(context.Background(), 100000, "desc", nil); err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(idemKeys) != 2 || idemKeys[0] == "" || idemKeys[0] == idemKeys[1] {
		t.Errorf("expected two distinct idempotence keys, got %v", idemKeys)
	}
}

func TestCreatePayment_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error"}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	id, url, err := c.CreatePayment(context.Background(), 100000, "desc", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if id != "" || url != "" {
		t.Errorf("expected empty pair on failure, got %q %q", id, url)
	}
}

func TestFindPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/pay-123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Payment{ID: "pay-123", Status: payment.StatusSucceeded})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	status, err := c.FindPayment(context.Background(), "pay-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != payment.StatusSucceeded {
		t.Errorf("expected succeeded, got %s", status)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		minor int64
		want  string
	}{
		{100000, "1000.00"},
		{99, "0.99"},
		{150050, "1500.50"},
	}
	for _, tc := range cases {
		if got := formatAmount(tc.minor); got != tc.want {
			t.Errorf("formatAmount(%d) = %s, want %s", tc.minor, got, tc.want)
		}
	}
}
