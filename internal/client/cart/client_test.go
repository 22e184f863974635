package cart

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestClient_GetCart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/carts/cart-1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cart-1",
			"user_id": "user-1",
			"lines": [
				{"id": "line-1", "product_id": "p1", "qty": 2},
				{"id": "line-2", "product_id": "p2", "qty": 1}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	cart, err := client.GetCart(context.Background(), "cart-1")
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if cart.CustomerID != "user-1" || len(cart.Lines) != 2 {
		t.Errorf("unexpected cart: %+v", cart)
	}
	if cart.Empty() {
		t.Error("cart with lines must not be empty")
	}

	if _, err := client.GetCart(context.Background(), "missing"); !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}

func TestClient_Clear(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	if err := client.Clear(context.Background(), "cart-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if gotPath != "POST /carts/cart-1/clear" {
		t.Errorf("unexpected request: %s", gotPath)
	}
}

func TestClient_ClearMissingCart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	if err := client.Clear(context.Background(), "ghost"); !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}
