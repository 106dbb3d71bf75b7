package products

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
)

func TestFindByCodeSingleObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("code"); got != "4901234567894" {
			t.Errorf("code query = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"prdId":42,"code":"4901234567894","name":"お茶","price":150}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	p, err := c.FindByCode(context.Background(), "4901234567894")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if p.ID != 42 || p.Name != "お茶" || p.Price != 150 {
		t.Fatalf("unexpected product %+v", p)
	}
}

func TestFindByCodeItemsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"prdId":7,"code":"4512345678903","name":"ガム","price":100}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	p, err := c.FindByCode(context.Background(), "4512345678903")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if p.ID != 7 || p.Price != 100 {
		t.Fatalf("unexpected product %+v", p)
	}
}

func TestFindByCodeEmptyItemsIsUnregistered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	p, err := c.FindByCode(context.Background(), "4999999999996")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if p.Registered() {
		t.Fatalf("expected placeholder, got %+v", p)
	}
	if p.Name != UnregisteredName || p.Price != 0 || p.Code != "4999999999996" {
		t.Fatalf("unexpected placeholder %+v", p)
	}
}

func TestFindByCodeNotFoundStatusIsUnregistered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	p, err := c.FindByCode(context.Background(), "4999999999996")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if p.Name != UnregisteredName {
		t.Fatalf("unexpected product %+v", p)
	}
}

func TestFindByCodeServerErrorIsADependencyFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	_, err := c.FindByCode(context.Background(), "4901234567894")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestFindByCodeUnreachableCatalog(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.FindByCode(context.Background(), "4901234567894")
	if pkgerrors.As(err) == nil {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestDummyService(t *testing.T) {
	p, err := DummyService{}.FindByCode(context.Background(), "whatever")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if p.ID != 1 || p.Name != "ダミー商品" || p.Price != 123 || p.Code != "whatever" {
		t.Fatalf("unexpected dummy product %+v", p)
	}
}
