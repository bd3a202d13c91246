package hn

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/zhfeed/hnzh/internal/logger"
	"github.com/zhfeed/hnzh/internal/models"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.Config{Level: "error", Output: "stderr"})
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestListIDs(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/topstories.json" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[101, 102, 103]`)
	})

	client := NewClient(srv.URL, 5*time.Second)
	ids := client.ListIDs(context.Background(), models.CategoryTop)

	if len(ids) != 3 || ids[0] != 101 || ids[2] != 103 {
		t.Errorf("ListIDs = %v, want [101 102 103]", ids)
	}
}

func TestListIDsReturnsEmptyOnFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	client := NewClient(srv.URL, 5*time.Second)
	ids := client.ListIDs(context.Background(), models.CategoryNew)

	if ids == nil || len(ids) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", ids)
	}
}

func TestFetchItemAbsentOnNullBody(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `null`)
	})

	client := NewClient(srv.URL, 5*time.Second)
	if _, ok := client.FetchItem(context.Background(), 999); ok {
		t.Error("Expected absent for null body")
	}
}

func TestFetchItemDecodesFields(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/item/8863.json" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":8863,"type":"story","by":"dhouston","time":1175714200,"title":"My YC app","url":"http://example.com","score":111,"descendants":71,"kids":[8952,9224]}`)
	})

	client := NewClient(srv.URL, 5*time.Second)
	item, ok := client.FetchItem(context.Background(), 8863)
	if !ok {
		t.Fatal("Expected item to be present")
	}
	if item.ID != 8863 || item.By != "dhouston" || item.Score != 111 {
		t.Errorf("Unexpected item %+v", item)
	}
	if len(item.Kids) != 2 || item.Kids[0] != 8952 {
		t.Errorf("Unexpected kids %v", item.Kids)
	}
}

func TestFetchManyPreservesOrderAndDropsAbsent(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/item/1.json":
			fmt.Fprint(w, `{"id":1,"type":"story","title":"first","time":100}`)
		case "/item/2.json":
			fmt.Fprint(w, `null`)
		case "/item/3.json":
			fmt.Fprint(w, `{"id":3,"type":"story","title":"third","time":300}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := NewClient(srv.URL, 5*time.Second)
	items := client.FetchMany(context.Background(), []int64{1, 2, 3})

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].ID != 1 || items[1].ID != 3 {
		t.Errorf("Order not preserved: %v, %v", items[0].ID, items[1].ID)
	}
}
