package cache

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

type payload struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func newTestCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	host, portStr, _ := strings.Cut(mr.Addr(), ":")
	port, _ := strconv.Atoi(portStr)
	svc, err := NewCacheService(CacheConfig{Host: host, Port: port, Prefix: "test:"}, nil)
	if err != nil {
		t.Fatalf("NewCacheService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc, mr
}

func TestSetGetDel(t *testing.T) {
	svc, mr := newTestCache(t)
	ctx := context.Background()

	if err := svc.Set(ctx, "p1", payload{Name: "a", Score: 3}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("test:p1") {
		t.Fatalf("expected prefixed key")
	}
	if ttl := mr.TTL("test:p1"); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}
	var got payload
	if err := svc.Get(ctx, "p1", &got); err != nil || got.Score != 3 {
		t.Fatalf("Get: %+v %v", got, err)
	}
	if err := svc.Del(ctx, "p1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	var miss payload
	if err := svc.Get(ctx, "p1", &miss); err != nil || miss.Name != "" {
		t.Fatalf("miss must leave dest empty: %+v %v", miss, err)
	}
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	svc, mr := newTestCache(t)
	_ = mr.Set("test:bad", "{not json")
	var got payload
	if err := svc.Get(context.Background(), "bad", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if mr.Exists("test:bad") {
		t.Fatalf("corrupt entry should be dropped")
	}
}

func TestNewCacheServiceRequiresHost(t *testing.T) {
	if _, err := NewCacheService(CacheConfig{}, nil); err == nil {
		t.Fatalf("expected error without host")
	}
}

func TestPartiallyDecodableEntryLeavesDestUntouched(t *testing.T) {
	svc, mr := newTestCache(t)
	// name decodes before score fails
	_ = mr.Set("test:half", `{"name":"stale","score":"oops"}`)
	got := payload{Name: "keep", Score: 7}
	if err := svc.Get(context.Background(), "half", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "keep" || got.Score != 7 {
		t.Fatalf("dest modified by undecodable entry: %+v", got)
	}
	if mr.Exists("test:half") {
		t.Fatalf("undecodable entry should be dropped")
	}
}

func TestGetRejectsNonPointer(t *testing.T) {
	svc, _ := newTestCache(t)
	if err := svc.Set(context.Background(), "p", payload{Name: "a"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := svc.Get(context.Background(), "p", payload{}); err == nil {
		t.Fatalf("expected error for non-pointer destination")
	}
}
