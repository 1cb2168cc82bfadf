package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"rwa-lending-gateway/internal/domain/origination"
)

func TestRedisFeed_PushRecent(t *testing.T) {
	s, c := newMiniredis(t)
	f := NewRedisFeed(c, 10*time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := f.Push(ctx, "0xabc", *origination.NewSuccess(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	got, err := f.Recent(ctx, "0xabc", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Message != "m2" || got[1].Message != "m1" {
		t.Fatalf("unexpected feed: %+v", got)
	}
	if got[0].Level != origination.LevelSuccess {
		t.Fatalf("level = %q", got[0].Level)
	}
	if ttl := s.TTL("notifications:0xabc"); ttl != 10*time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	empty, err := f.Recent(ctx, "0xnone", 10)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty feed = %+v, %v", empty, err)
	}
}

func TestRedisFeed_Capped(t *testing.T) {
	_, c := newMiniredis(t)
	f := NewRedisFeed(c, time.Minute)
	ctx := context.Background()
	for i := 0; i < maxFeedLen+5; i++ {
		_ = f.Push(ctx, "a", *origination.NewWarning("w"))
	}
	got, _ := f.Recent(ctx, "a", 0)
	if len(got) != maxFeedLen {
		t.Fatalf("len = %d, want %d", len(got), maxFeedLen)
	}
}

func TestMemoryFeed(t *testing.T) {
	f := NewMemoryFeed()
	ctx := context.Background()
	_ = f.Push(ctx, "a", *origination.NewError("first"))
	_ = f.Push(ctx, "a", *origination.NewError("second"))

	got, _ := f.Recent(ctx, "a", 10)
	if len(got) != 2 || got[0].Message != "second" {
		t.Fatalf("unexpected feed: %+v", got)
	}
	got, _ = f.Recent(ctx, "a", 1)
	if len(got) != 1 {
		t.Fatalf("limit ignored: %+v", got)
	}
}
