package ristretto

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestWaitOnSetReadsOwnWrites(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64, WaitOnSet: true})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(ctx)

	ok, err := p.Set(ctx, "rec:session.record:mailbox/MB", []byte("frame"), 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	got, hit, err := p.Get(ctx, "rec:session.record:mailbox/MB")
	if err != nil || !hit || !bytes.Equal(got, []byte("frame")) {
		t.Fatalf("Get: hit=%v err=%v got=%q", hit, err, got)
	}

	if err := p.Del(ctx, "rec:session.record:mailbox/MB"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := p.Get(ctx, "rec:session.record:mailbox/MB"); hit {
		t.Fatalf("expected miss after Del")
	}
}

func TestInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for zero config")
	}
}
