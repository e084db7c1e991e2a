package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/sessioncache"
)

func TestLoggerStableAttrOrder(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{
		Level: stdslog.LevelInfo,
		ReplaceAttr: func(_ []string, a stdslog.Attr) stdslog.Attr {
			if a.Key == stdslog.TimeKey {
				return stdslog.Attr{}
			}
			return a
		},
	})
	l := New(stdslog.New(h))

	l.Debug("hidden", sessioncache.Fields{"a": 1})
	l.Info("slot committed", sessioncache.Fields{"run": "r1", "kind": "mailbox", "attempt": 2})

	got := strings.TrimSpace(buf.String())
	want := `level=INFO msg="slot committed" attempt=2 kind=mailbox run=r1`
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}
