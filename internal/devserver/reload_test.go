package devserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendReloadScript(t *testing.T) {
	t.Run("injects before closing body", func(t *testing.T) {
		html := "<html><body><p>hi</p></body></html>"
		out := AppendReloadScript(html)

		assert.Contains(t, out, "__skald_reload__")
		assert.Contains(t, out, ReloadPath)
		idx := strings.Index(out, "__skald_reload__")
		assert.Less(t, idx, strings.Index(out, "</body>"), "script must sit inside body")
	})

	t.Run("appends when there is no body tag", func(t *testing.T) {
		out := AppendReloadScript("<p>fragment</p>")
		assert.True(t, strings.HasPrefix(out, "<p>fragment</p>"))
		assert.Contains(t, out, "__skald_reload__")
	})

	t.Run("idempotent", func(t *testing.T) {
		once := AppendReloadScript("<html><body></body></html>")
		assert.Equal(t, once, AppendReloadScript(once))
	})
}

func TestReloadHubNotify(t *testing.T) {
	hub := NewReloadHub()

	// Never blocks, even with no subscribers.
	hub.Notify()

	ch := hub.subscribe()
	defer hub.unsubscribe(ch)

	hub.Notify()
	select {
	case <-ch:
	default:
		t.Fatal("subscriber not notified")
	}

	// A slow subscriber coalesces instead of blocking the hub.
	hub.Notify()
	hub.Notify()
	hub.Notify()
	select {
	case <-ch:
	default:
		t.Fatal("coalesced notification lost")
	}
	select {
	case <-ch:
		t.Fatal("notifications must coalesce, not queue")
	default:
	}
}

func TestReloadHubUnsubscribe(t *testing.T) {
	hub := NewReloadHub()
	ch := hub.subscribe()
	hub.unsubscribe(ch)

	// Must not panic on a closed channel.
	hub.Notify()
}
