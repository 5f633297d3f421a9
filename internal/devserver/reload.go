package devserver

import (
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
)

// ReloadPath is the websocket endpoint dev pages connect to for reload
// notifications.
const ReloadPath = "/__skald_reload"

// ReloadHub fans a rebuild notification out to every connected dev page.
type ReloadHub struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func NewReloadHub() *ReloadHub {
	return &ReloadHub{subs: map[chan struct{}]struct{}{}}
}

func (h *ReloadHub) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *ReloadHub) unsubscribe(ch chan struct{}) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
	close(ch)
}

// Notify wakes every subscriber. Never blocks; a subscriber that has not
// drained its previous notification just coalesces.
func (h *ReloadHub) Notify() {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

// Handler upgrades to a websocket and pushes a "reload" message on every
// notification until the client goes away.
func (h *ReloadHub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := websocket.Accept(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		// The client never sends; CloseRead watches for disconnect.
		ctx := conn.CloseRead(req.Context())

		ch := h.subscribe()
		defer h.unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				if err := conn.Write(ctx, websocket.MessageText, []byte("reload")); err != nil {
					return
				}
			}
		}
	})
}

const reloadScriptSource = `(function () {
  if (window.__skald_reload__) return;
  window.__skald_reload__ = true;
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  function connect() {
    var ws = new WebSocket(proto + location.host + "` + ReloadPath + `");
    ws.onmessage = function () { location.reload(); };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();`

// AppendReloadScript injects the reload client before </body>. Safe to call
// on already-injected HTML.
func AppendReloadScript(html string) string {
	if strings.Contains(html, "__skald_reload__") {
		return html
	}

	script := "<script>" + reloadScriptSource + "</script>"
	if strings.Contains(html, "</body>") {
		return strings.Replace(html, "</body>", script+"</body>", 1)
	}
	return html + script
}
