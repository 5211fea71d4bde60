package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ebk1996/services/internal/httpserver/deps"
	"github.com/ebk1996/services/internal/logger"
	"github.com/ebk1996/services/internal/utils"
)

const (
	streamWriteWait    = 10 * time.Second
	streamPingInterval = 30 * time.Second
	// Pong must arrive within this after a ping, or the peer is gone.
	streamPongWait = 45 * time.Second
)

// Stream pushes the published list to a browser over a WebSocket: the
// current snapshot on connect, then the full list again after every
// replica change. Snapshot-replace on the wire too; there are no diffs
// and no other message kinds.
func Stream(d deps.Deps) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1 << 10,
		WriteBufferSize: 8 << 10,
		CheckOrigin:     originChecker(d.CORSOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if blockedBySetup(w, d) {
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			d.Logger.Debug("websocket upgrade failed",
				logger.Error(err))
			return
		}
		defer utils.Close(conn)

		d.Logger.Debug("stream client connected",
			logger.String("remote_ip", r.RemoteAddr))

		changes, cancel := d.Replica.Watch()
		defer cancel()

		// The read side only exists to notice the peer going away.
		gone := make(chan struct{})
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		send := func() error {
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			return conn.WriteJSON(snapshotResponse(d.Replica))
		}
		if err := send(); err != nil {
			return
		}

		ping := time.NewTicker(streamPingInterval)
		defer ping.Stop()

		for {
			select {
			case <-changes:
				if err := send(); err != nil {
					d.Logger.Debug("stream client dropped",
						logger.Error(err))
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-gone:
				d.Logger.Debug("stream client disconnected")
				return
			}
		}
	}
}

// originChecker extends gorilla's same-origin default with the
// configured CORS origins, so the page's own host always works and
// cross-origin consumers follow the same allowlist as the JSON API.
func originChecker(origins []string) func(*http.Request) bool {
	allowAll := false
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.ToLower(o)] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
}
