package spectate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 8192,
	CheckOrigin:     sameHost,
}

// sameHost lets in native watchers, which send no Origin, and browser pages served
// by the same host:port as the feed
func sameHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	slog.Warn("Spectator refused", "origin", origin, "host", r.Host)
	return false
}

// Handler upgrades the request to a WebSocket and streams frames from hub as JSON
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("Failed to upgrade to WebSocket", "error", err)
			return
		}
		defer func() {
			if err := conn.Close(); err != nil {
				slog.Debug("Failed to close WebSocket connection", "error", err)
			}
		}()

		client := hub.Register()
		defer hub.Unregister(client)

		// Spectators never send anything, reading only detects the close
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						slog.Debug("WebSocket read error", "error", err)
					}
					return
				}
			}
		}()

		for {
			select {
			case frame, ok := <-client.SendChan:
				if !ok {
					msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "game over")
					_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(frame); err != nil {
					slog.Error("Failed to write WebSocket message", "error", err)
					return
				}
			case <-done:
				return
			}
		}
	}
}

// Listen opens the spectator listener so bind errors surface before the game starts
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}

// Serve serves spectators on ln at /ws until ctx is done
func Serve(ctx context.Context, ln net.Listener, hub *Hub) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", Handler(hub))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		// Hijacked connections are not closed by Shutdown
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Serving spectators", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("spectator server failed: %w", err)
	}
	return nil
}

// WatchURL turns host:port or an http(s) URL into the WebSocket URL of a feed
func WatchURL(target string) string {
	target = strings.TrimSpace(target)
	switch {
	case strings.HasPrefix(target, "ws://"), strings.HasPrefix(target, "wss://"):
	case strings.HasPrefix(target, "http://"):
		target = "ws://" + strings.TrimPrefix(target, "http://")
	case strings.HasPrefix(target, "https://"):
		target = "wss://" + strings.TrimPrefix(target, "https://")
	default:
		target = "ws://" + target
	}

	scheme, rest, _ := strings.Cut(target, "://")
	if !strings.Contains(rest, "/") {
		rest += "/ws"
	}
	return scheme + "://" + rest
}

// Dial connects to a spectator feed and calls fn for every frame until the feed
// ends or ctx is done. A clean close by either side is not an error.
func Dial(ctx context.Context, url string, fn func(Frame)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			_ = conn.Close()
		case <-stop:
			_ = conn.Close()
		}
	}()

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}
		fn(frame)
	}
}
