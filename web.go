package main

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	logDate string = `2006-01-02T15:04:05.000-07:00`
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveHomePage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		fmt.Fprintf(w, "quizbox v%s\n\n", releaseVersion)
		fmt.Fprintf(w, "WebSocket endpoint: %s://%s/ws (one JSON record per text frame)\n", cfg.wsScheme(), r.Host)
		fmt.Fprintf(w, "Raw TCP endpoint:   port %d (one JSON record per line)\n\n", cfg.tcpPort)
		fmt.Fprint(w, "Log in with  {\"type\":\"LOGIN\",\"name\":\"yourname\"}\n")
		fmt.Fprint(w, "Answer with  {\"type\":\"ANSWER\",\"answer\":\"B\"}\n\n")
		fmt.Fprint(w, "Scan /qr to share the WebSocket endpoint.\n")
	}
}

func serveHealthCheck(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte("Ok\n"))
	}
}

func serveVersion(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("quizbox v" + releaseVersion + "\n"))
		if err != nil {
			return
		}

		logf(cfg, "SERVE: Version page (%d B) to %s in %s",
			written,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn adapts a WebSocket connection to the recordConn contract: the
// frame boundary is the record boundary, no extra delimiter needed.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) readRecord() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		return data, nil
	}
}

func (c *wsConn) writeRecord(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) close() error {
	return c.conn.Close()
}

func serveWS(srv *server) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		srv.handleConn(&wsConn{conn: conn}, realIP(r))
	}
}

// serveJoinQR renders a PNG QR code for the WebSocket endpoint, so
// players in the room can join by scanning it.
func serveJoinQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scheme := "ws"
		if r.TLS != nil {
			scheme = "wss"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" {
			scheme = "wss"
		}

		url := scheme + "://" + r.Host + "/ws"

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

func newRouter(cfg *Config, srv *server) *httprouter.Router {
	mux := httprouter.New()

	mux.GET("/", serveHomePage(cfg))
	mux.GET("/healthz", serveHealthCheck(cfg))
	mux.GET("/version", serveVersion(cfg))
	mux.GET("/ws", serveWS(srv))
	mux.GET("/qr", serveJoinQR(cfg))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	return mux
}
