package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"student-chat/internal/auth"
	"student-chat/internal/config"
	"student-chat/internal/models"
	"student-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Gateway upgrades HTTP requests, authenticates the connection and hands it
// to the registry. Authentication failures are the only errors that close
// the connection.
type Gateway struct {
	auth       Authenticator
	hub        *Hub
	registry   *Registry
	dispatcher *Dispatcher
	cfg        config.WebSocketConfig
	upgrader   websocket.Upgrader
}

func NewGateway(authn Authenticator, hub *Hub, registry *Registry, dispatcher *Dispatcher, cfg config.WebSocketConfig, allowedOrigins []string) *Gateway {
	return &Gateway{
		auth:       authn,
		hub:        hub,
		registry:   registry,
		dispatcher: dispatcher,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(g.cfg.MaxFrameBytes)

	deadline := time.Now().Add(g.cfg.AuthTimeout)
	token := credentialFromRequest(r)
	if token == "" {
		token, err = readHandshake(conn, deadline)
		if err != nil {
			g.reject(conn, err.Error())
			return
		}
	}

	ctx, cancel := context.WithDeadline(r.Context(), deadline)
	user, err := g.auth.Authenticate(ctx, token)
	cancel()
	if err != nil {
		logger.Warn("Rejected connection from %s: %v", r.RemoteAddr, err)
		g.reject(conn, authMessage(err))
		return
	}
	conn.SetReadDeadline(time.Time{})

	client := newClient(conn, g.hub, g.registry, g.dispatcher, g.cfg, models.AuthenticatedConnection{
		ConnectionID: uuid.NewString(),
		Identity:     user.Identity(),
		ConnectedAt:  time.Now(),
	})
	g.registry.Admit(client)
	client.start()
}

func (g *Gateway) reject(conn *websocket.Conn, message string) {
	defer conn.Close()

	data, err := models.ErrorEvent(models.ErrorAuth, message, "").Encode()
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"))
}

// credentialFromRequest accepts an Authorization bearer header or a token
// query parameter.
func credentialFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

func readHandshake(conn *websocket.Conn, deadline time.Time) (string, error) {
	conn.SetReadDeadline(deadline)
	_, frame, err := conn.ReadMessage()
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", errors.New("authentication timeout")
		}
		return "", errors.New("authentication required")
	}

	var hs models.Handshake
	if err := json.Unmarshal(frame, &hs); err != nil || strings.TrimSpace(hs.Token) == "" {
		return "", errors.New("malformed authentication payload")
	}
	return hs.Token, nil
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenRevoked):
		return "token has been revoked"
	case errors.Is(err, auth.ErrUserNotFound):
		return "user not found"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid or expired token"
	default:
		return "authentication failed"
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
