package realtime

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"homelet/api/internal/auth"
	"homelet/api/internal/config"
)

const defaultWriteTimeout = 10 * time.Second

// Server upgrades authenticated HTTP requests to websocket connections on a Broker.
type Server struct {
	broker   *Broker
	cfg      *config.Config
	upgrader websocket.Upgrader
}

// NewServer creates a websocket Server for broker.
func NewServer(broker *Broker, cfg *config.Config) *Server {
	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: cfg.WsHandshakeTimeout,
	}
	if !cfg.WsAllowedOriginCheck {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return &Server{broker: broker, cfg: cfg, upgrader: upgrader}
}

// credential returns the bearer token from the Authorization header, or the
// token query parameter for browser clients that cannot set headers.
func credential(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		return auth.BearerToken(header)
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", auth.ErrMissingToken
}

// HandleWS authenticates the request before upgrading. A request that fails
// authentication is answered with 401 and never reaches the broker.
func (s *Server) HandleWS(c *gin.Context) {
	token, err := credential(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	principal, err := auth.Authenticate(token, s.cfg.JwtSecret)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("realtime: upgrade failed for user %d: %v", principal.ID, err)
		return
	}

	conn := s.broker.Register(principal)
	log.Printf("realtime: connection %s opened for user %d", conn.ID, principal.ID)

	writeTimeout := s.cfg.WsWriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	cl := &client{
		broker:       s.broker,
		ws:           ws,
		conn:         conn,
		maxBytes:     s.cfg.WsMaxMessageBytes,
		writeTimeout: writeTimeout,
	}
	go cl.writePump()
	cl.readPump()
	log.Printf("realtime: connection %s closed", conn.ID)
}
