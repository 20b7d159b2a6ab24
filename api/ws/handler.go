package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/presence/presence"
)

const maxMessageSize = 4096

// inboundMessage is the envelope clients send. Heartbeats carry the durable
// client identifier; anything else is logged and ignored.
type inboundMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	Text     string `json:"text,omitempty"`
}

// Handler upgrades HTTP requests to websocket connections and feeds
// connection events into the presence tracker.
type Handler struct {
	tracker  *presence.Tracker
	hub      *Hub
	upgrader websocket.Upgrader
	// readTimeout is the socket-level read deadline, a backstop behind the
	// heartbeat monitor's own eviction.
	readTimeout time.Duration
}

// NewHandler creates a websocket handler. heartbeatTimeout should match the
// monitor's eviction threshold; the socket deadline is set to twice that so
// the monitor, not the transport, decides liveness.
func NewHandler(tracker *presence.Tracker, hub *Hub, heartbeatTimeout time.Duration) *Handler {
	return &Handler{
		tracker: tracker,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The original deployment serves browsers from any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		readTimeout: 2 * heartbeatTimeout,
	}
}

// Serve handles GET /ws: upgrades the connection, registers it with the
// tracker and pumps inbound messages until the peer goes away.
func (h *Handler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return err
	}

	connID := uuid.NewString()
	peer := &client{conn: conn}
	h.hub.add(connID, peer)
	h.tracker.HandleConnect(connID)
	log.Debug().Str("conn_id", connID).Msg("New websocket connection")

	h.readLoop(connID, peer)
	return nil
}

func (h *Handler) readLoop(connID string, peer *client) {
	defer func() {
		h.hub.remove(connID)
		h.tracker.HandleDisconnect(connID)
		//nolint:errcheck // socket is already going away
		peer.conn.Close()
		log.Debug().Str("conn_id", connID).Msg("Websocket disconnected")
	}()

	peer.conn.SetReadLimit(maxMessageSize)
	for {
		//nolint:errcheck // deadline errors surface on the read itself
		peer.conn.SetReadDeadline(time.Now().Add(h.readTimeout))

		var msg inboundMessage
		if err := peer.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn_id", connID).Msg("Websocket read failed")
			}
			return
		}

		switch msg.Type {
		case "heartbeat":
			h.tracker.HandleHeartbeat(connID, msg.ClientID)
		case "message":
			log.Debug().Str("conn_id", connID).Str("text", msg.Text).Msg("Message received")
		default:
			log.Debug().Str("conn_id", connID).Str("type", msg.Type).Msg("Ignoring unknown message type")
		}
	}
}
