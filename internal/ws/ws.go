package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/auth"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/hub"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 60 * time.Second
)

const (
	actionJoinOrder      = "joinOrder"
	actionLeaveOrder     = "leaveOrder"
	actionJoinRestaurant = "joinRestaurant"
)

// clientMessage is what clients send to manage their room membership.
type clientMessage struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	Hub    *hub.Hub
	Logger *zap.SugaredLogger
	Secret string
}

// Serve upgrades the connection and pumps hub events to the client until the
// socket drops. The server holds nothing for a disconnected client: after a
// reconnect the client re-issues its joins and re-fetches state over REST.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		h.Logger.Errorw("websocket auth failed", "error", err)
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	sub := h.Hub.Subscribe()

	go h.writePump(conn, sub)
	h.readPump(conn, sub, claims)
}

// authenticate accepts the bearer header or, for browser clients that cannot
// set headers on a websocket upgrade, a token query parameter.
func (h *Handler) authenticate(r *http.Request) (*auth.Claims, error) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		tokenString = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return auth.ValidateJWT(tokenString, h.Secret)
}

func (h *Handler) readPump(conn *websocket.Conn, sub *hub.Subscription, claims *auth.Claims) {
	defer sub.Close()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logger.Infow("websocket closed unexpectedly", "error", err)
			}
			return
		}

		if msg.ID == "" {
			continue
		}

		switch msg.Action {
		case actionJoinOrder:
			h.Hub.Join(sub, hub.OrderRoom(msg.ID))
		case actionLeaveOrder:
			h.Hub.Leave(sub, hub.OrderRoom(msg.ID))
		case actionJoinRestaurant:
			if !canJoinRestaurant(claims, msg.ID) {
				h.Logger.Infow("restaurant room join denied", "role", claims.Role, "room", msg.ID)
				continue
			}
			h.Hub.Join(sub, hub.RestaurantRoom(msg.ID))
		default:
			h.Logger.Infow("unknown websocket action", "action", msg.Action)
		}
	}
}

func canJoinRestaurant(claims *auth.Claims, restaurantUUID string) bool {
	if claims.Role == auth.RoleAdmin {
		return true
	}
	return claims.Role == auth.RoleRestaurant && claims.UUID == restaurantUUID
}

func (h *Handler) writePump(conn *websocket.Conn, sub *hub.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case event, ok := <-sub.C():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
