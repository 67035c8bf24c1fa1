package handlers

import (
	"fmt"
	"time"

	"github.com/edlight123/eventhaiti-payouts/middleware"
	"github.com/edlight123/eventhaiti-payouts/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const feedAuthTimeout = 10 * time.Second

type feedAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// UpgradeFeed rejects plain HTTP requests to the admin feed.
func UpgradeFeed(c *fiber.Ctx) error {
	if websocketcontrib.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// ServeAdminFeed authenticates the first message as {"type":"auth","token":...}
// and then streams admin events until the client disconnects.
func (h *Handler) ServeAdminFeed() fiber.Handler {
	return websocketcontrib.New(func(c *websocketcontrib.Conn) {
		defer c.Close()

		_ = c.SetReadDeadline(time.Now().Add(feedAuthTimeout))
		var auth feedAuthMessage
		if err := c.ReadJSON(&auth); err != nil || auth.Type != "auth" {
			h.log.Warn().Err(err).Msg("admin feed: missing auth message")
			_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
			return
		}
		p, err := h.parseFeedToken(auth.Token)
		if err != nil {
			h.log.Warn().Err(err).Msg("admin feed: invalid token")
			_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
			return
		}
		if !p.IsAdmin() {
			_ = c.WriteJSON(fiber.Map{"error": "Forbidden: Admin access required"})
			return
		}
		_ = c.SetReadDeadline(time.Time{})

		client := &websocket.Client{ID: uuid.New(), UserID: p.ID, Conn: c}
		h.Hub.Register(client)
		defer h.Hub.Unregister(client)

		// The feed is write-only; reads only detect disconnects.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if !websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
					h.log.Debug().Err(err).Str("user_id", p.ID.String()).Msg("admin feed read error")
				}
				return
			}
		}
	})
}

func (h *Handler) parseFeedToken(raw string) (middleware.Principal, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.JWTSecret), nil
	})
	if err != nil {
		return middleware.Principal{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return middleware.Principal{}, fmt.Errorf("invalid token claims")
	}
	p, ok := middleware.PrincipalFromClaims(claims)
	if !ok {
		return middleware.Principal{}, fmt.Errorf("token has no valid user_id")
	}
	return p, nil
}
