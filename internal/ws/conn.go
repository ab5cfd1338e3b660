// Package ws streams a conversation's live message window over a websocket
// and accepts sends from the client.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"ripplechat/internal/auth"
	"ripplechat/internal/metrics"
	"ripplechat/internal/models"
	"ripplechat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Chat is the part of the chat service a websocket client drives.
type Chat interface {
	Watch(ctx context.Context, conversationID, uid string, onUpdate func([]models.Message), onError func(error)) (func(), error)
	SendMessage(ctx context.Context, conversationID string, sender models.User, text string) (string, error)
}

type InboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
	// Ref is echoed back on the reply so clients can match it to the send.
	Ref string `json:"ref,omitempty"`
}

// SnapshotFrame carries the full current window; an empty window tells the
// client to clear what it shows.
type SnapshotFrame struct {
	Type           string           `json:"type"`
	ConversationID string           `json:"conversation_id"`
	Messages       []models.Message `json:"messages"`
}

type OutboundMessage struct {
	Type           string           `json:"type"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Messages       []models.Message `json:"messages,omitempty"`
	ID             string           `json:"id,omitempty"`
	Ref            string           `json:"ref,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	Error          string           `json:"error,omitempty"`
}

type Client struct {
	conn           *websocket.Conn
	chat           Chat
	user           models.User
	conversationID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Serve authenticates the caller, checks conversation membership and then
// upgrades to a websocket that pushes snapshot frames.
func Serve(chat Chat, secret string, profiles auth.Bootstrapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		convID := c.Query("conversation_id")
		if convID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing conversation_id"})
			return
		}
		user, err := auth.Authenticate(c.Request.Context(), auth.BearerToken(c, true), secret, profiles)
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) || errors.Is(err, auth.ErrInvalidToken) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			log.Error().Err(err).Msg("ws profile bootstrap")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
			return
		}

		client := &Client{
			chat:           chat,
			user:           user,
			conversationID: convID,
			send:           make(chan []byte, sendBuffer),
			done:           make(chan struct{}),
		}
		// Watch before upgrading so membership errors still get a status code.
		cancel, err := chat.Watch(context.Background(), convID, user.UID, client.onSnapshot, client.onFeedError)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			cancel()
			return
		}
		client.conn = conn
		metrics.WsConnections.Inc()
		defer metrics.WsConnections.Dec()

		go client.writePump()
		client.readPump()
		cancel()
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, service.ErrConversationNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (c *Client) onSnapshot(msgs []models.Message) {
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.enqueue(SnapshotFrame{Type: "snapshot", ConversationID: c.conversationID, Messages: msgs})
}

func (c *Client) onFeedError(err error) {
	log.Warn().Err(err).Str("conversation_id", c.conversationID).Msg("ws feed error")
	c.enqueue(OutboundMessage{Type: "error", ConversationID: c.conversationID, Error: "live feed unavailable"})
}

// enqueue hands a frame to the writer. A client that cannot keep up is
// disconnected.
func (c *Client) enqueue(out any) {
	b, err := json.Marshal(out)
	if err != nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- b:
	default:
		log.Warn().Str("uid", c.user.UID).Msg("ws client too slow, closing")
		c.close()
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) readPump() {
	defer func() {
		c.close()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(16 << 10)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var in InboundMessage
		if err := json.Unmarshal(data, &in); err != nil || in.Type != "send" {
			c.enqueue(OutboundMessage{Type: "error", Error: "unsupported frame"})
			continue
		}
		c.enqueue(c.handleSend(in))
	}
}

func (c *Client) handleSend(in InboundMessage) OutboundMessage {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	id, err := c.chat.SendMessage(ctx, c.conversationID, c.user, in.Text)
	var rej *service.RejectedError
	switch {
	case err == nil:
		return OutboundMessage{Type: "ack", ID: id, Ref: in.Ref}
	case errors.As(err, &rej):
		return OutboundMessage{Type: "rejected", Reason: rej.Reason, Ref: in.Ref}
	case errors.Is(err, service.ErrInvalidMessage):
		return OutboundMessage{Type: "error", Error: err.Error(), Ref: in.Ref}
	case errors.Is(err, service.ErrModerationUnavailable):
		return OutboundMessage{Type: "error", Error: "moderation unavailable, try again", Ref: in.Ref}
	default:
		log.Error().Err(err).Str("conversation_id", c.conversationID).Msg("ws send")
		return OutboundMessage{Type: "error", Error: "failed to send message", Ref: in.Ref}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
