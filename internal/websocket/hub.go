package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"quiz-session-service/internal/constants"
	"quiz-session-service/internal/game"
	"quiz-session-service/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	commandTimeout = 5 * time.Second
	commandRate    = rate.Limit(20)
	commandBurst   = 40
)

// Engine is the part of the game manager the hub drives.
type Engine interface {
	Connect(ctx context.Context, roomID, playerID string) (*game.Resync, error)
	Disconnect(ctx context.Context, roomID, playerID string) error
	Subscribe(roomID string) (*game.Subscription, error)

	StartGame(ctx context.Context, roomID, requesterID string) (*models.Room, error)
	SubmitAnswer(ctx context.Context, sub game.AnswerSubmission) (*game.AnswerResult, error)
	SetReady(ctx context.Context, roomID, playerID string, ready bool) (*models.Room, error)
	Pause(ctx context.Context, roomID, requesterID string) (*models.Room, error)
	Resume(ctx context.Context, roomID, requesterID string) (*models.Room, error)
	SkipQuestion(ctx context.Context, roomID, requesterID string) (*models.Room, error)
	NextQuestion(ctx context.Context, roomID, requesterID string) (*models.Room, error)
	EndGame(ctx context.Context, roomID, requesterID string) (*models.Room, error)
	KickPlayer(ctx context.Context, roomID, targetID, requesterID string) error
	UpdateRoomSettings(ctx context.Context, roomID string, upd game.SettingsUpdate, requesterID string) (*models.Room, error)
	CloseRoom(ctx context.Context, roomID, requesterID string) error
	LeaveRoom(ctx context.Context, roomID, playerID string) error
	SendChatMessage(ctx context.Context, roomID, playerID, text string) (*models.ChatMessage, error)
}

type roomClients struct {
	clients map[*Client]bool
	players map[string]int
	sub     *game.Subscription
}

// Hub tracks connections per room. It turns a player's first connection into
// Connect and their last closed connection into Disconnect, and forwards room
// events to every connection in the room.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	engine    Engine
	chatRate  rate.Limit
	chatBurst int

	mu    sync.RWMutex
	rooms map[string]*roomClients

	done chan struct{}
}

func NewHub(engine Engine, chatPerSecond float64) *Hub {
	burst := int(chatPerSecond * 2)
	if burst < 1 {
		burst = 1
	}
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		engine:     engine,
		chatRate:   rate.Limit(chatPerSecond),
		chatBurst:  burst,
		rooms:      make(map[string]*roomClients),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx is cancelled, then closes every client.
// Presence calls happen on this goroutine so a player's connects and
// disconnects reach the engine in order.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.Register:
			h.registerClient(ctx, client)

		case client := <-h.Unregister:
			h.unregisterClient(ctx, client)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Attach wraps an upgraded connection and starts its pumps.
func (h *Hub) Attach(conn *websocket.Conn, roomID, playerID string) *Client {
	client := NewClient(h, conn, roomID, playerID)
	select {
	case h.Register <- client:
	case <-h.done:
		client.Close()
	}
	go client.WritePump()
	go client.ReadPump()
	return client
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// Connections returns how many open connections a player has in a room.
func (h *Hub) Connections(roomID, playerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if rc, ok := h.rooms[roomID]; ok {
		return rc.players[playerID]
	}
	return 0
}

func (h *Hub) registerClient(ctx context.Context, client *Client) {
	h.mu.Lock()
	rc, ok := h.rooms[client.RoomID]
	if !ok {
		sub, err := h.engine.Subscribe(client.RoomID)
		if err != nil {
			h.mu.Unlock()
			client.SendError(game.ErrorCode(err), err.Error())
			client.Close()
			return
		}
		rc = &roomClients{
			clients: make(map[*Client]bool),
			players: make(map[string]int),
			sub:     sub,
		}
		h.rooms[client.RoomID] = rc
		go h.forward(client.RoomID, sub)
	}
	rc.clients[client] = true
	rc.players[client.PlayerID]++
	h.mu.Unlock()

	log.Debug().Str("room_id", client.RoomID).Str("player_id", client.PlayerID).Msg("Client registered")

	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	resync, err := h.engine.Connect(cctx, client.RoomID, client.PlayerID)
	if err != nil {
		client.SendError(game.ErrorCode(err), err.Error())
		client.Close()
		return
	}
	client.SendMessage(MessageTypeConnected, ConnectedPayload{PlayerID: client.PlayerID, Resync: resync})
}

func (h *Hub) unregisterClient(ctx context.Context, client *Client) {
	h.mu.Lock()
	rc, ok := h.rooms[client.RoomID]
	if !ok || !rc.clients[client] {
		h.mu.Unlock()
		return
	}
	delete(rc.clients, client)
	client.Close()

	rc.players[client.PlayerID]--
	last := rc.players[client.PlayerID] <= 0
	if last {
		delete(rc.players, client.PlayerID)
	}
	if len(rc.clients) == 0 {
		delete(h.rooms, client.RoomID)
		rc.sub.Close()
	}
	h.mu.Unlock()

	log.Debug().Str("room_id", client.RoomID).Str("player_id", client.PlayerID).Msg("Client unregistered")

	if !last {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	err := h.engine.Disconnect(cctx, client.RoomID, client.PlayerID)
	if err != nil && !errors.Is(err, game.ErrRoomClosed) && !errors.Is(err, game.ErrRoomNotFound) {
		log.Warn().Err(err).Str("room_id", client.RoomID).Str("player_id", client.PlayerID).Msg("Failed to mark player disconnected")
	}
}

// forward relays one room's events until the subscription ends.
func (h *Hub) forward(roomID string, sub *game.Subscription) {
	for e := range sub.C {
		data, err := json.Marshal(Message{Type: MessageType(e.Type), Version: e.Version, Payload: e.Payload})
		if err != nil {
			log.Error().Err(err).Str("room_id", roomID).Str("event", string(e.Type)).Msg("Failed to marshal event")
			continue
		}

		h.mu.RLock()
		if rc, ok := h.rooms[roomID]; ok {
			for c := range rc.clients {
				c.enqueue(data)
			}
		}
		h.mu.RUnlock()

		switch e.Type {
		case game.EventRoomClosed:
			h.dropRoom(roomID)
		case game.EventPresenceChanged:
			if p, ok := e.Payload.(game.PresencePayload); ok && (p.Action == constants.ActionKicked || p.Action == constants.ActionLeft) {
				h.dropPlayer(roomID, p.PlayerID)
			}
		}
	}
}

func (h *Hub) dropRoom(roomID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if rc, ok := h.rooms[roomID]; ok {
		for c := range rc.clients {
			c.Close()
		}
	}
}

func (h *Hub) dropPlayer(roomID, playerID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if rc, ok := h.rooms[roomID]; ok {
		for c := range rc.clients {
			if c.PlayerID == playerID {
				c.Close()
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID, rc := range h.rooms {
		for c := range rc.clients {
			c.Close()
		}
		rc.sub.Close()
		delete(h.rooms, roomID)
	}
}

func (h *Hub) handleCommand(c *Client, cmd Command) {
	if cmd.Type == MessageTypePing {
		c.SendMessage(MessageTypePong, nil)
		return
	}
	if !c.commands.Allow() {
		c.SendError("rate_limited", "Too many messages")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := h.dispatch(ctx, c, cmd); err != nil {
		log.Debug().Err(err).Str("room_id", c.RoomID).Str("player_id", c.PlayerID).Str("type", string(cmd.Type)).Msg("Command rejected")
		c.SendError(game.ErrorCode(err), err.Error())
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, cmd Command) error {
	roomID, playerID := c.RoomID, c.PlayerID
	var err error

	switch cmd.Type {
	case MessageTypeStartGame:
		_, err = h.engine.StartGame(ctx, roomID, playerID)

	case MessageTypeSubmitAnswer:
		var p SubmitAnswerPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return err
		}
		result, err := h.engine.SubmitAnswer(ctx, game.AnswerSubmission{
			RoomID:        roomID,
			QuestionIndex: p.QuestionIndex,
			PlayerID:      playerID,
			Answer:        p.Answer,
			TimeRemaining: p.TimeRemaining,
		})
		if err != nil {
			return err
		}
		c.SendMessage(MessageTypeAnswerResult, result)

	case MessageTypeSetReady:
		var p SetReadyPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return err
		}
		_, err = h.engine.SetReady(ctx, roomID, playerID, p.Ready)

	case MessageTypePause:
		_, err = h.engine.Pause(ctx, roomID, playerID)

	case MessageTypeResume:
		_, err = h.engine.Resume(ctx, roomID, playerID)

	case MessageTypeSkipQuestion:
		_, err = h.engine.SkipQuestion(ctx, roomID, playerID)

	case MessageTypeNextQuestion:
		_, err = h.engine.NextQuestion(ctx, roomID, playerID)

	case MessageTypeEndGame:
		_, err = h.engine.EndGame(ctx, roomID, playerID)

	case MessageTypeKickPlayer:
		var p KickPlayerPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return err
		}
		err = h.engine.KickPlayer(ctx, roomID, p.PlayerID, playerID)

	case MessageTypeUpdateSettings:
		var upd game.SettingsUpdate
		if err := decode(cmd.Payload, &upd); err != nil {
			return err
		}
		_, err = h.engine.UpdateRoomSettings(ctx, roomID, upd, playerID)

	case MessageTypeCloseRoom:
		err = h.engine.CloseRoom(ctx, roomID, playerID)

	case MessageTypeLeaveRoom:
		err = h.engine.LeaveRoom(ctx, roomID, playerID)

	case MessageTypeChat:
		if !c.chat.Allow() {
			return fmt.Errorf("%w: slow down", game.ErrInvalidMessage)
		}
		var p ChatPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return err
		}
		_, err = h.engine.SendChatMessage(ctx, roomID, playerID, p.Message)

	default:
		return fmt.Errorf("%w: unknown message type %q", game.ErrInvalidMessage, cmd.Type)
	}
	return err
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: missing payload", game.ErrInvalidMessage)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", game.ErrInvalidMessage, err)
	}
	return nil
}
