package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quiz-session-service/internal/client"
	"quiz-session-service/internal/dto"
	"quiz-session-service/internal/game"
	"quiz-session-service/internal/middleware"
	"quiz-session-service/internal/models"
	"quiz-session-service/internal/store"
	ws "quiz-session-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T) (*gin.Engine, *game.Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	quizzes := client.NewStaticQuizProvider(&models.QuizData{
		ID:        "quiz-1",
		Title:     "Capitals",
		Questions: []models.Question{{ID: "q1", Text: "Capital of France?", Type: "text", CorrectAnswer: "Paris", Points: 1000}},
	})
	opts := game.DefaultOptions()
	opts.GracePeriod = time.Hour
	mgr := game.NewManager(store.NewMemoryStore(6), quizzes, nil, opts)
	t.Cleanup(func() { mgr.Shutdown(context.Background()) })

	hub := ws.NewHub(mgr, 2)
	go hub.Run(ctx)

	router := NewRouter(
		RouterConfig{JWTSecret: testSecret, TrustGatewayHeaders: true, AllowedOrigins: []string{"*"}},
		NewRoomHandler(mgr),
		NewWebSocketHandler(hub, mgr, []string{"*"}),
	)
	return router, mgr
}

func doRequest(router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-User-Name", strings.ToUpper(userID))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createRoom(t *testing.T, router *gin.Engine, body dto.CreateRoomRequest) models.Room {
	t.Helper()
	w := doRequest(router, http.MethodPost, "/api/v1/rooms", "host", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var room models.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	return room
}

func TestCreateAndJoinRoom(t *testing.T) {
	router, _ := setupRouter(t)
	room := createRoom(t, router, dto.CreateRoomRequest{QuizID: "quiz-1"})
	assert.Equal(t, "host", room.HostID)
	assert.Equal(t, "HOST", room.Players["host"].Name)

	w := doRequest(router, http.MethodPost, "/api/v1/rooms/join", "p1", dto.JoinRoomRequest{Code: room.Code, PlayerName: "Pavel"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var joined models.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &joined))
	assert.Equal(t, "Pavel", joined.Players["p1"].Name)

	w = doRequest(router, http.MethodGet, "/api/v1/rooms", "p2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.RoomsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, room.ID, list.Rooms[0].ID)
}

func TestCreateRoom_Validation(t *testing.T) {
	router, _ := setupRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/rooms", "host", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/rooms", "host", dto.CreateRoomRequest{QuizID: "missing"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "quiz_unavailable", resp.Code)
}

func TestJoinRoom_Errors(t *testing.T) {
	router, _ := setupRouter(t)
	room := createRoom(t, router, dto.CreateRoomRequest{QuizID: "quiz-1", IsPrivate: true, Password: "secret", MaxPlayers: 2})

	w := doRequest(router, http.MethodPost, "/api/v1/rooms/join", "p1", dto.JoinRoomRequest{Code: room.Code, Password: "wrong"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/rooms/join", "p1", dto.JoinRoomRequest{Code: "NOPE00"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/rooms/join", "p1", dto.JoinRoomRequest{Code: room.Code, Password: "secret"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/rooms/join", "p2", dto.JoinRoomRequest{Code: room.Code, Password: "secret"})
	assert.Equal(t, http.StatusConflict, w.Code)
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "room_full", resp.Code)
}

func TestLeaveAndChatHistory(t *testing.T) {
	router, _ := setupRouter(t)
	room := createRoom(t, router, dto.CreateRoomRequest{QuizID: "quiz-1"})
	w := doRequest(router, http.MethodPost, "/api/v1/rooms/join", "p1", dto.JoinRoomRequest{Code: room.Code})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/rooms/"+room.ID+"/chat", "host", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history dto.ChatHistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.NotEmpty(t, history.Messages)
	assert.Equal(t, "P1 joined the room", history.Messages[len(history.Messages)-1].Message)

	w = doRequest(router, http.MethodGet, "/api/v1/rooms/"+room.ID+"/chat", "stranger", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/rooms/"+room.ID+"/leave", "p1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/rooms/"+room.ID, "host", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot models.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.NotContains(t, snapshot.Players, "p1")

	w = doRequest(router, http.MethodGet, "/api/v1/rooms/unknown", "host", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuth(t *testing.T) {
	router, _ := setupRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &middleware.Claims{
		UserID: "jwt-user",
		Name:   "Jana",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	body, _ := json.Marshal(dto.CreateRoomRequest{QuizID: "quiz-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var room models.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.Equal(t, "jwt-user", room.HostID)
	assert.Equal(t, "Jana", room.Players["jwt-user"].Name)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &middleware.Claims{UserID: "x"}).SignedString([]byte("other"))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebSocket(t *testing.T) {
	router, _ := setupRouter(t)
	room := createRoom(t, router, dto.CreateRoomRequest{QuizID: "quiz-1"})

	server := httptest.NewServer(router)
	defer server.Close()
	base := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?room_id=" + room.ID

	_, resp, err := websocket.DefaultDialer.Dial(base, http.Header{"X-User-ID": []string{"stranger"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base, http.Header{"X-User-ID": []string{"host"}})
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "connected", msg.Type)
}
