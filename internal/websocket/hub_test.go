package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/config"
	"github.com/wfunc/wager-engine/internal/eventlog"
	"github.com/wfunc/wager-engine/internal/fairness"
	"github.com/wfunc/wager-engine/internal/ledger"
	"github.com/wfunc/wager-engine/internal/models"
	"github.com/wfunc/wager-engine/internal/repository"
	"github.com/wfunc/wager-engine/internal/room"
	"github.com/wfunc/wager-engine/internal/settlement"
)

type heartbeats struct {
	calls chan string
}

func (h *heartbeats) Heartbeat(ctx context.Context, roomID, playerID string) error {
	h.calls <- roomID + "/" + playerID
	return nil
}

type HubTestSuite struct {
	suite.Suite
	db     *gorm.DB
	ctx    context.Context
	cancel context.CancelFunc
	rooms  *room.Service
	hub    *Hub
	beats  *heartbeats
	server *httptest.Server
}

func (s *HubTestSuite) SetupTest() {
	s.db = repository.SetupTestDB()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	clock := quartz.NewMock(s.T())

	recorder := eventlog.NewRecorder(zap.NewNop())
	settle := settlement.NewService(s.db, ledger.NewGormLedger(s.db, nil),
		settlement.Accounts{House: "house", Commission: "commission"}, recorder, clock, nil)
	var err error
	s.rooms, err = room.NewService(room.Options{
		DB:         s.db,
		Config:     config.Default().Game,
		Source:     fairness.NewScripted(fairness.Chance{}),
		Clock:      clock,
		Settlement: settle,
		Recorder:   recorder,
	})
	s.Require().NoError(err)
	for _, account := range []string{"alice", "bob"} {
		repository.SeedWallet(s.T(), s.db, account, 1000)
	}

	s.beats = &heartbeats{calls: make(chan string, 4)}
	s.hub = NewHub(s.rooms.Feed(), s.rooms, s.beats, config.WebSocketConfig{}, nil)
	go s.hub.Run(s.ctx)

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if err := s.hub.Serve(context.Background(), w, r, q.Get("room"), q.Get("player")); err != nil {
			s.T().Log(err)
		}
	}))
}

func (s *HubTestSuite) TearDownTest() {
	s.server.Close()
	s.cancel()
	repository.CleanupTestDB(s.db)
}

func (s *HubTestSuite) dial(roomID, playerID string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/?room=" + roomID + "&player=" + playerID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { conn.Close() })
	return conn
}

// next 读取下一条指定类型的消息
func (s *HubTestSuite) next(conn *websocket.Conn, msgType string) Message {
	for i := 0; i < 10; i++ {
		s.Require().NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
		var msg Message
		s.Require().NoError(conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg
		}
	}
	s.FailNow("message not received", msgType)
	return Message{}
}

type snapshot struct {
	Room struct {
		Status string `json:"status"`
	} `json:"room"`
	ViewerSeat   int               `json:"viewer_seat"`
	LegalActions []json.RawMessage `json:"legal_actions"`
}

func decodeSnapshot(s *HubTestSuite, msg Message) snapshot {
	var snap snapshot
	s.Require().NoError(json.Unmarshal(msg.Data, &snap))
	return snap
}

func (s *HubTestSuite) TestPushesViewerSnapshots() {
	r, err := s.rooms.CreateRoom(s.ctx, room.CreateRequest{CreatorID: "alice", Variant: "race", SeatCount: 2, EntryFee: 100})
	s.Require().NoError(err)

	alice := s.dial(r.ID, "alice")
	s.next(alice, MessageTypeConnected)
	snap := decodeSnapshot(s, s.next(alice, MessageTypeRoomState))
	s.Equal(models.RoomStatusWaiting, snap.Room.Status)
	s.Equal(0, snap.ViewerSeat)

	watcher := s.dial(r.ID, "carol")
	s.next(watcher, MessageTypeConnected)
	s.Equal(models.NoSeat, decodeSnapshot(s, s.next(watcher, MessageTypeRoomState)).ViewerSeat)
	s.Eventually(func() bool { return s.hub.RoomWatchers(r.ID) == 2 }, 2*time.Second, 10*time.Millisecond)

	_, _, err = s.rooms.JoinRoom(s.ctx, r.ID, "bob")
	s.Require().NoError(err)

	var active snapshot
	for active.Room.Status != models.RoomStatusActive {
		msg := s.next(alice, MessageTypeRoomState)
		s.NotZero(msg.Seq)
		active = decodeSnapshot(s, msg)
	}
	s.Equal(0, active.ViewerSeat)
	s.NotEmpty(active.LegalActions)

	var watched snapshot
	for watched.Room.Status != models.RoomStatusActive {
		watched = decodeSnapshot(s, s.next(watcher, MessageTypeRoomState))
	}
	s.Empty(watched.LegalActions)
}

func (s *HubTestSuite) TestClientMessages() {
	r, err := s.rooms.CreateRoom(s.ctx, room.CreateRequest{CreatorID: "alice", Variant: "race", SeatCount: 2, EntryFee: 100})
	s.Require().NoError(err)
	conn := s.dial(r.ID, "alice")
	s.next(conn, MessageTypeRoomState)

	s.Require().NoError(conn.WriteJSON(Message{Type: MessageTypePing}))
	s.next(conn, MessageTypePong)

	s.Require().NoError(conn.WriteJSON(Message{Type: MessageTypeHeartbeat}))
	select {
	case call := <-s.beats.calls:
		s.Equal(r.ID+"/alice", call)
	case <-time.After(3 * time.Second):
		s.FailNow("heartbeat not forwarded")
	}

	s.Require().NoError(conn.WriteJSON(Message{Type: MessageTypeSync}))
	s.Equal(MessageTypeSync, s.next(conn, MessageTypeRoomState).Event)

	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	s.next(conn, MessageTypeError)

	conn.Close()
	s.Eventually(func() bool { return s.hub.OnlineCount() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubTestSuite))
}
