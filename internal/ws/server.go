package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pokerplan/internal/services/room"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 3 * time.Second
)

// ConnContext carries per-connection state into event handlers. UserID is
// empty until the connection joins the room; identity is whatever the client
// claimed at join, it is never re-verified.
type ConnContext struct {
	RoomID string
	UserID string
	Server *WsServer

	conn *clientConn
}

type WsServer struct {
	hub       *Hub
	router    *Router
	roomSvc   room.IRoomService
	readLimit int64
}

func NewWsServer(h *Hub, roomSvc room.IRoomService, readLimit int64) *WsServer {
	srv := &WsServer{
		hub:       h,
		router:    NewRouter(),
		roomSvc:   roomSvc,
		readLimit: readLimit,
	}
	srv.registerHandlers() // ← all WS events configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	roomID := ginCtx.Query("room_id")
	if roomID == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "room_id is required"})
		return
	}

	rawConn, err := websocket.Accept(
		ginCtx.Writer, ginCtx.Request,
		&websocket.AcceptOptions{InsecureSkipVerify: true}, // dev-only
	)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(s.readLimit)

	// ─────────────────── Client subscribed ────────────────────────
	wsConn := &clientConn{rawConn: rawConn}
	s.hub.Subscribe(roomID, wsConn)

	// Initial snapshot; a room that does not exist yet is not an error, the
	// client will learn about it from get-room or join-room.
	if snap, err := s.roomSvc.GetRoom(roomID); err == nil {
		if err := wsConn.Deliver(snap); err != nil {
			zap.L().Warn("ws.snapshot", zap.Error(err))
		}
	}

	go s.reader(roomID, wsConn)
	go s.pinger(wsConn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 join-room ------------------------------------------------------------
	Register(
		s.router,
		EventJoinRoom,
		func(ctx context.Context, cc *ConnContext, req JoinRoomBody) (JoinRoomAck, error) {
			user, snap, err := s.roomSvc.JoinRoom(cc.RoomID, req.Name)
			if err != nil {
				return JoinRoomAck{}, err
			}
			cc.UserID = user.ID
			return JoinRoomAck{User: user, Room: snap}, nil
		},
	)

	// 🔹 leave-room -----------------------------------------------------------
	Register(
		s.router,
		EventLeaveRoom,
		func(ctx context.Context, cc *ConnContext, req LeaveRoomBody) (AckBody, error) {
			userID := req.UserID
			if userID == "" {
				userID = cc.UserID
			}
			if err := s.roomSvc.LeaveRoom(cc.RoomID, userID); err != nil {
				return AckBody{}, err
			}
			// Explicit unsubscribe so a dead room does not keep fanning out
			// to this connection.
			s.hub.Unsubscribe(cc.RoomID, cc.conn)
			return AckBody{}, nil
		},
	)

	// 🔹 upload-issues --------------------------------------------------------
	Register(
		s.router,
		EventUploadIssues,
		func(ctx context.Context, cc *ConnContext, req UploadIssuesBody) (UploadIssuesAck, error) {
			added, err := s.roomSvc.UploadIssues(cc.RoomID, cc.UserID, req.Issues)
			if err != nil {
				return UploadIssuesAck{}, err
			}
			return UploadIssuesAck{Issues: added}, nil
		},
	)

	// 🔹 select-issue ---------------------------------------------------------
	Register(
		s.router,
		EventSelectIssue,
		func(ctx context.Context, cc *ConnContext, req SelectIssueBody) (AckBody, error) {
			return AckBody{}, s.roomSvc.SelectIssue(cc.RoomID, cc.UserID, req.IssueID)
		},
	)

	// 🔹 submit-vote ----------------------------------------------------------
	Register(
		s.router,
		EventSubmitVote,
		func(ctx context.Context, cc *ConnContext, req SubmitVoteBody) (AckBody, error) {
			userID := req.Vote.UserID
			if userID == "" {
				userID = cc.UserID
			}
			return AckBody{}, s.roomSvc.SubmitVote(cc.RoomID, userID, req.Vote.Value)
		},
	)

	// 🔹 reveal-votes ---------------------------------------------------------
	Register(
		s.router,
		EventRevealVotes,
		func(ctx context.Context, cc *ConnContext, req AckBody) (AckBody, error) {
			return AckBody{}, s.roomSvc.RevealVotes(cc.RoomID, cc.UserID)
		},
	)

	// 🔹 finalize-estimation --------------------------------------------------
	Register(
		s.router,
		EventFinalizeEstimate,
		func(ctx context.Context, cc *ConnContext, req FinalizeEstimationBody) (AckBody, error) {
			return AckBody{}, s.roomSvc.FinalizeEstimation(cc.RoomID, cc.UserID, req.IssueID, req.Value)
		},
	)

	// 🔹 transfer-host --------------------------------------------------------
	Register(
		s.router,
		EventTransferHost,
		func(ctx context.Context, cc *ConnContext, req TransferHostBody) (AckBody, error) {
			return AckBody{}, s.roomSvc.TransferHost(cc.RoomID, cc.UserID, req.NewHostID)
		},
	)

	// 🔹 remove-participant ---------------------------------------------------
	Register(
		s.router,
		EventRemoveParticipant,
		func(ctx context.Context, cc *ConnContext, req RemoveParticipantBody) (AckBody, error) {
			return AckBody{}, s.roomSvc.RemoveParticipant(cc.RoomID, cc.UserID, req.UserID)
		},
	)

	// 🔹 modify-vote ----------------------------------------------------------
	Register(
		s.router,
		EventModifyVote,
		func(ctx context.Context, cc *ConnContext, req ModifyVoteBody) (AckBody, error) {
			return AckBody{}, s.roomSvc.ModifyVote(cc.RoomID, cc.UserID, req.UserID, req.IssueID, req.Value)
		},
	)

	// 🔹 get-room -------------------------------------------------------------
	Register(
		s.router,
		EventGetRoom,
		func(ctx context.Context, cc *ConnContext, req AckBody) (GetRoomAck, error) {
			snap, err := s.roomSvc.GetRoom(cc.RoomID)
			if errors.Is(err, room.ErrRoomNotFound) {
				return GetRoomAck{Success: false, Message: "Room not found"}, nil
			}
			if err != nil {
				return GetRoomAck{}, err
			}
			return GetRoomAck{Success: true, Room: snap}, nil
		},
	)
}

func (s *WsServer) reader(roomID string, conn *clientConn) {
	defer func() {
		s.hub.Unsubscribe(roomID, conn)
		_ = conn.rawConn.Close(websocket.StatusNormalClosure, "")
	}()

	cc := &ConnContext{RoomID: roomID, Server: s, conn: conn}

	for {
		var env Envelope
		if err := wsjson.Read(context.Background(), conn.rawConn, &env); err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": EventError,
				"body":  ErrorBody{Error: err.Error()},
			})
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		reply := map[string]any{"event": env.Event + ackSuffix}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.writeJSON(reply)
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := conn.rawConn.Ping(ctx)
		cancel()
		if err != nil {
			_ = conn.rawConn.Close(websocket.StatusNormalClosure, "ping timeout")
			return
		}
	}
}
