package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pokerplan/internal/services/room"
	"pokerplan/internal/ws"
)

var ErrRoomNotFound = errors.New("room not found")

// Client speaks the envelope protocol over a websocket and keeps a Mirror in
// sync with the room's broadcasts. Mutation commands apply their optimistic
// edit locally before hitting the wire; the next "room-updated" frame
// reconciles.
type Client struct {
	conn   *websocket.Conn
	mirror *Mirror

	writeMu sync.Mutex

	pendMu  sync.Mutex
	pending map[string]chan json.RawMessage

	onUpdate func(snap *room.Room)
	done     chan struct{}
}

// Dial connects to the server's /ws endpoint for one room. onUpdate, if
// non-nil, fires after every reconciled broadcast.
func Dial(ctx context.Context, wsURL, roomID string, onUpdate func(snap *room.Room)) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(
		ctx, wsURL+"?room_id="+url.QueryEscape(roomID), nil,
	)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &Client{
		conn:     conn,
		mirror:   NewMirror(),
		pending:  make(map[string]chan json.RawMessage),
		onUpdate: onUpdate,
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Mirror exposes the client's room cache and derived views.
func (c *Client) Mirror() *Mirror { return c.mirror }

// Close tears the connection down; the read loop exits on its own.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done is closed once the read loop has exited.
func (c *Client) Done() <-chan struct{} { return c.done }

// ───────────────────────────── commands ─────────────────────────────

// Join enrolls a new participant and seeds the mirror from the ack snapshot.
func (c *Client) Join(ctx context.Context, name string) (*room.User, error) {
	raw, err := c.call(ctx, ws.EventJoinRoom, ws.JoinRoomBody{Name: name})
	if err != nil {
		return nil, err
	}
	var ack ws.JoinRoomAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return nil, err
	}
	c.mirror.SetUser(ack.User.ID)
	c.mirror.Reconcile(ack.Room)
	return ack.User, nil
}

// Leave announces the departure and empties the mirror.
func (c *Client) Leave(ctx context.Context) error {
	var userID string
	if u, ok := c.mirror.Self(); ok {
		userID = u.ID
	}
	_, err := c.call(ctx, ws.EventLeaveRoom, ws.LeaveRoomBody{UserID: userID})
	c.mirror.Clear()
	return err
}

// GetRoom re-syncs the mirror from an authoritative snapshot.
func (c *Client) GetRoom(ctx context.Context) (*room.Room, error) {
	raw, err := c.call(ctx, ws.EventGetRoom, nil)
	if err != nil {
		return nil, err
	}
	var ack ws.GetRoomAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return nil, err
	}
	if !ack.Success {
		return nil, ErrRoomNotFound
	}
	c.mirror.Reconcile(ack.Room)
	return ack.Room, nil
}

// UploadIssues imports a batch of issues. Re-sending the same batch imports
// it again.
func (c *Client) UploadIssues(ctx context.Context, uploads []room.IssueUpload) ([]room.Issue, error) {
	raw, err := c.call(ctx, ws.EventUploadIssues, ws.UploadIssuesBody{Issues: uploads})
	if err != nil {
		return nil, err
	}
	var ack ws.UploadIssuesAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return nil, err
	}
	c.mirror.OptimisticAppendIssues(ack.Issues)
	return ack.Issues, nil
}

// SubmitVote casts the local user's vote on the current issue.
func (c *Client) SubmitVote(value float64) error {
	snap := c.mirror.Room()
	u, ok := c.mirror.Self()
	if snap == nil || !ok || snap.CurrentIssueID == "" {
		return nil
	}
	c.mirror.OptimisticSubmitVote(value)
	return c.send(ws.EventSubmitVote, ws.SubmitVoteBody{
		Vote: room.Vote{UserID: u.ID, IssueID: snap.CurrentIssueID, Value: value},
	})
}

// SelectIssue opens an issue for voting (host command).
func (c *Client) SelectIssue(issueID string) error {
	c.mirror.OptimisticSelectIssue(issueID)
	return c.send(ws.EventSelectIssue, ws.SelectIssueBody{IssueID: issueID})
}

// RevealVotes exposes the current issue's votes (host command).
func (c *Client) RevealVotes() error {
	c.mirror.OptimisticReveal()
	return c.send(ws.EventRevealVotes, nil)
}

// FinalizeEstimation records the estimate and ends the round (host command).
func (c *Client) FinalizeEstimation(issueID string, value float64) error {
	c.mirror.OptimisticFinalize(issueID, value)
	return c.send(ws.EventFinalizeEstimate, ws.FinalizeEstimationBody{IssueID: issueID, Value: value})
}

// TransferHost hands the host seat to another participant (host command).
func (c *Client) TransferHost(userID string) error {
	c.mirror.OptimisticTransferHost(userID)
	return c.send(ws.EventTransferHost, ws.TransferHostBody{NewHostID: userID})
}

// RemoveParticipant kicks a participant (host command).
func (c *Client) RemoveParticipant(userID string) error {
	c.mirror.OptimisticRemoveParticipant(userID)
	return c.send(ws.EventRemoveParticipant, ws.RemoveParticipantBody{UserID: userID})
}

// ModifyVote sets another participant's vote on the current issue (host
// command).
func (c *Client) ModifyVote(userID string, value float64) error {
	snap := c.mirror.Room()
	if snap == nil || snap.CurrentIssueID == "" {
		return nil
	}
	c.mirror.OptimisticModifyVote(userID, value)
	return c.send(ws.EventModifyVote, ws.ModifyVoteBody{
		UserID: userID, IssueID: snap.CurrentIssueID, Value: value,
	})
}

// ───────────────────────────── plumbing ─────────────────────────────

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		var env ws.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}

		switch env.Event {
		case ws.EventRoomUpdated:
			snap := &room.Room{}
			if err := json.Unmarshal(env.Body, snap); err != nil {
				zap.L().Warn("client.bad_snapshot", zap.Error(err))
				continue
			}
			c.mirror.Reconcile(snap)
			if c.onUpdate != nil {
				c.onUpdate(snap)
			}

		case ws.EventError:
			var body ws.ErrorBody
			_ = json.Unmarshal(env.Body, &body)
			zap.L().Debug("client.server_error", zap.String("error", body.Error))

		default:
			if ch := c.takePending(env.Event); ch != nil {
				ch <- env.Body
			}
		}
	}
}

// call sends an envelope and waits for its "<event>-ack" reply.
func (c *Client) call(ctx context.Context, event string, body any) (json.RawMessage, error) {
	ch := make(chan json.RawMessage, 1)
	ackEvent := event + "-ack"

	c.pendMu.Lock()
	c.pending[ackEvent] = ch
	c.pendMu.Unlock()

	if err := c.send(event, body); err != nil {
		c.takePending(ackEvent)
		return nil, err
	}

	select {
	case <-ctx.Done():
		c.takePending(ackEvent)
		return nil, ctx.Err()
	case <-c.done:
		return nil, errors.New("connection closed")
	case raw := <-ch:
		return raw, nil
	}
}

func (c *Client) send(event string, body any) error {
	env := ws.Envelope{Event: event}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		env.Body = raw
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *Client) takePending(event string) chan json.RawMessage {
	c.pendMu.Lock()
	defer c.pendMu.Unlock()

	ch := c.pending[event]
	delete(c.pending, event)
	return ch
}
