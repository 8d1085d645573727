package ws

import (
	"encoding/json"

	"pokerplan/internal/services/room"
)

// Envelope wraps every WS frame in both directions.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "submit-vote"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// Events a client may send. Every successful mutation is answered with an
// "<event>-ack" frame and followed by a "room-updated" broadcast carrying the
// full room snapshot.
const (
	EventJoinRoom          = "join-room"
	EventLeaveRoom         = "leave-room"
	EventUploadIssues      = "upload-issues"
	EventSelectIssue       = "select-issue"
	EventSubmitVote        = "submit-vote"
	EventRevealVotes       = "reveal-votes"
	EventFinalizeEstimate  = "finalize-estimation"
	EventTransferHost      = "transfer-host"
	EventRemoveParticipant = "remove-participant"
	EventModifyVote        = "modify-vote"
	EventGetRoom           = "get-room"

	EventRoomUpdated = "room-updated"
	EventError       = "error"

	ackSuffix = "-ack"
)

// ──────────────────────────── Request / Response DTOs ─────────────────────────

type JoinRoomBody struct {
	Name string `json:"name"`
}

type JoinRoomAck struct {
	User *room.User `json:"user"`
	Room *room.Room `json:"room"`
}

// LeaveRoomBody may name the departing user; when absent the connection's
// joined user is assumed.
type LeaveRoomBody struct {
	UserID string `json:"userId"`
}

type UploadIssuesBody struct {
	Issues []room.IssueUpload `json:"issues"`
}

type UploadIssuesAck struct {
	Issues []room.Issue `json:"issues"`
}

type SelectIssueBody struct {
	IssueID string `json:"issueId"`
}

type SubmitVoteBody struct {
	Vote room.Vote `json:"vote"`
}

type FinalizeEstimationBody struct {
	IssueID string  `json:"issueId"`
	Value   float64 `json:"value"`
}

type TransferHostBody struct {
	NewHostID string `json:"newHostId"`
}

type RemoveParticipantBody struct {
	UserID string `json:"userId"`
}

type ModifyVoteBody struct {
	UserID  string  `json:"userId"`
	IssueID string  `json:"issueId"`
	Value   float64 `json:"value"`
}

// GetRoomAck mirrors the query contract: success plus snapshot, or a
// user-visible message when the room is gone.
type GetRoomAck struct {
	Success bool       `json:"success"`
	Room    *room.Room `json:"room,omitempty"`
	Message string     `json:"message,omitempty"`
}

// Empty ACK body (useful for the fire-and-forget mutations).
type AckBody struct{}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
}
