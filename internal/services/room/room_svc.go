package room

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrNotHost             = errors.New("host privileges required")
	ErrParticipantNotFound = errors.New("participant not found in room")
	ErrIssueNotFound       = errors.New("issue not found in room")
	ErrNoCurrentIssue      = errors.New("no issue selected for estimation")
)

// IssueUpload is the caller-supplied shape for bulk issue import. Missing key
// and title get batch-positional defaults.
type IssueUpload struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Publisher receives the full room snapshot after every successful mutation.
// Snapshots are handed over in mutation order per room.
type Publisher interface {
	Publish(roomID string, snap *Room)
}

type IRoomService interface {
	CreateRoom() string
	JoinRoom(roomID, userName string) (*User, *Room, error)
	LeaveRoom(roomID, userID string) error
	GetRoom(roomID string) (*Room, error)
	UploadIssues(roomID, actorID string, uploads []IssueUpload) ([]Issue, error)
	SelectIssue(roomID, actorID, issueID string) error
	SubmitVote(roomID, userID string, value float64) error
	RevealVotes(roomID, actorID string) error
	FinalizeEstimation(roomID, actorID, issueID string, value float64) error
	TransferHost(roomID, actorID, newHostID string) error
	RemoveParticipant(roomID, actorID, userID string) error
	ModifyVote(roomID, actorID, userID, issueID string, value float64) error
}

type roomService struct {
	store *Store
	pub   Publisher

	// mu serializes every read-modify-write with its publish, which is what
	// keeps broadcasts in mutation order per room.
	mu sync.Mutex
}

func NewRoomService(store *Store, pub Publisher) IRoomService {
	return &roomService{store: store, pub: pub}
}

// CreateRoom allocates an empty room and returns its id. The first join
// populates it and gets the host seat.
func (svc *roomService) CreateRoom() string {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r := &Room{
		ID:           newRoomID(),
		Participants: []User{},
		Issues:       []Issue{},
		Votes:        []Vote{},
	}
	svc.store.Put(r)
	zap.L().Debug("room_created", zap.String("room_id", r.ID))
	return r.ID
}

// JoinRoom appends a fresh user to the room. The server alone decides host
// assignment: the first participant in, and only them, becomes host.
func (svc *roomService) JoinRoom(roomID, userName string) (*User, *Room, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.store.Get(roomID)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}

	u := User{
		ID:     uuid.NewString(),
		Name:   userName,
		IsHost: len(r.Participants) == 0,
	}
	r.Participants = append(r.Participants, u)

	snap := r.Clone()
	svc.pub.Publish(roomID, snap)
	return &u, snap, nil
}

// LeaveRoom removes the user and their votes. An emptied room is destroyed;
// otherwise a departing host hands the seat to the first remaining
// participant in join order.
func (svc *roomService) LeaveRoom(roomID, userID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.store.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	wasHost := r.IsHost(userID)
	if !r.removeParticipant(userID) {
		return ErrParticipantNotFound
	}

	if len(r.Participants) == 0 {
		svc.store.Delete(roomID)
		zap.L().Debug("room_destroyed", zap.String("room_id", roomID))
		return nil
	}

	if wasHost {
		r.Participants[0].IsHost = true
	}
	r.purgeVotesByUser(userID)

	svc.pub.Publish(roomID, r.Clone())
	return nil
}

// GetRoom returns a snapshot of the room, for initial sync and polling.
func (svc *roomService) GetRoom(roomID string) (*Room, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.store.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r.Clone(), nil
}

// UploadIssues appends the batch to the room's backlog. Re-sending the same
// payload appends again; the operation is intentionally not idempotent.
func (svc *roomService) UploadIssues(roomID, actorID string, uploads []IssueUpload) ([]Issue, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.store.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if !r.IsHost(actorID) {
		return nil, ErrNotHost
	}

	added := make([]Issue, 0, len(uploads))
	for i, up := range uploads {
		is := Issue{
			ID:          uuid.NewString(),
			Key:         up.Key,
			Title:       up.Title,
			Description: up.Description,
		}
		if is.Key == "" {
			is.Key = fmt.Sprintf("ISSUE-%d", i+1)
		}
		if is.Title == "" {
			is.Title = fmt.Sprintf("Issue %d", i+1)
		}
		added = append(added, is)
	}
	r.Issues = append(r.Issues, added...)

	svc.pub.Publish(roomID, r.Clone())
	return added, nil
}

// SelectIssue opens an issue for voting. Any votes left over from an earlier
// round on the same issue are purged so the new round starts clean.
func (svc *roomService) SelectIssue(roomID, actorID, issueID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.store.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if !r.IsHost(actorID) {
		return ErrNotHost
	}
	if _, ok := r.Issue(issueID); !ok {
		return ErrIssueNotFound
	}

	r.CurrentIssueID = issueID
	r.RevealVotes = false
	r.purgeVotesByIssue(issueID)

	svc.pub.Publish(roomID, r.Clone())
	return nil
}

// SubmitVote upserts the caller's vote on the current issue. Last write wins.
func (svc *roomService) SubmitVote(roomID, userID string, value float64) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.store.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if r.CurrentIssueID == "" {
		return ErrNoCurrentIssue
	}

	r.upsertVote(userID, r.CurrentIssueID, value)

	svc.pub.Publish(roomID, r.Clone())
	return nil
}

// RevealVotes flips the reveal flag for the current issue. The engine never
// waits for everyone to have voted; any gating lives in the UI.
func (svc *roomService) RevealVotes(roomID, actorID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.store.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if !r.IsHost(actorID) {
		return ErrNotHost
	}
	if r.CurrentIssueID == "" {
		return ErrNoCurrentIssue
	}

	r.RevealVotes = true

	svc.pub.Publish(roomID, r.Clone())
	return nil
}

// FinalizeEstimation records the chosen value on the issue and ends the round.
func (svc *roomService) FinalizeEstimation(roomID, actorID, issueID string, value float64) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.store.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if !r.IsHost(actorID) {
		return ErrNotHost
	}

	found := false
	for i := range r.Issues {
		if r.Issues[i].ID == issueID {
			v := value
			r.Issues[i].Estimation = &v
			found = true
			break
		}
	}
	if !found {
		return ErrIssueNotFound
	}

	r.CurrentIssueID = ""
	r.RevealVotes = false

	svc.pub.Publish(roomID, r.Clone())
	return nil
}

// TransferHost moves the host seat to another participant.
func (svc *roomService) TransferHost(roomID, actorID, newHostID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.store.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if !r.IsHost(actorID) {
		return ErrNotHost
	}
	if _, ok := r.Participant(newHostID); !ok {
		return ErrParticipantNotFound
	}

	for i := range r.Participants {
		r.Participants[i].IsHost = r.Participants[i].ID == newHostID
	}

	svc.pub.Publish(roomID, r.Clone())
	return nil
}

// RemoveParticipant kicks a user out and purges their votes. Unlike LeaveRoom
// it does not reassign the host seat when the removed user held it; the room
// is still destroyed if it empties.
func (svc *roomService) RemoveParticipant(roomID, actorID, userID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.store.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if !r.IsHost(actorID) {
		return ErrNotHost
	}

	r.removeParticipant(userID)
	r.purgeVotesByUser(userID)

	if len(r.Participants) == 0 {
		svc.store.Delete(roomID)
		zap.L().Debug("room_destroyed", zap.String("room_id", roomID))
		return nil
	}

	svc.pub.Publish(roomID, r.Clone())
	return nil
}

// ModifyVote upserts a vote on behalf of any participant, host privilege.
func (svc *roomService) ModifyVote(roomID, actorID, userID, issueID string, value float64) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.store.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if !r.IsHost(actorID) {
		return ErrNotHost
	}

	r.upsertVote(userID, issueID, value)

	svc.pub.Publish(roomID, r.Clone())
	return nil
}

// newRoomID returns a short opaque token, unique within the process.
func newRoomID() string {
	return "room_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
