package room_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokerplan/internal/services/room"
)

// recordingPublisher collects every published snapshot in order.
type recordingPublisher struct {
	roomIDs []string
	snaps   []*room.Room
}

func (p *recordingPublisher) Publish(roomID string, snap *room.Room) {
	p.roomIDs = append(p.roomIDs, roomID)
	p.snaps = append(p.snaps, snap)
}

func (p *recordingPublisher) last() *room.Room {
	if len(p.snaps) == 0 {
		return nil
	}
	return p.snaps[len(p.snaps)-1]
}

func newService() (room.IRoomService, *room.Store, *recordingPublisher) {
	store := room.NewStore()
	pub := &recordingPublisher{}
	return room.NewRoomService(store, pub), store, pub
}

func hostCount(r *room.Room) int {
	n := 0
	for _, p := range r.Participants {
		if p.IsHost {
			n++
		}
	}
	return n
}

func TestCreateAndJoin(t *testing.T) {
	t.Run("create allocates an empty room", func(t *testing.T) {
		svc, store, _ := newService()

		roomID := svc.CreateRoom()
		assert.NotEmpty(t, roomID)
		assert.Equal(t, 1, store.Len())

		snap, err := svc.GetRoom(roomID)
		require.NoError(t, err)
		assert.Empty(t, snap.Participants)
		assert.Empty(t, snap.Issues)
		assert.Empty(t, snap.Votes)
		assert.False(t, snap.RevealVotes)
	})

	t.Run("first joiner becomes host, later joiners do not", func(t *testing.T) {
		svc, _, _ := newService()
		roomID := svc.CreateRoom()

		alice, snap, err := svc.JoinRoom(roomID, "Alice")
		require.NoError(t, err)
		assert.True(t, alice.IsHost)
		assert.Len(t, snap.Participants, 1)

		bob, snap, err := svc.JoinRoom(roomID, "Bob")
		require.NoError(t, err)
		assert.False(t, bob.IsHost)
		assert.Len(t, snap.Participants, 2)
		assert.Equal(t, 1, hostCount(snap))
	})

	t.Run("join assigns distinct opaque ids", func(t *testing.T) {
		svc, _, _ := newService()
		roomID := svc.CreateRoom()

		a, _, err := svc.JoinRoom(roomID, "Same Name")
		require.NoError(t, err)
		b, _, err := svc.JoinRoom(roomID, "Same Name")
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("join unknown room fails", func(t *testing.T) {
		svc, _, _ := newService()

		_, _, err := svc.JoinRoom("room_missing", "Alice")
		assert.ErrorIs(t, err, room.ErrRoomNotFound)
	})
}

func TestHostUniqueness(t *testing.T) {
	// After any sequence of join/leave/transfer/remove, either the room is
	// empty (and therefore gone) or exactly one participant is host.
	svc, _, pub := newService()
	roomID := svc.CreateRoom()

	a, _, _ := svc.JoinRoom(roomID, "A")
	b, _, _ := svc.JoinRoom(roomID, "B")
	c, _, _ := svc.JoinRoom(roomID, "C")

	require.NoError(t, svc.TransferHost(roomID, a.ID, b.ID))
	assert.Equal(t, 1, hostCount(pub.last()))
	assert.True(t, pub.last().IsHost(b.ID))
	assert.False(t, pub.last().IsHost(a.ID))

	require.NoError(t, svc.LeaveRoom(roomID, b.ID))
	assert.Equal(t, 1, hostCount(pub.last()))

	require.NoError(t, svc.LeaveRoom(roomID, c.ID))
	assert.Equal(t, 1, hostCount(pub.last()))
	assert.True(t, pub.last().IsHost(a.ID))
}

func TestLeaveRoom(t *testing.T) {
	t.Run("host departure promotes first remaining participant", func(t *testing.T) {
		svc, _, pub := newService()
		roomID := svc.CreateRoom()

		a, _, _ := svc.JoinRoom(roomID, "A")
		b, _, _ := svc.JoinRoom(roomID, "B")
		c, _, _ := svc.JoinRoom(roomID, "C")

		// A votes so the purge is observable.
		issues, err := svc.UploadIssues(roomID, a.ID, []room.IssueUpload{{Title: "T"}})
		require.NoError(t, err)
		require.NoError(t, svc.SelectIssue(roomID, a.ID, issues[0].ID))
		require.NoError(t, svc.SubmitVote(roomID, a.ID, 5))

		require.NoError(t, svc.LeaveRoom(roomID, a.ID))

		snap := pub.last()
		assert.True(t, snap.IsHost(b.ID), "first remaining participant in join order becomes host")
		assert.False(t, snap.IsHost(c.ID))
		assert.Empty(t, snap.VotesFor(issues[0].ID), "departing user's votes are purged")
	})

	t.Run("last participant leaving destroys the room", func(t *testing.T) {
		svc, store, _ := newService()
		roomID := svc.CreateRoom()

		a, _, _ := svc.JoinRoom(roomID, "A")
		require.NoError(t, svc.LeaveRoom(roomID, a.ID))

		assert.Equal(t, 0, store.Len())
		_, err := svc.GetRoom(roomID)
		assert.ErrorIs(t, err, room.ErrRoomNotFound)
	})

	t.Run("unknown user is rejected", func(t *testing.T) {
		svc, _, _ := newService()
		roomID := svc.CreateRoom()
		svc.JoinRoom(roomID, "A")

		err := svc.LeaveRoom(roomID, "nope")
		assert.ErrorIs(t, err, room.ErrParticipantNotFound)
	})
}

func TestUploadIssues(t *testing.T) {
	t.Run("defaults key and title per batch position", func(t *testing.T) {
		svc, _, _ := newService()
		roomID := svc.CreateRoom()
		host, _, _ := svc.JoinRoom(roomID, "Host")

		issues, err := svc.UploadIssues(roomID, host.ID, []room.IssueUpload{
			{Title: "Fix bug"},
			{Key: "PROJ-7", Title: "Ship it", Description: "do the thing"},
			{},
		})
		require.NoError(t, err)
		require.Len(t, issues, 3)

		assert.Equal(t, "ISSUE-1", issues[0].Key)
		assert.Equal(t, "Fix bug", issues[0].Title)
		assert.Equal(t, "PROJ-7", issues[1].Key)
		assert.Equal(t, "ISSUE-3", issues[2].Key)
		assert.Equal(t, "Issue 3", issues[2].Title)
		for _, is := range issues {
			assert.NotEmpty(t, is.ID)
			assert.Nil(t, is.Estimation)
		}
	})

	t.Run("is not idempotent: resending appends again", func(t *testing.T) {
		svc, _, pub := newService()
		roomID := svc.CreateRoom()
		host, _, _ := svc.JoinRoom(roomID, "Host")

		batch := []room.IssueUpload{{Title: "a"}, {Title: "b"}, {Title: "c"}}
		_, err := svc.UploadIssues(roomID, host.ID, batch)
		require.NoError(t, err)
		_, err = svc.UploadIssues(roomID, host.ID, batch)
		require.NoError(t, err)

		assert.Len(t, pub.last().Issues, 6)
	})

	t.Run("host only", func(t *testing.T) {
		svc, _, _ := newService()
		roomID := svc.CreateRoom()
		svc.JoinRoom(roomID, "Host")
		guest, _, _ := svc.JoinRoom(roomID, "Guest")

		_, err := svc.UploadIssues(roomID, guest.ID, []room.IssueUpload{{Title: "x"}})
		assert.ErrorIs(t, err, room.ErrNotHost)
	})
}

func TestSelectIssue(t *testing.T) {
	t.Run("sets current issue and resets reveal", func(t *testing.T) {
		svc, _, pub := newService()
		roomID := svc.CreateRoom()
		host, _, _ := svc.JoinRoom(roomID, "Host")
		issues, _ := svc.UploadIssues(roomID, host.ID, []room.IssueUpload{{Title: "a"}})

		require.NoError(t, svc.SelectIssue(roomID, host.ID, issues[0].ID))
		snap := pub.last()
		assert.Equal(t, issues[0].ID, snap.CurrentIssueID)
		assert.False(t, snap.RevealVotes)
	})

	t.Run("purges stale votes from a prior round on the same issue", func(t *testing.T) {
		svc, _, pub := newService()
		roomID := svc.CreateRoom()
		host, _, _ := svc.JoinRoom(roomID, "Host")
		guest, _, _ := svc.JoinRoom(roomID, "Guest")
		issues, _ := svc.UploadIssues(roomID, host.ID, []room.IssueUpload{{Title: "a"}})

		require.NoError(t, svc.SelectIssue(roomID, host.ID, issues[0].ID))
		require.NoError(t, svc.SubmitVote(roomID, host.ID, 3))
		require.NoError(t, svc.SubmitVote(roomID, guest.ID, 5))
		require.Len(t, pub.last().VotesFor(issues[0].ID), 2)

		// Re-select for a fresh round.
		require.NoError(t, svc.SelectIssue(roomID, host.ID, issues[0].ID))
		assert.Empty(t, pub.last().VotesFor(issues[0].ID))
	})

	t.Run("unknown issue is rejected", func(t *testing.T) {
		svc, _, _ := newService()
		roomID := svc.CreateRoom()
		host, _, _ := svc.JoinRoom(roomID, "Host")

		err := svc.SelectIssue(roomID, host.ID, "issue_missing")
		assert.ErrorIs(t, err, room.ErrIssueNotFound)
	})
}

func TestSubmitVote(t *testing.T) {
	t.Run("requires a current issue", func(t *testing.T) {
		svc, _, _ := newService()
		roomID := svc.CreateRoom()
		host, _, _ := svc.JoinRoom(roomID, "Host")

		err := svc.SubmitVote(roomID, host.ID, 8)
		assert.ErrorIs(t, err, room.ErrNoCurrentIssue)
	})

	t.Run("vote key is unique, last write wins", func(t *testing.T) {
		svc, _, pub := newService()
		roomID := svc.CreateRoom()
		host, _, _ := svc.JoinRoom(roomID, "Host")
		issues, _ := svc.UploadIssues(roomID, host.ID, []room.IssueUpload{{Title: "a"}})
		require.NoError(t, svc.SelectIssue(roomID, host.ID, issues[0].ID))

		require.NoError(t, svc.SubmitVote(roomID, host.ID, 3))
		require.NoError(t, svc.SubmitVote(roomID, host.ID, 5))
		require.NoError(t, svc.SubmitVote(roomID, host.ID, 8))

		votes := pub.last().VotesFor(issues[0].ID)
		require.Len(t, votes, 1)
		assert.Equal(t, 8.0, votes[0].Value)
	})
}

func TestRevealVotes(t *testing.T) {
	svc, _, pub := newService()
	roomID := svc.CreateRoom()
	host, _, _ := svc.JoinRoom(roomID, "Host")
	guest, _, _ := svc.JoinRoom(roomID, "Guest")
	issues, _ := svc.UploadIssues(roomID, host.ID, []room.IssueUpload{{Title: "a"}})

	t.Run("requires a current issue", func(t *testing.T) {
		assert.ErrorIs(t, svc.RevealVotes(roomID, host.ID), room.ErrNoCurrentIssue)
	})

	require.NoError(t, svc.SelectIssue(roomID, host.ID, issues[0].ID))
	require.NoError(t, svc.SubmitVote(roomID, host.ID, 5))

	t.Run("host only", func(t *testing.T) {
		assert.ErrorIs(t, svc.RevealVotes(roomID, guest.ID), room.ErrNotHost)
	})

	t.Run("does not wait for all votes and alters none", func(t *testing.T) {
		// Guest has not voted yet; the engine reveals anyway.
		require.NoError(t, svc.RevealVotes(roomID, host.ID))
		snap := pub.last()
		assert.True(t, snap.RevealVotes)
		assert.Len(t, snap.VotesFor(issues[0].ID), 1)
		assert.False(t, snap.AllVoted())
	})
}

func TestFinalizeEstimation(t *testing.T) {
	t.Run("records the estimate and closes the round", func(t *testing.T) {
		svc, _, pub := newService()
		roomID := svc.CreateRoom()
		host, _, _ := svc.JoinRoom(roomID, "Host")
		issues, _ := svc.UploadIssues(roomID, host.ID, []room.IssueUpload{{Title: "a"}})
		require.NoError(t, svc.SelectIssue(roomID, host.ID, issues[0].ID))

		require.NoError(t, svc.FinalizeEstimation(roomID, host.ID, issues[0].ID, 8))

		snap := pub.last()
		is, ok := snap.Issue(issues[0].ID)
		require.True(t, ok)
		require.NotNil(t, is.Estimation)
		assert.Equal(t, 8.0, *is.Estimation)
		assert.Empty(t, snap.CurrentIssueID)
		assert.False(t, snap.RevealVotes)
	})

	t.Run("re-selecting allows a new finalize to overwrite", func(t *testing.T) {
		svc, _, pub := newService()
		roomID := svc.CreateRoom()
		host, _, _ := svc.JoinRoom(roomID, "Host")
		issues, _ := svc.UploadIssues(roomID, host.ID, []room.IssueUpload{{Title: "a"}})

		require.NoError(t, svc.SelectIssue(roomID, host.ID, issues[0].ID))
		require.NoError(t, svc.FinalizeEstimation(roomID, host.ID, issues[0].ID, 8))
		require.NoError(t, svc.SelectIssue(roomID, host.ID, issues[0].ID))
		require.NoError(t, svc.FinalizeEstimation(roomID, host.ID, issues[0].ID, 13))

		is, _ := pub.last().Issue(issues[0].ID)
		assert.Equal(t, 13.0, *is.Estimation)
	})

	t.Run("unknown issue is rejected", func(t *testing.T) {
		svc, _, _ := newService()
		roomID := svc.CreateRoom()
		host, _, _ := svc.JoinRoom(roomID, "Host")

		err := svc.FinalizeEstimation(roomID, host.ID, "issue_missing", 8)
		assert.ErrorIs(t, err, room.ErrIssueNotFound)
	})
}

func TestTransferHost(t *testing.T) {
	svc, _, pub := newService()
	roomID := svc.CreateRoom()
	a, _, _ := svc.JoinRoom(roomID, "A")
	b, _, _ := svc.JoinRoom(roomID, "B")

	t.Run("host only", func(t *testing.T) {
		assert.ErrorIs(t, svc.TransferHost(roomID, b.ID, b.ID), room.ErrNotHost)
	})

	t.Run("unknown target is rejected", func(t *testing.T) {
		assert.ErrorIs(t, svc.TransferHost(roomID, a.ID, "nope"), room.ErrParticipantNotFound)
	})

	t.Run("moves the seat to exactly one participant", func(t *testing.T) {
		require.NoError(t, svc.TransferHost(roomID, a.ID, b.ID))
		snap := pub.last()
		assert.True(t, snap.IsHost(b.ID))
		assert.Equal(t, 1, hostCount(snap))
	})
}

func TestRemoveParticipant(t *testing.T) {
	t.Run("purges the removed user's votes", func(t *testing.T) {
		svc, _, pub := newService()
		roomID := svc.CreateRoom()
		host, _, _ := svc.JoinRoom(roomID, "Host")
		guest, _, _ := svc.JoinRoom(roomID, "Guest")
		issues, _ := svc.UploadIssues(roomID, host.ID, []room.IssueUpload{{Title: "a"}})
		require.NoError(t, svc.SelectIssue(roomID, host.ID, issues[0].ID))
		require.NoError(t, svc.SubmitVote(roomID, guest.ID, 5))

		require.NoError(t, svc.RemoveParticipant(roomID, host.ID, guest.ID))

		snap := pub.last()
		assert.Len(t, snap.Participants, 1)
		assert.Empty(t, snap.VotesFor(issues[0].ID))
	})

	t.Run("does not reassign host, unlike leave", func(t *testing.T) {
		// A host removing themselves leaves the seat vacant; leave-room is
		// the only path that promotes a successor.
		svc, _, pub := newService()
		roomID := svc.CreateRoom()
		host, _, _ := svc.JoinRoom(roomID, "Host")
		svc.JoinRoom(roomID, "Guest")

		require.NoError(t, svc.RemoveParticipant(roomID, host.ID, host.ID))

		snap := pub.last()
		assert.Len(t, snap.Participants, 1)
		assert.Equal(t, 0, hostCount(snap))
	})

	t.Run("removing the last participant destroys the room", func(t *testing.T) {
		svc, store, _ := newService()
		roomID := svc.CreateRoom()
		host, _, _ := svc.JoinRoom(roomID, "Host")

		require.NoError(t, svc.RemoveParticipant(roomID, host.ID, host.ID))
		assert.Equal(t, 0, store.Len())
	})
}

func TestModifyVote(t *testing.T) {
	svc, _, pub := newService()
	roomID := svc.CreateRoom()
	host, _, _ := svc.JoinRoom(roomID, "Host")
	guest, _, _ := svc.JoinRoom(roomID, "Guest")
	issues, _ := svc.UploadIssues(roomID, host.ID, []room.IssueUpload{{Title: "a"}})
	require.NoError(t, svc.SelectIssue(roomID, host.ID, issues[0].ID))

	t.Run("host only", func(t *testing.T) {
		err := svc.ModifyVote(roomID, guest.ID, host.ID, issues[0].ID, 3)
		assert.ErrorIs(t, err, room.ErrNotHost)
	})

	t.Run("host acts on behalf of any participant", func(t *testing.T) {
		require.NoError(t, svc.SubmitVote(roomID, guest.ID, 5))
		require.NoError(t, svc.ModifyVote(roomID, host.ID, guest.ID, issues[0].ID, 13))

		votes := pub.last().VotesFor(issues[0].ID)
		require.Len(t, votes, 1)
		assert.Equal(t, guest.ID, votes[0].UserID)
		assert.Equal(t, 13.0, votes[0].Value)
	})
}

func TestMissingRoomIsDropped(t *testing.T) {
	// Fire-and-forget mutations against a dead room return NotFound and
	// never publish.
	svc, _, pub := newService()

	assert.ErrorIs(t, svc.LeaveRoom("room_missing", "u"), room.ErrRoomNotFound)
	assert.ErrorIs(t, svc.SelectIssue("room_missing", "u", "i"), room.ErrRoomNotFound)
	assert.ErrorIs(t, svc.SubmitVote("room_missing", "u", 1), room.ErrRoomNotFound)
	assert.ErrorIs(t, svc.RevealVotes("room_missing", "u"), room.ErrRoomNotFound)
	assert.ErrorIs(t, svc.FinalizeEstimation("room_missing", "u", "i", 1), room.ErrRoomNotFound)
	assert.ErrorIs(t, svc.TransferHost("room_missing", "u", "v"), room.ErrRoomNotFound)
	assert.ErrorIs(t, svc.RemoveParticipant("room_missing", "u", "v"), room.ErrRoomNotFound)
	assert.ErrorIs(t, svc.ModifyVote("room_missing", "u", "v", "i", 1), room.ErrRoomNotFound)

	assert.Empty(t, pub.snaps)
}

func TestEstimationSessionFlow(t *testing.T) {
	// The full happy path: create, two joins, upload, select, vote, reveal,
	// finalize.
	svc, _, pub := newService()
	roomID := svc.CreateRoom()

	a, _, err := svc.JoinRoom(roomID, "A")
	require.NoError(t, err)
	assert.True(t, a.IsHost)

	b, _, err := svc.JoinRoom(roomID, "B")
	require.NoError(t, err)
	assert.False(t, b.IsHost)

	issues, err := svc.UploadIssues(roomID, a.ID, []room.IssueUpload{{Title: "Fix bug"}})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "ISSUE-1", issues[0].Key)

	require.NoError(t, svc.SelectIssue(roomID, a.ID, issues[0].ID))
	assert.Equal(t, issues[0].ID, pub.last().CurrentIssueID)
	assert.False(t, pub.last().RevealVotes)

	require.NoError(t, svc.SubmitVote(roomID, a.ID, 5))
	require.NoError(t, svc.SubmitVote(roomID, b.ID, 8))
	assert.True(t, pub.last().AllVoted())

	require.NoError(t, svc.RevealVotes(roomID, a.ID))
	assert.True(t, pub.last().RevealVotes)
	assert.Len(t, pub.last().VotesFor(issues[0].ID), 2)

	require.NoError(t, svc.FinalizeEstimation(roomID, a.ID, issues[0].ID, 8))
	snap := pub.last()
	is, _ := snap.Issue(issues[0].ID)
	require.NotNil(t, is.Estimation)
	assert.Equal(t, 8.0, *is.Estimation)
	assert.Empty(t, snap.CurrentIssueID)
	assert.False(t, snap.RevealVotes)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	// Published snapshots must not alias the canonical room: mutating a
	// delivered snapshot cannot corrupt later state.
	svc, _, pub := newService()
	roomID := svc.CreateRoom()
	host, _, _ := svc.JoinRoom(roomID, "Host")

	first := pub.last()
	first.Participants[0].Name = "tampered"
	first.Participants[0].IsHost = false

	snap, err := svc.GetRoom(roomID)
	require.NoError(t, err)
	assert.Equal(t, "Host", snap.Participants[0].Name)
	assert.True(t, snap.IsHost(host.ID))
}
