package client

import (
	"sort"
	"sync"

	"pokerplan/internal/services/room"
)

// EstimationSummary is one bucket of the per-value vote tally.
type EstimationSummary struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// Mirror is the client-side cache of the last authoritative room snapshot.
// Local edits are applied optimistically so the UI does not wait for the
// broadcast round-trip; every authoritative snapshot fully replaces the
// mirror, so the last broadcast always wins. All views are derived from the
// cached snapshot, the mirror never acts as an authority of its own.
type Mirror struct {
	mu     sync.RWMutex
	room   *room.Room
	userID string
}

func NewMirror() *Mirror { return &Mirror{} }

// Reconcile replaces the cached snapshot wholesale. No field-level merging;
// optimistic edits are discarded in favor of the authoritative value.
func (m *Mirror) Reconcile(snap *room.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap == nil {
		m.room = nil
		return
	}
	m.room = snap.Clone()
}

// SetUser records which participant this mirror belongs to.
func (m *Mirror) SetUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.userID = userID
}

// Clear empties the mirror, e.g. after leaving a room.
func (m *Mirror) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.room = nil
	m.userID = ""
}

// Room returns a copy of the cached snapshot, possibly stale.
func (m *Mirror) Room() *room.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.room == nil {
		return nil
	}
	return m.room.Clone()
}

// Self returns the mirror owner's participant entry from the last snapshot.
func (m *Mirror) Self() (room.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.room == nil || m.userID == "" {
		return room.User{}, false
	}
	return m.room.Participant(m.userID)
}

// IsHost reports whether the mirror owner held the host seat in the last
// snapshot.
func (m *Mirror) IsHost() bool {
	u, ok := m.Self()
	return ok && u.IsHost
}

// CurrentIssue returns the issue currently open for voting.
func (m *Mirror) CurrentIssue() (room.Issue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.room == nil || m.room.CurrentIssueID == "" {
		return room.Issue{}, false
	}
	return m.room.Issue(m.room.CurrentIssueID)
}

// OwnVote returns the mirror owner's vote on the current issue.
func (m *Mirror) OwnVote() (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.room == nil || m.room.CurrentIssueID == "" {
		return 0, false
	}
	for _, v := range m.room.Votes {
		if v.UserID == m.userID && v.IssueID == m.room.CurrentIssueID {
			return v.Value, true
		}
	}
	return 0, false
}

// VoteSummary tallies current-issue votes per value, ascending by value.
func (m *Mirror) VoteSummary() []EstimationSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.room == nil || m.room.CurrentIssueID == "" {
		return nil
	}

	counts := make(map[float64]int)
	for _, v := range m.room.VotesFor(m.room.CurrentIssueID) {
		counts[v.Value]++
	}

	out := make([]EstimationSummary, 0, len(counts))
	for value, count := range counts {
		out = append(out, EstimationSummary{Value: value, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// MostPopular returns the suggested finalize value: the value with the
// strictly highest count, ties resolved to the lowest value.
func (m *Mirror) MostPopular() (float64, bool) {
	summaries := m.VoteSummary()
	if len(summaries) == 0 {
		return 0, false
	}
	best := summaries[0]
	for _, s := range summaries[1:] {
		if s.Count > best.Count {
			best = s
		}
	}
	return best.Value, true
}

// Voters returns the ids of participants who voted on the current issue.
func (m *Mirror) Voters() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.room == nil || m.room.CurrentIssueID == "" {
		return nil
	}
	var ids []string
	for _, v := range m.room.VotesFor(m.room.CurrentIssueID) {
		ids = append(ids, v.UserID)
	}
	return ids
}

// AllVoted reports whether every participant voted on the current issue.
func (m *Mirror) AllVoted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.room != nil && m.room.AllVoted()
}

// ───────────────────────────── optimistic edits ─────────────────────────────
//
// Each mirrors the server-side effect of the command the local user just
// issued. The next authoritative broadcast carries the same change, so under
// normal operation nothing is lost; a racing mutation from another
// participant may fleetingly overwrite it.

func (m *Mirror) OptimisticSubmitVote(value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.room == nil || m.room.CurrentIssueID == "" || m.userID == "" {
		return
	}
	upsert(m.room, m.userID, m.room.CurrentIssueID, value)
}

func (m *Mirror) OptimisticModifyVote(userID string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.room == nil || m.room.CurrentIssueID == "" {
		return
	}
	upsert(m.room, userID, m.room.CurrentIssueID, value)
}

func (m *Mirror) OptimisticSelectIssue(issueID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.room == nil {
		return
	}
	m.room.CurrentIssueID = issueID
	m.room.RevealVotes = false
	kept := m.room.Votes[:0]
	for _, v := range m.room.Votes {
		if v.IssueID != issueID {
			kept = append(kept, v)
		}
	}
	m.room.Votes = kept
}

func (m *Mirror) OptimisticReveal() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.room == nil {
		return
	}
	m.room.RevealVotes = true
}

func (m *Mirror) OptimisticFinalize(issueID string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.room == nil {
		return
	}
	for i := range m.room.Issues {
		if m.room.Issues[i].ID == issueID {
			v := value
			m.room.Issues[i].Estimation = &v
			break
		}
	}
	m.room.CurrentIssueID = ""
	m.room.RevealVotes = false
}

func (m *Mirror) OptimisticTransferHost(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.room == nil {
		return
	}
	for i := range m.room.Participants {
		m.room.Participants[i].IsHost = m.room.Participants[i].ID == userID
	}
}

func (m *Mirror) OptimisticRemoveParticipant(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.room == nil {
		return
	}
	keptP := m.room.Participants[:0]
	for _, p := range m.room.Participants {
		if p.ID != userID {
			keptP = append(keptP, p)
		}
	}
	m.room.Participants = keptP

	keptV := m.room.Votes[:0]
	for _, v := range m.room.Votes {
		if v.UserID != userID {
			keptV = append(keptV, v)
		}
	}
	m.room.Votes = keptV
}

func (m *Mirror) OptimisticAppendIssues(issues []room.Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.room == nil {
		return
	}
	m.room.Issues = append(m.room.Issues, issues...)
}

func upsert(r *room.Room, userID, issueID string, value float64) {
	for i, v := range r.Votes {
		if v.UserID == userID && v.IssueID == issueID {
			r.Votes[i].Value = value
			return
		}
	}
	r.Votes = append(r.Votes, room.Vote{UserID: userID, IssueID: issueID, Value: value})
}
