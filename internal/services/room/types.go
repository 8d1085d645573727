package room

// User is one participant in an estimation session. The id is assigned by the
// server at join time; a reconnect is a brand-new user.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// Issue is a backlog item up for estimation. Estimation stays nil until the
// host finalizes a value for it.
type Issue struct {
	ID          string   `json:"id"`
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Estimation  *float64 `json:"estimation,omitempty"`
}

// Vote is keyed by (UserID, IssueID); a room never holds two votes with the
// same key, a resubmit replaces the earlier value.
type Vote struct {
	UserID  string  `json:"userId"`
	IssueID string  `json:"issueId"`
	Value   float64 `json:"value"`
}

// Room is the aggregate for one session. The store owns the canonical copy;
// everything handed out to transports or clients is a Clone.
type Room struct {
	ID             string  `json:"id"`
	Participants   []User  `json:"participants"`
	Issues         []Issue `json:"issues"`
	CurrentIssueID string  `json:"currentIssueId,omitempty"`
	Votes          []Vote  `json:"votes"`
	RevealVotes    bool    `json:"revealVotes"`
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	cp := &Room{
		ID:             r.ID,
		Participants:   make([]User, len(r.Participants)),
		Issues:         make([]Issue, len(r.Issues)),
		CurrentIssueID: r.CurrentIssueID,
		Votes:          make([]Vote, len(r.Votes)),
		RevealVotes:    r.RevealVotes,
	}
	copy(cp.Participants, r.Participants)
	copy(cp.Votes, r.Votes)
	for i, is := range r.Issues {
		if is.Estimation != nil {
			v := *is.Estimation
			is.Estimation = &v
		}
		cp.Issues[i] = is
	}
	return cp
}

// Participant looks a user up by id.
func (r *Room) Participant(userID string) (User, bool) {
	for _, p := range r.Participants {
		if p.ID == userID {
			return p, true
		}
	}
	return User{}, false
}

// Issue looks an issue up by id.
func (r *Room) Issue(issueID string) (Issue, bool) {
	for _, is := range r.Issues {
		if is.ID == issueID {
			return is, true
		}
	}
	return Issue{}, false
}

// IsHost reports whether the given user currently holds host privileges.
func (r *Room) IsHost(userID string) bool {
	p, ok := r.Participant(userID)
	return ok && p.IsHost
}

// VotesFor returns the votes cast for one issue, in submission order.
func (r *Room) VotesFor(issueID string) []Vote {
	var out []Vote
	for _, v := range r.Votes {
		if v.IssueID == issueID {
			out = append(out, v)
		}
	}
	return out
}

// AllVoted reports whether every participant has a vote on the current issue.
// It is computed on demand, never stored, and does not gate a reveal.
func (r *Room) AllVoted() bool {
	if r.CurrentIssueID == "" {
		return false
	}
	return len(r.VotesFor(r.CurrentIssueID)) == len(r.Participants)
}

// upsertVote replaces the vote keyed (userID, issueID) or appends a new one.
func (r *Room) upsertVote(userID, issueID string, value float64) {
	for i, v := range r.Votes {
		if v.UserID == userID && v.IssueID == issueID {
			r.Votes[i].Value = value
			return
		}
	}
	r.Votes = append(r.Votes, Vote{UserID: userID, IssueID: issueID, Value: value})
}

// purgeVotesByUser drops every vote cast by one user.
func (r *Room) purgeVotesByUser(userID string) {
	kept := r.Votes[:0]
	for _, v := range r.Votes {
		if v.UserID != userID {
			kept = append(kept, v)
		}
	}
	r.Votes = kept
}

// purgeVotesByIssue drops every vote cast for one issue.
func (r *Room) purgeVotesByIssue(issueID string) {
	kept := r.Votes[:0]
	for _, v := range r.Votes {
		if v.IssueID != issueID {
			kept = append(kept, v)
		}
	}
	r.Votes = kept
}

// removeParticipant drops the user from the participant list and reports
// whether they were present.
func (r *Room) removeParticipant(userID string) bool {
	for i, p := range r.Participants {
		if p.ID == userID {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			return true
		}
	}
	return false
}
