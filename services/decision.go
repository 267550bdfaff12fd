// services/decision.go
package services

// Outcome is what happened to a submission.
type Outcome int

const (
	Accepted Outcome = iota
	Rejected
	// Ignored submissions are not part of the game, e.g. from banned members
	// or outside the game channel.
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Reason explains a rejection.
type Reason int

const (
	NoReason Reason = iota
	Malformed
	SelfChain
	AlreadyUsed
	WrongLetter
	Blacklisted
	NotAWord
)

func (r Reason) String() string {
	switch r {
	case NoReason:
		return ""
	case Malformed:
		return "malformed"
	case SelfChain:
		return "self_chain"
	case AlreadyUsed:
		return "already_used"
	case WrongLetter:
		return "wrong_letter"
	case Blacklisted:
		return "blacklisted"
	case NotAWord:
		return "not_a_word"
	default:
		return "unknown"
	}
}

// Breaks reports whether a rejection for r ends the chain.
func (r Reason) Breaks() bool {
	switch r {
	case AlreadyUsed, WrongLetter, Blacklisted, NotAWord:
		return true
	default:
		return false
	}
}

// Mistake reports whether a rejection for r counts against the member.
func (r Reason) Mistake() bool {
	return r != NoReason && r != SelfChain
}

// RoleUpdate tells the bridge which roles to hand out or take away.
type RoleUpdate struct {
	FailedRoleID string `json:"failed_role_id,omitempty"`
	// FailedGranted is the member that now holds the failed role.
	FailedGranted string `json:"failed_granted,omitempty"`
	// FailedRevoked lost the failed role, either by recovering or because
	// someone else made the latest mistake.
	FailedRevoked  string `json:"failed_revoked,omitempty"`
	ReliableRoleID string `json:"reliable_role_id,omitempty"`
	// ReliableEligible is set only when the server has a reliable role.
	ReliableEligible *bool `json:"reliable_eligible,omitempty"`
}

// Decision is the result of one submission.
type Decision struct {
	Outcome      Outcome    `json:"-"`
	Reason       Reason     `json:"-"`
	Word         string     `json:"word,omitempty"`
	Language     string     `json:"language,omitempty"`
	Count        int        `json:"count"`
	HighScore    int        `json:"high_score"`
	NewHighScore bool       `json:"new_high_score,omitempty"`
	Karma        float64    `json:"karma"`
	Roles        RoleUpdate `json:"roles"`
}

// Message is a chat message relayed by a bridge.
type Message struct {
	ServerID  string `json:"server_id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
}
