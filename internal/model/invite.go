package model

import "time"

type InviteCode struct {
	Code      string     `json:"code"`
	CreatedBy string     `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
	UsedBy    string     `json:"usedBy,omitempty"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	IsActive  bool       `json:"isActive"`
}

// Usable reports whether the code can still gate a signup.
func (c InviteCode) Usable() bool {
	return c.IsActive && c.UsedBy == ""
}

type InviteLink struct {
	ID        string     `json:"id"`
	Token     string     `json:"token"`
	CreatedBy string     `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
	UsedBy    string     `json:"usedBy,omitempty"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	IsActive  bool       `json:"isActive"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// UsableAt reports whether the link can still gate a signup at now.
func (l InviteLink) UsableAt(now time.Time) bool {
	return l.IsActive && l.UsedBy == "" && now.Before(l.ExpiresAt)
}

type InviteKind string

const (
	InviteKindCode InviteKind = "code"
	InviteKindLink InviteKind = "link"
)

// InviteRef points a pending signup back at the invite it was admitted with.
type InviteRef struct {
	Kind  InviteKind `json:"kind"`
	Value string     `json:"value"`
}

type SignupStatus string

const (
	SignupPending  SignupStatus = "pending"
	SignupApproved SignupStatus = "approved"
	SignupRejected SignupStatus = "rejected"
)

type PendingSignup struct {
	ID             string          `json:"id"`
	Email          string          `json:"email"`
	Name           string          `json:"username"`
	CommitmentDate time.Time       `json:"commitmentDate"`
	LeaderID       string          `json:"leaderId"`
	Activities     []Participation `json:"activities"`
	Status         SignupStatus    `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	ApprovedAt     *time.Time      `json:"approvedAt,omitempty"`
	PasswordHash   string          `json:"passwordHash,omitempty"`
	Invite         *InviteRef      `json:"invite,omitempty"`
}

// Public returns a copy of p safe to render to clients.
func (p PendingSignup) Public() PendingSignup {
	p.PasswordHash = ""
	if p.Activities == nil {
		p.Activities = []Participation{}
	}
	return p
}
