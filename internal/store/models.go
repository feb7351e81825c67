package store

import (
	"encoding/json"
	"time"
)

// Contact message statuses. Archived is absorbing; no transition leaves it.
const (
	StatusNew      = "new"
	StatusRead     = "read"
	StatusReplied  = "replied"
	StatusArchived = "archived"
)

type Post struct {
	ID        string
	Title     string
	Slug      string
	Excerpt   string
	Content   string
	Tags      json.RawMessage
	Published bool
	Views     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Project struct {
	ID          string
	Title       string
	Slug        string
	Description string
	Tech        json.RawMessage
	RepoURL     string
	LiveURL     string
	Featured    bool
	Views       int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Certification struct {
	ID            string
	Title         string
	Issuer        string
	CredentialURL string
	IssuedAt      time.Time
	Views         int64
}

type Testimonial struct {
	ID        string
	Author    string
	Role      string
	Quote     string
	Approved  bool
	CreatedAt time.Time
}

type Experience struct {
	ID        string
	Company   string
	Role      string
	Summary   string
	StartDate time.Time
	EndDate   *time.Time
}

// Reply is the admin response attached to a contact message. Present iff
// the message reached the replied status (and any later state through it).
type Reply struct {
	Message string     `json:"message"`
	SentAt  *time.Time `json:"sentAt"`
	Admin   string     `json:"admin"`
}

type ContactMessage struct {
	ID        string
	Name      string
	Email     string
	Message   string
	Status    string
	Reply     *Reply
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContactFilter carries list parameters for the admin inbox.
type ContactFilter struct {
	Status string // empty or "all" returns every status
	Limit  int
	Offset int
}
