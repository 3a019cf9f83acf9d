package platform

import (
	"context"
	"errors"
	"time"
)

// Returned (wrapped) when the platform has no such user or content.
var ErrNotFound = errors.New("not found on platform")

// Moderator permission names, as reported by the platform.
const (
	PermAll    = "all"
	PermPosts  = "posts"
	PermAccess = "access"
	PermMail   = "mail"
	PermConfig = "config"
)

type Moderator struct {
	Username    string   `json:"username"`
	Permissions []string `json:"permissions"`
}

// Has reports whether the moderator holds every one of the given permissions. "all" implies
// everything.
func (m *Moderator) Has(perms ...string) bool {
	held := make(map[string]bool, len(m.Permissions))
	for _, p := range m.Permissions {
		if p == PermAll {
			return true
		}
		held[p] = true
	}
	for _, p := range perms {
		if !held[p] {
			return false
		}
	}
	return true
}

// Public metadata about a user account, used for moderator-facing breakdowns.
type UserProfile struct {
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"createdAt"`
	LinkKarma    int       `json:"linkKarma"`
	CommentKarma int       `json:"commentKarma"`
	// links from the profile (bio, social links)
	Links []string `json:"links,omitempty"`
}

// Moderation actions and lookups on the content hosting platform.
//
// Implementations must tolerate repeated calls: sending to an existing conversation appends to
// it, and removing or banning twice is not an error.
type Client interface {
	RemoveContent(ctx context.Context, contentID string, asSpam bool) error
	ReportContent(ctx context.Context, contentID, reason string) error
	// contextID optionally names the content which triggered the ban
	BanUser(ctx context.Context, username, reason, message, contextID string) error
	AddModNote(ctx context.Context, username, note, label string) error
	// Appends to conversationID when set, otherwise starts a new conversation with the user.
	// Returns the conversation id either way.
	SendOrAppendMessage(ctx context.Context, conversationID, to, subject, body string) (string, error)
	ArchiveConversation(ctx context.Context, conversationID string) error
	ListModerators(ctx context.Context) ([]Moderator, error)
	// returns ErrNotFound (wrapped) for unknown users
	GetUserProfile(ctx context.Context, username string) (*UserProfile, error)
	IsBanned(ctx context.Context, username string) (bool, error)
}
