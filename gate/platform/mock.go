package platform

import (
	"context"
	"fmt"
	"sync"
)

type SentMessage struct {
	ConversationID string
	To             string
	Subject        string
	Body           string
}

type ModNote struct {
	Username string
	Note     string
	Label    string
}

type Ban struct {
	Username  string
	Reason    string
	Message   string
	ContextID string
}

// In-memory platform which records every call. Safe for concurrent use.
//
// Errors can be injected per method name (eg, "RemoveContent") through Failures.
type MockClient struct {
	lk sync.Mutex

	Moderators []Moderator
	Profiles   map[string]*UserProfile
	Banned     map[string]bool

	Removed  map[string]bool
	Spammed  map[string]bool
	Reported map[string]string
	Bans     []Ban
	Notes    []ModNote
	Messages []SentMessage
	Archived map[string]bool
	// conversation id to messages, in order
	Threads map[string][]SentMessage

	Failures map[string]error
	// counts every call by method name, including failed ones
	Calls map[string]int

	nextConv int
}

var _ Client = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{
		Profiles: make(map[string]*UserProfile),
		Banned:   make(map[string]bool),
		Removed:  make(map[string]bool),
		Spammed:  make(map[string]bool),
		Reported: make(map[string]string),
		Archived: make(map[string]bool),
		Threads:  make(map[string][]SentMessage),
		Failures: make(map[string]error),
		Calls:    make(map[string]int),
	}
}

func (c *MockClient) SetFailure(method string, err error) {
	c.lk.Lock()
	defer c.lk.Unlock()
	if err == nil {
		delete(c.Failures, method)
		return
	}
	c.Failures[method] = err
}

// must be called with lock held
func (c *MockClient) call(method string) error {
	c.Calls[method]++
	return c.Failures[method]
}

func (c *MockClient) CallCount(method string) int {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.Calls[method]
}

func (c *MockClient) RemoveContent(ctx context.Context, contentID string, asSpam bool) error {
	c.lk.Lock()
	defer c.lk.Unlock()
	if err := c.call("RemoveContent"); err != nil {
		return err
	}
	c.Removed[contentID] = true
	if asSpam {
		c.Spammed[contentID] = true
	}
	return nil
}

func (c *MockClient) ReportContent(ctx context.Context, contentID, reason string) error {
	c.lk.Lock()
	defer c.lk.Unlock()
	if err := c.call("ReportContent"); err != nil {
		return err
	}
	c.Reported[contentID] = reason
	return nil
}

func (c *MockClient) BanUser(ctx context.Context, username, reason, message, contextID string) error {
	c.lk.Lock()
	defer c.lk.Unlock()
	if err := c.call("BanUser"); err != nil {
		return err
	}
	c.Bans = append(c.Bans, Ban{Username: username, Reason: reason, Message: message, ContextID: contextID})
	c.Banned[username] = true
	return nil
}

func (c *MockClient) AddModNote(ctx context.Context, username, note, label string) error {
	c.lk.Lock()
	defer c.lk.Unlock()
	if err := c.call("AddModNote"); err != nil {
		return err
	}
	c.Notes = append(c.Notes, ModNote{Username: username, Note: note, Label: label})
	return nil
}

func (c *MockClient) SendOrAppendMessage(ctx context.Context, conversationID, to, subject, body string) (string, error) {
	c.lk.Lock()
	defer c.lk.Unlock()
	if err := c.call("SendOrAppendMessage"); err != nil {
		return "", err
	}
	if conversationID == "" {
		c.nextConv++
		conversationID = fmt.Sprintf("conv-%d", c.nextConv)
	}
	msg := SentMessage{ConversationID: conversationID, To: to, Subject: subject, Body: body}
	c.Messages = append(c.Messages, msg)
	c.Threads[conversationID] = append(c.Threads[conversationID], msg)
	// appending un-archives, like a real inbox
	delete(c.Archived, conversationID)
	return conversationID, nil
}

func (c *MockClient) ArchiveConversation(ctx context.Context, conversationID string) error {
	c.lk.Lock()
	defer c.lk.Unlock()
	if err := c.call("ArchiveConversation"); err != nil {
		return err
	}
	c.Archived[conversationID] = true
	return nil
}

func (c *MockClient) ListModerators(ctx context.Context) ([]Moderator, error) {
	c.lk.Lock()
	defer c.lk.Unlock()
	if err := c.call("ListModerators"); err != nil {
		return nil, err
	}
	out := make([]Moderator, len(c.Moderators))
	copy(out, c.Moderators)
	return out, nil
}

func (c *MockClient) GetUserProfile(ctx context.Context, username string) (*UserProfile, error) {
	c.lk.Lock()
	defer c.lk.Unlock()
	if err := c.call("GetUserProfile"); err != nil {
		return nil, err
	}
	p, ok := c.Profiles[username]
	if !ok {
		return nil, fmt.Errorf("%w: no such user %s", ErrNotFound, username)
	}
	out := *p
	return &out, nil
}

func (c *MockClient) IsBanned(ctx context.Context, username string) (bool, error) {
	c.lk.Lock()
	defer c.lk.Unlock()
	if err := c.call("IsBanned"); err != nil {
		return false, err
	}
	return c.Banned[username], nil
}
