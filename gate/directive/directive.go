// Side-effect instructions emitted by the state machine and enforcement logic, for an executor
// to carry out against the hosting platform.
//
// Directives are plain data. Producing them never touches the network or the record store, which
// keeps the state machine and enforcement decisions testable as pure functions.
package directive

type Kind string

const (
	// send a message to the user, appending to an existing conversation when ConversationID is set
	KindNotifyUser Kind = "notify-user"
	// write a moderator note against the user
	KindAuditNote     Kind = "audit-note"
	KindRemoveContent Kind = "remove-content"
	KindReportContent Kind = "report-content"
	KindBanUser       Kind = "ban-user"
)

type Directive struct {
	Kind     Kind   `json:"kind"`
	Username string `json:"username"`

	// content-level directives
	ContentID string `json:"contentId,omitempty"`
	AsSpam    bool   `json:"asSpam,omitempty"`

	// notify-user: empty ConversationID means "open a new thread"
	ConversationID string `json:"conversationId,omitempty"`
	Subject        string `json:"subject,omitempty"`
	Body           string `json:"body,omitempty"`
	// archive the conversation after sending, so it doesn't clutter the moderator inbox
	Archive bool `json:"archive,omitempty"`

	// report, ban, and audit-note text
	Reason string `json:"reason,omitempty"`
	// ban message sent to the user
	Message string `json:"message,omitempty"`
	// mod note label (eg, "BOT_BAN", "SPAM_WATCH")
	Label string `json:"label,omitempty"`
}

func Notify(username, conversationID, subject, body string) Directive {
	return Directive{
		Kind:           KindNotifyUser,
		Username:       username,
		ConversationID: conversationID,
		Subject:        subject,
		Body:           body,
		Archive:        true,
	}
}

func AuditNote(username, note, label string) Directive {
	return Directive{
		Kind:     KindAuditNote,
		Username: username,
		Reason:   note,
		Label:    label,
	}
}

func Remove(username, contentID string, asSpam bool, reason string) Directive {
	return Directive{
		Kind:      KindRemoveContent,
		Username:  username,
		ContentID: contentID,
		AsSpam:    asSpam,
		Reason:    reason,
	}
}

func Report(username, contentID, reason string) Directive {
	return Directive{
		Kind:      KindReportContent,
		Username:  username,
		ContentID: contentID,
		Reason:    reason,
	}
}

// contentID may be empty (ban not triggered by a piece of content)
func Ban(username, contentID, reason, message string) Directive {
	return Directive{
		Kind:      KindBanUser,
		Username:  username,
		ContentID: contentID,
		Reason:    reason,
		Message:   message,
	}
}

// Returns the directives of the given kind, in order.
func Filter(dirs []Directive, kind Kind) []Directive {
	out := []Directive{}
	for _, d := range dirs {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func Has(dirs []Directive, kind Kind) bool {
	for _, d := range dirs {
		if d.Kind == kind {
			return true
		}
	}
	return false
}
