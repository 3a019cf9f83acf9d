package enforce

import (
	"fmt"
	"strings"

	"github.com/humancheck/gatekeeper/gate/record"
)

// Subject and body of the notice sent to a user whose content was removed.
func RemovalMessage(status record.Status, content Content, community string) (string, string) {
	kind := "Content"
	switch content.Kind {
	case KindPost:
		kind = "Post"
	case KindComment:
		kind = "Comment"
	}
	link := strings.ToLower(kind)
	if content.Permalink != "" {
		link = fmt.Sprintf("[%s](%s)", link, content.Permalink)
	}

	switch status {
	case record.StatusFailed:
		return fmt.Sprintf("Notification: %s Removed Due to Failed Human Verification", kind),
			fmt.Sprintf("Your recent %s in %s has been removed because you failed the required human verification process. Please contact the moderation team if you believe this is a mistake.", link, community)
	case record.StatusTimeout:
		return fmt.Sprintf("Notification: %s Removed Due to Timed Out Human Verification", kind),
			fmt.Sprintf("Your recent %s in %s has been removed because you did not complete the required human verification process in time. Please contact the moderation team if you believe this is a mistake.", link, community)
	default:
		return fmt.Sprintf("Notification: %s Removed Due to Pending Human Verification", kind),
			fmt.Sprintf("Your recent %s in %s has been removed because your human verification process is still pending. Please complete the verification to avoid further actions on your content.", link, community)
	}
}
