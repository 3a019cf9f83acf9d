package machine

import (
	"fmt"

	"github.com/humancheck/gatekeeper/gate/record"
)

func instructions(community string) string {
	return fmt.Sprintf("To complete verification:\n\n"+
		"1. Go to %s\n"+
		"2. Select \"Confirm Human\" from the community menu\n"+
		"3. Answer the questions and click \"Confirm\"\n\n"+
		"Your content may be temporarily removed until verification is complete.\n\n"+
		"If you need help finding or using the form, you can reply to this message.", community)
}

// Subject and body of the verification request notification, worded for the status the user was
// in before this request.
func RequestMessage(prev record.Status, community string) (string, string) {
	inst := instructions(community)
	switch prev {
	case record.StatusPending:
		return "Reminder: Complete verification",
			fmt.Sprintf("This is a reminder to complete your verification in %s.\n\n%s\n\nIf your request expires, reply here and a moderator can help.", community, inst)
	case record.StatusTimeout:
		return "Verification timed out, new request",
			fmt.Sprintf("Your previous verification request expired, but a new one has been sent.\n\n%s\n\nIf this happens again, reply here and a moderator can help.", inst)
	case record.StatusFailed:
		return "Verification failed, try again",
			fmt.Sprintf("Your previous verification attempt was not successful, but you may try again.\n\n%s\n\nIf you believe this was a mistake, you can reply here.", inst)
	case record.StatusVerified:
		return "New verification request",
			fmt.Sprintf("You've previously completed verification, but a new request has been sent.\n\n%s\n\nIf you have questions, you can reply here.", inst)
	default:
		return "Verification requested",
			fmt.Sprintf("Hi,\n\nYou're not in trouble, but your account was flagged by %s for review.\n\nTo continue posting and commenting, please complete a quick verification.\n\n%s\n\nPlease note: verification requests may expire if not completed in time.", community, inst)
	}
}

const (
	banReasonFailed  = "Failed human verification, banned automatically"
	banMessageFailed = "You have been banned for failing the human verification process. If you believe this is a mistake, please reply to this message."
)
