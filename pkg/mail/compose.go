package mail

import (
	"fmt"
	"html"
	"net/url"
	"strings"
)

const verificationSubject = "Verify your email address"

// VerificationEmail renders the subject and HTML body for a verification
// email. appURL is the externally reachable base URL of the frontend.
func VerificationEmail(job Job, appURL string) (subject, body string) {
	link := verificationLink(appURL, job.Token)
	name := strings.TrimSpace(job.Username)
	if name == "" {
		name = "there"
	}
	body = fmt.Sprintf(`<p>Hi %s,</p>
<p>Thanks for signing up. Please confirm your email address by clicking the link below:</p>
<p><a href=%q>Verify email</a></p>
<p>If the link does not work, open this URL in your browser:</p>
<p>%s</p>
<p>If you did not create an account, you can ignore this email.</p>`,
		html.EscapeString(name), link, html.EscapeString(link))
	return verificationSubject, body
}

func verificationLink(appURL, token string) string {
	base := strings.TrimRight(appURL, "/")
	return base + "/verify-email?token=" + url.QueryEscape(token)
}
