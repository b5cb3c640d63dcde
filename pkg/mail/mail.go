// Package mail carries email verification jobs from the API server to the
// mailer worker over AMQP, and renders and sends the messages over SMTP.
package mail

import "context"

// Job is one verification email to deliver.
type Job struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Publisher enqueues verification email jobs.
type Publisher interface {
	Publish(ctx context.Context, job Job) error
}

// Sender delivers a rendered email.
type Sender interface {
	Send(to, subject, htmlBody string) error
}
