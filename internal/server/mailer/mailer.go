// Package mailer delivers OTP and invitation messages. Delivery is best
// effort: callers log a failed send and carry on.
package mailer

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/otp"
)

// Sender is the outbound mail capability.
type Sender interface {
	SendOTP(ctx context.Context, email string, code string, purpose otp.Purpose) error
	SendInvitation(ctx context.Context, email string, token string, inviterName string) error
}

// LogSender records that a message would have been sent. It never logs the
// code or the invitation token.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(l logging.Logger) *LogSender {
	return &LogSender{log: l.With("module", "mailer")}
}

func (s *LogSender) SendOTP(ctx context.Context, email string, _ string, purpose otp.Purpose) error {
	s.log.Info(ctx, "otp mail", "to", email, "purpose", string(purpose))
	return nil
}

func (s *LogSender) SendInvitation(ctx context.Context, email string, _ string, inviterName string) error {
	s.log.Info(ctx, "invitation mail", "to", email, "inviter", inviterName)
	return nil
}

// Message is one captured send.
type Message struct {
	To      string
	Code    string
	Token   string
	Purpose otp.Purpose
	Inviter string
}

// Recorder keeps every message in memory. Err, when set, is returned from
// each send after recording.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (r *Recorder) SendOTP(_ context.Context, email string, code string, purpose otp.Purpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{To: email, Code: code, Purpose: purpose})
	return r.Err
}

func (r *Recorder) SendInvitation(_ context.Context, email string, token string, inviterName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{To: email, Token: token, Inviter: inviterName})
	return r.Err
}

// Messages returns a copy of what was sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent message and false if nothing was sent.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}
