package mailer

import (
	"sync"

	"github.com/rs/zerolog"
)

// Sender is what the dispatcher fans work out to; *Mailer satisfies it.
type Sender interface {
	SendVerificationCode(to, code string) error
}

// Dispatcher runs deliveries off the request path. The operation that decided
// "a code must be sent" has already returned by the time the send finishes;
// the outcome is observed only through the log. A registration can therefore
// succeed while the email never arrives, which is an accepted, logged failure
// mode rather than a rollback trigger.
type Dispatcher struct {
	sender Sender
	log    zerolog.Logger
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, log: logger}
}

// DispatchVerificationCode submits the delivery and returns immediately.
func (d *Dispatcher) DispatchVerificationCode(email, code string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sender.SendVerificationCode(email, code); err != nil {
			d.log.Error().Err(err).Str("to", email).Msg("verification email delivery failed")
			return
		}
		d.log.Info().Str("to", email).Msg("verification email delivered")
	}()
}

// Wait blocks until all submitted deliveries have finished. Used on shutdown
// and by tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
