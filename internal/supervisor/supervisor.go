package supervisor

import (
	"fmt"
	mathrand "math/rand/v2"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-group-bot/pkg/log"
)

type State string

const (
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateReconnecting State = "reconnecting"
	StateLoggedOut    State = "logged_out"
)

// Policy bounds the reconnect loop: exponential backoff from BackoffBase
// capped at BackoffMax, plus up to JitterMax of random jitter, for at
// most Retries attempts per disconnection.
type Policy struct {
	Retries     int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	JitterMax   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Retries:     10,
		BackoffBase: 2 * time.Second,
		BackoffMax:  30 * time.Second,
		JitterMax:   500 * time.Millisecond,
	}
}

// backoffFor returns the delay before the given 1-based attempt. The
// delay doubles from BackoffBase and stops doubling once it reaches
// BackoffMax, so large attempt numbers never overflow the duration.
func (p Policy) backoffFor(attempt int) time.Duration {
	backoff := p.BackoffBase
	for i := 1; i < attempt; i++ {
		if backoff >= p.BackoffMax {
			return p.BackoffMax
		}
		backoff *= 2
	}
	if backoff > p.BackoffMax {
		backoff = p.BackoffMax
	}
	return backoff
}

func (p Policy) normalized() Policy {
	if p.Retries <= 0 {
		p.Retries = DefaultPolicy().Retries
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = DefaultPolicy().BackoffBase
	}
	if p.BackoffMax <= 0 {
		p.BackoffMax = DefaultPolicy().BackoffMax
	}
	if p.JitterMax < 0 {
		p.JitterMax = 0
	}
	return p
}

// Supervisor owns the connection lifecycle of the WhatsApp session. It
// consumes connection events and drives reconnection with bounded,
// jittered exponential backoff. A logout is terminal: the session cannot
// be revived without re-pairing, so no reconnect is attempted.
type Supervisor struct {
	policy    Policy
	reconnect func() error

	mu          sync.Mutex
	state       State
	since       time.Time
	loopRunning bool
}

func New(policy Policy, reconnect func() error) *Supervisor {
	return &Supervisor{
		policy:    policy.normalized(),
		reconnect: reconnect,
		state:     StateConnecting,
		since:     time.Now(),
	}
}

// State returns the current connection state and when it was entered.
func (s *Supervisor) State() (State, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.since
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == state {
		return
	}
	s.state = state
	s.since = time.Now()
}

// HandleEvent consumes whatsmeow connection lifecycle events. Register
// it with the client's event handler; message events are ignored here.
func (s *Supervisor) HandleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Connected:
		s.setState(StateOpen)
		log.Print(nil).Info("Connected to WhatsApp")
	case *events.LoggedOut:
		s.setState(StateLoggedOut)
		log.Print(nil).Error(fmt.Sprintf("Logged out from WhatsApp (reason=%s). Delete the datastore and restart to scan the QR code again", e.Reason))
	case *events.StreamReplaced:
		s.setState(StateLoggedOut)
		log.Print(nil).Error("Stream replaced by another session. Restart the bot to take the session back")
	case *events.Disconnected:
		s.triggerReconnect("connection closed")
	case *events.ConnectFailure:
		s.triggerReconnect(fmt.Sprintf("connect failure: %s (%s)", e.Reason, e.Message))
	case *events.KeepAliveTimeout:
		log.Print(nil).Warn(fmt.Sprintf("Keepalive timeout, errors=%d, lastSuccess=%s", e.ErrorCount, e.LastSuccess.Format(time.RFC3339)))
	case *events.TemporaryBan:
		log.Print(nil).Error(fmt.Sprintf("Temporarily banned: reason=%s, expires=%s", e.Code, e.Expire))
	}
}

func (s *Supervisor) triggerReconnect(cause string) {
	s.mu.Lock()
	if s.state == StateLoggedOut || s.loopRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateReconnecting
	s.since = time.Now()
	s.loopRunning = true
	s.mu.Unlock()

	log.Print(nil).Warn("Disconnected from WhatsApp (" + cause + "), reconnecting")
	go s.reconnectLoop()
}

func (s *Supervisor) reconnectLoop() {
	defer func() {
		s.mu.Lock()
		s.loopRunning = false
		s.mu.Unlock()
	}()

	for attempt := 1; attempt <= s.policy.Retries; attempt++ {
		if state, _ := s.State(); state == StateLoggedOut {
			return
		}

		backoff := s.policy.backoffFor(attempt)
		var jitter time.Duration
		if s.policy.JitterMax > 0 {
			jitter = time.Duration(mathrand.Int64N(int64(s.policy.JitterMax) + 1))
		}
		time.Sleep(backoff + jitter)

		if err := s.reconnect(); err != nil {
			log.Print(nil).WithError(err).Warn(fmt.Sprintf("Reconnect attempt %d/%d failed", attempt, s.policy.Retries))
			continue
		}
		return
	}

	log.Print(nil).Error(fmt.Sprintf("Giving up after %d reconnect attempts, restart the process to try again", s.policy.Retries))
}
