package relay

import (
	"context"
	"sync"

	"signupboard/internal/domain"
)

// State is what a client polling a wizard sees: the open prompt, or the
// closing notice once the wizard has ended.
type State struct {
	Seq    int            `json:"seq"`
	Prompt *domain.Prompt `json:"prompt,omitempty"`
	Notice *domain.Notice `json:"notice,omitempty"`
}

// Session carries one wizard's prompts out to a client and its replies back.
// It implements domain.Prompter.
type Session struct {
	GuildID  string
	AuthorID string

	mu      sync.Mutex
	state   State
	changed chan struct{}
	replies chan domain.Reply
	done    chan struct{}
}

func newSession(guildID, authorID string) *Session {
	return &Session{
		GuildID:  guildID,
		AuthorID: authorID,
		changed:  make(chan struct{}),
		replies:  make(chan domain.Reply, 1),
		done:     make(chan struct{}),
	}
}

// Ask publishes the prompt and waits for the matching reply.
func (s *Session) Ask(ctx context.Context, p domain.Prompt) (domain.Reply, error) {
	s.mu.Lock()
	// drop anything sent against an earlier prompt
	select {
	case <-s.replies:
	default:
	}
	s.update(State{Prompt: &p})
	s.mu.Unlock()

	select {
	case r := <-s.replies:
		return r, nil
	case <-ctx.Done():
		return domain.Reply{}, ctx.Err()
	}
}

// Close records the final notice and ends the session.
func (s *Session) Close(ctx context.Context, n domain.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return nil
	default:
	}
	s.update(State{Notice: &n})
	close(s.done)
	return nil
}

// update bumps the sequence and wakes waiters. Callers hold mu.
func (s *Session) update(st State) {
	st.Seq = s.state.Seq + 1
	s.state = st
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the wizard has finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Await blocks until the state moves past seq or ctx ends, then returns the
// current state.
func (s *Session) Await(ctx context.Context, seq int) State {
	s.mu.Lock()
	if s.state.Seq > seq {
		st := s.state
		s.mu.Unlock()
		return st
	}
	changed := s.changed
	s.mu.Unlock()

	select {
	case <-changed:
	case <-ctx.Done():
	}
	return s.State()
}

// Reply answers the prompt identified by seq. The prompt closes on the first
// accepted reply; a reply to any other prompt, or to one already answered, is
// rejected with ErrVersionConflict.
func (s *Session) Reply(seq int, r domain.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return domain.ErrNotFound
	default:
	}
	if s.state.Prompt == nil || s.state.Seq != seq {
		return domain.ErrVersionConflict
	}
	select {
	case s.replies <- r:
		s.state.Prompt = nil
		return nil
	default:
		return domain.ErrVersionConflict
	}
}

// Cancel aborts the wizard at its current prompt. Once the last prompt has
// been answered there is nothing left to cancel and it fails with
// ErrVersionConflict.
func (s *Session) Cancel() error {
	s.mu.Lock()
	seq := s.state.Seq
	s.mu.Unlock()
	return s.Reply(seq, domain.Reply{Cancelled: true})
}
