package sessionmgr

import (
	"time"

	"github.com/memory-service/memoryd/internal/logging"
	"github.com/memory-service/memoryd/pkg/types"
)

// sweepInterval bounds the window in which a pending message enqueued right
// as a generator is exiting (after its own HasPending check found nothing,
// but before it clears the active slot) could otherwise sit unprocessed
// until the next hook event for that session arrives.
const sweepInterval = 5 * time.Second

// StartStallSweep runs a periodic scan that restarts the generator for any
// active session carrying unprocessed pending messages with no generator
// currently running. Calling it twice is a no-op; Stop may be called any
// number of times safely, mirroring the Subprocess Supervisor's Reaper.
func (m *Manager) StartStallSweep() {
	m.sweepOnce.Do(func() {
		m.sweepStop = make(chan struct{})
		m.sweepDone = make(chan struct{})
		go m.runStallSweep()
	})
}

// Stop ends the stall sweep goroutine, if running.
func (m *Manager) Stop() {
	m.sweepStopOnce.Do(func() {
		if m.sweepStop != nil {
			close(m.sweepStop)
			<-m.sweepDone
		}
	})
}

func (m *Manager) runStallSweep() {
	defer close(m.sweepDone)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweepStalled()
		case <-m.sweepStop:
			return
		}
	}
}

func (m *Manager) sweepStalled() {
	sessions, err := m.st.ListSessions("")
	if err != nil {
		logging.Warn().Err(err).Msg("stall sweep: list sessions failed")
		return
	}
	for _, s := range sessions {
		if s.Status != types.SessionActive {
			continue
		}
		if m.IsActive(s.ID) {
			continue
		}
		hasPending, err := m.st.HasPending(s.ID)
		if err != nil || !hasPending {
			continue
		}
		logging.Warn().Int64("sessionId", s.ID).Msg("stall sweep restarting generator for stalled session")
		m.ensureGenerator(s)
	}
}
