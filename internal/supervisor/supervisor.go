// Package supervisor is the subprocess registry and reaper that bounds the
// lifetime of any child process spawned by a Session Agent (extractor
// shells, collection-service sidecars). It is a process-wide singleton.
package supervisor

import (
	"os"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/memory-service/memoryd/internal/event"
	"github.com/memory-service/memoryd/internal/logging"
)

// killTimeout bounds the soft-terminate -> hard-kill transition, per
// spec.md §5, scaled up from the teacher's 200ms SigkillTimeout
// (internal/tool/bash.go) to the 3-second deadline the spec names for a
// supervisor watching session-lifetime children rather than a single bash
// invocation.
const killTimeout = 3 * time.Second

// extractorChildPattern matches the command-line glob of processes spawned
// by extractor sessions (a collection-service sidecar, a provider CLI
// helper), used by FindUnregisteredObservers to recognize orphans that were
// never registered because the worker crashed between fork and register.
const extractorChildPattern = "*memoryd-extractor*"

// Supervisor tracks the child PIDs spawned by each session's agent. All map
// mutations are short critical sections guarded by mu.
type Supervisor struct {
	mu       sync.Mutex
	sessions map[int64]map[int]struct{}
}

// New builds an empty Supervisor.
func New() *Supervisor {
	return &Supervisor{sessions: make(map[int64]map[int]struct{})}
}

// RegisterObservers union-adds pids to the set tracked for sessionDBID.
// Every spawn made on behalf of an agent must be registered immediately
// after the process starts, closing the orphan-by-crash window to the
// interval between fork and register, which the Reaper covers.
func (s *Supervisor) RegisterObservers(sessionDBID int64, pids ...int) {
	if len(pids) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sessions[sessionDBID]
	if !ok {
		set = make(map[int]struct{})
		s.sessions[sessionDBID] = set
	}
	for _, pid := range pids {
		set[pid] = struct{}{}
	}
}

// KillSessionObservers soft-terminates every PID registered for a session,
// polls up to killTimeout for them to exit, hard-kills survivors, and
// removes the session from the registry. A PID that is already dead is
// silently ignored.
func (s *Supervisor) KillSessionObservers(sessionDBID int64) {
	s.mu.Lock()
	pids := make([]int, 0, len(s.sessions[sessionDBID]))
	for pid := range s.sessions[sessionDBID] {
		pids = append(pids, pid)
	}
	delete(s.sessions, sessionDBID)
	s.mu.Unlock()

	killPIDs(pids)
}

// KillAll kills every registered session's observers in parallel, used on
// worker shutdown.
func (s *Supervisor) KillAll() {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.KillSessionObservers(id)
		}(id)
	}
	wg.Wait()
}

// PruneDeadPids removes PIDs that no longer exist in the OS process table,
// returning the count pruned. A session emptied by pruning is removed from
// the registry entirely.
func (s *Supervisor) PruneDeadPids() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for sessionID, pids := range s.sessions {
		for pid := range pids {
			if !pidAlive(pid) {
				delete(pids, pid)
				pruned++
			}
		}
		if len(pids) == 0 {
			delete(s.sessions, sessionID)
		}
	}
	return pruned
}

// FindUnregisteredObservers scans the process table for processes whose
// command line matches extractorChildPattern and are not already tracked by
// this registry. These are orphans left by a previously crashed worker or a
// leaked spawn.
func (s *Supervisor) FindUnregisteredObservers() []int {
	s.mu.Lock()
	known := make(map[int]struct{})
	for _, pids := range s.sessions {
		for pid := range pids {
			known[pid] = struct{}{}
		}
	}
	s.mu.Unlock()

	var out []int
	for _, pid := range listProcessPIDs() {
		if _, ok := known[pid]; ok {
			continue
		}
		cmdline, err := readCmdline(pid)
		if err != nil || cmdline == "" {
			continue
		}
		if matched, _ := doublestar.Match(extractorChildPattern, cmdline); matched {
			out = append(out, pid)
		}
	}
	return out
}

// SnapshotChildPids returns the worker's immediate OS-level child PIDs.
func (s *Supervisor) SnapshotChildPids() []int {
	return listProcessPIDs()
}

// killPIDs implements the soft-terminate -> poll -> hard-kill sequence
// shared by KillSessionObservers, grounded on internal/tool/bash.go's
// killProcess (SIGTERM the process group, sleep, SIGKILL survivors), scaled
// to spec.md §5's 3-second deadline.
func killPIDs(pids []int) {
	if runtime.GOOS == "windows" {
		for _, pid := range pids {
			p, err := os.FindProcess(pid)
			if err != nil {
				continue
			}
			_ = p.Kill()
		}
		return
	}

	for _, pid := range pids {
		if !pidAlive(pid) {
			continue
		}
		_ = syscall.Kill(-pid, syscall.SIGTERM)
	}

	deadline := time.Now().Add(killTimeout)
	remaining := make(map[int]struct{}, len(pids))
	for _, pid := range pids {
		remaining[pid] = struct{}{}
	}
	for time.Now().Before(deadline) && len(remaining) > 0 {
		for pid := range remaining {
			if !pidAlive(pid) {
				delete(remaining, pid)
			}
		}
		if len(remaining) == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	for pid := range remaining {
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
			logging.Warn().Err(err).Int("pid", pid).Msg("hard-kill of subprocess observer failed")
		}
	}
}

// Reaper runs PruneDeadPids and kills any unregistered observers on a fixed
// interval, in case a previously crashed worker leaked children or a spawn
// raced the register call. Calling Start twice is a no-op; Stop may be
// called any number of times safely.
type Reaper struct {
	sup      *Supervisor
	interval time.Duration

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReaper builds a Reaper over sup with the given interval (60s per
// spec.md §4.E).
func NewReaper(sup *Supervisor, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Reaper{sup: sup, interval: interval}
}

// Start begins the reaper's periodic sweep in a background goroutine.
func (r *Reaper) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.run()
}

func (r *Reaper) run() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Reaper) sweep() {
	pruned := r.sup.PruneDeadPids()
	if pruned > 0 {
		logging.Debug().Int("count", pruned).Msg("reaper pruned dead subprocess pids")
	}

	orphans := r.sup.FindUnregisteredObservers()
	if len(orphans) == 0 {
		return
	}
	logging.Warn().Ints("pids", orphans).Msg("reaper killing unregistered subprocess observers")
	killPIDs(orphans)
	for _, pid := range orphans {
		event.PublishSync(event.Event{
			Type: event.SubprocessOrphanKilled,
			Data: event.SubprocessOrphanKilledData{PID: pid},
		})
	}
}

// Stop ends the reaper's background goroutine, if running. Safe to call
// any number of times, including before Start.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	<-r.doneCh
	r.started = false
}
