package publisher

import "sync"

// shutdownCoordinator serializes graceful and forced termination requests
// against the worker. It only records intent; the worker reads the flags
// at its decision points and drives the actual teardown.
//
// Both the caller side and the worker touch it, so all access is locked.
type shutdownCoordinator struct {
	mu sync.Mutex

	gracefulRequested bool
	forceRequested    bool

	// closeInitiated marks that we asked the transport to close, so the
	// resulting close event is expected and must not trigger a reconnect.
	closeInitiated bool

	// everConnected distinguishes a force-finish before any connection was
	// established (StateForceFinished) from one after (terminal close).
	everConnected bool
}

func newShutdownCoordinator() *shutdownCoordinator {
	return &shutdownCoordinator{}
}

// requestGraceful records a graceful shutdown request. Reports false if a
// shutdown (of either kind) was already requested.
func (s *shutdownCoordinator) requestGraceful() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gracefulRequested || s.forceRequested {
		return false
	}
	s.gracefulRequested = true
	return true
}

// requestForce records a forced shutdown request. A force request
// supersedes a pending graceful one. Reports false if force was already
// requested.
func (s *shutdownCoordinator) requestForce() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forceRequested {
		return false
	}
	s.forceRequested = true
	return true
}

// stopRequested reports whether any shutdown was requested.
func (s *shutdownCoordinator) stopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gracefulRequested || s.forceRequested
}

// forceRequestedNow reports whether a forced shutdown was requested.
func (s *shutdownCoordinator) forceRequestedNow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forceRequested
}

// gracefulRequestedNow reports whether a graceful shutdown was requested.
func (s *shutdownCoordinator) gracefulRequestedNow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gracefulRequested
}

// markCloseInitiated records that we are closing the transport ourselves.
func (s *shutdownCoordinator) markCloseInitiated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeInitiated = true
}

// wasCloseInitiated reports whether the transport close was ours.
func (s *shutdownCoordinator) wasCloseInitiated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeInitiated
}

// markConnected records that a connection was established at least once.
func (s *shutdownCoordinator) markConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.everConnected = true
}

// wasEverConnected reports whether any connection was ever established.
func (s *shutdownCoordinator) wasEverConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.everConnected
}
