package scheduler

// Snapshot is a copy-on-read view for /api/v1/status.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Running:  s.running,
		Tick:     s.cfg.tick(),
		LastTick: s.lastTick,
		Fired:    s.fired,
		Failed:   s.failed,
	}
	sup := s.sup
	s.mu.Unlock()

	snap.Triggers = s.reg.Snapshot()
	snap.Supervisor = sup.Snapshot()
	return snap
}
