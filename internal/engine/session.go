package engine

// Session is the mutable state of one conversation. Escalation is immediate;
// de-escalation back to STANDARD requires CleanStreak consecutive
// zero-trigger turns. Not internally synchronized: one session per
// conversation, callers serialize access.
type Session struct {
	level       ProtectionLevel
	cleanStreak int
	history     []string
	maxHistory  int
}

// NewSession creates a session at STANDARD with a bounded history.
func NewSession(maxHistory int) *Session {
	if maxHistory <= 0 {
		maxHistory = DefaultEscalationConfig().HistorySize
	}
	return &Session{level: LevelStandard, maxHistory: maxHistory}
}

// Level returns the session's current protection level.
func (s *Session) Level() ProtectionLevel {
	return s.level
}

// CleanStreak returns the count of consecutive zero-trigger turns.
func (s *Session) CleanStreak() int {
	return s.cleanStreak
}

// History returns a copy of the retained messages, oldest first.
func (s *Session) History() []string {
	return append([]string(nil), s.history...)
}

// Reset returns the session to STANDARD with no history. Called by the
// owner when a new conversation begins.
func (s *Session) Reset() {
	s.level = LevelStandard
	s.cleanStreak = 0
	s.history = nil
}

// update applies one turn's outcome to the session and returns the level the
// caller should report: max(session level, turn level), except that a
// completed clean streak drops the session to STANDARD. A retraction
// ("jk lol") right after a crisis statement therefore does not lower the
// level — the streak has to run its full course first.
func (s *Session) update(turnLevel ProtectionLevel, triggerCount int, cfg EscalationConfig) ProtectionLevel {
	if triggerCount == 0 {
		s.cleanStreak++
	} else {
		s.cleanStreak = 0
	}

	if turnLevel > s.level {
		s.level = turnLevel
	}
	if s.cleanStreak >= cfg.CleanStreak {
		s.level = LevelStandard
	}
	return s.level
}

// remember appends a message to the bounded history, dropping the oldest on
// overflow.
func (s *Session) remember(msg string) {
	s.history = append(s.history, msg)
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
}
