package engine

import "testing"

const (
	cleanMsg  = "thanks, that makes sense"
	crisisMsg = "I lost my job, can't pay bills, and this is my last hope."
)

func TestSession_EscalationImmediate(t *testing.T) {
	d := testDetector()
	s := NewSession(0)

	res := d.DetectWithSession(s, crisisMsg)
	if res.Level != LevelCrisis {
		t.Fatalf("level = %v, want %v", res.Level, LevelCrisis)
	}
	if s.Level() != LevelCrisis {
		t.Errorf("session level = %v, want %v", s.Level(), LevelCrisis)
	}
}

func TestSession_DeescalationRequiresThreeCleanTurns(t *testing.T) {
	d := testDetector()
	s := NewSession(0)

	d.DetectWithSession(s, crisisMsg)

	// Turns 2 and 3: clean, but the session stays elevated.
	for turn := 2; turn <= 3; turn++ {
		res := d.DetectWithSession(s, cleanMsg)
		if res.TriggerCount != 0 {
			t.Fatalf("turn %d: triggerCount = %d, want 0", turn, res.TriggerCount)
		}
		if res.Level != LevelCrisis {
			t.Errorf("turn %d: level = %v, want %v (streak not complete)", turn, res.Level, LevelCrisis)
		}
	}

	// Turn 4: third consecutive clean turn completes the streak.
	res := d.DetectWithSession(s, cleanMsg)
	if res.Level != LevelStandard {
		t.Errorf("turn 4: level = %v, want %v", res.Level, LevelStandard)
	}
}

func TestSession_RetractionDoesNotLowerLevel(t *testing.T) {
	// "jk lol" right after a crisis statement must not drop the safeguard.
	d := testDetector()
	s := NewSession(0)

	d.DetectWithSession(s, crisisMsg)
	res := d.DetectWithSession(s, "jk lol, forget I said that")

	if res.Level != LevelCrisis {
		t.Errorf("level after retraction = %v, want %v", res.Level, LevelCrisis)
	}
}

func TestSession_NonZeroTurnResetsStreak(t *testing.T) {
	d := testDetector()
	s := NewSession(0)

	d.DetectWithSession(s, crisisMsg)
	d.DetectWithSession(s, cleanMsg)
	d.DetectWithSession(s, cleanMsg)

	// A triggered turn after two clean ones resets the streak.
	res := d.DetectWithSession(s, "I still can't pay bills")
	if s.CleanStreak() != 0 {
		t.Errorf("cleanStreak = %d, want 0", s.CleanStreak())
	}
	if res.Level != LevelCrisis {
		t.Errorf("level = %v, want %v", res.Level, LevelCrisis)
	}

	// Two more clean turns are not enough to de-escalate.
	d.DetectWithSession(s, cleanMsg)
	res = d.DetectWithSession(s, cleanMsg)
	if res.Level != LevelCrisis {
		t.Errorf("level = %v, want %v (streak restarted)", res.Level, LevelCrisis)
	}
}

func TestSession_EnhancedAlsoSticky(t *testing.T) {
	d := testDetector()
	s := NewSession(0)

	d.DetectWithSession(s, "I lost my job and need money fast.")
	res := d.DetectWithSession(s, cleanMsg)

	if res.Level != LevelEnhanced {
		t.Errorf("level = %v, want %v", res.Level, LevelEnhanced)
	}
}

func TestSession_HistoryBounded(t *testing.T) {
	d := testDetector()
	s := NewSession(3)

	msgs := []string{"one", "two", "three", "four", "five"}
	for _, m := range msgs {
		d.DetectWithSession(s, m)
	}

	got := s.History()
	want := []string{"three", "four", "five"}
	if len(got) != len(want) {
		t.Fatalf("history length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSession_Reset(t *testing.T) {
	d := testDetector()
	s := NewSession(0)

	d.DetectWithSession(s, crisisMsg)
	s.Reset()

	if s.Level() != LevelStandard {
		t.Errorf("level after reset = %v, want %v", s.Level(), LevelStandard)
	}
	if len(s.History()) != 0 {
		t.Errorf("history after reset = %v, want empty", s.History())
	}

	res := d.DetectWithSession(s, cleanMsg)
	if res.Level != LevelStandard {
		t.Errorf("level = %v, want %v", res.Level, LevelStandard)
	}
}

func TestSession_PolicyOverridesStreak(t *testing.T) {
	d := testDetector()
	s := NewSession(0)
	one := 1
	overrides := &PolicyOverrides{CleanStreak: &one}

	d.DetectWithSessionPolicy(s, crisisMsg, overrides)
	res := d.DetectWithSessionPolicy(s, cleanMsg, overrides)

	if res.Level != LevelStandard {
		t.Errorf("level = %v, want %v (streak of 1)", res.Level, LevelStandard)
	}
}

func TestPolicyOverrides_Apply(t *testing.T) {
	base := DefaultEscalationConfig()

	var nilOverrides *PolicyOverrides
	if got := nilOverrides.Apply(base); got != base {
		t.Errorf("nil overrides changed config: %+v", got)
	}

	two, five := 2, 5
	cfg := (&PolicyOverrides{EnhancedMin: &two, CrisisMin: &five}).Apply(base)
	if cfg.EnhancedMin != 2 || cfg.CrisisMin != 5 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.CleanStreak != base.CleanStreak {
		t.Errorf("untouched field changed: %+v", cfg)
	}

	// CrisisMin below EnhancedMin is rejected.
	zero := 0
	cfg = (&PolicyOverrides{CrisisMin: &zero}).Apply(base)
	if cfg.CrisisMin != base.CrisisMin {
		t.Errorf("invalid CrisisMin accepted: %+v", cfg)
	}
}
