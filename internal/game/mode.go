package game

import "log"

// Mode is the top-level game mode.
type Mode uint8

const (
	ModeLobby Mode = iota
	ModeLevel
	ModeBossBattle
	ModePaused
	ModeVictory
	ModeError
	ModeArcadeActive
	ModeArcadeResults
)

// String returns the snapshot name of a mode.
func (m Mode) String() string {
	switch m {
	case ModeLobby:
		return "lobby"
	case ModeLevel:
		return "level"
	case ModeBossBattle:
		return "boss_battle"
	case ModePaused:
		return "paused"
	case ModeVictory:
		return "victory"
	case ModeError:
		return "error"
	case ModeArcadeActive:
		return "arcade_active"
	case ModeArcadeResults:
		return "arcade_results"
	default:
		return "unknown"
	}
}

// ModeEventKind identifies a transition trigger.
type ModeEventKind uint8

const (
	EventEnterLevel ModeEventKind = iota
	EventHostilesCleared
	EventBossDefeated
	EventPause
	EventResume
	EventFatal
	EventArcadeStart
	EventArcadeTimeUp
	EventArcadeResolved
	EventReturnToLobby
)

// String returns the event name used in logs.
func (k ModeEventKind) String() string {
	switch k {
	case EventEnterLevel:
		return "enter_level"
	case EventHostilesCleared:
		return "hostiles_cleared"
	case EventBossDefeated:
		return "boss_defeated"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventFatal:
		return "fatal"
	case EventArcadeStart:
		return "arcade_start"
	case EventArcadeTimeUp:
		return "arcade_time_up"
	case EventArcadeResolved:
		return "arcade_resolved"
	case EventReturnToLobby:
		return "return_to_lobby"
	default:
		return "unknown"
	}
}

// ModeEvent is one transition trigger with its payload.
type ModeEvent struct {
	Kind ModeEventKind

	// Final marks the boss of the last scope; its defeat wins the game.
	Final bool

	// ResumeTarget is carried by pause events so resume always lands on
	// the mode the pause interrupted, never on a guessed previous state.
	ResumeTarget Mode
}

// ModeMachine holds the current mode and resolves transitions through a
// total table: every (mode, event) pair either names a next mode or is an
// explicit rejection. Rejected events are dropped with a warning.
type ModeMachine struct {
	current      Mode
	resumeTarget Mode
	debugChecks  bool
}

// NewModeMachine starts in the lobby.
func NewModeMachine(debugChecks bool) *ModeMachine {
	return &ModeMachine{current: ModeLobby, debugChecks: debugChecks}
}

// Current returns the active mode.
func (m *ModeMachine) Current() Mode {
	return m.current
}

// ResumeTarget returns the mode a resume would land on. Meaningful only
// while paused.
func (m *ModeMachine) ResumeTarget() Mode {
	return m.resumeTarget
}

// Apply resolves one event. It returns the previous mode and whether the
// event was accepted. Fatal is accepted from every mode; nothing leaves
// Error except ReturnToLobby.
func (m *ModeMachine) Apply(ev ModeEvent) (Mode, bool) {
	prev := m.current
	next, ok := m.resolve(ev)
	if !ok {
		if m.debugChecks {
			log.Printf("⚠️ rejected mode event %s in %s", ev.Kind, m.current)
		}
		return prev, false
	}

	if ev.Kind == EventPause {
		m.resumeTarget = ev.ResumeTarget
	}
	m.current = next
	return prev, true
}

// resolve is the transition table.
func (m *ModeMachine) resolve(ev ModeEvent) (Mode, bool) {
	// Fatal dominates from anywhere, including Error itself.
	if ev.Kind == EventFatal {
		return ModeError, true
	}

	switch m.current {
	case ModeLobby:
		switch ev.Kind {
		case EventEnterLevel:
			return ModeLevel, true
		case EventArcadeStart:
			return ModeArcadeActive, true
		case EventPause:
			return ModePaused, true
		}

	case ModeLevel:
		switch ev.Kind {
		case EventHostilesCleared:
			return ModeBossBattle, true
		case EventPause:
			return ModePaused, true
		case EventReturnToLobby:
			return ModeLobby, true
		}

	case ModeBossBattle:
		switch ev.Kind {
		case EventBossDefeated:
			if ev.Final {
				return ModeVictory, true
			}
			return ModeLevel, true
		case EventPause:
			return ModePaused, true
		case EventReturnToLobby:
			return ModeLobby, true
		}

	case ModePaused:
		if ev.Kind == EventResume {
			return m.resumeTarget, true
		}

	case ModeVictory:
		if ev.Kind == EventReturnToLobby {
			return ModeLobby, true
		}

	case ModeError:
		if ev.Kind == EventReturnToLobby {
			return ModeLobby, true
		}

	case ModeArcadeActive:
		switch ev.Kind {
		case EventArcadeTimeUp:
			return ModeArcadeResults, true
		case EventPause:
			return ModePaused, true
		}

	case ModeArcadeResults:
		switch ev.Kind {
		case EventArcadeResolved, EventReturnToLobby:
			return ModeLobby, true
		}
	}

	return m.current, false
}

// Pausable reports whether the current mode accepts a pause event.
func (m *ModeMachine) Pausable() bool {
	switch m.current {
	case ModeLobby, ModeLevel, ModeBossBattle, ModeArcadeActive:
		return true
	default:
		return false
	}
}
