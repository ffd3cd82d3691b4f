package match

// State is the lifecycle phase of a match.
type State int

const (
	StateWaiting State = iota
	StateCountdown
	StateBuying
	StateInProgress
	StateEnding
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateCountdown:
		return "COUNTDOWN"
	case StateBuying:
		return "BUYING"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateEnding:
		return "ENDING"
	default:
		return "UNKNOWN"
	}
}

// Joinable reports whether players may be added in this state.
func (s State) Joinable() bool {
	return s == StateWaiting || s == StateCountdown
}

// EndReason says why a match reached ENDING.
type EndReason string

const (
	ReasonForced    EndReason = "forced"
	ReasonTimeout   EndReason = "timeout"
	ReasonEmpty     EndReason = "empty"
	ReasonCompleted EndReason = "completed"
	ReasonDraw      EndReason = "draw"
	ReasonShutdown  EndReason = "shutdown"
)

// RoundReason says why a round ended.
type RoundReason string

const (
	ReasonTimeExpired RoundReason = "time expired"
	ReasonEliminated  RoundReason = "eliminated"
	ReasonDetonated   RoundReason = "bomb detonated"
	ReasonDefused     RoundReason = "bomb defused"
)

const (
	// CountdownSeconds is the lobby countdown once enough players joined.
	CountdownSeconds = 30
	// WaitingTimeout ends a match that never leaves WAITING.
	WaitingTimeout = 180
)

// announceAt reports whether a remaining-seconds value gets a chat line.
func announceAt(sec int) bool {
	switch {
	case sec == 30, sec == 20, sec == 10:
		return true
	case sec >= 1 && sec <= 5:
		return true
	}
	return false
}
