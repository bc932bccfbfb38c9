package monitor

import "encoding/json"

// CycleStatus summarizes one account's check cycle.
type CycleStatus int

const (
	CycleNewScores CycleStatus = iota
	CycleNoChange
	// the session lapsed and silent recovery failed; the account is
	// degraded until it is re-registered
	CycleExpired
	// the session lapsed but silent recovery succeeded
	CycleRelogin
	CycleError
)

func (s CycleStatus) String() string {
	switch s {
	case CycleNewScores:
		return "new_scores"
	case CycleNoChange:
		return "no_change"
	case CycleExpired:
		return "expired"
	case CycleRelogin:
		return "relogin"
	case CycleError:
		return "error"
	}
	return "unknown"
}

func (s CycleStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

type CycleOutcome struct {
	Status CycleStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}
