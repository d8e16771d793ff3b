package domain

// Phase is the behavioral phase the user is currently in.
type Phase string

const (
	PhaseObservation Phase = "observation"
	PhaseReduction   Phase = "reduction"
	PhaseMaintenance Phase = "maintenance"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseObservation, PhaseReduction, PhaseMaintenance:
		return true
	default:
		return false
	}
}

// Interventions holds the nudge toggles. The core only stores them.
type Interventions struct {
	ProductivityPrompts bool `json:"productivityPrompts"`
	TimeWarnings        bool `json:"timeWarnings"`
	ShortsBlocking      bool `json:"shortsBlocking"`
	AutoplayBlocking    bool `json:"autoplayBlocking"`
}

// SyncSettings configures the remote sync.
type SyncSettings struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url" validate:"omitempty,url"`
	UserID   string `json:"userId"`
	LastSync int64  `json:"lastSync"`
}

// Settings is the process-wide user configuration.
type Settings struct {
	TrackingEnabled    bool          `json:"trackingEnabled"`
	Phase              Phase         `json:"phase" validate:"omitempty,oneof=observation reduction maintenance"`
	DailyGoalMinutes   int           `json:"dailyGoalMinutes" validate:"gte=0,lte=1440"`
	WeekendGoalMinutes int           `json:"weekendGoalMinutes" validate:"gte=0,lte=1440"`
	Interventions      Interventions `json:"interventions"`
	Sync               SyncSettings  `json:"backend"`
}

// DefaultSettings returns the settings used when nothing has been stored yet.
func DefaultSettings() Settings {
	return Settings{
		TrackingEnabled:    true,
		Phase:              PhaseObservation,
		DailyGoalMinutes:   60,
		WeekendGoalMinutes: 120,
		Interventions: Interventions{
			ProductivityPrompts: true,
		},
	}
}

// EnsureUserID fills in a user id from gen when none is set.
// It reports whether the settings changed.
func (s *Settings) EnsureUserID(gen func() string) bool {
	if s.Sync.UserID != "" {
		return false
	}
	s.Sync.UserID = gen()
	return true
}

// SyncConfigured reports whether a push to the remote store should be attempted.
func (s Settings) SyncConfigured() bool {
	return s.Sync.Enabled && s.Sync.UserID != "" && s.Sync.URL != ""
}
