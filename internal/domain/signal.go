package domain

import (
	"encoding/json"
	"fmt"
)

// Signal is an observer event consumed by the session manager.
// The set is closed: only types in this package implement it.
type Signal interface {
	SignalType() string
	signal()
}

type PageLoad struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url,omitempty"`
}

type PageUnload struct {
	TabID int `json:"tabId"`
}

type TabHidden struct {
	TabID int `json:"tabId"`
}

type TabVisible struct {
	TabID int `json:"tabId"`
}

// VideoWatched is emitted when a video ends or the user leaves it.
// ID and Timestamp are optional; missing ones are derived.
type VideoWatched struct {
	ID              string  `json:"id,omitempty"`
	VideoID         string  `json:"videoId"`
	Title           string  `json:"title"`
	Channel         *string `json:"channel,omitempty"`
	DurationSeconds int64   `json:"durationSeconds"`
	WatchedSeconds  int64   `json:"watchedSeconds"`
	IsShort         bool    `json:"isShort"`
	PlaybackSpeed   float64 `json:"playbackSpeed"`
	Source          string  `json:"source"`
	Timestamp       int64   `json:"timestamp,omitempty"`
}

type Search struct{}

type RecommendationClick struct{}

type AutoplayPending struct{}

type TabRemoved struct {
	TabID int `json:"tabId"`
}

// RateVideo records the user's answer to a productivity prompt.
type RateVideo struct {
	VideoID string `json:"videoId"`
	Rating  int    `json:"rating"`
}

type PromptShown struct {
	VideoID string `json:"videoId"`
}

// Heartbeat refreshes the open session's last-seen time.
type Heartbeat struct{}

func (PageLoad) SignalType() string            { return "page_load" }
func (PageUnload) SignalType() string          { return "page_unload" }
func (TabHidden) SignalType() string           { return "tab_hidden" }
func (TabVisible) SignalType() string          { return "tab_visible" }
func (VideoWatched) SignalType() string        { return "video_watched" }
func (Search) SignalType() string              { return "search" }
func (RecommendationClick) SignalType() string { return "recommendation_click" }
func (AutoplayPending) SignalType() string     { return "autoplay_pending" }
func (TabRemoved) SignalType() string          { return "tab_removed" }
func (RateVideo) SignalType() string           { return "rate_video" }
func (PromptShown) SignalType() string         { return "prompt_shown" }
func (Heartbeat) SignalType() string           { return "heartbeat" }

func (PageLoad) signal()            {}
func (PageUnload) signal()          {}
func (TabHidden) signal()           {}
func (TabVisible) signal()          {}
func (VideoWatched) signal()        {}
func (Search) signal()              {}
func (RecommendationClick) signal() {}
func (AutoplayPending) signal()     {}
func (TabRemoved) signal()          {}
func (RateVideo) signal()           {}
func (PromptShown) signal()         {}
func (Heartbeat) signal()           {}

// ObserverSignal reports whether s comes from page observation and
// should be dropped while tracking is disabled.
func ObserverSignal(s Signal) bool {
	switch s.(type) {
	case RateVideo:
		return false
	default:
		return true
	}
}

// ParseSignal parses raw JSON into the matching typed signal.
func ParseSignal(data []byte) (Signal, error) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse signal: %w", err)
	}

	if base.Type == "" {
		return nil, fmt.Errorf("missing signal type")
	}

	switch base.Type {
	case "page_load":
		return decodeSignal[PageLoad](data)
	case "page_unload":
		return decodeSignal[PageUnload](data)
	case "tab_hidden":
		return decodeSignal[TabHidden](data)
	case "tab_visible":
		return decodeSignal[TabVisible](data)
	case "video_watched":
		var s VideoWatched
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse video_watched signal: %w", err)
		}
		if s.VideoID == "" {
			return nil, fmt.Errorf("video_watched: missing videoId")
		}
		return s, nil
	case "search":
		return Search{}, nil
	case "recommendation_click":
		return RecommendationClick{}, nil
	case "autoplay_pending":
		return AutoplayPending{}, nil
	case "tab_removed":
		return decodeSignal[TabRemoved](data)
	case "rate_video":
		var s RateVideo
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse rate_video signal: %w", err)
		}
		if s.VideoID == "" {
			return nil, fmt.Errorf("rate_video: missing videoId")
		}
		if !ValidRating(s.Rating) {
			return nil, ErrInvalidRating
		}
		return s, nil
	case "prompt_shown":
		return decodeSignal[PromptShown](data)
	case "heartbeat":
		return Heartbeat{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSignal, base.Type)
	}
}

func decodeSignal[T Signal](data []byte) (Signal, error) {
	var s T
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s signal: %w", s.SignalType(), err)
	}
	return s, nil
}
