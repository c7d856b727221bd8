package player

// MediaType selects which media backend is authoritative for the session.
type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
	MediaTimer MediaType = "timer"
)

func (m MediaType) Valid() bool {
	return m == MediaVideo || m == MediaAudio || m == MediaTimer
}

// Preferences are the user-scoped fields that outlive individual playback
// sessions. They are persisted to durable storage and restored at startup.
type Preferences struct {
	Volume       float64 `json:"volume"`
	PlaybackRate float64 `json:"playback_rate"`
	Muted        bool    `json:"muted"`
}

func DefaultPreferences() Preferences {
	return Preferences{Volume: 1, PlaybackRate: 1, Muted: false}
}

// ContentData is the backend-specific payload for the loaded item.
type ContentData struct {
	ID              string  `json:"id,omitempty"`
	Title           string  `json:"title,omitempty"`
	Description     string  `json:"description,omitempty"`
	EmbedID         string  `json:"embed_id,omitempty"`
	FileURL         string  `json:"file_url,omitempty"`
	ThumbnailURL    string  `json:"thumbnail_url,omitempty"`
	BackgroundURL   string  `json:"background_url,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// State is the single shared playback session. All writes go through the
// Coordinator's operations so clamping and reset rules always hold.
type State struct {
	Playing         bool         `json:"playing"`
	Volume          float64      `json:"volume"`
	Muted           bool         `json:"muted"`
	CurrentTime     float64      `json:"current_time"`
	Duration        float64      `json:"duration"`
	PlaybackRate    float64      `json:"playback_rate"`
	Fullscreen      bool         `json:"fullscreen"`
	DisplayControls bool         `json:"display_controls"`
	ActiveType      MediaType    `json:"active_type,omitempty"`
	ContentID       string       `json:"content_id,omitempty"`
	Content         *ContentData `json:"content,omitempty"`
	BackgroundImage string       `json:"background_image,omitempty"`
}

func initialState(prefs Preferences) State {
	return State{
		Volume:          prefs.Volume,
		Muted:           prefs.Muted,
		PlaybackRate:    prefs.PlaybackRate,
		DisplayControls: true,
	}
}

// Preferences extracts the durable fields from the session state.
func (s State) Preferences() Preferences {
	return Preferences{Volume: s.Volume, PlaybackRate: s.PlaybackRate, Muted: s.Muted}
}
