package core

import "time"

// PlaybackState represents the current playback state.
type PlaybackState struct {
	CurrentSong *Song         `json:"current_song"`
	IsPlaying   bool          `json:"is_playing"`
	Volume      float64       `json:"volume"`
	CurrentTime time.Duration `json:"current_time"`
	Duration    time.Duration `json:"duration"`
	Offline     bool          `json:"offline"`
	FromCache   bool          `json:"from_cache"`
}

// HasSong returns true if there is a current song.
func (s *PlaybackState) HasSong() bool {
	return s != nil && s.CurrentSong != nil
}

// ProgressPercent returns playback progress as a percentage (0-100).
func (s *PlaybackState) ProgressPercent() float64 {
	if s == nil || s.Duration <= 0 {
		return 0
	}
	return float64(s.CurrentTime) / float64(s.Duration) * 100
}
