package events

// NoNextTrack is published when playback would run off the end of the playlist.
type NoNextTrack struct{}

func (NoNextTrack) Topic() Topic { return TrackNoNextTrack }

// Paused is published when playback is paused or resumed.
type Paused struct {
	Paused bool
}

func (Paused) Topic() Topic { return VoicePause }

// Stopped is published when playback is stopped for good (queue dropped,
// voice channel left).
type Stopped struct{}

func (Stopped) Topic() Topic { return VoiceStop }

// VolumeChanged is published when the session volume changes.
type VolumeChanged struct {
	Percent int
}

func (VolumeChanged) Topic() Topic { return VoiceVolume }
