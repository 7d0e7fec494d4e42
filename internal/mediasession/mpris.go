package mediasession

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

const (
	mprisPath        = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	mprisRootIface   = "org.mpris.MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	mprisBusPrefix   = "org.mpris.MediaPlayer2."

	// seekedSlack is how far the reported position may drift from the
	// extrapolated one before a Seeked signal is emitted.
	seekedSlack = time.Second
)

// MPRIS exposes the session on the D-Bus session bus using the MPRIS 2
// interface, so desktop media keys and applets can control the player.
type MPRIS struct {
	handlers

	conn   *dbus.Conn
	props  *prop.Properties
	logger *slog.Logger

	mu       sync.Mutex
	status   PlaybackStatus
	trackID  dbus.ObjectPath
	lastPos  time.Duration
	lastAt   time.Time
	lastRate float64
}

// NewMPRIS connects to the session bus and claims
// org.mpris.MediaPlayer2.<name>.
func NewMPRIS(name string, logger *slog.Logger) (*MPRIS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	m := &MPRIS{
		conn:     conn,
		logger:   logger.With("component", "mpris"),
		status:   StatusNone,
		trackID:  noTrack,
		lastRate: 1,
	}

	if err := m.export(name); err != nil {
		conn.Close()
		return nil, err
	}
	return m, nil
}

func (m *MPRIS) export(name string) error {
	root := &mprisRoot{}
	player := &mprisPlayer{m: m}

	if err := m.conn.Export(root, mprisPath, mprisRootIface); err != nil {
		return fmt.Errorf("failed to export %s: %w", mprisRootIface, err)
	}
	if err := m.conn.Export(player, mprisPath, mprisPlayerIface); err != nil {
		return fmt.Errorf("failed to export %s: %w", mprisPlayerIface, err)
	}

	props, err := prop.Export(m.conn, mprisPath, prop.Map{
		mprisRootIface: {
			"CanQuit":             {Value: false, Emit: prop.EmitConst},
			"CanRaise":            {Value: false, Emit: prop.EmitConst},
			"HasTrackList":        {Value: false, Emit: prop.EmitConst},
			"Identity":            {Value: "encore", Emit: prop.EmitConst},
			"SupportedUriSchemes": {Value: []string{}, Emit: prop.EmitConst},
			"SupportedMimeTypes":  {Value: []string{"audio/mpeg"}, Emit: prop.EmitConst},
		},
		mprisPlayerIface: {
			"PlaybackStatus": {Value: "Stopped", Emit: prop.EmitTrue},
			"LoopStatus":     {Value: "Playlist", Emit: prop.EmitTrue},
			"Rate":           {Value: 1.0, Emit: prop.EmitTrue},
			"Shuffle":        {Value: false, Emit: prop.EmitTrue},
			"Metadata":       {Value: map[string]dbus.Variant{}, Emit: prop.EmitTrue},
			"Volume":         {Value: 1.0, Writable: true, Emit: prop.EmitTrue, Callback: m.volumeChanged},
			"Position":       {Value: int64(0), Emit: prop.EmitFalse},
			"MinimumRate":    {Value: 1.0, Emit: prop.EmitConst},
			"MaximumRate":    {Value: 1.0, Emit: prop.EmitConst},
			"CanGoNext":      {Value: true, Emit: prop.EmitTrue},
			"CanGoPrevious":  {Value: true, Emit: prop.EmitTrue},
			"CanPlay":        {Value: true, Emit: prop.EmitTrue},
			"CanPause":       {Value: true, Emit: prop.EmitTrue},
			"CanSeek":        {Value: true, Emit: prop.EmitTrue},
			"CanControl":     {Value: true, Emit: prop.EmitConst},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to export properties: %w", err)
	}
	m.props = props

	node := &introspect.Node{
		Name: string(mprisPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       mprisRootIface,
				Methods:    introspect.Methods(root),
				Properties: props.Introspection(mprisRootIface),
			},
			{
				Name:       mprisPlayerIface,
				Methods:    introspect.Methods(player),
				Properties: props.Introspection(mprisPlayerIface),
				Signals: []introspect.Signal{{
					Name: "Seeked",
					Args: []introspect.Arg{{Name: "Position", Type: "x"}},
				}},
			},
		},
	}
	if err := m.conn.Export(introspect.NewIntrospectable(node), mprisPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection: %w", err)
	}

	reply, err := m.conn.RequestName(mprisBusPrefix+name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", mprisBusPrefix+name)
	}
	return nil
}

func (m *MPRIS) SetMetadata(md *Metadata) {
	m.mu.Lock()
	m.trackID = trackPath(md)
	m.mu.Unlock()
	m.props.SetMust(mprisPlayerIface, "Metadata", metadataMap(md))
}

func (m *MPRIS) SetActionHandler(a Action, h Handler) {
	m.set(a, h)
}

// SetPositionState updates Position and emits Seeked when the new position
// is not where normal playback would have put it.
func (m *MPRIS) SetPositionState(ps PositionState) {
	now := time.Now()
	rate := ps.PlaybackRate
	if rate == 0 {
		rate = 1
	}

	m.mu.Lock()
	expected := m.lastPos
	if m.status == StatusPlaying {
		expected += time.Duration(float64(now.Sub(m.lastAt)) * m.lastRate)
	}
	jumped := absDuration(ps.Position-expected) > seekedSlack
	m.lastPos, m.lastAt, m.lastRate = ps.Position, now, rate
	m.mu.Unlock()

	m.props.SetMust(mprisPlayerIface, "Rate", rate)
	m.props.SetMust(mprisPlayerIface, "Position", ps.Position.Microseconds())
	if jumped {
		if err := m.conn.Emit(mprisPath, mprisPlayerIface+".Seeked", ps.Position.Microseconds()); err != nil {
			m.logger.Debug("failed to emit Seeked", "error", err)
		}
	}
}

// SetVolume publishes the player's volume.
func (m *MPRIS) SetVolume(v float64) {
	m.props.SetMust(mprisPlayerIface, "Volume", v)
}

// volumeChanged handles a client writing Volume. Properties holds its lock
// while callbacks run, so the handler, which publishes the clamped volume
// back through SetVolume, runs on its own goroutine.
func (m *MPRIS) volumeChanged(c *prop.Change) *dbus.Error {
	v, ok := c.Value.(float64)
	if !ok {
		return prop.ErrInvalidArg
	}
	go m.dispatch(ActionDetails{Action: ActionSetVolume, Volume: max(0, min(v, 1))})
	return nil
}

func (m *MPRIS) SetPlaybackState(status PlaybackStatus) {
	m.mu.Lock()
	m.status = status
	m.lastAt = time.Now()
	m.mu.Unlock()
	m.props.SetMust(mprisPlayerIface, "PlaybackStatus", mprisStatus(status))
}

// Close releases the bus name and the connection.
func (m *MPRIS) Close() error {
	return m.conn.Close()
}

func (m *MPRIS) dispatch(d ActionDetails) *dbus.Error {
	if !m.invoke(d) {
		m.logger.Debug("no handler for media action", "action", d.Action)
	}
	return nil
}

// mprisRoot implements org.mpris.MediaPlayer2.
type mprisRoot struct{}

func (mprisRoot) Raise() *dbus.Error { return nil }
func (mprisRoot) Quit() *dbus.Error  { return nil }

// mprisPlayer implements org.mpris.MediaPlayer2.Player.
type mprisPlayer struct {
	m *MPRIS
}

func (p *mprisPlayer) Next() *dbus.Error {
	return p.m.dispatch(ActionDetails{Action: ActionNextTrack})
}

func (p *mprisPlayer) Previous() *dbus.Error {
	return p.m.dispatch(ActionDetails{Action: ActionPreviousTrack})
}

func (p *mprisPlayer) Pause() *dbus.Error {
	return p.m.dispatch(ActionDetails{Action: ActionPause})
}

func (p *mprisPlayer) Stop() *dbus.Error {
	return p.m.dispatch(ActionDetails{Action: ActionPause})
}

func (p *mprisPlayer) Play() *dbus.Error {
	return p.m.dispatch(ActionDetails{Action: ActionPlay})
}

func (p *mprisPlayer) PlayPause() *dbus.Error {
	p.m.mu.Lock()
	playing := p.m.status == StatusPlaying
	p.m.mu.Unlock()
	if playing {
		return p.Pause()
	}
	return p.Play()
}

// Seek moves by offset microseconds. A zero offset does nothing.
func (p *mprisPlayer) Seek(offset int64) *dbus.Error {
	d := time.Duration(offset) * time.Microsecond
	switch {
	case d == 0:
		return nil
	case d < 0:
		return p.m.dispatch(ActionDetails{Action: ActionSeekBackward, SeekOffset: -d})
	default:
		return p.m.dispatch(ActionDetails{Action: ActionSeekForward, SeekOffset: d})
	}
}

// SetPosition seeks to position microseconds if trackID is still current.
func (p *mprisPlayer) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	p.m.mu.Lock()
	current := p.m.trackID
	p.m.mu.Unlock()
	if trackID != current {
		return nil
	}
	return p.m.dispatch(ActionDetails{Action: ActionSeekTo, SeekTime: time.Duration(position) * time.Microsecond})
}

func (p *mprisPlayer) OpenUri(string) *dbus.Error { return nil }

const noTrack = dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")

// trackPath builds a valid object path for the song. Object path elements
// may only contain [A-Za-z0-9_].
func trackPath(md *Metadata) dbus.ObjectPath {
	if md == nil || md.TrackID == "" {
		return noTrack
	}
	var b strings.Builder
	for _, r := range md.TrackID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return dbus.ObjectPath("/org/encore/track/" + b.String())
}

func metadataMap(md *Metadata) map[string]dbus.Variant {
	out := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackPath(md)),
	}
	if md == nil {
		return out
	}
	out["xesam:title"] = dbus.MakeVariant(md.Title)
	out["xesam:album"] = dbus.MakeVariant(md.Album)
	if md.Artist != "" {
		out["xesam:artist"] = dbus.MakeVariant([]string{md.Artist})
	}
	if md.Length > 0 {
		out["mpris:length"] = dbus.MakeVariant(md.Length.Microseconds())
	}
	if n := len(md.Artwork); n > 0 {
		out["mpris:artUrl"] = dbus.MakeVariant(md.Artwork[n-1].Src)
	}
	return out
}

func mprisStatus(s PlaybackStatus) string {
	switch s {
	case StatusPlaying:
		return "Playing"
	case StatusPaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
