package mediasession

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	apperrors "github.com/tessro/encore/internal/errors"
)

// RemoteStatus is a running player's state as read over MPRIS.
type RemoteStatus struct {
	Status   PlaybackStatus
	TrackID  dbus.ObjectPath
	Title    string
	Artist   string
	Album    string
	Length   time.Duration
	Position time.Duration
	Volume   float64
}

// HasTrack reports whether the player has a song loaded.
func (s RemoteStatus) HasTrack() bool {
	return s.TrackID != "" && s.TrackID != noTrack
}

// Remote controls a player running in another process through the MPRIS
// interface it exports.
type Remote struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// DialRemote connects to the player that owns org.mpris.MediaPlayer2.<name>.
// It fails with ErrPlayerNotRunning when no process owns the name.
func DialRemote(name string) (*Remote, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w: %w", apperrors.ErrPlayerNotRunning, err)
	}

	dest := mprisBusPrefix + name
	var owned bool
	if err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, dest).Store(&owned); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to look up %s: %w", dest, err)
	}
	if !owned {
		conn.Close()
		return nil, apperrors.ErrPlayerNotRunning
	}
	return &Remote{conn: conn, obj: conn.Object(dest, mprisPath)}, nil
}

func (r *Remote) call(ctx context.Context, method string, args ...any) error {
	if call := r.obj.CallWithContext(ctx, mprisPlayerIface+"."+method, 0, args...); call.Err != nil {
		return fmt.Errorf("%s failed: %w", method, call.Err)
	}
	return nil
}

func (r *Remote) Play(ctx context.Context) error     { return r.call(ctx, "Play") }
func (r *Remote) Pause(ctx context.Context) error    { return r.call(ctx, "Pause") }
func (r *Remote) Next(ctx context.Context) error     { return r.call(ctx, "Next") }
func (r *Remote) Previous(ctx context.Context) error { return r.call(ctx, "Previous") }

// Restart seeks the current song back to the start.
func (r *Remote) Restart(ctx context.Context) error {
	st, err := r.Status(ctx)
	if err != nil {
		return err
	}
	if !st.HasTrack() {
		return apperrors.ErrQueueEmpty
	}
	return r.call(ctx, "SetPosition", st.TrackID, int64(0))
}

// SetVolume writes the player's volume, from 0 to 1.
func (r *Remote) SetVolume(ctx context.Context, v float64) error {
	call := r.obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Set", 0,
		mprisPlayerIface, "Volume", dbus.MakeVariant(v))
	if call.Err != nil {
		return fmt.Errorf("failed to set volume: %w", call.Err)
	}
	return nil
}

// Status reads the player's properties.
func (r *Remote) Status(ctx context.Context) (RemoteStatus, error) {
	var props map[string]dbus.Variant
	call := r.obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.GetAll", 0, mprisPlayerIface)
	if err := call.Store(&props); err != nil {
		return RemoteStatus{}, fmt.Errorf("failed to read player status: %w", err)
	}
	return parseRemoteStatus(props), nil
}

// Close releases the bus connection.
func (r *Remote) Close() error {
	return r.conn.Close()
}

func parseRemoteStatus(props map[string]dbus.Variant) RemoteStatus {
	st := RemoteStatus{Status: StatusNone, TrackID: noTrack}
	if v, ok := props["PlaybackStatus"].Value().(string); ok {
		st.Status = statusFromMPRIS(v)
	}
	if v, ok := props["Position"].Value().(int64); ok {
		st.Position = time.Duration(v) * time.Microsecond
	}
	if v, ok := props["Volume"].Value().(float64); ok {
		st.Volume = v
	}

	md, _ := props["Metadata"].Value().(map[string]dbus.Variant)
	if v, ok := md["mpris:trackid"].Value().(dbus.ObjectPath); ok {
		st.TrackID = v
	}
	st.Title, _ = md["xesam:title"].Value().(string)
	st.Album, _ = md["xesam:album"].Value().(string)
	if v, ok := md["xesam:artist"].Value().([]string); ok {
		st.Artist = strings.Join(v, ", ")
	}
	if v, ok := md["mpris:length"].Value().(int64); ok {
		st.Length = time.Duration(v) * time.Microsecond
	}
	return st
}

func statusFromMPRIS(s string) PlaybackStatus {
	switch s {
	case "Playing":
		return StatusPlaying
	case "Paused":
		return StatusPaused
	default:
		return StatusNone
	}
}
