package playback

import (
	"context"
	"time"

	"github.com/tessro/encore/internal/core"
	"github.com/tessro/encore/internal/mediasession"
)

// announce pushes a newly loaded song to the media session and subscribers.
func (e *Engine) announce(st core.PlaybackState) {
	e.session.SetMetadata(metadataFor(st.CurrentSong))
	e.registerHandlers()
	e.session.SetPlaybackState(statusOf(st))
	e.session.SetVolume(st.Volume)
	e.publishPosition(st)
	e.publish(st)
}

func (e *Engine) publishPosition(st core.PlaybackState) {
	if st.CurrentSong == nil || st.Duration <= 0 {
		return
	}
	e.session.SetPositionState(mediasession.PositionState{
		Duration:     st.Duration,
		PlaybackRate: 1,
		Position:     min(st.CurrentTime, st.Duration),
	})
}

func (e *Engine) registerHandlers() {
	ctx := context.Background()
	e.session.SetActionHandler(mediasession.ActionPlay, func(mediasession.ActionDetails) {
		_ = e.Play(ctx)
	})
	e.session.SetActionHandler(mediasession.ActionPause, func(mediasession.ActionDetails) {
		_ = e.Pause(ctx)
	})
	e.session.SetActionHandler(mediasession.ActionPreviousTrack, func(mediasession.ActionDetails) {
		_ = e.Previous(ctx)
	})
	e.session.SetActionHandler(mediasession.ActionNextTrack, func(mediasession.ActionDetails) {
		_ = e.Next(ctx)
	})
	e.session.SetActionHandler(mediasession.ActionSeekTo, func(d mediasession.ActionDetails) {
		_ = e.SeekTo(ctx, d.SeekTime)
	})
	e.session.SetActionHandler(mediasession.ActionSeekBackward, func(d mediasession.ActionDetails) {
		_ = e.SeekBy(ctx, -e.offsetOrStep(d))
	})
	e.session.SetActionHandler(mediasession.ActionSeekForward, func(d mediasession.ActionDetails) {
		_ = e.SeekBy(ctx, e.offsetOrStep(d))
	})
	e.session.SetActionHandler(mediasession.ActionSetVolume, func(d mediasession.ActionDetails) {
		_ = e.SetVolume(ctx, d.Volume)
	})
}

func (e *Engine) offsetOrStep(d mediasession.ActionDetails) time.Duration {
	if d.SeekOffset > 0 {
		return d.SeekOffset
	}
	return e.seekStep
}

func metadataFor(song *core.Song) *mediasession.Metadata {
	if song == nil {
		return nil
	}
	md := &mediasession.Metadata{
		TrackID: song.ID,
		Title:   song.Name,
		Artist:  song.ArtistNames(),
		Album:   song.Album.Name,
		Length:  song.Length(),
	}
	for _, img := range song.Image {
		md.Artwork = append(md.Artwork, mediasession.Artwork{
			Src:   img.URL,
			Sizes: img.Quality,
			Type:  "image/jpeg",
		})
	}
	return md
}
