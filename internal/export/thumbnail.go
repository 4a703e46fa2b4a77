package export

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/linuxmatters/jivewave/internal/audio"
	"github.com/linuxmatters/jivewave/internal/config"
	"github.com/linuxmatters/jivewave/internal/effects"
	"github.com/linuxmatters/jivewave/internal/renderer"
)

// thumbnailText is the colour of the title on thumbnails
var thumbnailText = config.MustRGB("#FFFFFF")

// Thumbnail renders the frame at the middle of the song, exactly as the export
// would, and overlays the song title. It does not touch the export job.
func (p *Pipeline) Thumbnail(ctx context.Context, req Request) (*image.RGBA, error) {
	if req.Song.Audio == "" {
		return nil, ErrNoAudio
	}
	log := p.logger(req)

	track, err := p.Audio.Load(ctx, req.Song.Audio)
	if err == nil && track.NumSamples() == 0 {
		err = audio.ErrNoSamples
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudioDecode, err)
	}

	sampler := audio.NewOfflineSampler(track.FirstChannel(), track.SampleRate, p.FPS, config.BinCount)
	i := sampler.FrameCount() / 2
	t := time.Duration(i) * time.Second / time.Duration(p.FPS)

	scene, bg := p.loadAssets(ctx, log, req)
	frame := renderer.NewFrame(p.Width, p.Height)
	defer renderer.ReleaseFrame(frame)

	scene.Draw(frame, renderer.FrameInput{
		Settings:  p.Store.Load(),
		Snapshot:  sampler.Snapshot(audio.FrameContext{Index: i, Time: t}),
		Time:      t,
		Backdrop:  bg.Frame(ctx, t, p.Width, p.Height),
		Seed:      req.Seed,
		FrameSeed: renderer.FrameSeed(req.Seed, i),
		Mode:      effects.ModeExport,
	})

	log.WithField("frame", i).Debug("Thumbnail frame rendered")
	return renderer.Thumbnail(frame, req.Song.Title, scene.Fonts(), thumbnailText), nil
}
