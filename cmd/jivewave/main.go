package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/linuxmatters/jivewave/internal/cli"
	"github.com/linuxmatters/jivewave/internal/config"
	"github.com/linuxmatters/jivewave/internal/encoder"
	"github.com/linuxmatters/jivewave/internal/export"
	"github.com/linuxmatters/jivewave/internal/live"
	"github.com/linuxmatters/jivewave/internal/renderer"
	"github.com/linuxmatters/jivewave/internal/ui"
)

// version is set via ldflags at build time
// Local dev builds: "dev"
// Release builds: git tag (e.g. "v0.1.0")
var version = "dev"

// versionFlag prints the styled version and exits
type versionFlag bool

func (versionFlag) BeforeReset(app *kong.Kong, vars kong.Vars) error {
	cli.PrintVersion(vars["version"])
	app.Exit(0)
	return nil
}

// Globals are the flags shared by every command
type Globals struct {
	Version versionFlag `help:"Show version information"`
	Verbose bool        `help:"Log debug output" short:"v"`
	LogFile string      `help:"Log file used while the terminal UI is running" default:"jivewave.log" type:"path"`
}

// SessionFlags pick the song and look. Flags override the session file.
type SessionFlags struct {
	Session    string   `arg:"" name:"session" help:"Session YAML file" optional:"" type:"path"`
	Audio      string   `help:"Audio file or http(s) URL" short:"a"`
	Title      string   `help:"Song title" short:"t"`
	Cover      string   `help:"Album art image file or URL"`
	Background string   `help:"Background image or video file or URL"`
	Preset     string   `help:"Visualiser preset (radial, spectrum, mirror, ellipses, arcs, hexagon, oscilloscope, rain, shockwave, minimal)" short:"p"`
	Effect     []string `help:"Enable an effect (repeatable)" short:"e"`
	Seed       int64    `help:"Seed for particles and effects"`
}

// load reads the session file, if any, and applies the flags
func (f *SessionFlags) load() (*config.Session, error) {
	sess := config.DefaultSession()
	if f.Session != "" {
		loaded, err := config.LoadSession(f.Session)
		if err != nil {
			return nil, err
		}
		sess = loaded
	}

	if f.Audio != "" {
		sess.Song.Audio = f.Audio
	}
	if f.Title != "" {
		sess.Song.Title = f.Title
	}
	if f.Cover != "" {
		sess.Song.Cover = f.Cover
	}
	if f.Background != "" {
		sess.Background = config.BackgroundSelector{Kind: backgroundKind(f.Background), Locator: f.Background}
	}
	if f.Preset != "" {
		p, err := config.ParsePreset(f.Preset)
		if err != nil {
			return nil, err
		}
		sess.Visualizer.Preset = p
	}
	if len(f.Effect) > 0 && sess.Effects == nil {
		sess.Effects = make(map[string]config.Effect)
	}
	for _, name := range f.Effect {
		kind, err := config.ParseEffectKind(name)
		if err != nil {
			return nil, err
		}
		fx := sess.Effects[kind.String()]
		fx.Enabled = true
		if fx.Intensity == 0 {
			fx.Intensity = 0.5
		}
		sess.Effects[kind.String()] = fx
	}
	if f.Seed != 0 {
		sess.Seed = f.Seed
	}
	if sess.Song.Title == "" && sess.Song.Audio != "" {
		base := filepath.Base(sess.Song.Audio)
		sess.Song.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return sess, nil
}

func (f *SessionFlags) request(sess *config.Session) export.Request {
	bg := sess.Background
	bg.Locator = sess.Resolve(bg.Locator)
	return export.Request{
		Song:        sess.ResolvedSong(),
		Background:  bg,
		CenterImage: sess.Resolve(sess.CenterImage),
		Seed:        sess.Seed,
	}
}

// summary describes the session for PrintSession
func summary(sess *config.Session, req export.Request) cli.SessionInfo {
	st := sess.Settings()
	var enabled []string
	for i, fx := range st.Effects {
		if fx.Enabled {
			enabled = append(enabled, config.EffectKind(i).String())
		}
	}
	return cli.SessionInfo{
		Song:       req.Song.Title,
		Preset:     st.Visualizer.Preset.String(),
		Effects:    enabled,
		Background: req.Background.Locator,
	}
}

// backgroundKind guesses the background kind from a locator's extension
func backgroundKind(locator string) config.BackgroundKind {
	switch strings.ToLower(filepath.Ext(locator)) {
	case ".mp4", ".webm", ".mov", ".mkv", ".m4v", ".avi":
		return config.BackgroundVideo
	default:
		return config.BackgroundImage
	}
}

// ExportCmd renders the song to an MP4
type ExportCmd struct {
	SessionFlags
	Output    string `help:"Output MP4 file (default: derived from the title)" short:"o" type:"path"`
	HWAccel   string `name:"hwaccel" help:"Video encoder: none, auto, nvenc, qsv, vaapi, vulkan or videotoolbox" default:"none"`
	NoPreview bool   `help:"Disable the frame preview during export"`
}

// PreviewCmd plays the song with the live visualiser in the terminal
type PreviewCmd struct {
	SessionFlags
}

// ThumbnailCmd renders a titled still from the middle of the song
type ThumbnailCmd struct {
	SessionFlags
	Output string `help:"Output PNG file (default: derived from the title)" short:"o" type:"path"`
}

var CLI struct {
	Globals

	Export    ExportCmd    `cmd:"" help:"Render the song to a synchronised MP4."`
	Preview   PreviewCmd   `cmd:"" help:"Play the song with the live visualiser."`
	Thumbnail ThumbnailCmd `cmd:"" help:"Render a titled PNG thumbnail."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("jivewave"),
		kong.Description(cli.Tagline),
		kong.Vars{"version": version},
		kong.UsageOnError(),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if err := ctx.Run(&CLI.Globals); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// setupLogging sends logrus to the log file while a TUI owns the terminal
func setupLogging(g *Globals, tui bool) func() {
	logrus.SetLevel(logrus.WarnLevel)
	if g.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if !tui {
		return func() {}
	}
	f, err := os.OpenFile(g.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		cli.PrintWarning(fmt.Sprintf("cannot open log file: %v", err))
		logrus.SetLevel(logrus.PanicLevel)
		return func() {}
	}
	logrus.SetOutput(f)
	return func() {
		logrus.SetOutput(os.Stderr)
		f.Close()
	}
}

// Run exports the song
func (c *ExportCmd) Run(g *Globals) error {
	sess, err := c.load()
	if err != nil {
		return err
	}
	req := c.request(sess)
	if req.Song.Audio == "" {
		return fmt.Errorf("%w: pass --audio or a session with song.audio", export.ErrNoAudio)
	}

	hwType, err := encoder.ParseHWAccel(c.HWAccel)
	if err != nil {
		return err
	}

	output := c.Output
	if output == "" {
		output = export.FileName(req.Song.Title)
	}

	cli.PrintBanner()
	cli.PrintSession(summary(sess, req))

	closeLog := setupLogging(g, true)
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hw := encoder.SelectBestEncoder(ctx, hwType, nil)
	encoderName := config.VideoCodec
	if hw != nil {
		encoderName = hw.Name
	}

	pipeline := export.NewPipeline(config.NewStore(sess.Settings()), export.FFmpegEncoders(hw))
	if !c.NoPreview {
		pipeline.PreviewEvery = 6
	}

	model := ui.NewExportModel(ui.ExportInfo{
		Title:   req.Song.Title,
		Width:   pipeline.Width,
		Height:  pipeline.Height,
		FPS:     pipeline.FPS,
		Encoder: encoderName,
	}, cancel, c.NoPreview)
	p := tea.NewProgram(model)
	pipeline.OnStatus = func(st export.Status) { p.Send(ui.StatusMsg(st)) }

	var exportErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := pipeline.Export(ctx, req)
		if err != nil {
			// The failure status already told the UI to quit
			exportErr = err
			return
		}
		if err := os.WriteFile(output, res.Data, 0o644); err != nil {
			exportErr = fmt.Errorf("failed to write %s: %w", output, err)
			p.Quit()
			return
		}
		p.Send(ui.CompleteMsg{
			OutputFile: output,
			Size:       int64(len(res.Data)),
			Frames:     res.Frames,
			Elapsed:    res.Elapsed,
			Encoder:    encoderName,
		})
	}()

	_, runErr := p.Run()
	// An early quit stops the pipeline between frames
	cancel()
	<-done

	if runErr != nil {
		return fmt.Errorf("running UI: %w", runErr)
	}
	if exportErr != nil {
		return fmt.Errorf("during export: %w", exportErr)
	}
	return nil
}

// Run plays the song in the terminal
func (c *PreviewCmd) Run(g *Globals) error {
	sess, err := c.load()
	if err != nil {
		return err
	}
	req := c.request(sess)
	if req.Song.Audio == "" {
		return fmt.Errorf("%w: pass --audio or a session with song.audio", export.ErrNoAudio)
	}

	closeLog := setupLogging(g, true)
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := config.NewStore(sess.Settings())
	surface := ui.NewTerminalSurface(ui.DefaultPreviewConfig())
	loop := live.New(store, surface)
	loop.Seed = req.Seed
	// The terminal shows a small grid, a quarter-size frame is plenty
	loop.Width, loop.Height = config.PreviewWidth/2, config.PreviewHeight/2

	bg, err := renderer.LoadBackground(ctx, req.Background)
	if err != nil {
		logrus.WithError(err).Warn("Background unavailable, drawing without it")
	}
	loop.Background = bg

	song := req.Song
	if req.CenterImage != "" {
		song.Cover = req.CenterImage
	}
	cli.PrintBanner()
	cli.PrintSession(summary(sess, req))
	cli.PrintInfo("Loading", song.Audio)
	if err := loop.Load(ctx, song); err != nil {
		return err
	}
	defer loop.Stop()

	go func() {
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			logrus.WithError(err).Error("Preview loop stopped")
		}
	}()

	model := ui.NewPreviewModel(store, loop, surface, song.Title)
	if c.Session != "" {
		model.Save = func(st *config.Settings) error {
			sess.Capture(st)
			return sess.Save(c.Session)
		}
	}

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// Run writes the thumbnail
func (c *ThumbnailCmd) Run(g *Globals) error {
	setupLogging(g, false)

	sess, err := c.load()
	if err != nil {
		return err
	}
	req := c.request(sess)

	output := c.Output
	if output == "" {
		output = strings.TrimSuffix(export.FileName(req.Song.Title), ".mp4") + ".png"
	}

	cli.PrintBanner()
	cli.PrintSession(summary(sess, req))
	start := time.Now()
	pipeline := export.NewPipeline(config.NewStore(sess.Settings()), nil)
	img, err := pipeline.Thumbnail(context.Background(), req)
	if err != nil {
		return err
	}
	if err := renderer.SaveThumbnail(img, output); err != nil {
		return err
	}
	cli.PrintSuccess(fmt.Sprintf("Thumbnail: %s (%s)", output, cli.FormatDuration(time.Since(start))))
	return nil
}
