// Package plugin maps the entry points of an emulator graphics plugin onto
// a gfxplugin session.
//
// The host calls Initiate once with its memory and register pointers, then
// OpenROM and CloseROM around each emulation run. Between them it reports
// display lists, asks for frames and toggles fullscreen. Plugin loads the
// persisted settings, sizes RDRAM, builds the renderer and owns the session.
//
//	p := plugin.New()
//	if err := p.Initiate(plugin.GfxInfo{RDRAM: rdram, VI: &vi, Window: hwnd}); err != nil {
//	    return err
//	}
//	if err := p.OpenROM(); err != nil {
//	    return err
//	}
//	defer p.CloseROM()
//
//	p.ProcessRDPList()
//	p.UpdateScreen()
package plugin

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gfxplugin"
	"github.com/gogpu/gfxplugin/config"
	"github.com/gogpu/gfxplugin/display"
	"github.com/gogpu/gfxplugin/render"

	// GPU output is preferred when a HAL backend can open a device;
	// otherwise sessions fall back to headless.
	_ "github.com/gogpu/gfxplugin/display/halbackend"
	_ "github.com/gogpu/wgpu/hal/allbackends"
)

// Plugin interface version reported to the host.
const InterfaceVersion = 0x0103

// TypeGFX identifies a graphics plugin.
const TypeGFX = 2

// baseName prefixes the plugin name reported by Info.
const baseName = "gfxplugin"

// Plugin errors.
var (
	// ErrNotInitiated is returned by OpenROM before a successful Initiate.
	ErrNotInitiated = errors.New("plugin: not initiated")

	// ErrInvalidGfxInfo is returned by Initiate for missing host pointers.
	ErrInvalidGfxInfo = errors.New("plugin: invalid graphics info")

	// ErrNoROM is returned by frame calls while no ROM is open.
	ErrNoROM = errors.New("plugin: no ROM open")
)

// Info describes the plugin to the host.
type Info struct {
	Version uint16
	Type    uint16
	Name    string

	// NormalMemory and MemoryBswaped tell the host which RDRAM layouts the
	// plugin accepts.
	NormalMemory  bool
	MemoryBswaped bool
}

// GfxInfo carries the host resources handed over at Initiate.
type GfxInfo struct {
	// RDRAM is the emulated main memory in word-swapped layout.
	RDRAM []byte

	// VI points at the live video interface registers. They are captured
	// when a frame is shown.
	VI *[render.NumVIRegisters]uint32

	// Display and Window are native handles of the output window. Zero
	// Window renders offscreen.
	Display, Window uintptr

	// Monitor reports the fullscreen resolution. Optional.
	Monitor display.Monitor

	// Memory sizes RDRAM. Defaults to the length of RDRAM.
	Memory gfxplugin.MemorySizer
}

// RendererFactory builds the renderer for a ROM over the usable RDRAM.
type RendererFactory func(rdram []byte) render.Renderer

// Option configures a Plugin.
type Option func(*Plugin)

// WithStore sets where settings are loaded from and saved to. A nil store
// keeps settings in memory only.
func WithStore(s *config.Store) Option {
	return func(p *Plugin) {
		p.store = s
		p.storeSet = true
	}
}

// WithRendererFactory replaces the software renderer.
func WithRendererFactory(f RendererFactory) Option {
	return func(p *Plugin) { p.newRenderer = f }
}

// WithSessionOptions appends options to every session the plugin begins.
func WithSessionOptions(opts ...gfxplugin.SessionOption) Option {
	return func(p *Plugin) { p.sessionOpts = append(p.sessionOpts, opts...) }
}

// Plugin is the host-facing graphics plugin.
//
// Plugin is safe for concurrent use, although hosts normally call it from a
// single emulation thread.
type Plugin struct {
	store       *config.Store
	storeSet    bool
	newRenderer RendererFactory
	sessionOpts []gfxplugin.SessionOption

	mu        sync.Mutex
	initiated bool
	gfx       GfxInfo
	memory    gfxplugin.MemorySize
	settings  config.Settings
	session   *gfxplugin.Session

	hleWarned atomic.Bool
}

// New creates a plugin. Without WithStore, settings persist in the user
// configuration directory.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		newRenderer: func(rdram []byte) render.Renderer { return render.NewSoftware(rdram) },
		settings:    config.Defaults(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if !p.storeSet {
		if path, err := config.DefaultPath(); err == nil {
			p.store = config.NewStore(nil, path)
		} else {
			gfxplugin.Logger().Warn("plugin: settings will not persist", "err", err)
		}
	}
	return p
}

// Info returns the plugin description. The name carries the VCS revision
// the binary was built from.
func (p *Plugin) Info() Info {
	return Info{
		Version:       InterfaceVersion,
		Type:          TypeGFX,
		Name:          Name(),
		NormalMemory:  true,
		MemoryBswaped: true,
	}
}

// Name returns "gfxplugin rev.<revision>", using the first seven characters
// of the VCS revision, or "dev" when the build carries none.
func Name() string {
	rev := "dev"
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				rev = s.Value
				if len(rev) > 7 {
					rev = rev[:7]
				}
				break
			}
		}
	}
	return baseName + " rev." + rev
}

// Initiate records the host resources, sizes RDRAM and loads settings.
func (p *Plugin) Initiate(gi GfxInfo) error {
	if len(gi.RDRAM) == 0 || gi.VI == nil {
		return ErrInvalidGfxInfo
	}
	sizer := gi.Memory
	if sizer == nil {
		sizer = gfxplugin.SliceMemorySizer(gi.RDRAM)
	}
	mem := sizer.MemorySize()
	if int(mem) > len(gi.RDRAM) {
		return fmt.Errorf("%w: %s reported for %d bytes of RDRAM", ErrInvalidGfxInfo, mem, len(gi.RDRAM))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.gfx = gi
	p.memory = mem
	p.initiated = true
	p.loadSettingsLocked()

	gfxplugin.Logger().Info("plugin: initiated", "rdram", mem.String(), "window", gi.Window != 0)
	return nil
}

// loadSettingsLocked reads settings from the store. Unreadable or invalid
// files fall back to normalized values. Caller must hold p.mu.
func (p *Plugin) loadSettingsLocked() {
	if p.store == nil {
		return
	}
	s, err := p.store.Load()
	if err != nil {
		gfxplugin.Logger().Warn("plugin: load settings", "path", p.store.Path(), "err", err)
	}
	p.settings = s.Normalize()
}

// OpenROM begins a session for a new ROM with the current settings. A
// session still open from a previous ROM is ended first.
func (p *Plugin) OpenROM() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initiated {
		return ErrNotInitiated
	}
	if p.session != nil {
		p.session.EndSession()
		p.session = nil
	}

	cfg := p.settings.Session()
	cfg.Display, cfg.Window = p.gfx.Display, p.gfx.Window

	opts := []gfxplugin.SessionOption{
		gfxplugin.WithRenderer(p.newRenderer(p.gfx.RDRAM[:p.memory])),
		gfxplugin.WithSettings(p.settings.Render()),
	}
	if p.gfx.Monitor != nil {
		opts = append(opts, gfxplugin.WithMonitor(p.gfx.Monitor))
	}
	opts = append(opts, p.sessionOpts...)

	s, err := gfxplugin.BeginSession(cfg, opts...)
	if err != nil {
		return err
	}
	p.session = s
	return nil
}

// current returns the open session.
func (p *Plugin) current() (*gfxplugin.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil, ErrNoROM
	}
	return p.session, nil
}

// registers returns the live VI registers handed over at Initiate.
func (p *Plugin) registers() *[render.NumVIRegisters]uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gfx.VI
}

// ProcessRDPList queues the current display list for the renderer.
func (p *Plugin) ProcessRDPList() error {
	s, err := p.current()
	if err != nil {
		return err
	}
	return s.ProcessDisplayList()
}

// ProcessDList is the high-level display list entry point. The renderer is
// low-level only, so the list is ignored with a single warning.
func (p *Plugin) ProcessDList() {
	if !p.hleWarned.Swap(true) {
		gfxplugin.Logger().Warn("plugin: high-level display lists are not supported; enable low-level RSP emulation")
	}
}

// ShowCFB captures the VI registers and presents the frame they describe.
func (p *Plugin) ShowCFB() error {
	s, err := p.current()
	if err != nil {
		return err
	}
	return s.PresentFrame(render.Capture(p.registers()))
}

// UpdateScreen is called by the host on vertical interrupt.
func (p *Plugin) UpdateScreen() error {
	return p.ShowCFB()
}

// ChangeWindow toggles between windowed and fullscreen output.
func (p *Plugin) ChangeWindow() error {
	s, err := p.current()
	if err != nil {
		return err
	}
	cfg := s.Config()
	cfg.Fullscreen = !cfg.Fullscreen
	if err := s.Reconfigure(cfg); err != nil {
		p.dropEnded(s)
		return err
	}
	return nil
}

// CloseROM ends the session. It is a no-op when no ROM is open.
func (p *Plugin) CloseROM() {
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.mu.Unlock()

	if s != nil {
		s.EndSession()
	}
}

// ReloadSettings reads the settings file again. Display changes reach an
// open session through Reconfigure; renderer settings apply to the next
// ROM.
func (p *Plugin) ReloadSettings() error {
	p.mu.Lock()
	p.loadSettingsLocked()
	settings := p.settings
	s := p.session
	p.mu.Unlock()

	if s == nil {
		return nil
	}
	cfg := settings.Session()
	cur := s.Config()
	cfg.Display, cfg.Window = cur.Display, cur.Window
	if err := s.Reconfigure(cfg); err != nil {
		p.dropEnded(s)
		return err
	}
	return nil
}

// Configure validates and stores new settings, saving them when the plugin
// has a store. An open session is not affected until ReloadSettings or the
// next ROM.
func (p *Plugin) Configure(s config.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = s
	if p.store == nil {
		return nil
	}
	return p.store.Save(s)
}

// dropEnded forgets s when a failed rebuild ended it.
func (p *Plugin) dropEnded(s *gfxplugin.Session) {
	if !s.Ended() {
		return
	}
	p.mu.Lock()
	if p.session == s {
		p.session = nil
	}
	p.mu.Unlock()
}

// Settings returns the settings the next ROM will use.
func (p *Plugin) Settings() config.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// MemorySize returns the RDRAM size found at Initiate.
func (p *Plugin) MemorySize() gfxplugin.MemorySize {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.memory
}

// Session returns the open session, or nil.
func (p *Plugin) Session() *gfxplugin.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}
