package plugin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/gogpu/gfxplugin"
	"github.com/gogpu/gfxplugin/config"
	"github.com/gogpu/gfxplugin/display"
	"github.com/gogpu/gfxplugin/display/halbackend"
	"github.com/gogpu/gfxplugin/render"
)

const (
	testPath   = "/cfg/LParallel/cfg.ini"
	testRDRAM  = 8 << 20
	testOrigin = 0x100
	testWidth  = 4
	testLines  = 2
)

type harness struct {
	plugin   *Plugin
	store    *config.Store
	headless *display.Headless
	rdram    []byte
	vi       [render.NumVIRegisters]uint32
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store:    config.NewStore(afero.NewMemMapFs(), testPath),
		headless: display.NewHeadless(),
		rdram:    make([]byte, testRDRAM),
	}
	h.vi[render.VIStatus] = render.VIFormatRGBA5551
	h.vi[render.VIOrigin] = testOrigin
	h.vi[render.VIWidth] = testWidth
	h.vi[render.VIVStart] = uint32(0x10<<16) | uint32(0x10+2*testLines)
	h.vi[render.VIYScale] = 0x400

	all := append([]Option{
		WithStore(h.store),
		WithSessionOptions(gfxplugin.WithBackend(h.headless)),
	}, opts...)
	h.plugin = New(all...)
	t.Cleanup(h.plugin.CloseROM)
	return h
}

func (h *harness) gfxInfo() GfxInfo {
	return GfxInfo{RDRAM: h.rdram, VI: &h.vi}
}

func (h *harness) open(t *testing.T) {
	t.Helper()
	if err := h.plugin.Initiate(h.gfxInfo()); err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if err := h.plugin.OpenROM(); err != nil {
		t.Fatalf("OpenROM() error = %v", err)
	}
}

// putRed writes opaque red at pixel (x, 0) of the VI framebuffer.
func (h *harness) putRed(x int) {
	addr := testOrigin + x*2
	binary.LittleEndian.PutUint16(h.rdram[addr^2:], 0x1f<<11|1)
}

func TestInfo(t *testing.T) {
	h := newHarness(t)
	info := h.plugin.Info()

	if info.Version != InterfaceVersion || info.Type != TypeGFX {
		t.Errorf("Info() = %+v", info)
	}
	if !strings.HasPrefix(info.Name, "gfxplugin rev.") {
		t.Errorf("Name = %q, want gfxplugin rev. prefix", info.Name)
	}
	if !info.NormalMemory || !info.MemoryBswaped {
		t.Error("both memory layouts should be accepted")
	}
}

func TestInitiateValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		gi   GfxInfo
	}{
		{"no rdram", GfxInfo{VI: &h.vi}},
		{"no vi", GfxInfo{RDRAM: h.rdram}},
		{"oversized", GfxInfo{RDRAM: h.rdram[:4<<20], VI: &h.vi, Memory: gfxplugin.FixedMemorySizer(8 << 20)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := h.plugin.Initiate(tt.gi); !errors.Is(err, ErrInvalidGfxInfo) {
				t.Errorf("Initiate() error = %v, want ErrInvalidGfxInfo", err)
			}
		})
	}
}

func TestInitiateSizesMemory(t *testing.T) {
	var got int
	h := newHarness(t, WithRendererFactory(func(rdram []byte) render.Renderer {
		got = len(rdram)
		return render.NewSoftware(rdram)
	}))

	gi := h.gfxInfo()
	gi.Memory = gfxplugin.FixedMemorySizer(4 << 20)
	if err := h.plugin.Initiate(gi); err != nil {
		t.Fatal(err)
	}
	if h.plugin.MemorySize() != 4<<20 {
		t.Errorf("MemorySize() = %v, want 4 MiB", h.plugin.MemorySize())
	}
	if err := h.plugin.OpenROM(); err != nil {
		t.Fatal(err)
	}
	if got != 4<<20 {
		t.Errorf("renderer saw %d bytes of RDRAM, want %d", got, 4<<20)
	}
}

func TestOpenROMBeforeInitiate(t *testing.T) {
	h := newHarness(t)
	if err := h.plugin.OpenROM(); !errors.Is(err, ErrNotInitiated) {
		t.Errorf("OpenROM() error = %v, want ErrNotInitiated", err)
	}
}

func TestFrameCallsWithoutROM(t *testing.T) {
	h := newHarness(t)
	if err := h.plugin.Initiate(h.gfxInfo()); err != nil {
		t.Fatal(err)
	}

	calls := map[string]func() error{
		"ProcessRDPList": h.plugin.ProcessRDPList,
		"ShowCFB":        h.plugin.ShowCFB,
		"UpdateScreen":   h.plugin.UpdateScreen,
		"ChangeWindow":   h.plugin.ChangeWindow,
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrNoROM) {
			t.Errorf("%s() error = %v, want ErrNoROM", name, err)
		}
	}
	h.plugin.CloseROM()
}

func TestShowFramebuffer(t *testing.T) {
	h := newHarness(t)
	h.putRed(0)
	h.open(t)

	if err := h.plugin.ProcessRDPList(); err != nil {
		t.Fatal(err)
	}
	if err := h.plugin.UpdateScreen(); err != nil {
		t.Fatalf("UpdateScreen() error = %v", err)
	}

	img := h.headless.Snapshot()
	if img == nil {
		t.Fatal("headless backend has no image")
	}
	if px := img.Pix[0:4]; px[0] != 0xff || px[1] != 0 || px[2] != 0 || px[3] != 0xff {
		t.Errorf("pixel(0,0) = %v, want opaque red", px)
	}
	if s := h.headless.Stats(); s.Frames != 1 {
		t.Errorf("Frames = %d, want 1", s.Frames)
	}
	if n := h.plugin.Session().Info().FrameCount; n != 1 {
		t.Errorf("FrameCount = %d, want 1", n)
	}
}

func TestShowFramebufferReadsLiveRegisters(t *testing.T) {
	h := newHarness(t)
	h.open(t)

	// Blanked video shows nothing new.
	h.vi[render.VIStatus] = 0
	if err := h.plugin.ShowCFB(); err != nil {
		t.Fatal(err)
	}
	if s := h.headless.Stats(); s.Frames != 0 {
		t.Errorf("Frames = %d after blank scanout, want 0", s.Frames)
	}

	h.vi[render.VIStatus] = render.VIFormatRGBA5551
	if err := h.plugin.ShowCFB(); err != nil {
		t.Fatal(err)
	}
	if s := h.headless.Stats(); s.Frames != 1 {
		t.Errorf("Frames = %d, want 1", s.Frames)
	}
}

func TestChangeWindowTogglesFullscreen(t *testing.T) {
	h := newHarness(t)
	gi := h.gfxInfo()
	gi.Monitor = display.FixedMonitor{Width: 1920, Height: 1080}
	if err := h.plugin.Initiate(gi); err != nil {
		t.Fatal(err)
	}
	if err := h.plugin.OpenROM(); err != nil {
		t.Fatal(err)
	}
	s := h.plugin.Session()

	if err := h.plugin.ChangeWindow(); err != nil {
		t.Fatalf("ChangeWindow() error = %v", err)
	}
	if !s.Config().Fullscreen || !h.headless.FullscreenStyle() {
		t.Error("first ChangeWindow() should enter fullscreen")
	}
	if info := s.Info(); info.DisplayWidth != 1920 || info.DisplayHeight != 1080 {
		t.Errorf("fullscreen size = %dx%d, want monitor 1920x1080", info.DisplayWidth, info.DisplayHeight)
	}

	if err := h.plugin.ChangeWindow(); err != nil {
		t.Fatal(err)
	}
	if s.Config().Fullscreen || h.headless.FullscreenStyle() {
		t.Error("second ChangeWindow() should return to a window")
	}
	if info := s.Info(); info.DisplayWidth != 640 || info.DisplayHeight != 480 {
		t.Errorf("windowed size = %dx%d, want 640x480", info.DisplayWidth, info.DisplayHeight)
	}
}

func TestCloseROM(t *testing.T) {
	h := newHarness(t)
	h.open(t)
	s := h.plugin.Session()

	h.plugin.CloseROM()
	if !s.Ended() {
		t.Error("CloseROM() should end the session")
	}
	if h.plugin.Session() != nil {
		t.Error("Session() should be nil after CloseROM()")
	}
	h.plugin.CloseROM()
}

func TestOpenROMEndsPreviousSession(t *testing.T) {
	h := newHarness(t)
	h.open(t)
	first := h.plugin.Session()

	if err := h.plugin.OpenROM(); err != nil {
		t.Fatalf("second OpenROM() error = %v", err)
	}
	if !first.Ended() {
		t.Error("previous session should be ended")
	}
	if h.plugin.Session() == first || h.plugin.Session() == nil {
		t.Error("OpenROM() should install a new session")
	}
}

func TestProcessDListWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	gfxplugin.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { gfxplugin.SetLogger(nil) })

	h := newHarness(t)
	for range 3 {
		h.plugin.ProcessDList()
	}
	if n := strings.Count(buf.String(), "high-level display lists"); n != 1 {
		t.Errorf("warning logged %d times, want 1", n)
	}
}

func TestSettingsLoadedFromStore(t *testing.T) {
	h := newHarness(t)
	if err := h.store.Set(config.KeyScreenWidth, 800); err != nil {
		t.Fatal(err)
	}
	if err := h.store.Set(config.KeyScreenHeight, 600); err != nil {
		t.Fatal(err)
	}
	if err := h.store.Set(config.KeyUpscaling, 2); err != nil {
		t.Fatal(err)
	}

	h.open(t)
	cfg := h.plugin.Session().Config()
	if cfg.Width != 800 || cfg.Height != 600 || cfg.UpscalingFactor != 2 {
		t.Errorf("session config = %+v, want 800x600 x2", cfg)
	}
	if got := h.plugin.Settings().ScreenWidth; got != 800 {
		t.Errorf("Settings().ScreenWidth = %d, want 800", got)
	}
}

func TestConfigureSaves(t *testing.T) {
	h := newHarness(t)

	bad := config.Defaults()
	bad.Upscaling = 3
	if err := h.plugin.Configure(bad); !errors.Is(err, config.ErrInvalidValue) {
		t.Errorf("Configure(upscaling 3) error = %v, want ErrInvalidValue", err)
	}

	s := config.Defaults()
	s.VSync = false
	s.OverscanCrop = 8
	if err := h.plugin.Configure(s); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	loaded, err := h.store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded != s {
		t.Errorf("saved settings = %+v, want %+v", loaded, s)
	}
}

func TestReloadSettingsReconfigures(t *testing.T) {
	h := newHarness(t)
	if err := h.plugin.ReloadSettings(); err != nil {
		t.Errorf("ReloadSettings() without a ROM error = %v", err)
	}

	h.open(t)
	s := h.plugin.Session()
	if !s.Config().VSync {
		t.Fatal("default settings should enable vsync")
	}
	if err := h.store.Set(config.KeyVSync, 0); err != nil {
		t.Fatal(err)
	}

	if err := h.plugin.ReloadSettings(); err != nil {
		t.Fatalf("ReloadSettings() error = %v", err)
	}
	if s.Config().VSync {
		t.Error("ReloadSettings() should apply the vsync change")
	}
	if h.plugin.Settings().VSync {
		t.Error("Settings() should reflect the reloaded file")
	}
}

func TestMemoryOnlyPlugin(t *testing.T) {
	p := New(WithStore(nil), WithSessionOptions(gfxplugin.WithBackend(display.NewHeadless())))
	defer p.CloseROM()

	rdram := make([]byte, 4<<20)
	var vi [render.NumVIRegisters]uint32
	if err := p.Initiate(GfxInfo{RDRAM: rdram, VI: &vi}); err != nil {
		t.Fatal(err)
	}
	if err := p.Configure(config.Defaults()); err != nil {
		t.Errorf("Configure() without store error = %v", err)
	}
	if err := p.OpenROM(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenROMWithDefaultBackend(t *testing.T) {
	p := New(WithStore(nil))
	defer p.CloseROM()

	rdram := make([]byte, 4<<20)
	var vi [render.NumVIRegisters]uint32
	if err := p.Initiate(GfxInfo{RDRAM: rdram, VI: &vi}); err != nil {
		t.Fatal(err)
	}
	if err := p.OpenROM(); err != nil {
		t.Fatalf("OpenROM() without a backend option = %v", err)
	}
	switch got := p.Session().Info().Backend; got {
	case display.BackendHAL, display.BackendHeadless:
	default:
		t.Errorf("Backend = %q, want hal or headless", got)
	}
}

// failingHAL stands in for a machine without a usable GPU.
type failingHAL struct {
	*display.Headless
}

func (failingHAL) Name() string { return display.BackendHAL }

func (failingHAL) Init(display.ContextParams) error { return errors.New("no vulkan loader") }

func TestOpenROMFallsBackToHeadless(t *testing.T) {
	display.Register(display.BackendHAL, func() display.Backend {
		return failingHAL{Headless: display.NewHeadless()}
	})
	t.Cleanup(func() {
		display.Register(display.BackendHAL, func() display.Backend { return halbackend.New() })
	})

	h := newHarness(t)
	// Drop the harness backend so the registry decides.
	h.plugin = New(WithStore(h.store))
	t.Cleanup(h.plugin.CloseROM)
	h.putRed(0)
	h.open(t)

	s := h.plugin.Session()
	if got := s.Info().Backend; got != display.BackendHeadless {
		t.Fatalf("Backend = %q, want headless", got)
	}
	if err := h.plugin.ProcessRDPList(); err != nil {
		t.Fatal(err)
	}
	if err := h.plugin.UpdateScreen(); err != nil {
		t.Errorf("UpdateScreen() on fallback backend = %v", err)
	}
	if n := s.Info().FrameCount; n != 1 {
		t.Errorf("FrameCount = %d, want 1", n)
	}
}
