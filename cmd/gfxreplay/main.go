// Command gfxreplay drives the graphics plugin the way an emulator host
// does: it hands over an RDRAM image and VI registers, opens a ROM session,
// submits display lists and shows frames. The last frame is written as PNG
// when the headless backend is used. With -backend auto the plugin picks the
// best registered backend and falls back to headless when no GPU opens.
//
// Usage:
//
//	gfxreplay -rdram dump.bin -origin 0x100000 -width 320 -lines 240 -frames 60
//	gfxreplay -backend noop -frames 10 -v
//	gfxreplay -backend auto -frames 60
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/gogpu/gfxplugin"
	"github.com/gogpu/gfxplugin/config"
	"github.com/gogpu/gfxplugin/display"
	"github.com/gogpu/gfxplugin/display/halbackend"
	"github.com/gogpu/gfxplugin/plugin"
	"github.com/gogpu/gfxplugin/render"
	"github.com/gogpu/wgpu/hal/noop"
)

func main() {
	var (
		dump    = flag.String("rdram", "", "raw RDRAM image in word-swapped layout (default: test pattern)")
		size    = flag.Int("size", 8<<20, "RDRAM size when no image is given")
		origin  = flag.Uint("origin", 0x100000, "framebuffer address")
		width   = flag.Int("width", 320, "framebuffer width in pixels")
		lines   = flag.Int("lines", 240, "visible lines")
		depth   = flag.Int("depth", 16, "framebuffer depth, 16 or 32")
		frames  = flag.Int("frames", 1, "frames to show")
		backend = flag.String("backend", display.BackendHeadless, "display backend: headless, hal, noop or auto (best available)")
		cfgPath = flag.String("config", "", "settings file (default: user config dir)")
		output  = flag.String("output", "frame.png", "PNG written from the headless backend")
		verbose = flag.Bool("v", false, "log plugin activity")
	)
	flag.Parse()

	if *verbose {
		gfxplugin.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	rdram, err := loadRDRAM(*dump, *size)
	if err != nil {
		log.Fatalf("rdram: %v", err)
	}

	format := uint32(render.VIFormatRGBA5551)
	bpp := 2
	if *depth == 32 {
		format, bpp = render.VIFormatRGBA8888, 4
	}
	if *dump == "" {
		if err := fillPattern(rdram, int(*origin), *width, *lines, bpp); err != nil {
			log.Fatalf("pattern: %v", err)
		}
	}

	var vi [render.NumVIRegisters]uint32
	vi[render.VIStatus] = format
	vi[render.VIOrigin] = uint32(*origin)
	vi[render.VIWidth] = uint32(*width)
	vi[render.VIVStart] = uint32(0x10<<16) | uint32(0x10+2*(*lines))
	vi[render.VIYScale] = 0x400

	var (
		headless *display.Headless
		hal      *halbackend.Backend
		opts     []plugin.Option
	)
	switch *backend {
	case display.BackendHeadless:
		headless = display.NewHeadless()
		opts = append(opts, plugin.WithSessionOptions(gfxplugin.WithBackend(headless)))
	case "noop":
		hal = halbackend.New(halbackend.WithHAL(noop.API{}))
		opts = append(opts, plugin.WithSessionOptions(gfxplugin.WithBackend(hal)))
	case display.BackendHAL:
		hal = halbackend.New()
		opts = append(opts, plugin.WithSessionOptions(gfxplugin.WithBackend(hal)))
	case "auto":
	default:
		log.Fatalf("unknown backend %q", *backend)
	}
	if *cfgPath != "" {
		opts = append(opts, plugin.WithStore(config.NewStore(afero.NewOsFs(), *cfgPath)))
	}

	p := plugin.New(opts...)
	info := p.Info()
	log.Printf("%s (interface 0x%04x)", info.Name, info.Version)

	if err := p.Initiate(plugin.GfxInfo{RDRAM: rdram, VI: &vi}); err != nil {
		log.Fatalf("initiate: %v", err)
	}
	if err := p.OpenROM(); err != nil {
		log.Fatalf("open rom: %v", err)
	}

	start := time.Now()
	for range *frames {
		if err := p.ProcessRDPList(); err != nil {
			p.CloseROM()
			log.Fatalf("process: %v", err)
		}
		if err := p.UpdateScreen(); err != nil {
			p.CloseROM()
			log.Fatalf("show: %v", err)
		}
	}
	elapsed := time.Since(start)

	s := p.Session()
	ctx := s.Info()
	log.Printf("%d frames in %v on %s (%s), %dx%d",
		ctx.FrameCount, elapsed.Round(time.Millisecond), ctx.GPUDeviceString, ctx.Backend,
		ctx.DisplayWidth, ctx.DisplayHeight)

	var snapshotErr error
	if headless != nil {
		snapshotErr = savePNG(headless, *output)
	}
	p.CloseROM()

	if hal != nil {
		st := hal.Stats()
		log.Printf("hal: %d uploads, %d reuses, %d draws", st.Frames, st.Reuses, st.Draws)
	}
	if snapshotErr != nil {
		log.Fatalf("save: %v", snapshotErr)
	}
	if headless != nil {
		log.Printf("frame saved to %s", *output)
	}
}

// loadRDRAM reads an RDRAM image, or allocates size zeroed bytes.
func loadRDRAM(path string, size int) ([]byte, error) {
	if path == "" {
		if size <= 0 {
			return nil, fmt.Errorf("invalid size %d", size)
		}
		return make([]byte, size), nil
	}
	return afero.ReadFile(afero.NewOsFs(), path)
}

// fillPattern writes color bars into the framebuffer at origin.
func fillPattern(rdram []byte, origin, w, h, bpp int) error {
	if w <= 0 || h <= 0 || origin+w*h*bpp > len(rdram) {
		return fmt.Errorf("%dx%d@%d at 0x%x does not fit in %d bytes", w, h, bpp*8, origin, len(rdram))
	}
	bars := [][3]uint8{
		{255, 255, 255}, {255, 255, 0}, {0, 255, 255}, {0, 255, 0},
		{255, 0, 255}, {255, 0, 0}, {0, 0, 255}, {0, 0, 0},
	}
	for y := range h {
		for x := range w {
			c := bars[x*len(bars)/w]
			addr := origin + (y*w+x)*bpp
			if bpp == 4 {
				v := uint32(c[0])<<24 | uint32(c[1])<<16 | uint32(c[2])<<8 | 0xff
				binary.LittleEndian.PutUint32(rdram[addr:], v)
				continue
			}
			v := uint16(c[0]>>3)<<11 | uint16(c[1]>>3)<<6 | uint16(c[2]>>3)<<1 | 1
			binary.LittleEndian.PutUint16(rdram[addr^2:], v)
		}
	}
	return nil
}

func savePNG(h *display.Headless, path string) error {
	img := h.Snapshot()
	if img == nil {
		return errors.New("no frame presented")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
