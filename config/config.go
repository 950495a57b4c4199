// Package config persists plugin settings as an INI file.
//
// All settings live in a single [Settings] section as integer values, with
// booleans stored as 0 or 1. Missing or malformed keys take their default.
// The file is accessed through an afero.Fs so tests and embedders can keep
// it in memory.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
	"gopkg.in/ini.v1"

	"github.com/gogpu/gfxplugin"
	"github.com/gogpu/gfxplugin/render"
)

// SectionName is the INI section holding all settings.
const SectionName = "Settings"

// Default location below the user configuration directory.
const (
	DirName  = "LParallel"
	FileName = "cfg.ini"
)

// Config errors.
var (
	// ErrUnknownKey is returned by Get and Set for keys not listed in Keys.
	ErrUnknownKey = errors.New("config: unknown key")

	// ErrInvalidValue is returned by Validate.
	ErrInvalidValue = errors.New("config: invalid value")
)

// Key names a setting in the INI file.
type Key string

// Setting keys.
const (
	KeyFullscreen    Key = "KEY_FULLSCREEN"
	KeyScreenWidth   Key = "KEY_SCREEN_WIDTH"
	KeyScreenHeight  Key = "KEY_SCREEN_HEIGHT"
	KeyWidescreen    Key = "KEY_WIDESCREEN"
	KeyVSync         Key = "KEY_VSYNC"
	KeyIntegerScale  Key = "KEY_INTEGER"
	KeyUpscaling     Key = "KEY_UPSCALING"
	KeySSReadbacks   Key = "KEY_SSREADBACKS"
	KeySSDither      Key = "KEY_SSDITHER"
	KeyDeinterlace   Key = "KEY_DEINTERLACE"
	KeyOverscanCrop  Key = "KEY_OVERSCANCROP"
	KeyNativeTexLOD  Key = "KEY_NATIVETEXTLOD"
	KeyNativeTexRect Key = "KEY_NATIVETEXTRECT"
	KeyDivot         Key = "KEY_DIVOT"
	KeyGammaDither   Key = "KEY_GAMMADITHER"
	KeyVIDither      Key = "KEY_VIDITHER"
	KeyAA            Key = "KEY_AA"
	KeyVIBilerp      Key = "KEY_VIBILERP"
	KeyDownscaling   Key = "KEY_DOWNSCALING"
	KeySynchronous   Key = "KEY_SYNCHRONOUS"
)

// Settings is the persisted plugin configuration.
type Settings struct {
	Fullscreen   bool
	ScreenWidth  int
	ScreenHeight int
	Widescreen   bool
	VSync        bool
	IntegerScale bool

	Upscaling     int
	SSReadbacks   bool
	SSDither      bool
	Deinterlace   bool
	OverscanCrop  int
	NativeTexLOD  bool
	NativeTexRect bool
	Divot         bool
	GammaDither   bool
	VIDither      bool
	AA            bool
	VIBilerp      bool
	Downscaling   int
	Synchronous   bool
}

// Defaults returns the settings used for missing keys.
func Defaults() Settings {
	return Settings{
		ScreenWidth:  640,
		ScreenHeight: 480,
		VSync:        true,
		Upscaling:    1,
		Divot:        true,
		GammaDither:  true,
		VIDither:     true,
		AA:           true,
		VIBilerp:     true,
		Synchronous:  true,
	}
}

// field binds a key to a Settings member. Exactly one of i and b is set.
type field struct {
	key Key
	i   func(*Settings) *int
	b   func(*Settings) *bool
}

// fields lists every key in file order.
var fields = []field{
	{key: KeyFullscreen, b: func(s *Settings) *bool { return &s.Fullscreen }},
	{key: KeyScreenWidth, i: func(s *Settings) *int { return &s.ScreenWidth }},
	{key: KeyScreenHeight, i: func(s *Settings) *int { return &s.ScreenHeight }},
	{key: KeyWidescreen, b: func(s *Settings) *bool { return &s.Widescreen }},
	{key: KeyVSync, b: func(s *Settings) *bool { return &s.VSync }},
	{key: KeyIntegerScale, b: func(s *Settings) *bool { return &s.IntegerScale }},
	{key: KeyUpscaling, i: func(s *Settings) *int { return &s.Upscaling }},
	{key: KeySSReadbacks, b: func(s *Settings) *bool { return &s.SSReadbacks }},
	{key: KeySSDither, b: func(s *Settings) *bool { return &s.SSDither }},
	{key: KeyDeinterlace, b: func(s *Settings) *bool { return &s.Deinterlace }},
	{key: KeyOverscanCrop, i: func(s *Settings) *int { return &s.OverscanCrop }},
	{key: KeyNativeTexLOD, b: func(s *Settings) *bool { return &s.NativeTexLOD }},
	{key: KeyNativeTexRect, b: func(s *Settings) *bool { return &s.NativeTexRect }},
	{key: KeyDivot, b: func(s *Settings) *bool { return &s.Divot }},
	{key: KeyGammaDither, b: func(s *Settings) *bool { return &s.GammaDither }},
	{key: KeyVIDither, b: func(s *Settings) *bool { return &s.VIDither }},
	{key: KeyAA, b: func(s *Settings) *bool { return &s.AA }},
	{key: KeyVIBilerp, b: func(s *Settings) *bool { return &s.VIBilerp }},
	{key: KeyDownscaling, i: func(s *Settings) *int { return &s.Downscaling }},
	{key: KeySynchronous, b: func(s *Settings) *bool { return &s.Synchronous }},
}

func lookup(k Key) (field, bool) {
	for _, f := range fields {
		if f.key == k {
			return f, true
		}
	}
	return field{}, false
}

// Keys returns all setting keys in file order.
func Keys() []Key {
	keys := make([]Key, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// get returns the integer form of a field.
func (f field) get(s *Settings) int {
	if f.i != nil {
		return *f.i(s)
	}
	if *f.b(s) {
		return 1
	}
	return 0
}

// set stores the integer form of a field.
func (f field) set(s *Settings, v int) {
	if f.i != nil {
		*f.i(s) = v
		return
	}
	*f.b(s) = v != 0
}

// Validate reports values the renderer cannot use.
func (s Settings) Validate() error {
	switch s.Upscaling {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("%w: %s=%d", ErrInvalidValue, KeyUpscaling, s.Upscaling)
	}
	if s.Downscaling < 0 || s.Downscaling > 3 {
		return fmt.Errorf("%w: %s=%d", ErrInvalidValue, KeyDownscaling, s.Downscaling)
	}
	if s.OverscanCrop < 0 || s.OverscanCrop > 64 {
		return fmt.Errorf("%w: %s=%d", ErrInvalidValue, KeyOverscanCrop, s.OverscanCrop)
	}
	if s.ScreenWidth <= 0 || s.ScreenHeight <= 0 {
		return fmt.Errorf("%w: screen %dx%d", ErrInvalidValue, s.ScreenWidth, s.ScreenHeight)
	}
	return nil
}

// Normalize returns s with out-of-range values replaced by the nearest
// valid value, or the default where there is none.
func (s Settings) Normalize() Settings {
	d := Defaults()
	switch {
	case s.Upscaling >= 8:
		s.Upscaling = 8
	case s.Upscaling >= 4:
		s.Upscaling = 4
	case s.Upscaling >= 2:
		s.Upscaling = 2
	default:
		s.Upscaling = 1
	}
	s.Downscaling = min(max(s.Downscaling, 0), 3)
	s.OverscanCrop = min(max(s.OverscanCrop, 0), 64)
	if s.ScreenWidth <= 0 || s.ScreenHeight <= 0 {
		s.ScreenWidth, s.ScreenHeight = d.ScreenWidth, d.ScreenHeight
	}
	return s
}

// Render returns the renderer settings.
func (s Settings) Render() render.Settings {
	return render.Settings{
		UpscalingFactor:      s.Upscaling,
		DownscalingSteps:     s.Downscaling,
		Overscan:             s.OverscanCrop,
		SuperSampledReadBack: s.SSReadbacks,
		SuperSampledDither:   s.SSDither,
		Deinterlace:          s.Deinterlace,
		NativeTextureLOD:     s.NativeTexLOD,
		NativeTextureRect:    s.NativeTexRect,
		DivotFilter:          s.Divot,
		GammaDither:          s.GammaDither,
		VIDither:             s.VIDither,
		VIAntiAlias:          s.AA,
		VIBilinear:           s.VIBilerp,
		Synchronous:          s.Synchronous,
	}
}

// Session returns the display configuration for a session.
func (s Settings) Session() gfxplugin.Config {
	return gfxplugin.Config{
		Fullscreen:      s.Fullscreen,
		Width:           s.ScreenWidth,
		Height:          s.ScreenHeight,
		VSync:           s.VSync,
		UpscalingFactor: s.Upscaling,
	}
}

// DefaultPath returns <user config dir>/LParallel/cfg.ini.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locate config dir: %w", err)
	}
	return filepath.Join(dir, DirName, FileName), nil
}

// Store reads and writes the settings file.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore creates a store for path on fsys. A nil fsys uses the OS
// filesystem.
func NewStore(fsys afero.Fs, path string) *Store {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Store{fs: fsys, path: path}
}

// Path returns the settings file path.
func (s *Store) Path() string { return s.path }

// Load reads the settings. A missing file yields Defaults.
func (s *Store) Load() (Settings, error) {
	f, err := s.open()
	if err != nil {
		return Defaults(), err
	}
	out := Defaults()
	sec := f.Section(SectionName)
	for _, fd := range fields {
		fd.set(&out, sec.Key(string(fd.key)).MustInt(fd.get(&out)))
	}
	return out, nil
}

// Save writes every key, creating the directory when needed.
func (s *Store) Save(st Settings) error {
	f, err := s.open()
	if err != nil {
		return err
	}
	sec := f.Section(SectionName)
	for _, fd := range fields {
		sec.Key(string(fd.key)).SetValue(strconv.Itoa(fd.get(&st)))
	}
	return s.write(f)
}

// Get returns the stored value of one key and whether it was present.
func (s *Store) Get(k Key) (int, bool, error) {
	if _, ok := lookup(k); !ok {
		return 0, false, fmt.Errorf("%w: %s", ErrUnknownKey, k)
	}
	f, err := s.open()
	if err != nil {
		return 0, false, err
	}
	sec := f.Section(SectionName)
	if !sec.HasKey(string(k)) {
		return 0, false, nil
	}
	v, err := sec.Key(string(k)).Int()
	if err != nil {
		return 0, false, nil
	}
	return v, true, nil
}

// Set writes one key, leaving the others untouched.
func (s *Store) Set(k Key, v int) error {
	if _, ok := lookup(k); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, k)
	}
	f, err := s.open()
	if err != nil {
		return err
	}
	f.Section(SectionName).Key(string(k)).SetValue(strconv.Itoa(v))
	return s.write(f)
}

// open parses the file, or returns an empty one when it does not exist.
func (s *Store) open() (*ini.File, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ini.Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", s.path, err)
	}
	f, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", s.path, err)
	}
	return f, nil
}

func (s *Store) write(f *ini.File) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", s.path, err)
	}
	return nil
}
