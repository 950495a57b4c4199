package shader

import (
	"errors"
	"strings"
	"testing"
)

func TestBlitSourceContainsEntryPoints(t *testing.T) {
	src := BlitSource()
	for _, want := range []string{
		"@vertex",
		"@fragment",
		BlitVertexEntry,
		BlitFragmentEntry,
		"texture_2d<f32>",
		"textureSample",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("blit shader missing %q", want)
		}
	}
}

func TestBlitSPIRV(t *testing.T) {
	code, err := BlitSPIRV()
	if err != nil {
		t.Fatalf("BlitSPIRV() error = %v", err)
	}
	if len(code) < 5 {
		t.Fatalf("BlitSPIRV() returned %d words", len(code))
	}
	if code[0] != 0x07230203 {
		t.Errorf("SPIR-V magic = %#08x, want 0x07230203", code[0])
	}

	again, _ := BlitSPIRV()
	if &again[0] != &code[0] {
		t.Error("BlitSPIRV() should compile once")
	}
}

func TestCompileError(t *testing.T) {
	_, err := Compile("fn broken( {")
	if !errors.Is(err, ErrCompile) {
		t.Errorf("Compile() error = %v, want ErrCompile", err)
	}
}
