//go:build glcompute

package physics

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Build with -tags glcompute,opengl43 so raylib is compiled against GL 4.3.

//go:embed shaders/force.comp
var forceShader string

// GL enums passed through rlgl.
const (
	glComputeShader = 0x91B9
	glDynamicCopy   = 0x88EA
	glVersion43     = 4
)

// SSBO binding points, matching shaders/force.comp.
const (
	bindParams = iota
	bindParticlesIn
	bindParticlesOut
	bindFood
	bindGenomes
	numBuffers
)

// GLDevice runs the force kernel as an OpenGL 4.3 compute shader through
// raylib's rlgl shader storage buffers. It owns a hidden window for its
// GL context, so it must be used from the goroutine that created it.
type GLDevice struct {
	program uint32
	ssbo    [numBuffers]uint32
	size    [numBuffers]uint32
}

// NewGLDevice opens a hidden window and compiles the force kernel.
func NewGLDevice() (*GLDevice, error) {
	rl.SetConfigFlags(rl.FlagWindowHidden)
	rl.InitWindow(1, 1, "plife compute")
	if !rl.IsWindowReady() {
		return nil, errors.New("no GL context")
	}
	if v := rl.GetVersion(); v < glVersion43 {
		rl.CloseWindow()
		return nil, fmt.Errorf("compute shaders need OpenGL 4.3, context reports version id %d", v)
	}

	shader := rl.CompileShader(forceShader, glComputeShader)
	if shader == 0 {
		rl.CloseWindow()
		return nil, errors.New("compiling force kernel")
	}
	program := rl.LoadComputeShaderProgram(shader)
	if program == 0 {
		rl.CloseWindow()
		return nil, errors.New("linking force kernel")
	}
	return &GLDevice{program: program}, nil
}

// DefaultDevice prefers the GL compute device and falls back to the host
// device when no GL 4.3 context is available.
func DefaultDevice(workers int) (Device, error) {
	dev, err := NewGLDevice()
	if err != nil {
		slog.Warn("gl compute unavailable, using host device", "error", err)
		return NewHostDevice(workers), nil
	}
	return dev, nil
}

// Name implements Device.
func (d *GLDevice) Name() string { return "gl" }

// Dispatch implements Device.
func (d *GLDevice) Dispatch(b *Batch) error {
	if b.Params.Count == 0 {
		return nil
	}

	params := b.Params
	d.upload(bindParams, unsafe.Pointer(&params), uint32(unsafe.Sizeof(params)))
	d.upload(bindParticlesIn, unsafe.Pointer(&b.Particles[0]), uint32(len(b.Particles)*4))
	d.ensure(bindParticlesOut, uint32(len(b.Particles)*4))
	if len(b.Food) > 0 {
		d.upload(bindFood, unsafe.Pointer(&b.Food[0]), uint32(len(b.Food)*4))
	} else {
		d.ensure(bindFood, foodWords*4)
	}
	if len(b.Genomes) > 0 {
		d.upload(bindGenomes, unsafe.Pointer(&b.Genomes[0]), uint32(len(b.Genomes)*4))
	} else {
		d.ensure(bindGenomes, 4)
	}

	rl.EnableShader(d.program)
	for binding, id := range d.ssbo {
		rl.BindShaderBuffer(id, uint32(binding))
	}
	rl.ComputeShaderDispatch(b.Groups, 1, 1)
	rl.DisableShader()

	rl.ReadShaderBuffer(d.ssbo[bindParticlesOut], unsafe.Pointer(&b.Particles[0]), uint32(len(b.Particles)*4), 0)
	return nil
}

// ensure makes the buffer at binding hold at least size bytes.
func (d *GLDevice) ensure(binding int, size uint32) {
	if d.ssbo[binding] != 0 && d.size[binding] >= size {
		return
	}
	if d.ssbo[binding] != 0 {
		rl.UnloadShaderBuffer(d.ssbo[binding])
	}
	d.ssbo[binding] = rl.LoadShaderBuffer(size, nil, glDynamicCopy)
	d.size[binding] = size
}

func (d *GLDevice) upload(binding int, data unsafe.Pointer, size uint32) {
	d.ensure(binding, size)
	rl.UpdateShaderBuffer(d.ssbo[binding], data, size, 0)
}

// Close releases the buffers, the program and the window.
func (d *GLDevice) Close() error {
	for i, id := range d.ssbo {
		if id != 0 {
			rl.UnloadShaderBuffer(id)
			d.ssbo[i] = 0
		}
	}
	if d.program != 0 {
		rl.UnloadShaderProgram(d.program)
		d.program = 0
	}
	rl.CloseWindow()
	return nil
}
