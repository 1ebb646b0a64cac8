package gui

import (
	"fmt"
	"os"
	"runtime"
	"time"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
	"github.com/yoshiomiyamaegones/pkg/logger"
	"github.com/yoshiomiyamaegones/pkg/nes"
)

const (
	WindowWidth  = 256 * 3 // NES resolution 256x240 scaled 3x
	WindowHeight = 240 * 3
	WindowTitle  = "GoNES - Nintendo Entertainment System Emulator"

	// Audio constants
	AudioSampleRate = 44100
	AudioBufferSize = 1024             // Standard buffer size
	AudioChannels   = 1                // Mono
	AudioFormat     = sdl.AUDIO_F32LSB // 32-bit float, little-endian

	// Timing constants
	TargetFPS = 60.0988 // NES actual framerate
)

var (
	// NTSC NES frame rate: 60.0988 FPS (more precisely: 1789773 / 29780.5 = 60.0988139...)
	// Frame time = 1,000,000,000 / 60.0988139 = 16,639,266.85 ns
	FrameTime = time.Duration(16639267) * time.Nanosecond // 16.639267ms per frame
)

// NESGUI represents the GUI for the NES emulator. It only talks to pkg/nes
// through System's host contract (SetPixelFunc/SetAudioFunc/ClockFrame/
// SetButtons) — it never reaches into CPU/PPU/APU internals directly.
type NESGUI struct {
	window        *sdl.Window
	renderer      *sdl.Renderer
	texture       *sdl.Texture
	system        *nes.System
	running       bool
	screenshotNum int

	frame    []byte // RGBA8888, filled by the pixel hook each frame
	audioBuf []float32
	padState uint8 // port 0 button mask, since System only exposes a setter

	// Audio
	audioDevice sdl.AudioDeviceID
	audioSpec   *sdl.AudioSpec

	// Timing
	lastFrameTime time.Time
	nextFrameTime time.Time

	// FPS tracking
	fpsCounter int
	fpsTimer   time.Time
	currentFPS float64
	showFPS    bool
}

// NewNESGUI creates a new NES GUI wrapping the given System.
func NewNESGUI(system *nes.System) (*NESGUI, error) {
	// Lock main thread for SDL
	runtime.LockOSThread()

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO); err != nil {
		return nil, err
	}

	window, err := sdl.CreateWindow(
		WindowTitle,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		WindowWidth,
		WindowHeight,
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		sdl.Quit()
		return nil, err
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return nil, err
	}
	renderer.SetDrawBlendMode(sdl.BLENDMODE_NONE)

	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		256,
		240,
	)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return nil, err
	}
	texture.SetBlendMode(sdl.BLENDMODE_NONE)

	gui := &NESGUI{
		window:        window,
		renderer:      renderer,
		texture:       texture,
		system:        system,
		running:       true,
		frame:         make([]byte, 256*240*4),
		lastFrameTime: time.Now(),
		nextFrameTime: time.Now().Add(FrameTime),
		fpsTimer:      time.Now(),
		showFPS:       true,
	}

	system.SetPixelFunc(gui.onPixel)
	system.SetAudioFunc(gui.onAudio)

	if err := gui.initAudio(); err != nil {
		logger.LogError("Failed to initialize audio: %v", err)
		logger.LogError("Audio will be disabled. Check SDL2 audio drivers.")
		// Continue without audio rather than failing completely; per the
		// error handling design, host-IO failures here are non-fatal.
	} else {
		logger.LogInfo("Audio initialization successful")
	}

	return gui, nil
}

// onPixel is the System's pixel hook: fills the RGBA scratch buffer that
// render() streams into the SDL texture.
func (g *NESGUI) onPixel(x, y int, rgb uint32) {
	idx := (y*256 + x) * 4
	g.frame[idx+0] = uint8((rgb >> 16) & 0xFF) // R
	g.frame[idx+1] = uint8((rgb >> 8) & 0xFF)  // G
	g.frame[idx+2] = uint8(rgb & 0xFF)         // B
	g.frame[idx+3] = uint8((rgb >> 24) & 0xFF) // A
}

// onAudio is the System's audio hook: appends samples for queueAudio to
// drain to the SDL audio device.
func (g *NESGUI) onAudio(samples []float32) {
	g.audioBuf = append(g.audioBuf, samples...)
}

// Destroy cleans up SDL resources
func (g *NESGUI) Destroy() {
	if g.audioDevice != 0 {
		sdl.CloseAudioDevice(g.audioDevice)
	}
	if g.texture != nil {
		g.texture.Destroy()
	}
	if g.renderer != nil {
		g.renderer.Destroy()
	}
	if g.window != nil {
		g.window.Destroy()
	}
	sdl.Quit()
}

// Run starts the main GUI loop
func (g *NESGUI) Run() {
	frameCount := 0
	startTime := time.Now()

	for g.running {
		g.handleEvents()
		g.update()
		g.render()

		// Calculate target frame end time based on total elapsed time.
		// This compensates for Sleep() inaccuracies.
		frameCount++
		targetEndTime := startTime.Add(time.Duration(frameCount) * FrameTime)

		now := time.Now()
		if now.Before(targetEndTime) {
			time.Sleep(targetEndTime.Sub(now))
		}

		g.lastFrameTime = time.Now()
	}
}

// handleEvents processes SDL events
func (g *NESGUI) handleEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			g.running = false
		case *sdl.KeyboardEvent:
			g.handleKeyboard(e)
		}
	}
}

// handleKeyboard maps keyboard input to controller port 0.
func (g *NESGUI) handleKeyboard(event *sdl.KeyboardEvent) {
	pressed := event.State == sdl.PRESSED

	switch event.Keysym.Sym {
	case sdl.K_z:
		g.setButton(input_A, pressed)
	case sdl.K_x:
		g.setButton(input_B, pressed)
	case sdl.K_a:
		g.setButton(input_Select, pressed)
	case sdl.K_s:
		g.setButton(input_Start, pressed)
	case sdl.K_UP:
		g.setButton(input_Up, pressed)
	case sdl.K_DOWN:
		g.setButton(input_Down, pressed)
	case sdl.K_LEFT:
		g.setButton(input_Left, pressed)
	case sdl.K_RIGHT:
		g.setButton(input_Right, pressed)
	case sdl.K_ESCAPE:
		g.running = false
	case sdl.K_F12:
		if pressed {
			g.saveScreenshot()
		}
	case sdl.K_F3:
		if pressed {
			g.showFPS = !g.showFPS
		}
	}
}

// Button bit positions within the mask SetButtons expects, matching
// pkg/input's ButtonMask* constants.
const (
	input_A      = 1 << 0
	input_B      = 1 << 1
	input_Select = 1 << 2
	input_Start  = 1 << 3
	input_Up     = 1 << 4
	input_Down   = 1 << 5
	input_Left   = 1 << 6
	input_Right  = 1 << 7
)

func (g *NESGUI) setButton(mask uint8, pressed bool) {
	if pressed {
		g.padState |= mask
	} else {
		g.padState &^= mask
	}
	g.system.SetButtons(0, g.padState)
}

// update runs the NES emulation for one frame
func (g *NESGUI) update() {
	g.system.ClockFrame()
	g.queueAudio()
	g.updateFPS()
}

// render draws the current frame to the screen
func (g *NESGUI) render() {
	g.texture.Update(nil, unsafe.Pointer(&g.frame[0]), 256*4)

	g.renderer.SetDrawColor(0, 0, 0, 255)
	g.renderer.Clear()
	g.renderer.Copy(g.texture, nil, nil)

	if g.showFPS {
		g.updateWindowTitle()
	}

	g.renderer.Present()
}

// saveScreenshot saves the current screen to a file
func (g *NESGUI) saveScreenshot() {
	filename := fmt.Sprintf("screenshot_%03d.png", g.screenshotNum)
	g.screenshotNum++
	g.saveScreenshotWithName(filename)
}

// saveFramebufferAsRaw saves framebuffer data as raw RGBA file
func (g *NESGUI) saveFramebufferAsRaw(filename string, data []uint8) {
	file, err := os.Create(filename)
	if err != nil {
		logger.LogError("Failed to create file %s: %v", filename, err)
		return
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		logger.LogError("Failed to write to file %s: %v", filename, err)
		return
	}

	logger.LogInfo("Raw framebuffer saved: %s (%d bytes)", filename, len(data))
}

// saveScreenshotWithName saves the current screen with a specific filename
func (g *NESGUI) saveScreenshotWithName(filename string) {
	w, h, _ := g.renderer.GetOutputSize()
	pixels := make([]byte, w*h*4)
	err := g.renderer.ReadPixels(nil, sdl.PIXELFORMAT_RGBA8888, unsafe.Pointer(&pixels[0]), int(w*4))
	if err != nil {
		logger.LogError("Failed to read pixels: %v", err)
		return
	}
	g.saveFramebufferAsRaw(filename, pixels)
}

// initAudio initializes the SDL audio device
func (g *NESGUI) initAudio() error {
	want := &sdl.AudioSpec{
		Freq:     AudioSampleRate,
		Format:   AudioFormat,
		Channels: AudioChannels,
		Samples:  AudioBufferSize,
	}

	var have sdl.AudioSpec
	device, err := sdl.OpenAudioDevice("", false, want, &have, sdl.AUDIO_ALLOW_ANY_CHANGE)
	if err != nil {
		// Retry with 16-bit format for broader driver compatibility.
		want.Format = sdl.AUDIO_S16LSB
		device, err = sdl.OpenAudioDevice("", false, want, &have, sdl.AUDIO_ALLOW_ANY_CHANGE)
		if err != nil {
			return fmt.Errorf("failed to open audio device: %v", err)
		}
	}

	g.audioDevice = device
	g.audioSpec = &have

	logger.LogInfo("Audio initialized: %dHz, %d channels, format 0x%x, buffer size %d",
		have.Freq, have.Channels, have.Format, have.Samples)

	sdl.PauseAudioDevice(device, false)
	return nil
}

// queueAudio queues APU audio samples collected by onAudio to SDL
func (g *NESGUI) queueAudio() {
	if len(g.audioBuf) == 0 {
		return
	}
	if g.audioDevice == 0 {
		g.audioBuf = g.audioBuf[:0]
		return
	}

	queuedBytes := sdl.GetQueuedAudioSize(g.audioDevice)
	maxBytes := uint32(AudioBufferSize * 4 * 2) // 2 buffers worth

	if queuedBytes < maxBytes {
		var audioData []byte

		switch g.audioSpec.Format {
		case sdl.AUDIO_F32LSB:
			audioData = make([]byte, len(g.audioBuf)*4)
			for i, sample := range g.audioBuf {
				sample *= 0.5
				bits := *(*uint32)(unsafe.Pointer(&sample))
				audioData[i*4+0] = byte(bits)
				audioData[i*4+1] = byte(bits >> 8)
				audioData[i*4+2] = byte(bits >> 16)
				audioData[i*4+3] = byte(bits >> 24)
			}
		case sdl.AUDIO_S16LSB:
			audioData = make([]byte, len(g.audioBuf)*2)
			for i, sample := range g.audioBuf {
				sample *= 0.5
				if sample > 1.0 {
					sample = 1.0
				} else if sample < -1.0 {
					sample = -1.0
				}
				intSample := int16(sample * 32767)
				audioData[i*2+0] = byte(intSample)
				audioData[i*2+1] = byte(intSample >> 8)
			}
		}

		if len(audioData) > 0 {
			sdl.QueueAudio(g.audioDevice, audioData)
		}
	}

	g.audioBuf = g.audioBuf[:0]
}

// updateFPS calculates the current FPS
func (g *NESGUI) updateFPS() {
	g.fpsCounter++

	elapsed := time.Since(g.fpsTimer)
	if elapsed >= 500*time.Millisecond {
		g.currentFPS = float64(g.fpsCounter) / elapsed.Seconds()
		g.fpsCounter = 0
		g.fpsTimer = time.Now()
	}
}

// updateWindowTitle updates the window title with FPS information
func (g *NESGUI) updateWindowTitle() {
	title := fmt.Sprintf("%s - FPS: %.1f", WindowTitle, g.currentFPS)
	g.window.SetTitle(title)
}
