// Package app implements the main NES emulator application shell: config,
// ROM loading, the graphics backend, and the input/render loop.
package app

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"gones/internal/bus"
	"gones/internal/cartridge"
	"gones/internal/config"
	"gones/internal/debug"
	"gones/internal/graphics"
	"gones/internal/input"
)

// Application ties the emulation core to a graphics backend and drives the
// main loop.
type Application struct {
	bus *bus.Bus

	backend        graphics.Backend
	window         graphics.Window
	videoProcessor *graphics.VideoProcessor
	frameDumper    *debug.FrameDumper

	config   *config.Config
	emulator *Emulator

	romPath   string
	cartridge *cartridge.Cartridge

	headless    bool
	initialized bool

	startTime  time.Time
	lastFPSLog time.Time
}

// New creates an Application using the configuration at configPath (created
// with defaults if missing), running headless when headless is true.
func New(configPath string, headless bool) (*Application, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		log.Printf("[APP] could not load config from %s, using defaults: %v", configPath, err)
	}

	app := &Application{
		config:    cfg,
		headless:  headless,
		startTime: time.Now(),
	}

	if err := app.initGraphics(); err != nil {
		return nil, fmt.Errorf("app: initialize graphics: %w", err)
	}

	app.bus = bus.New()
	app.emulator = NewEmulator(app.bus)

	if cfg.Debug.DumpFrames {
		app.frameDumper = debug.NewFrameDumper(cfg.Debug.DumpDir)
		if err := app.frameDumper.Enable(); err != nil {
			log.Printf("[APP] could not enable frame dumping: %v", err)
		}
	}

	app.initialized = true
	return app, nil
}

// initGraphics selects and initializes a graphics backend, creating a
// window unless running headless.
func (app *Application) initGraphics() error {
	backendType := graphics.BackendType(app.config.Video.Backend)
	if app.headless {
		backendType = graphics.BackendHeadless
	}

	backend, err := graphics.CreateBackend(backendType)
	if err != nil {
		return err
	}

	gcfg := graphics.Config{
		WindowTitle:  "gones",
		WindowWidth:  app.config.Window.Width,
		WindowHeight: app.config.Window.Height,
		Fullscreen:   app.config.Window.Fullscreen,
		VSync:        app.config.Video.VSync,
		Filter:       app.config.Video.Filter,
		Headless:     app.headless,
		Debug:        app.config.Debug.EnableLogging,
	}

	if err := backend.Initialize(gcfg); err != nil {
		if backendType == graphics.BackendEbitengine {
			log.Printf("[APP] ebitengine backend failed (%v), falling back to headless", err)
			backend, err = graphics.CreateBackend(graphics.BackendHeadless)
			if err != nil {
				return err
			}
			gcfg.Headless = true
			if err := backend.Initialize(gcfg); err != nil {
				return err
			}
			app.headless = true
		} else {
			return err
		}
	}
	app.backend = backend

	if !app.headless && !backend.IsHeadless() {
		window, err := backend.CreateWindow(gcfg.WindowTitle, gcfg.WindowWidth, gcfg.WindowHeight)
		if err != nil {
			return fmt.Errorf("create window: %w", err)
		}
		app.window = window
	}

	app.videoProcessor = graphics.NewVideoProcessor(1.0, 1.0, 1.0)
	return nil
}

// LoadROM loads a ROM file and resets the system around it.
func (app *Application) LoadROM(romPath string) error {
	if !app.initialized {
		return errors.New("app: not initialized")
	}

	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		return fmt.Errorf("app: load ROM: %w", err)
	}

	app.cartridge = cart
	app.romPath = romPath
	app.bus.LoadCartridge(cart)
	app.bus.Reset()

	if app.window != nil {
		app.window.SetTitle(fmt.Sprintf("gones - %s", filepath.Base(romPath)))
	}

	app.emulator.Start()
	return nil
}

// RunHeadless steps the emulator exactly frames times with no pacing or
// window, for CI and automated testing.
func (app *Application) RunHeadless(frames int) error {
	if app.cartridge == nil {
		return errors.New("app: no ROM loaded")
	}
	for i := 0; i < frames; i++ {
		app.emulator.Step()
		app.dumpFrameIfEnabled()
	}
	return nil
}

// Run starts the interactive main loop. For the Ebitengine backend this
// hands control to ebiten's own game loop; otherwise it drives a simple
// poll/update/render loop until the window requests a close.
func (app *Application) Run() error {
	if !app.initialized {
		return errors.New("app: not initialized")
	}
	if app.window == nil {
		return app.RunHeadless(1)
	}

	if ebitengineWindow, ok := graphics.AsEbitengineWindow(app.window); ok {
		ebitengineWindow.SetEmulatorUpdateFunc(app.tick)
		return ebitengineWindow.Run()
	}

	for {
		if err := app.tick(); err != nil {
			return err
		}
		if app.window.ShouldClose() {
			return nil
		}
	}
}

// tick processes one iteration of the interactive loop: input, emulation,
// render.
func (app *Application) tick() error {
	app.processInput()
	app.emulator.Update()
	app.dumpFrameIfEnabled()
	app.logFPS()
	return app.render()
}

// processInput polls the window for events and applies them to the NES
// controllers.
func (app *Application) processInput() {
	if app.window == nil {
		return
	}

	for _, event := range app.window.PollEvents() {
		switch event.Type {
		case graphics.InputEventTypeQuit:
			app.emulator.Stop()
		case graphics.InputEventTypeButton:
			app.applyButtonEvent(event)
		}
	}
}

// applyButtonEvent maps a single graphics button event onto the
// appropriate NES controller.
func (app *Application) applyButtonEvent(event graphics.InputEvent) {
	if app.cartridge == nil {
		return
	}

	inputState := app.bus.GetInputState()
	if player2Button(event.Button) {
		button := player2ToInputButton(event.Button)
		inputState.Controller2.SetButton(button, event.Pressed)
		return
	}

	button := graphicsToInputButton(event.Button)
	inputState.Controller1.SetButton(button, event.Pressed)
}

// render presents the current frame buffer to the window, if any.
func (app *Application) render() error {
	if app.window == nil || app.cartridge == nil {
		return nil
	}

	frame := app.videoProcessor.ProcessFrame(app.bus.GetFrameBuffer())
	var buf [256 * 240]uint32
	copy(buf[:], frame)

	if err := app.window.RenderFrame(buf); err != nil {
		return fmt.Errorf("app: render frame: %w", err)
	}
	app.window.SwapBuffers()
	return nil
}

// dumpFrameIfEnabled writes the current frame to disk when frame dumping is
// configured.
func (app *Application) dumpFrameIfEnabled() {
	if app.frameDumper == nil {
		if !app.config.Debug.DumpFrames {
			return
		}
		app.frameDumper = debug.NewFrameDumper(app.config.Debug.DumpDir)
		if err := app.frameDumper.Enable(); err != nil {
			log.Printf("[APP] could not enable frame dumping: %v", err)
		}
	}
	if err := app.frameDumper.DumpPNG(app.bus.GetFrameBuffer(), app.emulator.FrameCount()); err != nil {
		log.Printf("[APP] frame dump failed: %v", err)
	}
}

// logFPS emits a low-frequency FPS log line when debug logging is enabled.
func (app *Application) logFPS() {
	if !app.config.Debug.EnableLogging {
		return
	}
	now := time.Now()
	if now.Sub(app.lastFPSLog) < 5*time.Second {
		return
	}
	elapsed := now.Sub(app.startTime).Seconds()
	if elapsed > 0 {
		log.Printf("[APP] frame %d, %.1f FPS average", app.emulator.FrameCount(), float64(app.emulator.FrameCount())/elapsed)
	}
	app.lastFPSLog = now
}

// Reset resets the emulated system.
func (app *Application) Reset() {
	app.bus.Reset()
}

// GetBus returns the underlying bus, for tests and advanced callers.
func (app *Application) GetBus() *bus.Bus {
	return app.bus
}

// GetConfig returns the application's configuration.
func (app *Application) GetConfig() *config.Config {
	return app.config
}

// Cleanup releases window and backend resources.
func (app *Application) Cleanup() error {
	var lastErr error
	if app.window != nil {
		if err := app.window.Cleanup(); err != nil {
			lastErr = err
			log.Printf("[APP] window cleanup error: %v", err)
		}
	}
	if app.backend != nil {
		if err := app.backend.Cleanup(); err != nil {
			lastErr = err
			log.Printf("[APP] backend cleanup error: %v", err)
		}
	}
	app.initialized = false
	return lastErr
}

func graphicsToInputButton(b graphics.Button) input.Button {
	switch b {
	case graphics.ButtonA:
		return input.A
	case graphics.ButtonB:
		return input.B
	case graphics.ButtonSelect:
		return input.Select
	case graphics.ButtonStart:
		return input.Start
	case graphics.ButtonUp:
		return input.Up
	case graphics.ButtonDown:
		return input.Down
	case graphics.ButtonLeft:
		return input.Left
	case graphics.ButtonRight:
		return input.Right
	default:
		return input.A
	}
}

func player2Button(b graphics.Button) bool {
	switch b {
	case graphics.Button2A, graphics.Button2B, graphics.Button2Select, graphics.Button2Start,
		graphics.Button2Up, graphics.Button2Down, graphics.Button2Left, graphics.Button2Right:
		return true
	default:
		return false
	}
}

func player2ToInputButton(b graphics.Button) input.Button {
	switch b {
	case graphics.Button2A:
		return input.A
	case graphics.Button2B:
		return input.B
	case graphics.Button2Select:
		return input.Select
	case graphics.Button2Start:
		return input.Start
	case graphics.Button2Up:
		return input.Up
	case graphics.Button2Down:
		return input.Down
	case graphics.Button2Left:
		return input.Left
	case graphics.Button2Right:
		return input.Right
	default:
		return input.A
	}
}
