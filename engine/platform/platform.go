package platform

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/vkframe/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type windowedGeometry struct {
	x, y          int
	width, height int
}

/**
 * @brief The glfw window and the translation of its callbacks into engine
 * events. Everything here runs on the main thread.
 */
type Platform struct {
	Window *glfw.Window

	events *core.EventSystem
	input  *core.Input

	fullscreen bool
	// Restored when leaving fullscreen.
	windowed windowedGeometry
}

func New(events *core.EventSystem) *Platform {
	return &Platform{
		Window: nil,
		events: events,
		input:  core.NewInput(events),
	}
}

func (p *Platform) Startup(applicationName string, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "failed to create window")
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.Show()

	core.LogInfo("Window '%s' created (%dx%d).", applicationName, width, height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events. It returns false once the
// window has been asked to close.
func (p *Platform) PumpMessages() bool {
	p.input.Update()
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// RequestClose makes the next PumpMessages return false.
func (p *Platform) RequestClose() {
	p.Window.SetShouldClose(true)
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// ToggleFullscreen switches between the primary monitor's video mode and the
// last windowed position and size.
func (p *Platform) ToggleFullscreen() {
	if p.fullscreen {
		g := p.windowed
		p.Window.SetMonitor(nil, g.x, g.y, g.width, g.height, 0)
		p.fullscreen = false
		core.LogDebug("Leaving fullscreen (%dx%d).", g.width, g.height)
		return
	}

	monitor := glfw.GetPrimaryMonitor()
	if monitor == nil {
		core.LogWarn("No primary monitor, staying windowed.")
		return
	}
	mode := monitor.GetVideoMode()

	p.windowed.x, p.windowed.y = p.Window.GetPos()
	p.windowed.width, p.windowed.height = p.Window.GetSize()
	p.Window.SetMonitor(monitor, 0, 0, mode.Width, mode.Height, mode.RefreshRate)
	p.fullscreen = true
	core.LogDebug("Entering fullscreen (%dx%d@%d).", mode.Width, mode.Height, mode.RefreshRate)
}

func (p *Platform) Sleep(ms uint64) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func (p *Platform) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance interface{}) (uintptr, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, errors.Wrap(err, "glfwCreateWindowSurface")
	}
	return surface, nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	pressed := action == glfw.Press
	if code := translateKey(key); code != core.KEY_UNKNOWN {
		p.input.ProcessKey(code, pressed)
	}
	if !pressed {
		return
	}

	switch {
	case key == glfw.KeyEscape:
		p.post(core.EventCodeApplicationQuit, nil)
	case key == glfw.KeyEnter && mods&glfw.ModAlt != 0:
		p.post(core.EventCodeToggleFullscreen, nil)
	}
}

// Reported with zero dimensions while the window is iconified.
func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.post(core.EventCodeResized, core.ResizeEvent{Width: uint32(width), Height: uint32(height)})
}

func (p *Platform) post(code core.EventCode, data interface{}) {
	if err := p.events.Post(core.EventContext{Type: code, Sender: p, Data: data}); err != nil {
		core.LogWarn("Dropped event %d: %s", code, err)
	}
}

func translateKey(key glfw.Key) core.KeyCode {
	switch key {
	case glfw.KeyEnter:
		return core.KEY_ENTER
	case glfw.KeyEscape:
		return core.KEY_ESCAPE
	case glfw.KeySpace:
		return core.KEY_SPACE
	case glfw.KeyF11:
		return core.KEY_F11
	case glfw.KeyLeftShift:
		return core.KEY_LSHIFT
	case glfw.KeyRightShift:
		return core.KEY_RSHIFT
	case glfw.KeyLeftAlt:
		return core.KEY_LMENU
	case glfw.KeyRightAlt:
		return core.KEY_RMENU
	default:
		return core.KEY_UNKNOWN
	}
}
