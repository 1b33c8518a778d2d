package core

// Key code definitions
type KeyCode uint16

const (
	KEY_UNKNOWN   KeyCode = 0x00
	KEY_ENTER     KeyCode = 0x0D
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_F11       KeyCode = 0x7A
	KEY_LSHIFT    KeyCode = 0xA0
	KEY_RSHIFT    KeyCode = 0xA1
	KEY_LMENU     KeyCode = 0xA4
	KEY_RMENU     KeyCode = 0xA5
	KEYS_MAX_KEYS KeyCode = 0x100
)

// Keyboard state structure
type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// Input holds current and previous keyboard states and turns key changes
// into events.
type Input struct {
	events   *EventSystem
	current  KeyboardState
	previous KeyboardState
}

func NewInput(events *EventSystem) *Input {
	return &Input{events: events}
}

// Update copies the current state to the previous one. Called once per frame.
func (in *Input) Update() {
	in.previous = in.current
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && in.current.Keys[key]
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && in.previous.Keys[key]
}

// AltDown reports whether either alt key is held.
func (in *Input) AltDown() bool {
	return in.IsKeyDown(KEY_LMENU) || in.IsKeyDown(KEY_RMENU)
}

// ProcessKey records a key transition and fires a key event when the state
// actually changed.
func (in *Input) ProcessKey(key KeyCode, pressed bool) {
	if key >= KEYS_MAX_KEYS || in.current.Keys[key] == pressed {
		return
	}
	in.current.Keys[key] = pressed

	code := EventCodeKeyReleased
	if pressed {
		code = EventCodeKeyPressed
	}
	// Fire off an event for immediate processing.
	in.events.Fire(EventContext{
		Type:   code,
		Sender: in,
		Data: KeyEvent{
			KeyCode: key,
			Alt:     in.AltDown(),
		},
	})
}
