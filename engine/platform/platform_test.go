package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/vkframe/engine/core"
)

func TestTranslateKey(t *testing.T) {
	tests := []struct {
		key  glfw.Key
		want core.KeyCode
	}{
		{glfw.KeyEnter, core.KEY_ENTER},
		{glfw.KeyEscape, core.KEY_ESCAPE},
		{glfw.KeyF11, core.KEY_F11},
		{glfw.KeyLeftAlt, core.KEY_LMENU},
		{glfw.KeyRightAlt, core.KEY_RMENU},
		{glfw.KeyA, core.KEY_UNKNOWN},
	}
	for _, tt := range tests {
		if got := translateKey(tt.key); got != tt.want {
			t.Errorf("translateKey(%d) = %d, want %d", tt.key, got, tt.want)
		}
	}
}
