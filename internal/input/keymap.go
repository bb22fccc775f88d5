package input

// keyMap translates the browser's KeyboardEvent.key names to the driver's
// symbolic key names.
var keyMap = map[string]string{
	"Backspace":   "backspace",
	"Tab":         "tab",
	"Enter":       "enter",
	"Shift":       "shift",
	"Control":     "ctrl",
	"Alt":         "alt",
	"Meta":        "cmd",
	"Pause":       "pause",
	"CapsLock":    "capslock",
	"Escape":      "esc",
	" ":           "space",
	"PageUp":      "pageup",
	"PageDown":    "pagedown",
	"End":         "end",
	"Home":        "home",
	"ArrowLeft":   "left",
	"ArrowUp":     "up",
	"ArrowRight":  "right",
	"ArrowDown":   "down",
	"Insert":      "insert",
	"Delete":      "delete",
	"ContextMenu": "menu",
	"NumLock":     "numlock",
	"ScrollLock":  "scrolllock",
	"F1":          "f1",
	"F2":          "f2",
	"F3":          "f3",
	"F4":          "f4",
	"F5":          "f5",
	"F6":          "f6",
	"F7":          "f7",
	"F8":          "f8",
	"F9":          "f9",
	"F10":         "f10",
	"F11":         "f11",
	"F12":         "f12",
}

// mapKey resolves a browser key name. Named keys use the table; single
// characters pass through unchanged. Longer unmapped names are dropped.
func mapKey(key string) (string, bool) {
	if mapped, ok := keyMap[key]; ok {
		return mapped, true
	}
	if len(key) == 1 {
		return key, true
	}
	return "", false
}
