package input

import (
	"github.com/go-vgo/robotgo"

	"hostcast/internal/types"
)

// robotDriver backs the injector with robotgo's OS input calls.
type robotDriver struct{}

// NewDriver returns the host input driver.
func NewDriver() (types.InputDriver, error) {
	return robotDriver{}, nil
}

func (robotDriver) MoveMouse(x, y int) {
	robotgo.Move(x, y)
}

func (robotDriver) ToggleButton(button string, down bool) error {
	if down {
		return robotgo.Toggle(button, "down")
	}
	return robotgo.Toggle(button, "up")
}

func (robotDriver) Click(button string, double bool) {
	robotgo.Click(button, double)
}

func (robotDriver) Scroll(dx, dy int) {
	robotgo.Scroll(dx, dy)
}

func (robotDriver) ToggleKey(key string, down bool) error {
	if down {
		return robotgo.KeyToggle(key, "down")
	}
	return robotgo.KeyToggle(key, "up")
}

func (robotDriver) CursorPos() (int, int) {
	return robotgo.Location()
}

func (robotDriver) Close() {}
