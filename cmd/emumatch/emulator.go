//go:build windows

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/lxn/win"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/pkg/geometry"
)

// EmulatorConfig names the windows of an Android emulator. Input goes to the
// input window, captures come from the screen window inside it.
type EmulatorConfig struct {
	MainWindowName    string
	InputWindowClass  string
	ScreenWindowClass string
}

var emulators = map[string]EmulatorConfig{
	"bluestacks": {
		MainWindowName:    "Bluestacks",
		InputWindowClass:  "plrNativeInputWindowClass",
		ScreenWindowClass: "BlueStacksApp",
	},
	"ldplayer": {
		MainWindowName:    "LDPlayer",
		InputWindowClass:  "RenderWindow",
		ScreenWindowClass: "subWin",
	},
}

func emulatorNames() string {
	names := make([]string, 0, len(emulators))
	for n := range emulators {
		names = append(names, n)
	}
	return strings.Join(names, ", ")
}

type emulator struct {
	Config EmulatorConfig

	mainwnd, inputwnd, screenwnd win.HWND
}

func openEmulator(name string) (*emulator, error) {
	ec, found := emulators[strings.ToLower(name)]
	if !found {
		return nil, fmt.Errorf("unknown emulator %q, known: %s", name, emulatorNames())
	}
	e := &emulator{Config: ec}

	var err error
	if e.mainwnd, err = findWindow(ec.MainWindowName); err != nil {
		return nil, err
	}
	if e.inputwnd = findChild(e.mainwnd, ec.InputWindowClass); e.inputwnd == 0 {
		return nil, errors.New("input window not found")
	}
	if e.screenwnd = findChild(e.inputwnd, ec.ScreenWindowClass); e.screenwnd == 0 {
		return nil, errors.New("screen window not found")
	}
	return e, nil
}

func (e *emulator) IsForeground() bool {
	return win.GetForegroundWindow() == e.mainwnd
}

func (e *emulator) Rect() (geometry.Rect, error) {
	return clientRect(e.screenwnd)
}

func (e *emulator) Capture() (gocv.Mat, error) {
	r, err := e.Rect()
	if err != nil {
		return gocv.NewMat(), err
	}
	return captureWindow(e.screenwnd, r)
}

func (e *emulator) lparam(p geometry.Point) uintptr {
	return uintptr(p.Y<<16 | (p.X & 0xFFFF))
}

// Click posts button messages to the input window. The emulator does not
// need to be in front.
func (e *emulator) Click(p geometry.Point) {
	win.SendMessage(e.inputwnd, win.WM_LBUTTONDOWN, win.MK_LBUTTON, e.lparam(p))
	win.SendMessage(e.inputwnd, win.WM_LBUTTONUP, 0, e.lparam(p))
}

// SystemClick moves the real cursor and clicks through SendInput, for
// emulators that ignore posted mouse messages. It activates the emulator
// first.
func (e *emulator) SystemClick(p geometry.Point) {
	e.Activate()
	pt := win.POINT{X: int32(p.X), Y: int32(p.Y)}
	win.ClientToScreen(e.screenwnd, &pt)
	win.SetCursorPos(pt.X, pt.Y)

	inputs := []win.MOUSE_INPUT{
		{Type: win.INPUT_MOUSE, Mi: win.MOUSEINPUT{DwFlags: win.MOUSEEVENTF_LEFTDOWN}},
		{Type: win.INPUT_MOUSE, Mi: win.MOUSEINPUT{DwFlags: win.MOUSEEVENTF_LEFTUP}},
	}
	win.SendInput(uint32(len(inputs)), unsafe.Pointer(&inputs[0]), int32(unsafe.Sizeof(inputs[0])))
}

func (e *emulator) Activate() {
	win.SendMessage(e.mainwnd, win.WM_ACTIVATE, win.WA_CLICKACTIVE, 0)
	win.SendMessage(e.mainwnd, win.WM_ACTIVATE, win.WA_ACTIVE, 0)
	time.Sleep(time.Millisecond * 5)
}
