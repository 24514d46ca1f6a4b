//go:build windows

package main

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/internal/frame"
	"github.com/lkarlslund/aircv/pkg/geometry"
)

func init() {
	// Without this, client rects and captures are in scaled logical pixels
	// on hi-dpi monitors.
	procSetProcessDpiAwareness.Call(uintptr(2)) // PROCESS_PER_MONITOR_DPI_AWARE
}

var (
	modUser32        = syscall.NewLazyDLL("User32.dll")
	procFindWindowEx = modUser32.NewProc("FindWindowExW")

	modShcore                  = syscall.NewLazyDLL("Shcore.dll")
	procSetProcessDpiAwareness = modShcore.NewProc("SetProcessDpiAwareness")
)

func findWindow(name string) (win.HWND, error) {
	hwnd := win.FindWindow(nil, syscall.StringToUTF16Ptr(name))
	if hwnd == 0 {
		return 0, fmt.Errorf("window %q not found, is it running?", name)
	}
	return hwnd, nil
}

func findChild(parent win.HWND, class string) win.HWND {
	ret, _, _ := procFindWindowEx.Call(
		uintptr(parent),
		0,
		uintptr(unsafe.Pointer(syscall.StringToUTF16Ptr(class))),
		0)
	return win.HWND(ret)
}

// clientRect returns the client area of hwnd in its own coordinates.
func clientRect(hwnd win.HWND) (geometry.Rect, error) {
	var r win.RECT
	if !win.GetClientRect(hwnd, &r) {
		return geometry.Rect{}, fmt.Errorf("could not get client rect of window %x", hwnd)
	}
	return geometry.R(0, 0, int(r.Right), int(r.Bottom)), nil
}

// captureWindow copies the client area of hwnd into a BGR Mat.
func captureWindow(hwnd win.HWND, r geometry.Rect) (gocv.Mat, error) {
	width, height := r.Dx(), r.Dy()
	if width <= 0 || height <= 0 {
		return gocv.NewMat(), fmt.Errorf("window has no area: %v", r)
	}

	src := win.GetDC(hwnd)
	if src == 0 {
		return gocv.NewMat(), fmt.Errorf("could not get device context of window %x", hwnd)
	}
	defer win.ReleaseDC(hwnd, src)

	dst := win.CreateCompatibleDC(src)
	if dst == 0 {
		return gocv.NewMat(), fmt.Errorf("could not create a compatible device context")
	}
	defer win.DeleteDC(dst)

	// A negative height asks for a top-down bitmap, so rows arrive in screen
	// order and need no flipping.
	header := win.BITMAPINFOHEADER{
		BiWidth:       int32(width),
		BiHeight:      -int32(height),
		BiPlanes:      1,
		BiBitCount:    32,
		BiCompression: win.BI_RGB,
	}
	header.BiSize = uint32(unsafe.Sizeof(header))
	var bits unsafe.Pointer
	bitmap := win.CreateDIBSection(dst, &header, win.DIB_RGB_COLORS, &bits, 0, 0)
	if bitmap == 0 {
		return gocv.NewMat(), fmt.Errorf("could not create a %dx%d capture bitmap", width, height)
	}
	defer win.DeleteObject(win.HGDIOBJ(bitmap))

	win.SelectObject(dst, win.HGDIOBJ(bitmap))
	x, y, _, _ := r.XYWH()
	if !win.BitBlt(dst, 0, 0, int32(width), int32(height), src, int32(x), int32(y), win.SRCCOPY) {
		return gocv.NewMat(), fmt.Errorf("could not copy window contents")
	}

	// The DIB is BGRA already; copy it out before the bitmap is freed.
	pix := make([]byte, width*height*4)
	copy(pix, unsafe.Slice((*byte)(bits), len(pix)))
	return frame.FromBytes(width, height, 4, pix)
}
