//go:build windows

package capture

import (
	"strings"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32vw              = windows.NewLazySystemDLL("user32.dll")
	procGetForegroundWnd  = user32vw.NewProc("GetForegroundWindow")
	procGetWindowTextW    = user32vw.NewProc("GetWindowTextW")
	procGetWindowTextLenW = user32vw.NewProc("GetWindowTextLengthW")
)

// GameFocus returns a FocusFunc that is true while the foreground window
// title contains titlePart (case-insensitive). An empty titlePart always
// captures.
func GameFocus(titlePart string) FocusFunc {
	if titlePart == "" {
		return nil
	}
	want := strings.ToLower(titlePart)
	return func() bool {
		title := foregroundWindowTitle()
		return strings.Contains(strings.ToLower(title), want)
	}
}

// foregroundWindowTitle returns the title of the focused window, or "".
func foregroundWindowTitle() string {
	hwnd, _, _ := procGetForegroundWnd.Call()
	if hwnd == 0 {
		return ""
	}
	length, _, _ := procGetWindowTextLenW.Call(hwnd)
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return string(utf16.Decode(buf[:n]))
}
