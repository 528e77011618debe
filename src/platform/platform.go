package platform

import (
	"os"
	"runtime"
)

// Kind identifies the OS plus display server combination snag is running on.
type Kind int

const (
	Unknown Kind = iota
	LinuxX11
	LinuxWayland
	Windows
	MacOS
)

func (k Kind) String() string {
	switch k {
	case LinuxX11:
		return "linux_x11"
	case LinuxWayland:
		return "linux_wayland"
	case Windows:
		return "windows"
	case MacOS:
		return "macos"
	default:
		return "unknown"
	}
}

// Detect classifies the running environment. It never fails; Linux without
// any display hints defaults to X11.
func Detect() Kind {
	return detect(runtime.GOOS, os.Getenv)
}

func detect(goos string, getenv func(string) string) Kind {
	switch goos {
	case "windows":
		return Windows
	case "darwin":
		return MacOS
	case "linux":
		if getenv("WAYLAND_DISPLAY") != "" {
			return LinuxWayland
		}
		if getenv("XDG_SESSION_TYPE") == "wayland" {
			return LinuxWayland
		}
		if getenv("DISPLAY") != "" {
			return LinuxX11
		}
		if getenv("XDG_SESSION_TYPE") == "x11" {
			return LinuxX11
		}
		return LinuxX11
	}
	return Unknown
}

// IsWayland reports whether the current session runs under Wayland.
func IsWayland() bool {
	return Detect() == LinuxWayland
}
