//go:build !windows

package raster

import "os/exec"

// hideWindowOnWindows is a no-op on every platform except Windows, where
// shelling out to pdftoppm would otherwise flash a console window.
func hideWindowOnWindows(cmd *exec.Cmd) {}
