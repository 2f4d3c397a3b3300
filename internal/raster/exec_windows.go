//go:build windows

package raster

import (
	"os/exec"
	"syscall"
)

// hideWindowOnWindows suppresses the console window pdftoppm would
// otherwise pop up when shelled out to from a GUI-less worker.
func hideWindowOnWindows(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: 0x08000000, // CREATE_NO_WINDOW
	}
}
