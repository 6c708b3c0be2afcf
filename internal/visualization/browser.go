package visualization

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// browserCommand returns the command that opens url on the given platform.
func browserCommand(goos, url string) (string, []string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return "xdg-open", []string{url}, nil
	case "darwin":
		return "open", []string{url}, nil
	case "windows":
		return "cmd", []string{"/c", "start", url}, nil
	}
	return "", nil, fmt.Errorf("unsupported platform: %s", goos)
}

// OpenBrowser opens the control panel URL in the user's default browser.
// It does not wait for the browser to exit.
func OpenBrowser(ctx context.Context, url string) error {
	name, args, err := browserCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}
	return exec.CommandContext(ctx, name, args...).Start()
}
