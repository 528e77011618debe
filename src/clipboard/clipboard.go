package clipboard

import (
	"sync"

	"golang.design/x/clipboard"
)

var writeMu sync.Mutex

// Init must be called once before Write. On Linux it verifies a usable
// clipboard backend exists (X11 or Wayland via the portal).
func Init() error {
	return clipboard.Init()
}

// Write copies text to the system clipboard. Guarded so a late notification
// goroutine cannot interleave with the main write.
func Write(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
