package overlay

import (
	"log"
	"sync"

	hook "github.com/robotn/gohook"
)

// watchCancelKeys starts a global keyboard hook so Escape and 'q' cancel the
// selection even when the overlay window does not own keyboard focus. The
// callback fires on the hook goroutine; callers must marshal it onto the UI
// loop themselves. The returned stop function tears the hook down and must
// run before the overlay window is destroyed; it is safe to call more than
// once.
func watchCancelKeys(onCancel func()) (stop func()) {
	hook.Register(hook.KeyDown, []string{"esc"}, func(hook.Event) {
		log.Printf("Overlay: cancel key (esc)")
		onCancel()
	})
	hook.Register(hook.KeyDown, []string{"q"}, func(hook.Event) {
		log.Printf("Overlay: cancel key (q)")
		onCancel()
	})

	events := hook.Start()
	go func() {
		<-hook.Process(events)
	}()

	var once sync.Once
	return func() {
		once.Do(hook.End)
	}
}
