// Package tray provides the menu bar interface for judgy.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Labels shown before the first status update.
const (
	defaultToggle = "Start Monitoring"
	noEvent       = "Last: none"
)

// Tray represents the menu bar application.
type Tray struct {
	onToggle func()
	onOpen   func()
	onQuit   func()
	mu       sync.RWMutex

	toggleText string
	pickups    int
	monitoring bool
	lastEvent  string

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuPickups   *systray.MenuItem
	menuLastEvent *systray.MenuItem
}

// New creates a new Tray in the not-monitoring state.
func New() *Tray {
	return &Tray{toggleText: defaultToggle}
}

// OnToggle sets the function called when the monitoring item is clicked.
func (t *Tray) OnToggle(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the function called when the dashboard item is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the function called when the quit item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the menu bar application and blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the menu bar application.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("judgy")
	systray.SetTooltip("judgy is watching your phone")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(t.toggleText, "Start or stop monitoring")
	systray.AddSeparator()
	t.menuPickups = systray.AddMenuItem(pickupsTitle(t.pickups), "Pickups counted today")
	t.menuPickups.Disable()
	t.menuLastEvent = systray.AddMenuItem(lastEventTitle(t.lastEvent), "Last event")
	t.menuLastEvent.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit judgy")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.call(func(t *Tray) func() { return t.onToggle })
			case <-menuOpen.ClickedCh:
				t.call(func(t *Tray) func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.call(func(t *Tray) func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// call runs the selected callback outside the lock.
func (t *Tray) call(get func(t *Tray) func()) {
	t.mu.RLock()
	callback := get(t)
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetStatus updates the monitoring item and today's pickup count.
// toggleText is the label of the monitoring button.
func (t *Tray) SetStatus(toggleText string, monitoring bool, pickups int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.toggleText = toggleText
	t.monitoring = monitoring
	t.pickups = pickups

	// Menu items exist only once the tray is running.
	if t.menuToggle == nil {
		return
	}
	t.menuToggle.SetTitle(toggleText)
	t.menuPickups.SetTitle(pickupsTitle(pickups))
	if monitoring {
		systray.SetTitle(fmt.Sprintf("judgy %d", pickups))
	} else {
		systray.SetTitle("judgy")
	}
}

// SetLastEvent updates the last event line.
func (t *Tray) SetLastEvent(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastEvent = text
	if t.menuLastEvent != nil {
		t.menuLastEvent.SetTitle(lastEventTitle(text))
	}
}

// Monitoring returns the last monitoring state passed to SetStatus.
func (t *Tray) Monitoring() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.monitoring
}

// Pickups returns the last pickup count passed to SetStatus.
func (t *Tray) Pickups() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pickups
}

func pickupsTitle(n int) string {
	if n == 1 {
		return "1 pickup today"
	}
	return fmt.Sprintf("%d pickups today", n)
}

func lastEventTitle(text string) string {
	if text == "" {
		return noEvent
	}
	return "Last: " + text
}
