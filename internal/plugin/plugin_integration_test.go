package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// builtPlugin returns the repository plugin named name, skipping the test
// unless its executable has been built next to the manifest.
func builtPlugin(t *testing.T, name string) *Plugin {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	mgr := NewManager(filepath.Join("..", "..", "plugins"))
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	plug, err := mgr.Get(name)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", name, err)
	}
	if _, err := os.Stat(plug.Executable); err != nil {
		t.Skipf("%s plugin not built", name)
	}
	return plug
}

func TestPlugin_Reachy_UnknownAnimation(t *testing.T) {
	plug := builtPlugin(t, "reachy")

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), plug, &Request{
		Action:    "animate",
		Event:     "picked_up",
		Animation: "moonwalk",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for unknown animation")
	}
}

func TestPlugin_Say_RequiresText(t *testing.T) {
	plug := builtPlugin(t, "say")

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), plug, &Request{
		Action: "speak",
		Event:  "picked_up",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for empty text")
	}
}

func TestPlugin_Notify_UnknownAction(t *testing.T) {
	plug := builtPlugin(t, "notify")

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), plug, &Request{Action: "shout"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for unknown action")
	}
}

func TestRepositoryManifests(t *testing.T) {
	mgr := NewManager(filepath.Join("..", "..", "plugins"))
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	want := map[string]string{"say": "speak", "reachy": "animate", "notify": "notify"}
	for name, action := range want {
		plug, err := mgr.Get(name)
		if err != nil {
			t.Errorf("Get(%q) error = %v", name, err)
			continue
		}
		if !plug.Manifest.SupportsAction(action) {
			t.Errorf("%s should support %q", name, action)
		}
	}
}
