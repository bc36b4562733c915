//go:build js && wasm

package jsdom

import (
	"syscall/js"
	"testing"

	"github.com/shindakun/diuportal/internal/page"
)

// Run with GOOS=js GOARCH=wasm and go_js_wasm_exec; Node provides
// EventTarget and Event

func dispatch(target js.Value, event string) {
	target.Call("dispatchEvent", js.Global().Get("Event").New(event))
}

func TestReleaseRemovesListeners(t *testing.T) {
	target := js.Global().Get("EventTarget").New()
	el := &Element{v: target}

	calls := 0
	el.On("ping", func(e page.Event) {
		if e.Type() != "ping" {
			t.Errorf("event type = %q", e.Type())
		}
		calls++
	})

	dispatch(target, "ping")
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if len(listeners) != 1 {
		t.Fatalf("%d listeners tracked", len(listeners))
	}

	Release()
	dispatch(target, "ping")
	if calls != 1 {
		t.Errorf("listener ran after Release: calls = %d", calls)
	}
	if len(listeners) != 0 {
		t.Errorf("%d listeners left", len(listeners))
	}
}
