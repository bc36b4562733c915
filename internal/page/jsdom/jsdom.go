//go:build js && wasm

// Package jsdom binds the page controllers to the browser DOM
package jsdom

import (
	"syscall/js"

	"github.com/shindakun/diuportal/internal/page"
)

// Document wraps window.document
type Document struct {
	v js.Value
}

// New returns the current document
func New() *Document {
	return &Document{v: js.Global().Get("document")}
}

func wrap(v js.Value) page.Element {
	if v.IsNull() || v.IsUndefined() {
		return nil
	}
	return &Element{v: v}
}

func wrapAll(list js.Value) []page.Element {
	n := list.Length()
	out := make([]page.Element, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &Element{v: list.Index(i)})
	}
	return out
}

func (d *Document) ByID(id string) page.Element {
	return wrap(d.v.Call("getElementById", id))
}

func (d *Document) Query(selector string) page.Element {
	return wrap(d.v.Call("querySelector", selector))
}

func (d *Document) QueryAll(selector string) []page.Element {
	return wrapAll(d.v.Call("querySelectorAll", selector))
}

func (d *Document) Create(tag string) page.Element {
	return &Element{v: d.v.Call("createElement", tag)}
}

// OnReady runs fn once the DOM is parsed
func (d *Document) OnReady(fn func()) {
	if d.v.Get("readyState").String() != "loading" {
		fn()
		return
	}
	var cb js.Func
	cb = js.FuncOf(func(js.Value, []js.Value) any {
		cb.Release()
		fn()
		return nil
	})
	d.v.Call("addEventListener", "DOMContentLoaded", cb)
}

// Element wraps a DOM element
type Element struct {
	v js.Value
}

func (e *Element) ID() string { return e.v.Get("id").String() }

func (e *Element) Attr(name string) (string, bool) {
	if !e.v.Call("hasAttribute", name).Bool() {
		return "", false
	}
	return e.v.Call("getAttribute", name).String(), true
}

func (e *Element) SetAttr(name, value string) { e.v.Call("setAttribute", name, value) }
func (e *Element) RemoveAttr(name string)     { e.v.Call("removeAttribute", name) }

func (e *Element) Value() string {
	v := e.v.Get("value")
	if v.IsUndefined() {
		return ""
	}
	return v.String()
}

func (e *Element) SetValue(value string) { e.v.Set("value", value) }
func (e *Element) Text() string          { return e.v.Get("textContent").String() }
func (e *Element) SetText(text string)   { e.v.Set("textContent", text) }
func (e *Element) SetHTML(markup string) { e.v.Set("innerHTML", markup) }

func (e *Element) AddClass(names ...string) {
	for _, n := range names {
		e.v.Get("classList").Call("add", n)
	}
}

func (e *Element) RemoveClass(names ...string) {
	for _, n := range names {
		e.v.Get("classList").Call("remove", n)
	}
}

func (e *Element) HasClass(name string) bool {
	return e.v.Get("classList").Call("contains", name).Bool()
}

func (e *Element) SetDisabled(disabled bool) { e.v.Set("disabled", disabled) }

func (e *Element) Parent() page.Element { return wrap(e.v.Get("parentElement")) }

func (e *Element) Query(selector string) page.Element {
	return wrap(e.v.Call("querySelector", selector))
}

func (e *Element) QueryAll(selector string) []page.Element {
	return wrapAll(e.v.Call("querySelectorAll", selector))
}

func (e *Element) AppendChild(child page.Element) {
	if c, ok := child.(*Element); ok && c != nil {
		e.v.Call("appendChild", c.v)
	}
}

func (e *Element) InsertFirst(child page.Element) {
	if c, ok := child.(*Element); ok && c != nil {
		e.v.Call("insertBefore", c.v, e.v.Get("firstChild"))
	}
}

func (e *Element) Remove() { e.v.Call("remove") }

func (e *Element) Same(other page.Element) bool {
	o, ok := other.(*Element)
	return ok && o != nil && e.v.Equal(o.v)
}

type listener struct {
	target js.Value
	event  string
	fn     js.Func
}

// listeners added through On, until Release
var listeners []listener

// On registers fn until Release is called
func (e *Element) On(event string, fn func(page.Event)) {
	cb := js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) > 0 {
			fn(Event{v: args[0]})
		}
		return nil
	})
	e.v.Call("addEventListener", event, cb)
	listeners = append(listeners, listener{target: e.v, event: event, fn: cb})
}

// Release removes every listener registered with On and frees its callback
func Release() {
	for _, l := range listeners {
		l.target.Call("removeEventListener", l.event, l.fn)
		l.fn.Release()
	}
	listeners = nil
}

// OnPageHide runs fn once when the page is unloaded for good. Pages kept in
// the back-forward cache are skipped, since they can be shown again
func OnPageHide(fn func()) {
	var cb js.Func
	cb = js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) > 0 && args[0].Get("persisted").Truthy() {
			return nil
		}
		js.Global().Call("removeEventListener", "pagehide", cb)
		cb.Release()
		fn()
		return nil
	})
	js.Global().Call("addEventListener", "pagehide", cb)
}

func (e *Element) Click()          { e.v.Call("click") }
func (e *Element) ScrollIntoView() { e.v.Call("scrollIntoView", map[string]any{"behavior": "smooth", "block": "center"}) }

// Submit submits the form without firing its submit event
func (e *Element) Submit() { e.v.Call("submit") }

// Event wraps a DOM event
type Event struct {
	v js.Value
}

func (e Event) Type() string           { return e.v.Get("type").String() }
func (e Event) PreventDefault()        { e.v.Call("preventDefault") }
func (e Event) DefaultPrevented() bool { return e.v.Get("defaultPrevented").Bool() }

// Navigator assigns window.location
type Navigator struct{}

func (Navigator) Navigate(url string) {
	js.Global().Get("window").Get("location").Set("href", url)
}
