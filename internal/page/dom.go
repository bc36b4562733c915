// Package page holds the browser-side controllers of the login and
// registration pages. Controllers only see the interfaces below, so the same
// code runs against the real DOM in the WASM build and against an in-memory
// document in tests
package page

import "time"

// Event is a DOM event delivered to a listener
type Event interface {
	Type() string
	PreventDefault()
	DefaultPrevented() bool
}

// Element is the part of a DOM element the controllers use. Lookups that
// find nothing return a nil Element
type Element interface {
	ID() string
	Attr(name string) (string, bool)
	SetAttr(name, value string)
	RemoveAttr(name string)

	Value() string
	SetValue(value string)
	Text() string
	SetText(text string)
	// SetHTML replaces the children with trusted markup
	SetHTML(markup string)

	AddClass(names ...string)
	RemoveClass(names ...string)
	HasClass(name string) bool
	SetDisabled(disabled bool)

	Parent() Element
	Query(selector string) Element
	QueryAll(selector string) []Element
	AppendChild(child Element)
	InsertFirst(child Element)
	Remove()
	Same(other Element) bool

	On(event string, fn func(Event))
	Click()
	ScrollIntoView()
	// Submit submits a form natively, without firing its submit event
	Submit()
}

// Document is the page the controllers are mounted on
type Document interface {
	ByID(id string) Element
	Query(selector string) Element
	QueryAll(selector string) []Element
	Create(tag string) Element
}

// Navigator performs full-page navigation
type Navigator interface {
	Navigate(url string)
}

// Timer is a pending scheduled call
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// SystemScheduler schedules on the runtime timer
type SystemScheduler struct{}

// AfterFunc implements Scheduler with time.AfterFunc
func (SystemScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
