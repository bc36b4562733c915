package page

import (
	"sync"
	"time"
)

// MessageKind selects the colours, icon and heading of a message
type MessageKind string

const (
	MessageError   MessageKind = "error"
	MessageSuccess MessageKind = "success"
	MessageInfo    MessageKind = "info"
)

// ParseMessageKind maps a data-kind value to a kind, defaulting to info
func ParseMessageKind(s string) MessageKind {
	switch MessageKind(s) {
	case MessageError, MessageSuccess:
		return MessageKind(s)
	default:
		return MessageInfo
	}
}

const (
	// MessageLifetime is how long a message stays on the page
	MessageLifetime = 10 * time.Second

	// DefaultErrorHeading titles error messages unless the page sets its own
	DefaultErrorHeading = "Registration Failed"

	messageClass     = "dynamic-message"
	messageContainer = ".glass-effect"
)

// Messenger shows transient messages to the user
type Messenger interface {
	Show(text string, kind MessageKind)
}

type messageStyle struct {
	box     string
	icon    string
	heading string
}

// MessageDisplay renders at most one message banner at the top of the
// page's .glass-effect container and removes it after MessageLifetime
type MessageDisplay struct {
	doc          Document
	scheduler    Scheduler
	errorHeading string

	mu      sync.Mutex
	current Element
	timer   Timer
}

// NewMessageDisplay creates a display. An empty errorHeading uses
// DefaultErrorHeading
func NewMessageDisplay(doc Document, scheduler Scheduler, errorHeading string) *MessageDisplay {
	if errorHeading == "" {
		errorHeading = DefaultErrorHeading
	}
	return &MessageDisplay{doc: doc, scheduler: scheduler, errorHeading: errorHeading}
}

func (m *MessageDisplay) style(kind MessageKind) messageStyle {
	switch kind {
	case MessageError:
		return messageStyle{"bg-red-50 border-red-200 text-red-800", "fa-exclamation-circle text-red-500", m.errorHeading}
	case MessageSuccess:
		return messageStyle{"bg-green-50 border-green-200 text-green-800", "fa-check-circle text-green-500", "Success"}
	default:
		return messageStyle{"bg-blue-50 border-blue-200 text-blue-800", "fa-info-circle text-blue-500", "Notice"}
	}
}

// Show replaces any visible message with text. The text is set as text
// content, never parsed as markup
func (m *MessageDisplay) Show(text string, kind MessageKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, el := range m.doc.QueryAll("." + messageClass) {
		el.Remove()
	}
	m.current = nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}

	container := m.doc.Query(messageContainer)
	if container == nil {
		return
	}

	banner := m.build(text, kind)
	container.InsertFirst(banner)
	m.current = banner
	m.timer = m.scheduler.AfterFunc(MessageLifetime, func() {
		m.expire(banner)
	})
}

// Clear removes the visible message, if any
func (m *MessageDisplay) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.current != nil {
		m.current.Remove()
		m.current = nil
	}
}

func (m *MessageDisplay) expire(banner Element) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// A newer message owns the slot
	if m.current == nil || !m.current.Same(banner) {
		return
	}
	banner.Remove()
	m.current = nil
	m.timer = nil
}

func (m *MessageDisplay) build(text string, kind MessageKind) Element {
	st := m.style(kind)

	banner := m.doc.Create("div")
	banner.SetAttr("class", messageClass+" mb-6 p-4 rounded-lg border "+st.box)
	banner.SetAttr("role", "alert")
	banner.SetAttr("data-kind", string(kind))

	row := m.doc.Create("div")
	row.SetAttr("class", "flex")

	icon := m.doc.Create("i")
	icon.SetAttr("class", "fas "+st.icon+" mr-3 mt-0.5")

	body := m.doc.Create("div")
	heading := m.doc.Create("h3")
	heading.SetAttr("class", "font-semibold")
	heading.SetText(st.heading)
	msg := m.doc.Create("div")
	msg.SetAttr("class", "mt-2 text-sm")
	msg.SetText(text)

	body.AppendChild(heading)
	body.AppendChild(msg)
	row.AppendChild(icon)
	row.AppendChild(body)
	banner.AppendChild(row)
	return banner
}
