// Package memdom is an in-memory page.Document over golang.org/x/net/html.
// It records native form submissions and scroll requests so controller
// behaviour can be asserted without a browser. Events do not bubble
package memdom

import (
	"io"
	"net/url"
	"slices"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/shindakun/diuportal/internal/page"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Submission is a form submitted natively
type Submission struct {
	FormID string
	Values url.Values
}

// Document is a parsed HTML document
type Document struct {
	root        *html.Node
	elems       map[*html.Node]*Element
	submissions []Submission
}

// Parse reads a full HTML document
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{root: root, elems: make(map[*html.Node]*Element)}, nil
}

// ParseString parses markup held in a string
func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// Submissions returns the native submissions so far, oldest first
func (d *Document) Submissions() []Submission {
	return d.submissions
}

// HTML renders the current tree
func (d *Document) HTML() string {
	var b strings.Builder
	html.Render(&b, d.root)
	return b.String()
}

// wrap returns the one wrapper of n, so listeners stay attached to a node
func (d *Document) wrap(n *html.Node) *Element {
	if e, ok := d.elems[n]; ok {
		return e
	}
	e := &Element{doc: d, n: n}
	d.elems[n] = e
	return e
}

// el converts a node to a page.Element, keeping nil as an untyped nil
func (d *Document) el(n *html.Node) page.Element {
	if n == nil {
		return nil
	}
	return d.wrap(n)
}

func (d *Document) all(nodes []*html.Node) []page.Element {
	out := make([]page.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrap(n))
	}
	return out
}

// ByID returns the element with the given id
func (d *Document) ByID(id string) page.Element {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return d.el(found)
}

// Query returns the first element matching selector
func (d *Document) Query(selector string) page.Element {
	return d.el(first(d.root, selector))
}

// QueryAll returns every element matching selector, in document order
func (d *Document) QueryAll(selector string) []page.Element {
	return d.all(matchAll(d.root, selector))
}

// Create returns a detached element
func (d *Document) Create(tag string) page.Element {
	return d.wrap(&html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	})
}

// Dispatch fires an event of type typ on el and returns it, so callers can
// check whether a listener prevented the default action
func (d *Document) Dispatch(el page.Element, typ string) *Event {
	ev := &Event{typ: typ}
	if e, ok := el.(*Element); ok && e != nil {
		for _, fn := range e.listeners[typ] {
			fn(ev)
		}
	}
	return ev
}

// SubmitForm behaves like a user submitting form: the submit event fires
// and, unless a listener prevents it, the form is submitted natively
func (d *Document) SubmitForm(form page.Element) *Event {
	ev := d.Dispatch(form, "submit")
	if !ev.DefaultPrevented() {
		form.Submit()
	}
	return ev
}

// Type sets an input's value and fires its input event
func (d *Document) Type(input page.Element, value string) {
	input.SetValue(value)
	d.Dispatch(input, "input")
}

// Event is a dispatched event
type Event struct {
	typ       string
	prevented bool
}

func (e *Event) Type() string           { return e.typ }
func (e *Event) PreventDefault()        { e.prevented = true }
func (e *Event) DefaultPrevented() bool { return e.prevented }

// Element wraps an element node
type Element struct {
	doc       *Document
	n         *html.Node
	listeners map[string][]func(page.Event)
	scrolls   int
}

// Node returns the underlying node
func (e *Element) Node() *html.Node { return e.n }

// ScrollCount reports how often ScrollIntoView was called
func (e *Element) ScrollCount() int { return e.scrolls }

// Listeners reports how many listeners are attached for typ
func (e *Element) Listeners(typ string) int { return len(e.listeners[typ]) }

func (e *Element) ID() string { return attr(e.n, "id") }

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *Element) SetAttr(name, value string) {
	for i, a := range e.n.Attr {
		if a.Namespace == "" && a.Key == name {
			e.n.Attr[i].Val = value
			return
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: name, Val: value})
}

func (e *Element) RemoveAttr(name string) {
	e.n.Attr = slices.DeleteFunc(e.n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == name
	})
}

// Value is the value attribute, or the text of a textarea
func (e *Element) Value() string {
	if e.n.DataAtom == atom.Textarea {
		return e.Text()
	}
	v, _ := e.Attr("value")
	return v
}

func (e *Element) SetValue(value string) {
	if e.n.DataAtom == atom.Textarea {
		e.SetText(value)
		return
	}
	e.SetAttr("value", value)
}

func (e *Element) Text() string {
	var b strings.Builder
	walk(e.n, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		return true
	})
	return b.String()
}

func (e *Element) clear() {
	for c := e.n.FirstChild; c != nil; {
		next := c.NextSibling
		e.n.RemoveChild(c)
		c = next
	}
}

func (e *Element) SetText(text string) {
	e.clear()
	e.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func (e *Element) SetHTML(markup string) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), e.n)
	if err != nil {
		return
	}
	e.clear()
	for _, n := range nodes {
		e.n.AppendChild(n)
	}
}

func (e *Element) classes() []string {
	v, _ := e.Attr("class")
	return strings.Fields(v)
}

func (e *Element) AddClass(names ...string) {
	cls := e.classes()
	for _, name := range names {
		if !slices.Contains(cls, name) {
			cls = append(cls, name)
		}
	}
	e.SetAttr("class", strings.Join(cls, " "))
}

func (e *Element) RemoveClass(names ...string) {
	cls := slices.DeleteFunc(e.classes(), func(c string) bool {
		return slices.Contains(names, c)
	})
	e.SetAttr("class", strings.Join(cls, " "))
}

func (e *Element) HasClass(name string) bool {
	return slices.Contains(e.classes(), name)
}

func (e *Element) SetDisabled(disabled bool) {
	if disabled {
		e.SetAttr("disabled", "")
	} else {
		e.RemoveAttr("disabled")
	}
}

// Disabled reports whether the disabled attribute is present
func (e *Element) Disabled() bool {
	_, ok := e.Attr("disabled")
	return ok
}

func (e *Element) Parent() page.Element {
	p := e.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(p)
}

func (e *Element) Query(selector string) page.Element {
	for _, n := range matchAll(e.n, selector) {
		if n != e.n {
			return e.doc.wrap(n)
		}
	}
	return nil
}

func (e *Element) QueryAll(selector string) []page.Element {
	nodes := slices.DeleteFunc(matchAll(e.n, selector), func(n *html.Node) bool {
		return n == e.n
	})
	return e.doc.all(nodes)
}

func (e *Element) node(child page.Element) *html.Node {
	c, ok := child.(*Element)
	if !ok || c == nil {
		return nil
	}
	if c.n.Parent != nil {
		c.n.Parent.RemoveChild(c.n)
	}
	return c.n
}

func (e *Element) AppendChild(child page.Element) {
	if n := e.node(child); n != nil {
		e.n.AppendChild(n)
	}
}

func (e *Element) InsertFirst(child page.Element) {
	if n := e.node(child); n != nil {
		e.n.InsertBefore(n, e.n.FirstChild)
	}
}

func (e *Element) Remove() {
	if e.n.Parent != nil {
		e.n.Parent.RemoveChild(e.n)
	}
}

func (e *Element) Same(other page.Element) bool {
	o, ok := other.(*Element)
	return ok && o != nil && o.n == e.n
}

func (e *Element) On(event string, fn func(page.Event)) {
	if e.listeners == nil {
		e.listeners = make(map[string][]func(page.Event))
	}
	e.listeners[event] = append(e.listeners[event], fn)
}

func (e *Element) Click() {
	e.doc.Dispatch(e, "click")
}

func (e *Element) ScrollIntoView() {
	e.scrolls++
}

// Submit records a native submission of the form's successful controls
func (e *Element) Submit() {
	e.doc.submissions = append(e.doc.submissions, Submission{
		FormID: e.ID(),
		Values: formValues(e.n),
	})
}

// formValues collects named, enabled controls the way a browser would
func formValues(form *html.Node) url.Values {
	values := url.Values{}
	walk(form, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		name := attr(n, "name")
		if name == "" || hasAttr(n, "disabled") {
			return true
		}
		switch n.DataAtom {
		case atom.Input:
			switch strings.ToLower(attr(n, "type")) {
			case "submit", "button", "reset", "image", "file":
				return true
			case "checkbox", "radio":
				if !hasAttr(n, "checked") {
					return true
				}
				v := attr(n, "value")
				if v == "" {
					v = "on"
				}
				values.Add(name, v)
				return true
			}
			values.Add(name, attr(n, "value"))
		case atom.Textarea:
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			values.Add(name, b.String())
		case atom.Select:
			walk(n, func(o *html.Node) bool {
				if o.DataAtom == atom.Option && hasAttr(o, "selected") {
					values.Add(name, attr(o, "value"))
				}
				return true
			})
		}
		return true
	})
	return values
}

// walk visits n and its descendants depth-first until fn returns false
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func matchAll(n *html.Node, selector string) []*html.Node {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	return sel.MatchAll(n)
}

func first(n *html.Node, selector string) *html.Node {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	return sel.MatchFirst(n)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}
