// Package pagetest provides recording fakes for the page controllers'
// browser services
package pagetest

import (
	"sort"
	"sync"
	"time"

	"github.com/shindakun/diuportal/internal/page"
)

// Navigator records navigations instead of leaving the page
type Navigator struct {
	URLs []string
}

// Navigate implements page.Navigator
func (n *Navigator) Navigate(url string) {
	n.URLs = append(n.URLs, url)
}

// Last returns the most recent navigation, or ""
func (n *Navigator) Last() string {
	if len(n.URLs) == 0 {
		return ""
	}
	return n.URLs[len(n.URLs)-1]
}

// Clock is a page.Scheduler whose time only moves on Advance
type Clock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*timer
}

type timer struct {
	clock   *Clock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// AfterFunc implements page.Scheduler
func (c *Clock) AfterFunc(d time.Duration, fn func()) page.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{clock: c, at: c.now + d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d and runs every timer that came due, in
// due order. Timers run without the clock's lock held
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*timer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.fn()
	}
}

// Pending reports how many timers are neither stopped nor fired
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
