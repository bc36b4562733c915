//go:build js && wasm

// Command authwasm runs the sign-in and registration page controllers in
// the browser. Build with GOOS=js GOARCH=wasm; see the Makefile
package main

import (
	"github.com/shindakun/diuportal/internal/page"
	"github.com/shindakun/diuportal/internal/page/jsdom"
)

func main() {
	doc := jsdom.New()
	doc.OnReady(func() {
		page.Mount(doc, page.Deps{Navigator: jsdom.Navigator{}})
	})

	// Listeners call back into Go, so the program runs until the page goes away
	done := make(chan struct{})
	jsdom.OnPageHide(func() {
		jsdom.Release()
		close(done)
	})
	<-done
}
