package app

import (
	"golang.org/x/net/html"
)

// Module is whatever a module factory returns. It may implement any of
// Initializer, Destroyer and Messaging; a value implementing none of them,
// nil included, is a valid module that simply never hears anything.
type Module any

// Factory creates a module instance bound to ctx.
type Factory func(ctx *Context) (Module, error)

// Initializer is implemented by modules with setup work. Init runs once, right
// after the instance is recorded.
type Initializer interface {
	Init() error
}

// Destroyer is implemented by modules with teardown work. Destroy runs before
// the instance record is removed.
type Destroyer interface {
	Destroy() error
}

// Messaging is implemented by modules that subscribe to broadcasts. OnMessage
// is called once per broadcast whose name is listed by Messages.
type Messaging interface {
	Messages() []string
	OnMessage(name string, data any) error
}

// Record is the live state of one started module.
type Record struct {
	ID       string
	Module   string
	Instance Module
	Context  *Context
	Element  *html.Node
}

type descriptor struct {
	name    string
	factory Factory
	counter int
}

// ModuleEvent is the data of EventModuleStart and EventModuleStop.
type ModuleEvent struct {
	ID     string
	Module string
}

// MessageEvent is the data of EventBroadcast.
type MessageEvent struct {
	Name       string
	Data       any
	Recipients int
}

func subscribes(m Messaging, name string) bool {
	for _, n := range m.Messages() {
		if n == name {
			return true
		}
	}
	return false
}
