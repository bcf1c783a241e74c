package modules

import (
	"github.com/conneroisu/whiteboard/internal/app"
	"github.com/conneroisu/whiteboard/internal/history"
)

// Partial fills its element with the template named by data-template when it
// starts.
type Partial struct {
	ctx *app.Context
}

func NewPartial(ctx *app.Context) (app.Module, error) {
	return &Partial{ctx: ctx}, nil
}

func (p *Partial) Init() error {
	name := p.ctx.Data("template")
	if name == "" {
		return nil
	}
	loader, err := loaderOf(p.ctx.GetService)
	if err != nil {
		return err
	}
	markup, err := loader.Load(name)
	if err != nil {
		return err
	}
	return p.ctx.DOM().SetHTML(p.ctx.GetElement(), markup)
}

// Relay forwards the broadcasts listed in data-messages, comma separated, to
// the notifier service.
type Relay struct {
	ctx      *app.Context
	messages []string
}

func NewRelay(ctx *app.Context) (app.Module, error) {
	return &Relay{ctx: ctx, messages: splitList(ctx.Data("messages"))}, nil
}

func (r *Relay) Messages() []string {
	return r.messages
}

func (r *Relay) OnMessage(name string, data any) error {
	n, err := notifierOf(r.ctx.GetService)
	if err != nil {
		return err
	}
	return n.Notify(name, data)
}

// Link navigates to its data-href when a navigate message names its id, and
// marks itself with data-active while the current fragment equals its href.
type Link struct {
	ctx  *app.Context
	href string
}

func NewLink(ctx *app.Context) (app.Module, error) {
	return &Link{ctx: ctx, href: history.NormalizeFragment(ctx.Data("href"))}, nil
}

func (l *Link) Init() error {
	l.mark(l.ctx.Fragment())
	return nil
}

func (l *Link) Messages() []string {
	return []string{MessageNavigate, MessageRoute}
}

func (l *Link) OnMessage(name string, data any) error {
	switch name {
	case MessageNavigate:
		if id, _ := data.(string); id != "" && id == l.ctx.ID() {
			_, err := l.ctx.Navigate(l.href, history.NavigateOptions{Trigger: true})
			return err
		}
	case MessageRoute:
		fragment, _ := data.(string)
		l.mark(fragment)
	}
	return nil
}

func (l *Link) mark(fragment string) {
	active := "false"
	if history.NormalizeFragment(fragment) == l.href {
		active = "true"
	}
	l.ctx.DOM().SetData(l.ctx.GetElement(), "active", active)
}
