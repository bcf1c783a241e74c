package server

import (
	"context"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/conneroisu/whiteboard/internal/app"
	"github.com/conneroisu/whiteboard/internal/dom"
	wberrors "github.com/conneroisu/whiteboard/internal/errors"
	"github.com/conneroisu/whiteboard/internal/history"
	"github.com/conneroisu/whiteboard/internal/logging"
	"github.com/conneroisu/whiteboard/internal/modules"
)

const (
	// Time allowed to write a frame to the browser.
	writeWait = 10 * time.Second

	// Maximum frame size accepted from the browser.
	maxFrameSize = 64 << 10
)

var errNotReady = wberrors.NewFrameError("session not ready: send a ready frame first", nil)

// session owns one page: its document, application and host. Everything but
// reading the socket happens on the goroutine running run.
type session struct {
	id     string
	conn   *websocket.Conn
	server *Server
	logger logging.Logger
	host   *PageHost
	app    *app.Application
	ready  bool
	outbox []Frame
	reload chan struct{}
}

func (s *Server) newSession(conn *websocket.Conn) (*session, error) {
	sess := &session{
		id:     uuid.NewString(),
		conn:   conn,
		server: s,
		reload: make(chan struct{}, 1),
	}
	sess.logger = s.logger.With("session", sess.id)
	sess.host = NewPageHost("/", "", sess.queue)

	a, err := Boot(s.config, BootOptions{
		Host:         sess.host,
		Logger:       sess.logger,
		Notifier:     modules.NotifierFunc(sess.notify),
		RouterErrors: sess.fail,
	})
	if err != nil {
		return nil, err
	}
	sess.app = a
	sess.host.Locate("/", a.Document().Title())
	s.metrics.Observe(a)

	return sess, nil
}

func (sess *session) queue(f Frame) {
	sess.outbox = append(sess.outbox, f)
}

func (sess *session) fail(err error) {
	sess.logger.Warn(context.Background(), err, "page error")
	sess.queue(errorFrame(err))
}

func (sess *session) notify(name string, data any) error {
	f, err := messageFrame(name, data)
	if err != nil {
		return err
	}
	sess.queue(f)
	return nil
}

// run handles frames until the browser goes away or ctx is done. The
// returned error is nil for a normal close.
func (sess *session) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			typ, data, err := sess.conn.Read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			select {
			case inbound <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return err
		case data := <-inbound:
			if err := sess.handle(ctx, data); err != nil {
				return err
			}
		case <-sess.reload:
			sess.server.metrics.ReloadsTriggered.Inc()
			if err := sess.send(ctx, Frame{Type: FrameReload}); err != nil {
				return err
			}
		}
	}
}

// handle applies one browser frame to the page and sends what it produced,
// followed by the rendered body. Only write failures are returned; page
// errors go to the browser as error frames.
func (sess *session) handle(ctx context.Context, data []byte) error {
	f, err := decodeFrame(data)
	if err == nil {
		sess.server.metrics.FramesReceived.WithLabelValues(f.Type).Inc()
		err = sess.apply(f)
	}
	if err != nil {
		sess.fail(err)
	}

	frames := sess.outbox
	sess.outbox = nil
	if sess.ready {
		frames = append(frames, Frame{Type: FrameRender, HTML: dom.InnerHTML(sess.app.Document().Body())})
	}
	for _, f := range frames {
		if err := sess.send(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (sess *session) apply(f Frame) error {
	if f.Type == FrameReady {
		if sess.ready {
			return wberrors.NewFrameError("session already ready", nil)
		}
		sess.host.Locate(f.Path, f.Title)
		sess.ready = true
		return Start(sess.app, sess.server.config)
	}
	if !sess.ready {
		return errNotReady
	}

	switch f.Type {
	case FramePopState:
		sess.host.PopState(f.Path)
		return nil
	case FrameNavigate:
		_, err := sess.app.Navigate(f.Fragment, history.NavigateOptions{Trigger: f.Trigger, Replace: f.Replace})
		return err
	case FrameMessage:
		data, err := f.payload()
		if err != nil {
			return err
		}
		return sess.app.Broadcast(f.Name, data)
	}
	return nil
}

func (sess *session) send(ctx context.Context, f Frame) error {
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return wsjson.Write(ctx, sess.conn, f)
}

// requestReload asks the session to tell its browser to reload. A pending
// request is not repeated.
func (sess *session) requestReload() {
	select {
	case sess.reload <- struct{}{}:
	default:
	}
}

func (sess *session) close(ctx context.Context) {
	if err := sess.app.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		sess.logger.Warn(ctx, err, "page shutdown failed")
	}
}
