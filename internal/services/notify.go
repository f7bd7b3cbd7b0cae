package services

import (
	"sync"

	"go.uber.org/zap"

	"pixelforge/internal/metrics"
)

// Notifier runs outbound notifications in the background. Failures are
// logged and counted, never returned to the caller that triggered them.
type Notifier struct {
	log *zap.Logger
	wg  sync.WaitGroup
}

// NewNotifier creates a new notifier
func NewNotifier(log *zap.Logger) *Notifier {
	return &Notifier{log: log.Named("notify")}
}

// Go sends one notification of the given kind asynchronously.
func (n *Notifier) Go(kind string, send func() error) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				n.log.Error("notification panicked", zap.String("kind", kind), zap.Any("panic", r))
			}
		}()

		err := send()
		metrics.RecordNotification(kind, err)
		if err != nil {
			n.log.Warn("notification failed", zap.String("kind", kind), zap.Error(err))
			return
		}
		n.log.Debug("notification sent", zap.String("kind", kind))
	}()
}

// Wait blocks until every in-flight notification has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Outbox renders templated emails and hands them to the mailer.
type Outbox struct {
	mailer   Mailer
	renderer *Renderer
	notifier *Notifier
}

// NewOutbox creates a new outbox
func NewOutbox(mailer Mailer, renderer *Renderer, notifier *Notifier) *Outbox {
	return &Outbox{mailer: mailer, renderer: renderer, notifier: notifier}
}

// Send renders template tmpl and delivers it synchronously.
func (o *Outbox) Send(to, subject, tmpl string, data any) error {
	html, text, err := o.renderer.Render(tmpl, subject, data)
	if err != nil {
		return err
	}
	return o.mailer.SendHTMLEmail(to, subject, html, text)
}

// SendAsync delivers a templated email in the background.
func (o *Outbox) SendAsync(to, subject, tmpl string, data any) {
	o.notifier.Go(tmpl, func() error {
		return o.Send(to, subject, tmpl, data)
	})
}

// Go runs an arbitrary notification in the background.
func (o *Outbox) Go(kind string, send func() error) {
	o.notifier.Go(kind, send)
}
