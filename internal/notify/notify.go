// Package notify delivers reminder alerts: an in-app banner, a desktop
// notification and a terminal bell.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Alert struct {
	Key     string
	Title   string
	Body    string
	Desktop bool
	Sound   bool
	At      time.Time
}

func (a Alert) String() string {
	if a.Body == "" {
		return a.Title
	}
	return a.Title + ": " + a.Body
}

// Desktop shows a system-level notification.
type Desktop interface {
	Send(ctx context.Context, title, body string) error
}

// Banner receives every alert for in-app display.
type Banner interface {
	Push(Alert)
}

type Option func(*Dispatcher)

func WithBanner(b Banner) Option { return func(d *Dispatcher) { d.banner = b } }

func WithDesktop(desk Desktop) Option { return func(d *Dispatcher) { d.desktop = desk } }

// WithBell rings the terminal bell on w for audible alerts.
func WithBell(w io.Writer) Option { return func(d *Dispatcher) { d.bell = w } }

func WithLimit(l *rate.Limiter) Option { return func(d *Dispatcher) { d.limiter = l } }

func WithLogger(log logrus.FieldLogger) Option { return func(d *Dispatcher) { d.log = log } }

// Dispatcher fans an alert out to the configured channels. Desktop delivery
// runs in the background and its failures are only logged.
type Dispatcher struct {
	banner  Banner
	desktop Desktop
	bell    io.Writer
	limiter *rate.Limiter
	log     logrus.FieldLogger
	wg      sync.WaitGroup

	// done ends deliveries still waiting on the limiter.
	done   context.Context
	cancel context.CancelFunc
}

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		limiter: rate.NewLimiter(rate.Every(10*time.Second), 5),
		log:     logrus.StandardLogger(),
	}
	d.done, d.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Notify(ctx context.Context, a Alert) {
	if d.banner != nil {
		d.banner.Push(a)
	}
	if a.Desktop && d.desktop != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			// Bursts are delayed, not dropped.
			if d.limiter != nil {
				if err := d.limiter.Wait(d.done); err != nil {
					d.log.WithField("key", a.Key).Warn("desktop notification dropped at shutdown")
					return
				}
			}
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := d.desktop.Send(ctx, a.Title, a.Body); err != nil {
				d.log.WithError(err).WithField("key", a.Key).Warn("desktop notification failed")
			}
		}()
	}
	if a.Sound && d.bell != nil {
		if _, err := io.WriteString(d.bell, "\a"); err != nil {
			d.log.WithError(err).Warn("could not ring bell")
		}
	}
}

// Wait blocks until background deliveries finish, including those still
// queued behind the limiter.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Close drops deliveries still queued behind the limiter and waits for the
// ones already sending.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}

// Inbox is a Banner that holds alerts until the UI drains them.
type Inbox struct {
	mu     sync.Mutex
	alerts []Alert
}

func (i *Inbox) Push(a Alert) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.alerts = append(i.alerts, a)
}

func (i *Inbox) Drain() []Alert {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.alerts
	i.alerts = nil
	return out
}

// WriterBanner prints each alert as a line, for headless use.
type WriterBanner struct {
	W io.Writer
}

func (w WriterBanner) Push(a Alert) {
	fmt.Fprintf(w.W, "[%s] %s\n", a.At.Format("2006-01-02 15:04"), a)
}
