// Package notify announces built files and finished passes on a NATS subject.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/retry"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// Name is the module name used in `active_modules`.
const Name = "notify"

// DefaultSubject prefixes every notification subject.
const DefaultSubject = "sitebuilder.builds"

// FileMessage is published on `<subject>.file` for each built file.
type FileMessage struct {
	BuildID     string    `json:"build_id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	URL         string    `json:"url"`
	Program     string    `json:"program"`
	Marker      string    `json:"marker"`
	Title       string    `json:"title,omitempty"`
	Time        time.Time `json:"time"`
}

// FinishedMessage is published on `<subject>.finished` once per pass.
type FinishedMessage struct {
	BuildID string    `json:"build_id"`
	Built   int       `json:"built"`
	Sources []string  `json:"sources"`
	Time    time.Time `json:"time"`
}

// Module is the notify aggregation module.
type Module struct {
	publisher Publisher
	dial      func(url string) (Publisher, error)
	subject   string
	policy    retry.Policy
	buildID   string
	now       func() time.Time
}

// Option configures the module.
type Option func(*Module)

// WithPublisher uses p instead of dialing NATS.
func WithPublisher(p Publisher) Option {
	return func(m *Module) { m.publisher = p }
}

// New returns the notify module.
func New(opts ...Option) *Module {
	m := &Module{
		dial: func(url string) (Publisher, error) { return NewNATSClient(url) },
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Name() string { return Name }

// Setup connects to `modules.notify.url` unless a publisher was supplied.
// A failed publish aborts the pass; `modules.notify.retries` (default 0)
// allows that many further attempts, spaced per `retry_delay` and `backoff`.
func (m *Module) Setup(b *site.Builder) error {
	cfg := b.Config()
	m.subject = cfg.RootGetString("modules.notify.subject", DefaultSubject)
	delay, err := time.ParseDuration(cfg.RootGetString("modules.notify.retry_delay", "1s"))
	if err != nil {
		return errors.ConfigError("invalid modules.notify.retry_delay").
			WithSource(cfg.Origin()).WithCause(err).Build()
	}
	m.policy = retry.NewPolicy(
		retry.Mode(cfg.RootGetString("modules.notify.backoff", string(retry.ModeLinear))),
		delay, 30*time.Second,
		cfg.Root().GetInt("modules.notify.retries", 0))
	if m.publisher == nil {
		url := cfg.RootGetString("modules.notify.url", nats.DefaultURL)
		p, err := m.dial(url)
		if err != nil {
			return errors.WrapError(err, errors.CategoryModule, "cannot connect notification publisher").
				WithContext("module", Name).WithContext("url", url).Fatal().Build()
		}
		m.publisher = p
	}
	events.Subscribe(b.Bus(), m.onStarted)
	events.Subscribe(b.Bus(), m.onBuilt)
	events.Subscribe(b.Bus(), m.onFinishing)
	b.Logger().Debug("Notifications enabled", logfields.Module(Name), "subject", m.subject)
	return nil
}

func (m *Module) onStarted(_ context.Context, e site.BuildStarted) error {
	m.buildID = e.BuildID
	return nil
}

func (m *Module) onBuilt(ctx context.Context, e site.FileBuilt) error {
	c := e.Context
	return m.send(ctx, m.subject+".file", FileMessage{
		BuildID:     m.buildID,
		Source:      c.Source(),
		Destination: c.Destination(),
		URL:         c.URL(),
		Program:     c.ProgramName(),
		Marker:      e.Marker,
		Title:       c.Title(),
		Time:        m.now().UTC(),
	})
}

func (m *Module) onFinishing(ctx context.Context, e site.BuildFinishing) error {
	sources := make([]string, 0, len(e.Built))
	for _, f := range e.Built {
		sources = append(sources, f.Source)
	}
	return m.send(ctx, m.subject+".finished", FinishedMessage{
		BuildID: e.BuildID,
		Built:   len(e.Built),
		Sources: sources,
		Time:    m.now().UTC(),
	})
}

func (m *Module) send(ctx context.Context, subject string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WrapError(err, errors.CategoryModule, "cannot encode notification").
			WithContext("module", Name).Build()
	}
	err = m.policy.Do(ctx, func(ctx context.Context) error {
		return m.publisher.Publish(ctx, subject, data)
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryModule, "cannot publish notification").
			WithContext("module", Name).WithContext("subject", subject).Fatal().Build()
	}
	return nil
}

// Close releases the publisher.
func (m *Module) Close() error {
	if m.publisher == nil {
		return nil
	}
	return m.publisher.Close()
}
