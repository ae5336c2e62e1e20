// Package session owns the converter, the ready source and the sink for one
// acquisition and releases them exactly once on every exit path.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/itohio/gobridge/pkg/acquire"
	"github.com/itohio/gobridge/pkg/ads1263"
	"github.com/itohio/gobridge/pkg/log"
	"github.com/itohio/gobridge/pkg/ready"
	"github.com/itohio/gobridge/pkg/sample"
	"github.com/itohio/gobridge/pkg/sink"
)

// Stage names the step that failed.
type Stage string

const (
	StageReady      Stage = "ready"
	StageInitialize Stage = "initialize"
	StageConfigure  Stage = "configure"
	StageChannel    Stage = "channel"
	StageSink       Stage = "sink"
	StageAcquire    Stage = "acquire"
	StageClose      Stage = "close"
)

// StageError wraps a fatal error with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Converter is the part of *ads1263.Device a session drives.
type Converter interface {
	acquire.Converter
	Initialize() error
	Configure(cfg ads1263.Config) error
	SelectChannel(ch ads1263.Channel) error
	Shutdown() error
}

// Deps opens the hardware. Each factory is called at most once, in the
// order Ready, Converter, Sink.
type Deps struct {
	Ready     func() (ready.Source, error)
	Converter func() (Converter, error)
	Sink      func() (sink.Sink, error)
}

// Settings are fixed for the lifetime of a session.
type Settings struct {
	Converter        ads1263.Config
	Channel          ads1263.Channel
	ReferenceVoltage float64
	ReadyTimeout     time.Duration
	DegradedAfter    int
	MaxSamples       int
	OnSample         func(sample.Sample)
	OnHealth         func(acquire.Stats)
}

// Session is one acquisition run.
type Session struct {
	settings Settings

	src  ready.Source
	dev  Converter
	snk  sink.Sink
	loop *acquire.Loop

	closeOnce sync.Once
	closeErr  error
}

// Open acquires the ready source, initializes and configures the converter,
// selects the channel and opens the sink. On failure everything acquired so
// far is released in reverse order and a *StageError is returned.
func Open(ctx context.Context, deps Deps, settings Settings) (_ *Session, err error) {
	s := &Session{settings: settings}
	defer func() {
		if err != nil {
			if rerr := s.release(); rerr != nil {
				log.Warning("Releasing resources after failed start: %v", rerr)
			}
		}
	}()

	if err := stage(ctx, StageReady, func() error {
		src, err := deps.Ready()
		if err != nil {
			return err
		}
		s.src = src
		return nil
	}); err != nil {
		return nil, err
	}
	if err := stage(ctx, StageInitialize, func() error {
		dev, err := deps.Converter()
		if err != nil {
			return err
		}
		s.dev = dev
		return dev.Initialize()
	}); err != nil {
		return nil, err
	}
	if err := stage(ctx, StageConfigure, func() error {
		return s.dev.Configure(settings.Converter)
	}); err != nil {
		return nil, err
	}
	if err := stage(ctx, StageChannel, func() error {
		return s.dev.SelectChannel(settings.Channel)
	}); err != nil {
		return nil, err
	}
	if err := stage(ctx, StageSink, func() error {
		snk, err := deps.Sink()
		if err != nil {
			return err
		}
		s.snk = snk
		return nil
	}); err != nil {
		return nil, err
	}

	s.loop = acquire.New(s.dev, s.src, s.snk, acquire.Options{
		Channel:       settings.Channel,
		Scale:         sample.NewScale(settings.Converter, settings.ReferenceVoltage),
		ReadyTimeout:  settings.ReadyTimeout,
		DegradedAfter: settings.DegradedAfter,
		MaxSamples:    settings.MaxSamples,
		OnSample:      settings.OnSample,
		OnHealth:      settings.OnHealth,
	})
	log.Debug("Session ready: %s, channel %s", settings.Converter, settings.Channel)
	return s, nil
}

func stage(ctx context.Context, name Stage, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: name, Err: err}
	}
	if err := fn(); err != nil {
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

// Run acquires until ctx ends or a fatal error occurs, then closes the
// session. Cancellation is not an error.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = multierr.Append(err, cerr)
		}
	}()

	if err := s.loop.Run(ctx); err != nil {
		return &StageError{Stage: StageAcquire, Err: err}
	}
	return nil
}

// Close releases the sink, the converter and the ready source, in that
// order. Only the first call does any work; later calls return its result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := s.release(); err != nil {
			s.closeErr = &StageError{Stage: StageClose, Err: err}
		}
	})
	return s.closeErr
}

func (s *Session) release() error {
	var err error
	if s.snk != nil {
		err = multierr.Append(err, s.snk.Close())
		s.snk = nil
	}
	if s.dev != nil {
		err = multierr.Append(err, s.dev.Shutdown())
		s.dev = nil
	}
	if s.src != nil {
		err = multierr.Append(err, s.src.Close())
		s.src = nil
	}
	return err
}

// Stats returns the acquisition counters.
func (s *Session) Stats() acquire.Stats {
	return s.loop.Stats()
}

// Settings returns the settings the session was opened with.
func (s *Session) Settings() Settings {
	return s.settings
}
