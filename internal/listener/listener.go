// Package listener supervises one goroutine per Config: declare its
// durable input queue, consume deliveries, run each through an Event
// Controller, and apply whatever Disposition the controller returns.
// Grounded on amqp_listener.consumer's Consumer/EventConsumer for the
// per-Config queue/routing-key shape, and the teacher's internal/app
// errgroup-based fan-out for supervising several of these at once.
package listener

import (
	"context"
	"fmt"

	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"github.com/VeRJiL/crawlerd/internal/broker"
	"github.com/VeRJiL/crawlerd/internal/eventcontroller"
	"github.com/VeRJiL/crawlerd/internal/pkg/logger"
	"github.com/VeRJiL/crawlerd/internal/vaultmodel"
)

// Runner is the Event Controller surface a listener depends on — satisfied
// by *eventcontroller.Controller.
type Runner interface {
	Run(ctx context.Context, body []byte) eventcontroller.Disposition
}

// ControllerFactory builds the Event Controller that will run every
// delivery from one Config's queue, publishing through the same per-
// listener channel the queue was declared and consumed on.
type ControllerFactory func(config vaultmodel.Config, ch *broker.Channel) Runner

// Supervisor runs one listener goroutine per Config, each on its own AMQP
// channel so that PrefetchCount throttles that listener alone.
type Supervisor struct {
	Broker        *broker.Adapter
	PrefetchCount int
	NewController ControllerFactory
	Log           *logger.Logger
}

// Run declares and consumes every Config's queue concurrently, returning
// once the context is cancelled or any single listener goroutine returns
// a fatal error — the rest are cancelled in turn via errgroup's shared
// context, mirroring the teacher's app.Run lifecycle.
func (s *Supervisor) Run(ctx context.Context, configs []vaultmodel.Config) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, config := range configs {
		config := config
		g.Go(func() error {
			return s.runOne(gctx, config)
		})
	}

	return g.Wait()
}

func (s *Supervisor) runOne(ctx context.Context, config vaultmodel.Config) error {
	queueName := broker.InputQueueName(config.Provider, config.Service, config.Source)
	routingKey := broker.InputRoutingKey(config.Provider, config.Service, config.Source)

	ch, err := s.Broker.NewChannel(s.PrefetchCount)
	if err != nil {
		return fmt.Errorf("listener: opening channel for %s: %w", queueName, err)
	}
	defer ch.Close()

	if err := ch.DeclareQueue(queueName, routingKey); err != nil {
		return fmt.Errorf("listener: declaring queue %s: %w", queueName, err)
	}

	deliveries, err := ch.Consume(ctx, queueName)
	if err != nil {
		return fmt.Errorf("listener: consuming queue %s: %w", queueName, err)
	}

	controller := s.NewController(config, ch)
	s.logf("listening on %s for config %s", queueName, config.ConfigID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			s.handle(ctx, controller, delivery)
		}
	}
}

func (s *Supervisor) handle(ctx context.Context, controller Runner, delivery amqp.Delivery) {
	disposition := controller.Run(ctx, delivery.Body)

	switch disposition {
	case eventcontroller.Ack:
		if err := delivery.Ack(false); err != nil {
			s.logf("ack failed: %v", err)
		}
	case eventcontroller.NackReject:
		if err := delivery.Nack(false, false); err != nil {
			s.logf("nack (reject) failed: %v", err)
		}
	case eventcontroller.Leave:
		// Deliberately not acked or nacked: the broker redelivers once
		// this consumer's connection drops and reconnects.
	}
}

func (s *Supervisor) logf(format string, args ...interface{}) {
	if s.Log == nil {
		return
	}
	s.Log.Info(fmt.Sprintf(format, args...))
}
