// Package eventcontroller is the ten-state lifecycle every ProcessOrder
// delivery moves through: decode, fetch+validate its input schema,
// announce it as a processing job, fetch the output schema (whose version
// goes into the feedback metadata), dispatch it to a job handler, validate
// the handler's output, and publish the resulting ServiceFeedback. Grounded on event_controller.controller's
// Controller/EventController, with one deliberate correction: the
// original fetches the input schema a second time (using the input
// schema_type constant again) when it means to fetch the output schema
// for the feedback's schema_version_id. This implementation fetches each
// schema exactly once.
package eventcontroller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/VeRJiL/crawlerd/internal/broker"
	"github.com/VeRJiL/crawlerd/internal/debugsink"
	"github.com/VeRJiL/crawlerd/internal/inflight"
	"github.com/VeRJiL/crawlerd/internal/jobhandler"
	"github.com/VeRJiL/crawlerd/internal/orderfeed"
	"github.com/VeRJiL/crawlerd/internal/pkg/logger"
	"github.com/VeRJiL/crawlerd/internal/schemacache"
	"github.com/VeRJiL/crawlerd/internal/schemavalidate"
	"github.com/VeRJiL/crawlerd/internal/vaultmodel"
)

// Disposition is what a listener should do with the AMQP delivery once
// Run returns, replacing the original's habit of ack-ing (or not) from
// deep inside the controller itself.
type Disposition int

const (
	// Ack means the delivery was fully handled (published feedback, or a
	// deliberate no-op for an inactive Config) and should be acknowledged.
	Ack Disposition = iota
	// NackReject means the delivery is permanently unprocessable — bad
	// JSON, a schema the vault rejects — and should be rejected without
	// requeue.
	NackReject
	// Leave means something transient failed (a vault call, the broker
	// itself) and the delivery should be left unacked so the broker
	// redelivers it once the connection recovers.
	Leave
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case NackReject:
		return "nack_reject"
	case Leave:
		return "leave"
	default:
		return "unknown"
	}
}

// SchemaSource resolves (provider, service, source, schema_type) to a
// Schema and validates data against whatever schema a Config's output is
// bound to. Neither *schemacache.Cache nor *schemavault.Client has both
// methods; cmd/crawlerd's cachedSchemaSource pairs the cache's Get with the
// Schema Vault client's ValidateSchema.
type SchemaSource interface {
	Get(ctx context.Context, key schemacache.Key) (vaultmodel.Schema, error)
	ValidateSchema(ctx context.Context, data vaultmodel.SchemaData) (bool, error)
}

// Controller runs one Config's event lifecycle against deliveries from
// its queue.
type Controller struct {
	Config        vaultmodel.Config
	Schemas       SchemaSource
	Broker        broker.Publisher
	Handlers      *jobhandler.Registry
	InFlight      *inflight.Counter
	Debug         debugsink.Sink
	Log           *logger.Logger
	FeedbackDelay time.Duration // mirrors the original's fixed 5s pre-publish sleep; 0 disables it
}

// Run decodes body as a ProcessOrder and carries it through every state
// of the lifecycle, returning the Disposition the caller should apply to
// the delivery that produced body.
func (c *Controller) Run(ctx context.Context, body []byte) Disposition {
	if !c.Config.Active {
		c.infof("config %s is inactive, skipping delivery", c.Config.ConfigID)
		return Ack
	}

	order, err := c.decode(body)
	if err != nil {
		c.errorf("decode failed: %v", err)
		return NackReject
	}

	inputSchema, err := c.Schemas.Get(ctx, c.schemaKey(vaultmodel.SchemaTypeInput))
	if err != nil {
		c.errorf("fetching input schema: %v", err)
		return Leave
	}

	validInput, err := schemavalidate.Validate(inputSchema.JSONSchema, order.Data)
	if err != nil {
		c.errorf("validating input: %v", err)
		return Leave
	}
	if !validInput {
		c.errorf("input failed schema validation for order %s", order.OrderID)
		return NackReject
	}

	if err := c.announceProcessing(ctx, order); err != nil {
		c.errorf("announcing processing job: %v (non-fatal, continuing)", err)
	}

	outputSchema, err := c.Schemas.Get(ctx, c.schemaKey(vaultmodel.SchemaTypeOutput))
	if err != nil {
		c.errorf("fetching output schema: %v", err)
		return Leave
	}

	metadata := c.buildMetadata(order, inputSchema.SchemaVersionID, outputSchema.SchemaVersionID)

	release, err := c.InFlight.TryAcquire()
	if err != nil {
		c.errorf("in-flight capacity exceeded: %v", err)
		return Leave
	}
	data, status, err := c.dispatch(ctx, order, metadata)
	release()
	if err != nil {
		c.errorf("job handler failed: %v", err)
		return NackReject
	}

	valid, err := c.Schemas.ValidateSchema(ctx, vaultmodel.SchemaData{
		Service:    c.Config.Service,
		Source:     c.Config.Source,
		Provider:   c.Config.Provider,
		SchemaType: string(vaultmodel.SchemaTypeOutput),
		Data:       data,
	})
	if err != nil {
		c.errorf("validating output: %v", err)
		return Leave
	}
	if !valid {
		c.errorf("output failed schema validation for order %s", order.OrderID)
		return NackReject
	}

	if c.FeedbackDelay > 0 {
		time.Sleep(c.FeedbackDelay)
	}

	if err := c.publishFeedback(ctx, data, metadata, status); err != nil {
		c.errorf("publishing feedback: %v", err)
		return Leave
	}

	return Ack
}

func (c *Controller) decode(body []byte) (orderfeed.ProcessOrder, error) {
	var order orderfeed.ProcessOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return orderfeed.ProcessOrder{}, fmt.Errorf("eventcontroller: invalid message body: %w", err)
	}
	return order, nil
}

func (c *Controller) schemaKey(schemaType vaultmodel.SchemaType) schemacache.Key {
	return schemacache.Key{
		Provider:   c.Config.Provider,
		Service:    c.Config.Service,
		Source:     c.Config.Source,
		SchemaType: schemaType,
	}
}

func (c *Controller) announceProcessing(ctx context.Context, order orderfeed.ProcessOrder) error {
	encoded, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("eventcontroller: encoding processing job: %w", err)
	}
	return c.Broker.Publish(ctx, broker.ProcessingJobRoutingKey, encoded)
}

func (c *Controller) buildMetadata(order orderfeed.ProcessOrder, inputSchemaVersion, outputSchemaVersion string) orderfeed.Metadata {
	return orderfeed.Metadata{
		Provider:        c.Config.Provider,
		Service:         c.Config.Service,
		Source:          c.Config.Source,
		ProcessingID:    order.ProcessingID,
		ConfigID:        c.Config.ConfigID,
		ConfigVersionID: c.Config.ConfigVersionID,
		InputMetadata: orderfeed.InputMetadata{
			InputID:           order.InputID,
			SchemaVersionID:   inputSchemaVersion,
			ProcessingOrderID: order.OrderID,
		},
		OutputMetadata: orderfeed.OutputMetadata{
			SchemaVersionID: outputSchemaVersion,
		},
	}
}

func (c *Controller) dispatch(ctx context.Context, order orderfeed.ProcessOrder, metadata orderfeed.Metadata) (map[string]interface{}, orderfeed.Status, error) {
	handler, err := c.Handlers.Build(c.Config, metadata, c.Debug)
	if err != nil {
		return nil, orderfeed.Status{}, err
	}
	return handler.Run(ctx, order.Data)
}

func (c *Controller) publishFeedback(ctx context.Context, data map[string]interface{}, metadata orderfeed.Metadata, status orderfeed.Status) error {
	feedback := orderfeed.ServiceFeedback{Data: data, Metadata: metadata, Status: status}
	encoded, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("eventcontroller: encoding feedback: %w", err)
	}
	return c.Broker.Publish(ctx, broker.ServiceFeedbackRoutingKey, encoded)
}

func (c *Controller) infof(format string, args ...interface{}) {
	if c.Log == nil {
		return
	}
	c.Log.Info(fmt.Sprintf(format, args...))
}

func (c *Controller) errorf(format string, args ...interface{}) {
	if c.Log == nil {
		return
	}
	c.Log.Error(fmt.Sprintf(format, args...))
}
