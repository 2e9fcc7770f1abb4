package eventcontroller

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/VeRJiL/crawlerd/internal/broker"
	"github.com/VeRJiL/crawlerd/internal/debugsink"
	"github.com/VeRJiL/crawlerd/internal/inflight"
	"github.com/VeRJiL/crawlerd/internal/jobhandler"
	"github.com/VeRJiL/crawlerd/internal/orderfeed"
	"github.com/VeRJiL/crawlerd/internal/schemacache"
	"github.com/VeRJiL/crawlerd/internal/vaultmodel"
)

// fakeBroker records every routing key it was asked to publish to, failing
// whichever ones are listed in failOn.
type fakeBroker struct {
	failOn    map[string]bool
	published []string
}

var _ broker.Publisher = (*fakeBroker)(nil)

func (f *fakeBroker) Publish(ctx context.Context, routingKey string, body []byte) error {
	f.published = append(f.published, routingKey)
	if f.failOn[routingKey] {
		return fmt.Errorf("publish to %s failed", routingKey)
	}
	return nil
}

type fakeSchemas struct {
	schema      vaultmodel.Schema
	valid       bool
	getErr      error
	validateErr error
	getCalls    []vaultmodel.SchemaType
}

func (f *fakeSchemas) Get(ctx context.Context, key schemacache.Key) (vaultmodel.Schema, error) {
	f.getCalls = append(f.getCalls, key.SchemaType)
	if f.getErr != nil {
		return vaultmodel.Schema{}, f.getErr
	}
	return f.schema, nil
}

func (f *fakeSchemas) ValidateSchema(ctx context.Context, data vaultmodel.SchemaData) (bool, error) {
	if f.validateErr != nil {
		return false, f.validateErr
	}
	return f.valid, nil
}

type stubHandler struct {
	data   map[string]interface{}
	status orderfeed.Status
	err    error
}

func (h stubHandler) Run(ctx context.Context, input map[string]interface{}) (map[string]interface{}, orderfeed.Status, error) {
	return h.data, h.status, h.err
}

func newController(t *testing.T, schemas *fakeSchemas, handler jobhandler.Handler) *Controller {
	t.Helper()
	registry := jobhandler.NewRegistry()
	registry.Register("stub", func(vaultmodel.Config, orderfeed.Metadata, debugsink.Sink) jobhandler.Handler {
		return handler
	})

	return &Controller{
		Config: vaultmodel.Config{
			ConfigID: "cfg-1",
			Active:   true,
			Provider: "acme",
			Service:  "videos",
			Source:   "youtube",
			JobParameters: vaultmodel.JobParameters{
				ParserModule: "stub",
			},
		},
		Schemas:  schemas,
		Handlers: registry,
		InFlight: inflight.New(10, nil),
		Debug:    disabledSink{},
	}
}

type disabledSink struct{}

func (disabledSink) SaveResponse(string, []byte) error { return nil }

func validOrder(t *testing.T) []byte {
	t.Helper()
	order := orderfeed.ProcessOrder{
		OrderID:      "order-1",
		ProcessingID: "proc-1",
		Service:      "videos",
		Source:       "youtube",
		Provider:     "acme",
		InputID:      "input-1",
		Data:         map[string]interface{}{"videoId": "abc123"},
	}
	body, err := json.Marshal(order)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func TestRunReturnsNackRejectOnInvalidJSON(t *testing.T) {
	c := newController(t, &fakeSchemas{}, stubHandler{})
	c.Broker = nil // never reached

	got := c.Run(context.Background(), []byte("not json"))
	if got != NackReject {
		t.Fatalf("got %v, want NackReject", got)
	}
}

func TestRunReturnsAckForInactiveConfig(t *testing.T) {
	c := newController(t, &fakeSchemas{}, stubHandler{})
	c.Config.Active = false

	got := c.Run(context.Background(), validOrder(t))
	if got != Ack {
		t.Fatalf("got %v, want Ack", got)
	}
}

func TestRunReturnsNackRejectOnInvalidInput(t *testing.T) {
	schemas := &fakeSchemas{schema: vaultmodel.Schema{
		SchemaVersionID: "v1",
		JSONSchema: vaultmodel.JSONSchema{
			Required: []string{"title"}, // validOrder's Data has no "title"
		},
	}}
	c := newController(t, schemas, stubHandler{})
	c.Broker = nil // never reached: input validation fails before any publish

	got := c.Run(context.Background(), validOrder(t))
	if got != NackReject {
		t.Fatalf("got %v, want NackReject", got)
	}
	if len(schemas.getCalls) != 1 || schemas.getCalls[0] != vaultmodel.SchemaTypeInput {
		t.Fatalf("got %v, want only an input schema fetch", schemas.getCalls)
	}
}

func TestRunReturnsLeaveWhenInputValidationErrors(t *testing.T) {
	schemas := &fakeSchemas{schema: vaultmodel.Schema{
		SchemaVersionID: "v1",
		JSONSchema:      vaultmodel.JSONSchema{JSONType: "not-a-real-json-type"},
	}}
	c := newController(t, schemas, stubHandler{})
	c.Broker = nil // never reached

	got := c.Run(context.Background(), validOrder(t))
	if got != Leave {
		t.Fatalf("got %v, want Leave", got)
	}
}

func TestSchemaKeyCarriesRequestedSchemaType(t *testing.T) {
	schemas := &fakeSchemas{schema: vaultmodel.Schema{SchemaVersionID: "v1"}, valid: true}
	c := newController(t, schemas, stubHandler{status: orderfeed.Status{Code: orderfeed.StatusCodeOK}})

	order, err := c.decode(validOrder(t))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := c.Schemas.Get(context.Background(), c.schemaKey(vaultmodel.SchemaTypeInput)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Schemas.Get(context.Background(), c.schemaKey(vaultmodel.SchemaTypeOutput)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = order

	if len(schemas.getCalls) != 2 {
		t.Fatalf("got %d schema fetches, want 2", len(schemas.getCalls))
	}
	if schemas.getCalls[0] != vaultmodel.SchemaTypeInput || schemas.getCalls[1] != vaultmodel.SchemaTypeOutput {
		t.Fatalf("got %v, want [input output]", schemas.getCalls)
	}
}

func TestRunSurvivesAnnounceProcessingFailure(t *testing.T) {
	schemas := &fakeSchemas{schema: vaultmodel.Schema{SchemaVersionID: "v1"}, valid: true}
	c := newController(t, schemas, stubHandler{status: orderfeed.Status{Code: orderfeed.StatusCodeOK}})
	fb := &fakeBroker{failOn: map[string]bool{broker.ProcessingJobRoutingKey: true}}
	c.Broker = fb

	got := c.Run(context.Background(), validOrder(t))
	if got != Ack {
		t.Fatalf("got %v, want Ack despite the announce failure", got)
	}
	if len(fb.published) != 2 {
		t.Fatalf("got %d publishes, want 2 (announce + feedback)", len(fb.published))
	}
	if fb.published[1] != broker.ServiceFeedbackRoutingKey {
		t.Fatalf("got %q, want feedback still published after the announce failed", fb.published[1])
	}
}

func TestBuildMetadataCarriesBothSchemaVersions(t *testing.T) {
	c := newController(t, &fakeSchemas{}, stubHandler{})
	order := orderfeed.ProcessOrder{OrderID: "order-1", ProcessingID: "proc-1", InputID: "input-1"}

	metadata := c.buildMetadata(order, "input-v1", "output-v1")

	if metadata.InputMetadata.SchemaVersionID != "input-v1" {
		t.Fatalf("got %q, want input-v1", metadata.InputMetadata.SchemaVersionID)
	}
	if metadata.OutputMetadata.SchemaVersionID != "output-v1" {
		t.Fatalf("got %q, want output-v1", metadata.OutputMetadata.SchemaVersionID)
	}
	if metadata.InputMetadata.ProcessingOrderID != order.OrderID {
		t.Fatalf("got %q, want %q", metadata.InputMetadata.ProcessingOrderID, order.OrderID)
	}
}
