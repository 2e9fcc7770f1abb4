// Package orderfeed holds the wire types that flow across the "services"
// topic exchange: the inbound ProcessOrder a listener consumes, and the
// outbound ServiceFeedback an Event Controller run publishes once a job
// handler has produced validated output.
package orderfeed

// ProcessOrder is the message a listener reads off its queue: a unit of
// work naming the input to fetch/process and where it came from.
type ProcessOrder struct {
	OrderID      string                 `json:"_id"`
	ProcessingID string                 `json:"processing_id"`
	Service      string                 `json:"service"`
	Source       string                 `json:"source"`
	Provider     string                 `json:"provider"`
	Stage        string                 `json:"stage"`
	InputID      string                 `json:"input_id"`
	Data         map[string]interface{} `json:"data"`
}

// InputMetadata identifies the input document a ProcessOrder was built
// from and the schema version it was validated against.
type InputMetadata struct {
	InputID           string `json:"input_id"`
	SchemaVersionID    string `json:"schema_version_id"`
	ProcessingOrderID string `json:"processing_order_id"`
}

// OutputMetadata names the schema version a job handler's output was
// validated against.
type OutputMetadata struct {
	SchemaVersionID string `json:"schema_version_id"`
}

// Metadata accompanies every ServiceFeedback, tying it back to the Config
// and input/output schema versions that produced it.
type Metadata struct {
	Provider        string         `json:"provider"`
	Service         string         `json:"service"`
	Source          string         `json:"source"`
	ProcessingID    string         `json:"processing_id"`
	ConfigID        string         `json:"config_id"`
	ConfigVersionID string         `json:"config_version_id"`
	InputMetadata   InputMetadata  `json:"input_metadata"`
	OutputMetadata  OutputMetadata `json:"output_metadata"`
}

// Status reports the outcome of running a job handler against a
// ProcessOrder.
type Status struct {
	Code   int    `json:"code"`
	Detail string `json:"detail"`
}

// Well-known Status codes. Job handlers are free to use any code; these
// are the ones the reference video-downloader handler assigns. The Event
// Controller publishes whatever status the handler returns.
const (
	StatusCodeOK               = 200
	StatusCodeValidationFailed = 422
	StatusCodeInternalError    = 500
)

// ServiceFeedback is the message published back onto the "services"
// exchange once a job handler's output has been validated.
type ServiceFeedback struct {
	Data     map[string]interface{} `json:"data"`
	Metadata Metadata               `json:"metadata"`
	Status   Status                 `json:"status"`
}
