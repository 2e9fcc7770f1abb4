package broker

import "fmt"

const (
	baseInputRoutingKey = "input.ready-to-process"
	baseInputQueue      = "input-queue"

	// ProcessingJobRoutingKey is published once an Event Controller run
	// has announced a ProcessOrder as actively being worked.
	ProcessingJobRoutingKey = "processing-job"

	// ServiceFeedbackRoutingKey is published once a job handler's output
	// has been validated.
	ServiceFeedbackRoutingKey = "service.feedback"
)

// InputQueueName returns the durable queue name for one (provider,
// service, source) pipeline.
func InputQueueName(provider, service, source string) string {
	return fmt.Sprintf("%s.%s.%s.%s", baseInputQueue, provider, service, source)
}

// InputRoutingKey returns the routing key a pipeline's ProcessOrders are
// published under.
func InputRoutingKey(provider, service, source string) string {
	return fmt.Sprintf("%s.%s.%s.%s", baseInputRoutingKey, provider, service, source)
}
