package orderfeed

import (
	"encoding/json"
	"testing"
)

func TestProcessOrderRoundTripsOrderIDThroughUnderscoreID(t *testing.T) {
	original := ProcessOrder{
		OrderID:      "order-1",
		ProcessingID: "processing-1",
		Service:      "videos",
		Source:       "youtube",
		Provider:     "acme",
		Stage:        "input.ready-to-process",
		InputID:      "input-1",
		Data:         map[string]interface{}{"video_id": "abc123"},
	}

	encoded, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal to map: %v", err)
	}
	if _, ok := decoded["_id"]; !ok {
		t.Fatal("expected order_id to be encoded under the _id key")
	}

	var roundTripped ProcessOrder
	if err := json.Unmarshal(encoded, &roundTripped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if roundTripped.OrderID != original.OrderID || roundTripped.InputID != original.InputID {
		t.Fatalf("round trip mismatch: got %+v, want %+v", roundTripped, original)
	}
}

func TestServiceFeedbackRoundTrips(t *testing.T) {
	original := ServiceFeedback{
		Data: map[string]interface{}{"videoUri": "s3://bucket/video.mp4", "partition": "videos/abc123"},
		Metadata: Metadata{
			Provider:        "acme",
			Service:         "videos",
			Source:          "youtube",
			ProcessingID:    "processing-1",
			ConfigID:        "cfg-1",
			ConfigVersionID: "cfg-ver-1",
			InputMetadata: InputMetadata{
				InputID:           "input-1",
				SchemaVersionID:    "schema-ver-1",
				ProcessingOrderID: "order-1",
			},
			OutputMetadata: OutputMetadata{SchemaVersionID: "schema-ver-2"},
		},
		Status: Status{Code: StatusCodeOK, Detail: "ok"},
	}

	encoded, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var roundTripped ServiceFeedback
	if err := json.Unmarshal(encoded, &roundTripped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if roundTripped.Metadata.ConfigID != original.Metadata.ConfigID {
		t.Fatalf("round trip mismatch: got %+v, want %+v", roundTripped, original)
	}
	if roundTripped.Status.Code != StatusCodeOK {
		t.Fatalf("got status code %d, want %d", roundTripped.Status.Code, StatusCodeOK)
	}
}
