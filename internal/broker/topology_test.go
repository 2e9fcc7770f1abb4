package broker

import "testing"

func TestInputQueueName(t *testing.T) {
	got := InputQueueName("acme", "videos", "youtube")
	want := "input-queue.acme.videos.youtube"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestInputRoutingKey(t *testing.T) {
	got := InputRoutingKey("acme", "videos", "youtube")
	want := "input.ready-to-process.acme.videos.youtube"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
