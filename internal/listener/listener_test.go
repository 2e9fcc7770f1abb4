package listener

import (
	"context"
	"testing"

	"github.com/streadway/amqp"

	"github.com/VeRJiL/crawlerd/internal/eventcontroller"
)

type fakeAcknowledger struct {
	acked    []uint64
	nacked   []uint64
	rejected []uint64
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.rejected = append(f.rejected, tag)
	return nil
}

type fakeController struct {
	disposition eventcontroller.Disposition
}

func (f fakeController) Run(ctx context.Context, body []byte) eventcontroller.Disposition {
	return f.disposition
}

func TestHandleAcksOnAckDisposition(t *testing.T) {
	ack := &fakeAcknowledger{}
	delivery := amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}

	s := &Supervisor{}
	s.handle(context.Background(), fakeController{disposition: eventcontroller.Ack}, delivery)

	if len(ack.acked) != 1 {
		t.Fatalf("got %d acks, want 1", len(ack.acked))
	}
}

func TestHandleRejectsOnNackRejectDisposition(t *testing.T) {
	ack := &fakeAcknowledger{}
	delivery := amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}

	s := &Supervisor{}
	s.handle(context.Background(), fakeController{disposition: eventcontroller.NackReject}, delivery)

	if len(ack.nacked) != 1 {
		t.Fatalf("got %d nacks, want 1", len(ack.nacked))
	}
	if len(ack.acked) != 0 {
		t.Fatal("expected no ack on NackReject")
	}
}

func TestHandleLeavesDeliveryUnsettledOnLeaveDisposition(t *testing.T) {
	ack := &fakeAcknowledger{}
	delivery := amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}

	s := &Supervisor{}
	s.handle(context.Background(), fakeController{disposition: eventcontroller.Leave}, delivery)

	if len(ack.acked) != 0 || len(ack.nacked) != 0 || len(ack.rejected) != 0 {
		t.Fatal("expected delivery to be left unsettled on Leave")
	}
}
