package runtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type coordinatorState struct {
	PaymentsIssued int
}

func newTestProcessManager(t *testing.T) *ProcessManager[coordinatorState] {
	t.Helper()
	pm, err := NewProcessManager("payment-coordinator", "payment-coordination", []string{"order"}, func() coordinatorState { return coordinatorState{} })
	require.NoError(t, err)
	require.NoError(t, pm.Applies("BoolValue", func() proto.Message { return &wrapperspb.BoolValue{} }, applyPaymentIssuedPM))
	require.NoError(t, pm.Handles("Struct", handleOrderPlacedPM))
	require.NoError(t, pm.Rejected("payment", "DoubleValue", handlePaymentRejectedPM))
	return pm
}

func applyPaymentIssuedPM(state *coordinatorState, event proto.Message) {
	state.PaymentsIssued++
}

func handleOrderPlacedPM(ctx *PMContext[coordinatorState], event *structpb.Struct, destinations []*EventBook) ([]*CommandBook, error) {
	ctx.ApplyAndRecord(wrapperspb.Bool(true))
	cover := NewCover("payment", uuid.New(), "")
	amount := event.Fields["amount"].GetNumberValue()
	return []*CommandBook{NewCommandBook(cover, MustPack(wrapperspb.Double(amount)))}, nil
}

func handlePaymentRejectedPM(ctx *PMContext[coordinatorState], rejection *RejectionNotification) (*Notification, error) {
	return nil, nil
}

func orderPlacedTrigger(amount float64) *EventBook {
	s, err := structpb.NewStruct(map[string]any{"amount": amount})
	if err != nil {
		panic(err)
	}
	return &EventBook{
		Cover: NewCover("order", uuid.New(), ""),
		Pages: []EventPage{{Sequence: 1, Event: MustPack(s)}},
	}
}

func TestNewProcessManagerRequiresMetadata(t *testing.T) {
	_, err := NewProcessManager("", "payment-coordination", []string{"order"}, func() coordinatorState { return coordinatorState{} })
	require.Error(t, err)
	assert.IsType(t, &ConfigurationError{}, err)

	_, err = NewProcessManager("payment-coordinator", "payment-coordination", nil, func() coordinatorState { return coordinatorState{} })
	require.Error(t, err)
}

func TestProcessManagerHandleIssuesCommandAndRecordsOwnEvent(t *testing.T) {
	pm := newTestProcessManager(t)
	trigger := orderPlacedTrigger(50)

	resp, err := pm.Handle(trigger, nil, nil)
	require.NoError(t, err)
	require.Len(t, resp.Commands, 1)
	assert.Equal(t, "payment", resp.Commands[0].Cover.Domain)

	require.Len(t, resp.ProcessEvents.Pages, 1)
	assert.Equal(t, uint64(1), resp.ProcessEvents.Pages[0].Sequence)
}

func TestProcessManagerHandleAccumulatesStateAcrossCalls(t *testing.T) {
	pm := newTestProcessManager(t)
	first, err := pm.Handle(orderPlacedTrigger(10), nil, nil)
	require.NoError(t, err)

	_, err = pm.Handle(orderPlacedTrigger(20), first.ProcessEvents, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, pm.projector.State().PaymentsIssued)
}

func TestProcessManagerHandleNilTrigger(t *testing.T) {
	pm := newTestProcessManager(t)
	resp, err := pm.Handle(nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.Commands)
	assert.NotNil(t, resp.ProcessEvents)
}

func TestProcessManagerHandleCompensatesKnownRejection(t *testing.T) {
	pm := newTestProcessManager(t)
	rejection := &RejectionNotification{
		IssuerType:      IssuerProcessManager,
		RejectionReason: "card declined",
		RejectedCommand: &CommandBook{
			Cover: &Cover{Domain: "payment"},
			Pages: []CommandPage{{Command: &Envelope{TypeUrl: TypeURLPrefix + "google.protobuf.DoubleValue"}}},
		},
	}
	trigger := &EventBook{
		Cover: NewCover("order", uuid.New(), ""),
		Pages: []EventPage{{Sequence: 1, Notification: NewRejectionNotification(rejection)}},
	}

	resp, err := pm.Handle(trigger, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, resp.Revocation)
}

func TestProcessManagerHandleDelegatesUnhandledRejection(t *testing.T) {
	pm := newTestProcessManager(t)
	rejection := &RejectionNotification{
		IssuerType:      IssuerProcessManager,
		RejectionReason: "unexpected",
		RejectedCommand: &CommandBook{
			Cover: &Cover{Domain: "shipping"},
			Pages: []CommandPage{{Command: &Envelope{TypeUrl: TypeURLPrefix + "google.protobuf.BoolValue"}}},
		},
	}
	trigger := &EventBook{
		Cover: NewCover("order", uuid.New(), ""),
		Pages: []EventPage{{Sequence: 1, Notification: NewRejectionNotification(rejection)}},
	}

	resp, err := pm.Handle(trigger, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Revocation)
	assert.True(t, resp.Revocation.EmitSystemRevocation)
}

func TestProcessManagerPrepareDestinations(t *testing.T) {
	pm, err := NewProcessManager("coord", "payment-coordination", []string{"order"}, func() coordinatorState { return coordinatorState{} })
	require.NoError(t, err)
	require.NoError(t, pm.Prepares("Struct", func(ctx *PMContext[coordinatorState], event *structpb.Struct) ([]*Cover, error) {
		id := event.Fields["customer_id"].GetStringValue()
		root, parseErr := uuid.Parse(id)
		if parseErr != nil {
			return nil, nil
		}
		return []*Cover{NewCover("customer", root, "")}, nil
	}))

	customerID := uuid.New()
	s, err := structpb.NewStruct(map[string]any{"customer_id": customerID.String()})
	require.NoError(t, err)
	trigger := &EventBook{Pages: []EventPage{{Sequence: 1, Event: MustPack(s)}}}

	destinations, err := pm.PrepareDestinations(trigger, nil)
	require.NoError(t, err)
	require.Len(t, destinations, 1)
	assert.Equal(t, customerID, *destinations[0].Root)
}

func TestProcessManagerDescriptor(t *testing.T) {
	pm := newTestProcessManager(t)
	desc := pm.Descriptor()
	assert.Equal(t, "payment-coordinator", desc.Name)
	assert.Equal(t, KindProcessManager, desc.Kind)
	require.Len(t, desc.Inputs, 1)
	assert.Equal(t, "order", desc.Inputs[0].Domain)
	assert.Contains(t, desc.Inputs[0].Types, "Struct")
}
