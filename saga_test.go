package runtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func newTestSaga(t *testing.T) *Saga {
	t.Helper()
	saga, err := NewSaga("credit-reservation", "order", "credit")
	require.NoError(t, err)
	require.NoError(t, saga.Prepares("Struct", prepareCustomer))
	require.NoError(t, saga.ReactsTo("Struct", reactToPlaced))
	require.NoError(t, saga.ReactsTo("StringValue", reactToCancelled))
	return saga
}

func prepareCustomer(event *structpb.Struct) []*Cover {
	id := event.Fields["customer_id"].GetStringValue()
	root, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	return []*Cover{NewCover("customer", root, "")}
}

func reactToPlaced(event *structpb.Struct, destinations []*EventBook) (*wrapperspb.DoubleValue, error) {
	return wrapperspb.Double(event.Fields["amount"].GetNumberValue()), nil
}

func reactToCancelled(event *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(true), nil
}

func placedEventBook(customerID string, amount float64) *EventBook {
	s, err := structpb.NewStruct(map[string]any{"customer_id": customerID, "amount": amount})
	if err != nil {
		panic(err)
	}
	return &EventBook{
		Cover: NewCover("order", uuid.New(), ""),
		Pages: []EventPage{{Sequence: 1, Event: MustPack(s)}},
	}
}

func TestNewSagaRequiresMetadata(t *testing.T) {
	_, err := NewSaga("", "order", "credit")
	require.Error(t, err)
	assert.IsType(t, &ConfigurationError{}, err)
}

func TestSagaPrepareDestinationsParsesCustomerID(t *testing.T) {
	saga := newTestSaga(t)
	customerID := uuid.New()
	source := placedEventBook(customerID.String(), 42)

	destinations, err := saga.PrepareDestinations(source)
	require.NoError(t, err)
	require.Len(t, destinations, 1)
	assert.Equal(t, "customer", destinations[0].Domain)
	assert.Equal(t, customerID, *destinations[0].Root)
}

func TestSagaPrepareDestinationsSkipsUnmatchedSuffix(t *testing.T) {
	saga := newTestSaga(t)
	source := &EventBook{
		Cover: NewCover("order", uuid.New(), ""),
		Pages: []EventPage{{Sequence: 1, Event: MustPack(wrapperspb.Int32(1))}},
	}

	destinations, err := saga.PrepareDestinations(source)
	require.NoError(t, err)
	assert.Empty(t, destinations)
}

func TestSagaExecuteReactsToOrderPlaced(t *testing.T) {
	saga := newTestSaga(t)
	source := placedEventBook(uuid.New().String(), 19.99)

	commands, err := saga.Execute(source, nil)
	require.NoError(t, err)
	require.Len(t, commands, 1)
	assert.Equal(t, "credit", commands[0].Cover.Domain)
	assert.Equal(t, source.Cover.Root, commands[0].Cover.Root)

	var amount wrapperspb.DoubleValue
	require.NoError(t, Unpack(commands[0].Pages[0].Command, &amount))
	assert.InDelta(t, 19.99, amount.Value, 0.0001)
}

func TestSagaExecuteReactsToOrderCancelled(t *testing.T) {
	saga := newTestSaga(t)
	source := &EventBook{
		Cover: NewCover("order", uuid.New(), ""),
		Pages: []EventPage{{Sequence: 1, Event: MustPack(wrapperspb.String("order-1"))}},
	}

	commands, err := saga.Execute(source, nil)
	require.NoError(t, err)
	require.Len(t, commands, 1)
	assert.Equal(t, "credit", commands[0].Cover.Domain)
}

func TestSagaExecuteIgnoresNilSource(t *testing.T) {
	saga := newTestSaga(t)
	commands, err := saga.Execute(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, commands)
}

func TestSagaReactsToRejectsBadSignature(t *testing.T) {
	saga, err := NewSaga("bad", "order", "credit")
	require.NoError(t, err)
	err = saga.ReactsTo("Struct", func(event *structpb.Struct) *wrapperspb.BoolValue { return nil })
	require.Error(t, err)
	assert.IsType(t, &ConfigurationError{}, err)
}

func TestSagaPreparesRejectsBadSignature(t *testing.T) {
	saga, err := NewSaga("bad", "order", "credit")
	require.NoError(t, err)
	err = saga.Prepares("Struct", func(event *structpb.Struct, extra int) []*Cover { return nil })
	require.Error(t, err)
	assert.IsType(t, &ConfigurationError{}, err)
}

func TestSagaDescriptor(t *testing.T) {
	saga := newTestSaga(t)
	desc := saga.Descriptor()
	assert.Equal(t, "credit-reservation", desc.Name)
	assert.Equal(t, KindSaga, desc.Kind)
	require.Len(t, desc.Inputs, 1)
	assert.Equal(t, "order", desc.Inputs[0].Domain)
	assert.Contains(t, desc.Inputs[0].Types, "Struct")
	assert.Contains(t, desc.Inputs[0].Types, "StringValue")
}
