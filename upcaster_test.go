package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func newTestUpcaster(t *testing.T) *Upcaster {
	t.Helper()
	u, err := NewUpcaster("order-created-migration", "order")
	require.NoError(t, err)
	require.NoError(t, u.On("StringValue", func(old *wrapperspb.StringValue) (*structpb.Struct, error) {
		return structpb.NewStruct(map[string]any{"order_id": old.Value, "migrated": true})
	}))
	return u
}

func TestNewUpcasterRequiresName(t *testing.T) {
	_, err := NewUpcaster("", "order")
	require.Error(t, err)
	assert.IsType(t, &ConfigurationError{}, err)
}

func TestUpcasterOnRejectsNonPointerReturn(t *testing.T) {
	u, err := NewUpcaster("bad", "order")
	require.NoError(t, err)
	err = u.On("StringValue", func(old *wrapperspb.StringValue) string { return old.Value })
	require.Error(t, err)
	assert.IsType(t, &ConfigurationError{}, err)
}

func TestUpcasterOnRejectsNilReturn(t *testing.T) {
	u, err := NewUpcaster("bad", "order")
	require.NoError(t, err)
	require.NoError(t, u.On("StringValue", func(old *wrapperspb.StringValue) *structpb.Struct { return nil }))

	pages := []EventPage{{Sequence: 1, Event: MustPack(wrapperspb.String("x"))}}
	_, err = u.Upcast(pages)
	require.Error(t, err)
	assert.IsType(t, &ConfigurationError{}, err)
}

func TestUpcasterTransformsMatchingPagesPreservingSequence(t *testing.T) {
	u := newTestUpcaster(t)
	old := MustPack(wrapperspb.String("order-1"))
	untouched := MustPack(wrapperspb.Bool(true))
	pages := []EventPage{
		{Sequence: 1, Event: old},
		{Sequence: 2, Event: untouched},
		{Sequence: 3, Event: old},
	}

	out, err := u.Upcast(pages)
	require.NoError(t, err)
	require.Len(t, out, 3)

	for i, seq := range []uint64{1, 2, 3} {
		assert.Equal(t, seq, out[i].Sequence)
	}

	var migrated structpb.Struct
	require.NoError(t, Unpack(out[0].Event, &migrated))
	assert.Equal(t, "order-1", migrated.Fields["order_id"].GetStringValue())
	assert.True(t, migrated.Fields["migrated"].GetBoolValue())

	assert.Same(t, untouched, out[1].Event)

	require.NoError(t, Unpack(out[2].Event, &migrated))
	assert.Equal(t, "order-1", migrated.Fields["order_id"].GetStringValue())
}

func TestUpcasterUpcastEmptyInput(t *testing.T) {
	u := newTestUpcaster(t)
	out, err := u.Upcast(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestUpcasterDescriptor(t *testing.T) {
	u := newTestUpcaster(t)
	desc := u.Descriptor()
	assert.Equal(t, "order-created-migration", desc.Name)
	assert.Equal(t, KindUpcaster, desc.Kind)
	require.Len(t, desc.Inputs, 1)
	assert.Contains(t, desc.Inputs[0].Types, "StringValue")
}
