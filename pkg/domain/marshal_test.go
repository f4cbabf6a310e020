package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalEnvelope_RoundTrip(t *testing.T) {
	registry := NewAccountTypeRegistry()
	factory := NewEventFactory()
	env := factory.NewEnvelope(&AccountCredited{Amount: 500, Reason: "deposit"}, "account-1", AccountAggregateType, 1)

	data, err := MarshalEnvelope(env)
	require.NoError(t, err)

	decoded, err := UnmarshalEnvelope(data, registry, false)
	require.NoError(t, err)

	credited, ok := decoded.Event.(*AccountCredited)
	require.True(t, ok)
	assert.EqualValues(t, 500, credited.Amount)
	assert.Equal(t, "deposit", credited.Reason)
	assert.Equal(t, env.Metadata.EventID, decoded.Metadata.EventID)
	assert.Equal(t, env.Metadata.AggregateID, decoded.Metadata.AggregateID)
}

func TestUnmarshalEnvelope_UnregisteredType_StrictFails(t *testing.T) {
	registry := NewTypeRegistry()
	factory := NewEventFactory()
	env := factory.NewEnvelope(GenericEvent{Type: "unknown.event", Data: map[string]any{}}, "x-1", "x", 1)

	data, err := MarshalEnvelope(env)
	require.NoError(t, err)

	_, err = UnmarshalEnvelope(data, registry, false)
	assert.Error(t, err)
	var serErr SerializationError
	assert.ErrorAs(t, err, &serErr)
}

func TestUnmarshalEnvelope_UnregisteredType_PermissiveFallsBackToGeneric(t *testing.T) {
	registry := NewTypeRegistry()
	factory := NewEventFactory()
	env := factory.NewEnvelope(accountOpenedAsMap{AccountID: "account-1", Owner: "Ada"}, "account-1", AccountAggregateType, 1)

	data, err := MarshalEnvelope(env)
	require.NoError(t, err)

	decoded, err := UnmarshalEnvelope(data, registry, true)
	require.NoError(t, err)

	generic, ok := decoded.Event.(GenericEvent)
	require.True(t, ok)
	assert.Equal(t, "account.custom", generic.Type)
	name, ok := generic.GetString("account_id")
	assert.True(t, ok)
	assert.Equal(t, "account-1", name)
}

// accountOpenedAsMap is a standalone JSON-tagged event only used to exercise
// the permissive-decode path without colliding with a registered type.
type accountOpenedAsMap struct {
	AccountID string `json:"account_id"`
	Owner     string `json:"owner"`
}

func (accountOpenedAsMap) EventType() string { return "account.custom" }
