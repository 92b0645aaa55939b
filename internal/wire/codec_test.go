package wire

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbcastro/concu-rideshare/internal/geo"
)

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	out, err := Encode(m)
	require.NoError(t, err)
	decoded, err := Decode(out)
	require.NoError(t, err)
	return decoded
}

func TestCodec_RoundTrip(t *testing.T) {
	approved := true

	cases := []Message{
		Identification{ID: 3, Type_: TypeDriver},
		Election{SenderID: 2},
		Alive{ResponderID: 4},
		Coordinator{LeaderID: 4},
		NotifyPosition{DriverID: 1, DriverPosition: geo.Position{X: 5, Y: 9}},
		TripRequest{PassengerID: 7, PassengerLocation: geo.Position{X: 1, Y: 2}, Destination: geo.Position{X: 9, Y: 9}},
		CanHandleTrip{PassengerID: 7, DriverID: 1, PassengerLocation: geo.Position{X: 1, Y: 2}, Destination: geo.Position{X: 9, Y: 9}},
		CanHandleTripACK{PassengerID: 7, DriverID: 1, Response: true},
		Listening{},
		TripResponse{Status: Success, Detail: "arrived"},
		AuthPayment{PassengerID: 7, Response: &approved},
		CollectPayment{DriverID: 1, PassengerID: 7, Response: &approved},
	}

	for _, m := range cases {
		got := roundTrip(t, m)
		// Decode returns a pointer to the concrete variant.
		assert.Equal(t, m, reflect.ValueOf(got).Elem().Interface(), "round trip of %T", m)
	}
}

func TestCodec_ExternallyTagged(t *testing.T) {
	out, err := Encode(Election{SenderID: 9})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Election":{"sender_id":9}}`, string(out))
}

func TestCodec_UnknownTagIsError(t *testing.T) {
	_, err := Decode([]byte(`{"NotAMessage":{}}`))
	assert.Error(t, err)
}

func TestCodec_MultiKeyEnvelopeIsError(t *testing.T) {
	_, err := Decode([]byte(`{"Alive":{},"Election":{}}`))
	assert.Error(t, err)
}

func TestCodec_MalformedJSONIsError(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}
