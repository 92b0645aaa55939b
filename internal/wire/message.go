// Package wire implements the newline-delimited JSON framing and
// externally-tagged message union spec.md §6 defines.
package wire

import "github.com/jbcastro/concu-rideshare/internal/geo"

// TripStatus is the status carried on a TripResponse (spec.md §6).
type TripStatus string

const (
	RequestDelivered TripStatus = "RequestDelivered"
	Info             TripStatus = "Info"
	Success          TripStatus = "Success"
	Error            TripStatus = "Error"
)

// IdentificationType distinguishes the preamble's declared peer kind.
type IdentificationType string

const (
	TypeDriver    IdentificationType = "D"
	TypePassenger IdentificationType = "P"
)

// Identification is the first line sent after connect, on either a
// driver-driver or passenger-driver socket (spec.md §6). ProtocolVersion
// carries the sender's config.ProtocolVersion so the accepting side can
// run config.CheckPeerVersion before trusting anything else on the
// socket.
type Identification struct {
	ID              uint32             `json:"id"`
	Type_           IdentificationType `json:"type_"`
	ProtocolVersion string             `json:"protocol_version"`
}

// Election is sent by a driver entering the Electing state to every
// peer with a higher id (spec.md §4.2).
type Election struct {
	SenderID uint32 `json:"sender_id"`
}

// Alive is the reply to an Election from a lower-id sender.
type Alive struct {
	ResponderID uint32 `json:"responder_id"`
}

// Coordinator announces the new leader to every peer.
type Coordinator struct {
	LeaderID uint32 `json:"leader_id"`
}

// NotifyPosition reports a driver's current position to the leader.
type NotifyPosition struct {
	DriverID       uint32      `json:"driver_id"`
	DriverPosition geo.Position `json:"driver_position"`
}

// TripRequest is forwarded driver-to-driver (non-leader to leader) or
// sent passenger-to-driver as the initial request, depending on
// socket kind (spec.md §6 lists it under both unions with the same
// shape modulo the passenger id field).
type TripRequest struct {
	PassengerID      uint32      `json:"passenger_id"`
	PassengerLocation geo.Position `json:"passenger_location"`
	Destination      geo.Position `json:"destination"`
}

// CanHandleTrip is the leader's offer to a candidate driver.
type CanHandleTrip struct {
	PassengerID       uint32      `json:"passenger_id"`
	DriverID          uint32      `json:"driver_id"`
	PassengerLocation geo.Position `json:"passenger_location"`
	Destination       geo.Position `json:"destination"`
}

// CanHandleTripACK is a candidate's accept/decline reply.
type CanHandleTripACK struct {
	PassengerID uint32 `json:"passenger_id"`
	DriverID    uint32 `json:"driver_id"`
	Response    bool   `json:"response"`
}

// Listening is the passenger's "my inbound listener is up"
// acknowledgement following its initial TripRequest.
type Listening struct{}

// TripResponse is a driver-or-leader status update to the passenger.
type TripResponse struct {
	Status TripStatus `json:"status"`
	Detail string     `json:"detail"`
}

// AuthPayment is sent passenger-to-payment before requesting a trip,
// and its response carries the same shape plus Response.
type AuthPayment struct {
	PassengerID uint32 `json:"passenger_id"`
	Response    *bool  `json:"response,omitempty"`
}

// CollectPayment is sent driver-to-payment once a trip completes.
type CollectPayment struct {
	DriverID    uint32 `json:"driver_id"`
	PassengerID uint32 `json:"passenger_id"`
	Response    *bool  `json:"response,omitempty"`
}
