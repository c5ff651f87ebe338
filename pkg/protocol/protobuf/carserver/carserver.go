// Package carserver mirrors the subset of the vendor's CarServer schema
// needed to request and decode a GetVehicleData response: the Action
// envelope that carries the request, and the Response envelope that carries
// either vehicle state or an application-level error.
package carserver

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/wireutil"
)

// VehicleDataCategory selects which of the twelve GetVehicleData
// sub-requests to issue.
type VehicleDataCategory int

const (
	CategoryCharge VehicleDataCategory = iota
	CategoryClimate
	CategoryDrive
	CategoryLocation
	CategoryClosures
	CategoryChargeSchedule
	CategoryPreconditioningSchedule
	CategoryTirePressure
	CategoryMedia
	CategoryMediaDetail
	CategorySoftwareUpdate
	CategoryParentalControls
)

// field numbers of the GetVehicleData oneof selectors. Each submessage is
// empty: presence, not content, communicates the request.
const (
	fieldGetChargeState                   protowire.Number = 1
	fieldGetClimateState                  protowire.Number = 2
	fieldGetDriveState                    protowire.Number = 3
	fieldGetLocationState                 protowire.Number = 4
	fieldGetClosuresState                 protowire.Number = 5
	fieldGetChargeScheduleState           protowire.Number = 6
	fieldGetPreconditioningScheduleState   protowire.Number = 7
	fieldGetTirePressureState              protowire.Number = 8
	fieldGetMediaState                     protowire.Number = 9
	fieldGetMediaDetailState               protowire.Number = 10
	fieldGetSoftwareUpdateState             protowire.Number = 11
	fieldGetParentalControlsState          protowire.Number = 12
)

var categoryField = map[VehicleDataCategory]protowire.Number{
	CategoryCharge:                   fieldGetChargeState,
	CategoryClimate:                  fieldGetClimateState,
	CategoryDrive:                    fieldGetDriveState,
	CategoryLocation:                 fieldGetLocationState,
	CategoryClosures:                 fieldGetClosuresState,
	CategoryChargeSchedule:           fieldGetChargeScheduleState,
	CategoryPreconditioningSchedule:  fieldGetPreconditioningScheduleState,
	CategoryTirePressure:             fieldGetTirePressureState,
	CategoryMedia:                    fieldGetMediaState,
	CategoryMediaDetail:              fieldGetMediaDetailState,
	CategorySoftwareUpdate:           fieldGetSoftwareUpdateState,
	CategoryParentalControls:         fieldGetParentalControlsState,
}

var fieldCategory = func() map[protowire.Number]VehicleDataCategory {
	m := make(map[protowire.Number]VehicleDataCategory, len(categoryField))
	for c, f := range categoryField {
		m[f] = c
	}
	return m
}()

// GetVehicleData is the plaintext request selecting one vehicle-data
// category.
type GetVehicleData struct {
	Category VehicleDataCategory
}

func (g *GetVehicleData) Marshal() []byte {
	field, ok := categoryField[g.Category]
	if !ok {
		return nil
	}
	return wireutil.AppendMessageField(nil, field, true, nil)
}

// VehicleAction wraps GetVehicleData; the core only ever populates this one
// variant of the vendor's larger VehicleAction oneof.
type VehicleAction struct {
	GetVehicleData *GetVehicleData
}

const fieldVehicleActionGetVehicleData protowire.Number = 1

func (v *VehicleAction) Marshal() []byte {
	if v == nil || v.GetVehicleData == nil {
		return nil
	}
	return wireutil.AppendMessageField(nil, fieldVehicleActionGetVehicleData, true, v.GetVehicleData.Marshal())
}

// Action is the plaintext payload of an encrypted command sent to the
// Infotainment domain.
type Action struct {
	VehicleAction *VehicleAction
}

const fieldActionVehicleAction protowire.Number = 2

// MarshalGetVehicleDataAction encodes the Action that requests vehicle data
// for category.
func MarshalGetVehicleDataAction(category VehicleDataCategory) []byte {
	a := &Action{VehicleAction: &VehicleAction{GetVehicleData: &GetVehicleData{Category: category}}}
	return wireutil.AppendMessageField(nil, fieldActionVehicleAction, true, a.VehicleAction.Marshal())
}

// OperationStatus_E reports whether a CarServer-level action succeeded.
type OperationStatus_E int32

const (
	OPERATIONSTATUS_OK    OperationStatus_E = 0
	OPERATIONSTATUS_ERROR OperationStatus_E = 1
)

// ResultReason carries a human-readable explanation for a failed action.
type ResultReason struct {
	PlainText string
}

const fieldResultReasonPlainText protowire.Number = 1

func (r *ResultReason) GetPlainText() string {
	if r == nil {
		return ""
	}
	return r.PlainText
}

func unmarshalResultReason(b []byte) (*ResultReason, error) {
	r := &ResultReason{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		if num == fieldResultReasonPlainText && typ == protowire.BytesType {
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			r.PlainText = string(v)
			continue
		}
		rest, err = wireutil.Skip(num, typ, b)
		if err != nil {
			return nil, err
		}
		b = rest
	}
	return r, nil
}

// ActionStatus reports the outcome of a CarServer Action.
type ActionStatus struct {
	Result       OperationStatus_E
	ResultReason *ResultReason
}

const (
	fieldActionStatusResult       protowire.Number = 1
	fieldActionStatusResultReason protowire.Number = 2
)

func (a *ActionStatus) GetResult() OperationStatus_E { return a.Result }
func (a *ActionStatus) GetResultReason() *ResultReason {
	if a == nil {
		return nil
	}
	return a.ResultReason
}

func unmarshalActionStatus(b []byte) (*ActionStatus, error) {
	a := &ActionStatus{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		switch {
		case num == fieldActionStatusResult && typ == protowire.VarintType:
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			a.Result = OperationStatus_E(v)
		case num == fieldActionStatusResultReason && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			a.ResultReason, err = unmarshalResultReason(v)
			if err != nil {
				return nil, err
			}
		default:
			rest, err := wireutil.Skip(num, typ, b)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return a, nil
}

// VehicleData is the decoded payload of a successful GetVehicleData
// response: the category that was returned, and the raw bytes of whichever
// submessage the vehicle populated. Parsing the twelve state submessages'
// full field sets is a UI/display concern, out of scope for this core; the
// raw bytes are exposed so a caller can decode further if it needs to.
type VehicleData struct {
	Category VehicleDataCategory
	HasData  bool
	Raw      []byte
}

// Response is the top-level decoded reply to an encrypted Infotainment
// command.
type Response struct {
	ActionStatus *ActionStatus
	VehicleData  *VehicleData
}

func (r *Response) GetActionStatus() *ActionStatus {
	if r == nil {
		return nil
	}
	return r.ActionStatus
}

const (
	fieldResponseActionStatus protowire.Number = 1
	fieldResponseVehicleData  protowire.Number = 2
)

// Unmarshal decodes a Response from decrypted command-response plaintext.
func Unmarshal(b []byte) (*Response, error) {
	r := &Response{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		switch {
		case num == fieldResponseActionStatus && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			r.ActionStatus, err = unmarshalActionStatus(v)
			if err != nil {
				return nil, err
			}
		case num == fieldResponseVehicleData && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			r.VehicleData, err = unmarshalVehicleData(v)
			if err != nil {
				return nil, err
			}
		default:
			rest, err := wireutil.Skip(num, typ, b)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return r, nil
}

func unmarshalVehicleData(b []byte) (*VehicleData, error) {
	vd := &VehicleData{}
	remaining := b
	for len(remaining) > 0 {
		num, typ, rest, err := wireutil.Tag(remaining)
		if err != nil {
			return nil, err
		}
		remaining = rest
		if typ != protowire.BytesType {
			rest, err := wireutil.Skip(num, typ, remaining)
			if err != nil {
				return nil, err
			}
			remaining = rest
			continue
		}
		v, rest, err := wireutil.Bytes(remaining)
		if err != nil {
			return nil, err
		}
		remaining = rest
		if category, ok := fieldCategory[num]; ok {
			vd.Category = category
			vd.HasData = true
			vd.Raw = append([]byte(nil), v...)
		}
	}
	return vd, nil
}
