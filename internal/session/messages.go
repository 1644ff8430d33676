package session

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// Inbound discriminants.
const (
	TypeTraining       = "TRAINING"
	TypeTrainAllImages = "TRAINALLIMAGES"
	TypeInfo           = "INFO"
	TypeTesting        = "TESTING"
	TypeStoppedAck     = "STOPPED_ACK"
	TypeFeedback       = "FEEDBACK"
	TypeNull           = "NULL"
	TypeFrame          = "FRAME"
	TypeRegisterClick  = "register_click"
	TypeUpdateIdentity = "UPDATE_IDENTITY"
	TypeRemoveImage    = "REMOVE_IMAGE"
	TypeRequestTSNE    = "REQ_TSNE"
	TypeAllState       = "ALL_STATE"
)

// Outbound discriminants.
const (
	TypeProcessed         = "PROCESSED"
	TypeEndFaceCollection = "END_FACE_COLLECTION"
	TypeWarning           = "WARNING"
	TypeStoredPage2       = "STORED_PAGE2"
	TypeIdentities        = "IDENTITIES"
	TypeAnnotated         = "ANNOTATED"
	TypeTSNEData          = "TSNE_DATA"
)

// Inbound is the closed set of messages a client may send. Only types in
// this file implement it.
type Inbound interface {
	Type() string
	inbound()
}

type SetMode struct {
	Training bool `json:"val"`
}

type BulkEnroll struct{}

type RegisterInfo struct {
	domain.UserInfo
}

type SubmitTestFrame struct {
	DataURL string `json:"dataURL"`
}

type CollectionStoppedAck struct{}

type Feedback struct {
	Correct bool `json:"value"`
	// Actual is the contact the user says they are.
	Actual domain.Label `json:"actualID"`
}

type Ping struct{}

type SubmitTrainFrame struct {
	DataURL  string       `json:"dataURL"`
	Identity domain.Label `json:"identity"`
	// ID is the registration id to file captures under; zero means the
	// person is not registered yet.
	ID domain.Label `json:"ID"`
}

type RegisterClick struct {
	Val json.RawMessage `json:"val"`
}

type UpdateLabel struct {
	Hash  string       `json:"hash"`
	Label domain.Label `json:"idx"`
}

type RemoveSample struct {
	Hash string `json:"hash"`
}

type RequestProjection struct {
	People []string `json:"people"`
}

type StateImage struct {
	Hash           string       `json:"hash"`
	Representation []float64    `json:"representation"`
	Identity       domain.Label `json:"identity"`
}

type LoadState struct {
	Images   []StateImage `json:"images"`
	People   []string     `json:"people"`
	Training bool         `json:"training"`
}

func (SetMode) Type() string              { return TypeTraining }
func (BulkEnroll) Type() string           { return TypeTrainAllImages }
func (RegisterInfo) Type() string         { return TypeInfo }
func (SubmitTestFrame) Type() string      { return TypeTesting }
func (CollectionStoppedAck) Type() string { return TypeStoppedAck }
func (Feedback) Type() string             { return TypeFeedback }
func (Ping) Type() string                 { return TypeNull }
func (SubmitTrainFrame) Type() string     { return TypeFrame }
func (RegisterClick) Type() string        { return TypeRegisterClick }
func (UpdateLabel) Type() string          { return TypeUpdateIdentity }
func (RemoveSample) Type() string         { return TypeRemoveImage }
func (RequestProjection) Type() string    { return TypeRequestTSNE }
func (LoadState) Type() string            { return TypeAllState }

func (SetMode) inbound()              {}
func (BulkEnroll) inbound()           {}
func (RegisterInfo) inbound()         {}
func (SubmitTestFrame) inbound()      {}
func (CollectionStoppedAck) inbound() {}
func (Feedback) inbound()             {}
func (Ping) inbound()                 {}
func (SubmitTrainFrame) inbound()     {}
func (RegisterClick) inbound()        {}
func (UpdateLabel) inbound()          {}
func (RemoveSample) inbound()         {}
func (RequestProjection) inbound()    {}
func (LoadState) inbound()            {}

// Decode reads one client message. Unrecognized discriminants return
// domain.ErrUnknownMessage; unparsable payloads return
// domain.ErrMalformedMessage.
func Decode(raw []byte) (Inbound, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, domain.ErrMalformedMessage.WithError(err)
	}

	switch envelope.Type {
	case TypeTraining:
		return decodeAs[SetMode](raw)
	case TypeTrainAllImages:
		return BulkEnroll{}, nil
	case TypeInfo:
		return decodeAs[RegisterInfo](raw)
	case TypeTesting:
		return decodeAs[SubmitTestFrame](raw)
	case TypeStoppedAck:
		return CollectionStoppedAck{}, nil
	case TypeFeedback:
		return decodeAs[Feedback](raw)
	case TypeNull:
		return Ping{}, nil
	case TypeFrame:
		return decodeAs[SubmitTrainFrame](raw)
	case TypeRegisterClick:
		return decodeAs[RegisterClick](raw)
	case TypeUpdateIdentity:
		return decodeAs[UpdateLabel](raw)
	case TypeRemoveImage:
		return decodeAs[RemoveSample](raw)
	case TypeRequestTSNE:
		return decodeAs[RequestProjection](raw)
	case TypeAllState:
		return decodeAs[LoadState](raw)
	default:
		return nil, domain.ErrUnknownMessage.WithError(fmt.Errorf("type %q", envelope.Type))
	}
}

func decodeAs[T Inbound](raw []byte) (Inbound, error) {
	var msg T
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, domain.ErrMalformedMessage.WithError(err)
	}
	return msg, nil
}

// Outbound is anything the server sends. Encode adds the discriminant.
type Outbound interface {
	Type() string
}

type Processed struct{}

type EndFaceCollection struct{}

type Warning struct {
	Message string `json:"message"`
}

type StoredPage2 struct {
	ID any `json:"id"`
}

type Identities struct {
	Identities any     `json:"identities"`
	Name       *string `json:"name,omitempty"`
	Mail       *string `json:"mail,omitempty"`
	Company    *string `json:"company,omitempty"`
}

type Annotated struct {
	Content string `json:"content"`
}

type TSNEData struct {
	Content string `json:"content"`
}

type Null struct{}

func (Processed) Type() string         { return TypeProcessed }
func (EndFaceCollection) Type() string { return TypeEndFaceCollection }
func (Warning) Type() string           { return TypeWarning }
func (StoredPage2) Type() string       { return TypeStoredPage2 }
func (Identities) Type() string        { return TypeIdentities }
func (Annotated) Type() string         { return TypeAnnotated }
func (TSNEData) Type() string          { return TypeTSNEData }
func (Null) Type() string              { return TypeNull }

// Encode renders msg as a JSON object whose first key is "type".
func Encode(msg Outbound) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s: not an object", msg.Type())
	}

	head := fmt.Appendf(nil, `{"type":%q`, msg.Type())
	if bytes.Equal(body, []byte("{}")) {
		return append(head, '}'), nil
	}
	head = append(head, ',')
	return append(head, body[1:]...), nil
}

// labelValue renders numeric labels as JSON numbers, which is how legacy
// clients compare ids.
func labelValue(l domain.Label) any {
	if n, ok := l.Number(); ok {
		return n
	}
	return string(l)
}
