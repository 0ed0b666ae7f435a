package gas

import (
	"bytes"
	"errors"
	"fmt"
	"maps"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Shadow document attribute names.
const (
	shadowStateKey       = "state"
	shadowDesiredKey     = "desired"
	shadowReportedKey    = "reported"
	shadowVersionKey     = "version"
	shadowTimestampKey   = "timestamp"
	shadowClientTokenKey = "clientToken"
	shadowCodeKey        = "code"
	shadowMessageKey     = "message"
)

var (
	// errEmptyShadow is returned when the shadow payload has no content.
	errEmptyShadow = errors.New("empty shadow document")
	// errMalformedSection is returned when a shadow section is not a JSON object.
	errMalformedSection = errors.New("shadow section is not an object")
)

// ShadowDocument is the synchronization record of one device.
type ShadowDocument struct {
	// Desired holds the cloud-requested actuator states.
	Desired map[string]any
	// Reported holds the last states reported by the device.
	Reported map[string]any
	// Version is the document version maintained by the shadow service.
	Version int64
	// Timestamp is the epoch second of the last document change.
	Timestamp int64
}

// ParseShadow decodes a shadow document of the form
// {"state":{"desired":{...},"reported":{...}},"version":N,"timestamp":N}.
// Absent sections decode as empty maps; sections that are not objects are an error.
func ParseShadow(payload []byte) (*ShadowDocument, error) {
	root, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}

	state, err := section(root, shadowStateKey)
	if err != nil {
		return nil, err
	}

	desired, err := section(state, shadowDesiredKey)
	if err != nil {
		return nil, err
	}

	reported, err := section(state, shadowReportedKey)
	if err != nil {
		return nil, err
	}

	return &ShadowDocument{
		Desired:   desired,
		Reported:  reported,
		Version:   integer(root[shadowVersionKey]),
		Timestamp: integer(root[shadowTimestampKey]),
	}, nil
}

// Encode renders the document in the shadow service wire format.
func (d *ShadowDocument) Encode() ([]byte, error) {
	return encodeObject(map[string]any{
		shadowStateKey: map[string]any{
			shadowDesiredKey:  nonNil(d.Desired),
			shadowReportedKey: nonNil(d.Reported),
		},
		shadowVersionKey:   d.Version,
		shadowTimestampKey: d.Timestamp,
	})
}

// Clone returns a deep copy of the document.
func (d *ShadowDocument) Clone() *ShadowDocument {
	if d == nil {
		return nil
	}

	return &ShadowDocument{
		Desired:   cloneTree(d.Desired),
		Reported:  cloneTree(d.Reported),
		Version:   d.Version,
		Timestamp: d.Timestamp,
	}
}

// EncodeDesiredUpdate renders a partial update {"state":{"desired":{...}}}.
// A non-empty clientToken is added so replies can be correlated.
func EncodeDesiredUpdate(delta Delta, clientToken string) ([]byte, error) {
	desired := make(map[string]any, len(delta))
	for actuator, state := range delta {
		desired[actuator] = state
	}

	document := map[string]any{
		shadowStateKey: map[string]any{
			shadowDesiredKey: desired,
		},
	}

	if clientToken != "" {
		document[shadowClientTokenKey] = clientToken
	}

	return encodeObject(document)
}

// EncodeRequest renders a shadow request that carries only a client token.
func EncodeRequest(clientToken string) ([]byte, error) {
	return encodeObject(map[string]any{shadowClientTokenKey: clientToken})
}

// Reply is the envelope of a shadow service reply.
type Reply struct {
	// ClientToken echoes the token of the request.
	ClientToken string
	// Code is the error code of rejected requests, zero otherwise.
	Code int
	// Message is the error message of rejected requests.
	Message string
}

// ParseReply extracts the correlation and error fields of a shadow service reply.
func ParseReply(payload []byte) (*Reply, error) {
	root, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}

	token, _ := root[shadowClientTokenKey].(string)
	message, _ := root[shadowMessageKey].(string)

	return &Reply{
		ClientToken: token,
		Code:        int(integer(root[shadowCodeKey])),
		Message:     message,
	}, nil
}

// decodeObject parses a JSON object with protojson into a plain map.
func decodeObject(payload []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, errEmptyShadow
	}

	var document structpb.Struct
	if err := protojson.Unmarshal(payload, &document); err != nil {
		return nil, fmt.Errorf("decode shadow document: %w", err)
	}

	return document.AsMap(), nil
}

// encodeObject renders a plain map as a JSON object.
func encodeObject(document map[string]any) ([]byte, error) {
	value, err := structpb.NewStruct(document)
	if err != nil {
		return nil, fmt.Errorf("build shadow document: %w", err)
	}

	data, err := protojson.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode shadow document: %w", err)
	}

	return data, nil
}

// section returns the named object inside parent, or an empty map when it is absent or null.
func section(parent map[string]any, key string) (map[string]any, error) {
	raw, ok := parent[key]
	if !ok || raw == nil {
		return map[string]any{}, nil
	}

	value, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errMalformedSection, key)
	}

	return value, nil
}

// integer converts a decoded JSON number to int64, zero for anything else.
func integer(raw any) int64 {
	if number, ok := raw.(float64); ok {
		return int64(number)
	}

	return 0
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}

// cloneTree deep-copies nested maps produced by structpb.
func cloneTree(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	cloned := maps.Clone(m)
	for key, value := range cloned {
		if nested, ok := value.(map[string]any); ok {
			cloned[key] = cloneTree(nested)
		}
	}

	return cloned
}
