package transformer

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrNotAttributeValue is returned when a JSON value is not a DynamoDB JSON
// attribute value ({"S": "x"}, {"N": "1"}, ...).
var ErrNotAttributeValue = errors.New("not a dynamodb attribute value")

// avJSON is the DynamoDB JSON wire form of one attribute value.
type avJSON struct {
	S    *string                    `json:"S,omitempty"`
	N    *string                    `json:"N,omitempty"`
	B    *string                    `json:"B,omitempty"`
	BOOL *bool                      `json:"BOOL,omitempty"`
	NULL *bool                      `json:"NULL,omitempty"`
	L    []json.RawMessage          `json:"L,omitempty"`
	M    map[string]json.RawMessage `json:"M,omitempty"`
	SS   []string                   `json:"SS,omitempty"`
	NS   []string                   `json:"NS,omitempty"`
	BS   []string                   `json:"BS,omitempty"`
}

var avTypes = map[string]bool{
	"S": true, "N": true, "B": true, "BOOL": true, "NULL": true,
	"L": true, "M": true, "SS": true, "NS": true, "BS": true,
}

// ParseAttributeValue decodes one DynamoDB JSON attribute value.
func ParseAttributeValue(raw json.RawMessage) (types.AttributeValue, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) != 1 {
		return nil, fmt.Errorf("%w: %s", ErrNotAttributeValue, truncate(raw))
	}

	var typ string
	for k := range fields {
		typ = k
	}
	if !avTypes[typ] {
		return nil, fmt.Errorf("%w: unknown type %q", ErrNotAttributeValue, typ)
	}

	var enc avJSON
	if err := json.Unmarshal(raw, &enc); err != nil {
		return nil, fmt.Errorf("attribute value %s: %w", typ, err)
	}

	switch typ {
	case "S":
		if enc.S == nil {
			return nil, fmt.Errorf("attribute value S: want a string")
		}
		return &types.AttributeValueMemberS{Value: *enc.S}, nil
	case "N":
		if enc.N == nil {
			return nil, fmt.Errorf("attribute value N: want a numeric string")
		}
		return &types.AttributeValueMemberN{Value: *enc.N}, nil
	case "B":
		if enc.B == nil {
			return &types.AttributeValueMemberB{Value: nil}, nil
		}
		decoded, err := base64.StdEncoding.DecodeString(*enc.B)
		if err != nil {
			return nil, fmt.Errorf("failed to decode binary: %w", err)
		}
		return &types.AttributeValueMemberB{Value: decoded}, nil
	case "BOOL":
		if enc.BOOL == nil {
			return nil, fmt.Errorf("attribute value BOOL: want a boolean")
		}
		return &types.AttributeValueMemberBOOL{Value: *enc.BOOL}, nil
	case "NULL":
		if enc.NULL == nil || !*enc.NULL {
			return nil, fmt.Errorf("attribute value NULL: want true")
		}
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case "L":
		list := make([]types.AttributeValue, len(enc.L))
		for i := range enc.L {
			elem, err := ParseAttributeValue(enc.L[i])
			if err != nil {
				return nil, fmt.Errorf("L[%d]: %w", i, err)
			}
			list[i] = elem
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	case "M":
		m, err := parseAttributeMap(enc.M)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case "SS":
		return &types.AttributeValueMemberSS{Value: append([]string(nil), enc.SS...)}, nil
	case "NS":
		return &types.AttributeValueMemberNS{Value: append([]string(nil), enc.NS...)}, nil
	default: // BS
		decoded := make([][]byte, len(enc.BS))
		for i := range enc.BS {
			b, err := base64.StdEncoding.DecodeString(enc.BS[i])
			if err != nil {
				return nil, fmt.Errorf("failed to decode binary set: %w", err)
			}
			decoded[i] = b
		}
		return &types.AttributeValueMemberBS{Value: decoded}, nil
	}
}

// ParseItem decodes a DynamoDB JSON item: an object of attribute values.
func ParseItem(raw json.RawMessage) (map[string]types.AttributeValue, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("item must be a JSON object: %w", err)
	}
	return parseAttributeMap(fields)
}

func parseAttributeMap(fields map[string]json.RawMessage) (map[string]types.AttributeValue, error) {
	m := make(map[string]types.AttributeValue, len(fields))
	for name, raw := range fields {
		av, err := ParseAttributeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		m[name] = av
	}
	return m, nil
}

// MarshalItem renders item back as DynamoDB JSON. Map keys are sorted, so
// equal items produce equal bytes.
func MarshalItem(item map[string]types.AttributeValue) ([]byte, error) {
	out := make(map[string]any, len(item))
	for k, v := range item {
		enc, err := marshalAttributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = enc
	}
	return json.Marshal(out)
}

func marshalAttributeValue(av types.AttributeValue) (map[string]any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return map[string]any{"S": v.Value}, nil
	case *types.AttributeValueMemberN:
		return map[string]any{"N": v.Value}, nil
	case *types.AttributeValueMemberB:
		return map[string]any{"B": base64.StdEncoding.EncodeToString(v.Value)}, nil
	case *types.AttributeValueMemberBOOL:
		return map[string]any{"BOOL": v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return map[string]any{"NULL": true}, nil
	case *types.AttributeValueMemberL:
		list := make([]any, len(v.Value))
		for i := range v.Value {
			elem, err := marshalAttributeValue(v.Value[i])
			if err != nil {
				return nil, err
			}
			list[i] = elem
		}
		return map[string]any{"L": list}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]any, len(v.Value))
		for key, val := range v.Value {
			enc, err := marshalAttributeValue(val)
			if err != nil {
				return nil, err
			}
			m[key] = enc
		}
		return map[string]any{"M": m}, nil
	case *types.AttributeValueMemberSS:
		return map[string]any{"SS": v.Value}, nil
	case *types.AttributeValueMemberNS:
		return map[string]any{"NS": v.Value}, nil
	case *types.AttributeValueMemberBS:
		encoded := make([]string, len(v.Value))
		for i := range v.Value {
			encoded[i] = base64.StdEncoding.EncodeToString(v.Value[i])
		}
		return map[string]any{"BS": encoded}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value type: %T", av)
	}
}

func truncate(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 64 {
		return string(raw[:64]) + "..."
	}
	return string(raw)
}
