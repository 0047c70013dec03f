package transformer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/baldanca/awsbulk/source"
)

// DynamoDB turns an envelope into a BatchWriteItem write request. Accepted
// payloads are {"PutRequest": {"Item": ...}}, {"DeleteRequest": {"Key": ...}}
// or a bare item, which becomes a put.
type DynamoDB struct {
	// PlainJSON reads items as ordinary JSON objects instead of DynamoDB JSON.
	PlainJSON bool
}

func (t DynamoDB) Transform(ctx context.Context, in source.Envelope) (types.WriteRequest, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(in.Payload, &obj); err != nil {
		return types.WriteRequest{}, fmt.Errorf("write request must be a JSON object: %w", err)
	}

	if raw, ok := obj["PutRequest"]; ok && len(obj) == 1 {
		var put struct {
			Item json.RawMessage
		}
		if err := json.Unmarshal(raw, &put); err != nil || len(put.Item) == 0 {
			return types.WriteRequest{}, errors.New("PutRequest: missing Item")
		}
		item, err := t.item(put.Item)
		if err != nil {
			return types.WriteRequest{}, fmt.Errorf("PutRequest: %w", err)
		}
		return types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}, nil
	}

	if raw, ok := obj["DeleteRequest"]; ok && len(obj) == 1 {
		var del struct {
			Key json.RawMessage
		}
		if err := json.Unmarshal(raw, &del); err != nil || len(del.Key) == 0 {
			return types.WriteRequest{}, errors.New("DeleteRequest: missing Key")
		}
		key, err := t.item(del.Key)
		if err != nil {
			return types.WriteRequest{}, fmt.Errorf("DeleteRequest: %w", err)
		}
		return types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}}, nil
	}

	item, err := t.item(in.Payload)
	if err != nil {
		return types.WriteRequest{}, err
	}
	return types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}, nil
}

func (t DynamoDB) item(raw json.RawMessage) (map[string]types.AttributeValue, error) {
	var (
		item map[string]types.AttributeValue
		err  error
	)
	if t.PlainJSON {
		item, err = parsePlainItem(raw)
	} else {
		item, err = ParseItem(raw)
	}
	if err != nil {
		return nil, err
	}
	if len(item) == 0 {
		return nil, errors.New("item has no attributes")
	}
	return item, nil
}

// jsonNumber keeps numbers as their literal text so large integers survive.
type jsonNumber json.Number

func (n jsonNumber) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: string(n)}, nil
}

func parsePlainItem(raw json.RawMessage) (map[string]types.AttributeValue, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("item must be a JSON object: %w", err)
	}
	for k, v := range obj {
		obj[k] = wrapNumbers(v)
	}
	return attributevalue.MarshalMap(obj)
}

func wrapNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		return jsonNumber(x)
	case map[string]any:
		for k, e := range x {
			x[k] = wrapNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = wrapNumbers(e)
		}
		return x
	default:
		return v
	}
}

// ExpandRequestFile recognises an AWS CLI request-items file
// ({"TableName": [{"PutRequest": ...}, ...]}) given as the only envelope and
// flattens it into one envelope per write request. table, when set, must
// match the file's table. Other inputs are returned unchanged.
func ExpandRequestFile(envs []source.Envelope, table string) ([]source.Envelope, string, error) {
	if len(envs) != 1 {
		return envs, table, nil
	}

	var doc map[string][]json.RawMessage
	if err := json.Unmarshal(envs[0].Payload, &doc); err != nil || len(doc) == 0 {
		return envs, table, nil
	}
	for _, reqs := range doc {
		if !looksLikeWriteRequests(reqs) {
			return envs, table, nil
		}
	}

	if len(doc) > 1 {
		return nil, "", errors.New("request file names more than one table")
	}

	var (
		fileTable string
		reqs      []json.RawMessage
	)
	for k, v := range doc {
		fileTable, reqs = k, v
	}
	if table != "" && table != fileTable {
		return nil, "", fmt.Errorf("request file is for table %q, not %q", fileTable, table)
	}

	out := make([]source.Envelope, len(reqs))
	for i, r := range reqs {
		out[i] = source.Envelope{Index: i, Payload: r}
	}
	return out, fileTable, nil
}

func looksLikeWriteRequests(reqs []json.RawMessage) bool {
	if len(reqs) == 0 {
		return false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(reqs[0], &probe); err != nil {
		return false
	}
	_, put := probe["PutRequest"]
	_, del := probe["DeleteRequest"]
	return put || del
}
