package sink

import (
	"context"
	"io"

	"github.com/baldanca/awsbulk/encoder"
	"github.com/baldanca/awsbulk/retry"
)

type encodeToWriter[iType any] struct {
	ctx   context.Context
	se    encoder.StreamEncoder[iType]
	items []iType
}

func (w encodeToWriter[iType]) WriteTo(dst io.Writer) error {
	return w.se.EncodeTo(w.ctx, w.items, dst)
}

// Export encodes items and writes them under key, streaming when both the
// encoder and the sink support it. policy may be nil.
func Export[iType any](
	ctx context.Context,
	enc encoder.Encoder[iType],
	s Sinkr,
	policy retry.Policy,
	key string,
	items []iType,
) error {
	if policy == nil {
		policy = retry.Nop{}
	}

	ct := enc.ContentType()
	if ct == "" {
		ct = "application/octet-stream"
	}

	if streamed, err := tryStreamWrite(ctx, enc, s, policy, key, ct, items); streamed {
		return err
	}

	data, err := enc.Encode(ctx, items)
	if err != nil {
		return err
	}
	req := WriteRequest{Key: key, Data: data, ContentType: ct}
	return policy.Do(ctx, func(ctx context.Context) error {
		return s.Write(ctx, req)
	})
}

func tryStreamWrite[iType any](
	ctx context.Context,
	enc encoder.Encoder[iType],
	s Sinkr,
	policy retry.Policy,
	key, ct string,
	items []iType,
) (streamed bool, err error) {

	se, ok := enc.(encoder.StreamEncoder[iType])
	if !ok {
		return false, nil
	}
	ss, ok := s.(StreamSinkr)
	if !ok {
		return false, nil
	}

	req := StreamWriteRequest{
		Key:         key,
		ContentType: ct,
		Writer:      encodeToWriter[iType]{ctx: ctx, se: se, items: items},
	}

	err = policy.Do(ctx, func(ctx context.Context) error {
		return ss.WriteStream(ctx, req)
	})

	return true, err
}
