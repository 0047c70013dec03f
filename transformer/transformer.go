package transformer

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/baldanca/awsbulk/source"
)

// Transformer converts one value into another.
//
// In this project it converts a source.Envelope into a typed AWS request entry.
type Transformer[O any] interface {
	Transform(ctx context.Context, in source.Envelope) (O, error)
}

// Func adapts a plain function to Transformer.
type Func[O any] func(ctx context.Context, in source.Envelope) (O, error)

func (f Func[O]) Transform(ctx context.Context, in source.Envelope) (O, error) {
	return f(ctx, in)
}

// Item is a transformed request that remembers the envelope it came from.
type Item[O any] struct {
	Source source.Envelope
	Value  O
}

// ItemError reports an envelope that could not be transformed.
type ItemError struct {
	Index int
	Err   error
}

func (e ItemError) Error() string { return fmt.Sprintf("item %d: %v", e.Index, e.Err) }
func (e ItemError) Unwrap() error { return e.Err }

// All transforms every envelope. Items that fail are collected in the
// returned ItemErrors instead of aborting; the error is non-nil only when ctx
// ends.
func All[O any](ctx context.Context, t Transformer[O], envs []source.Envelope) ([]Item[O], []ItemError, error) {
	items := make([]Item[O], 0, len(envs))
	var bad []ItemError

	for _, env := range envs {
		if err := ctx.Err(); err != nil {
			return items, bad, err
		}
		v, err := t.Transform(ctx, env)
		if err != nil {
			bad = append(bad, ItemError{Index: env.Index, Err: err})
			continue
		}
		items = append(items, Item[O]{Source: env, Value: v})
	}
	return items, bad, nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validateStruct(v any) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %q validation", fe.Field(), fe.Tag())
		}
		return err
	}
	return nil
}
