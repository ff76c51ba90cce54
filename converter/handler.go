// Package converter defines the conversion handler contract, the table of
// registered handlers and the router that picks one for an upload.
package converter

import (
	"context"
	"fmt"
	"runtime/debug"

	"fileflow/logger"
	"fileflow/models"
)

// Input is one stored file handed to a handler.
type Input struct {
	File models.UploadedFile
	Data []byte
}

// Output is what a handler produced.
type Output struct {
	Data     []byte
	Ext      string
	MimeType string
}

// Handler implements one conversion family.
type Handler interface {
	Type() models.ConversionType
	// Accepts is the sniffing predicate used when no type was requested.
	Accepts(file models.UploadedFile) bool
	// Arity is the allowed number of inputs; max 0 means unbounded.
	Arity() (min, max int)
	// ValidateOptions normalizes raw options or fails with a validation error.
	ValidateOptions(raw models.Options) (models.Options, error)
	// Execute runs the conversion over validated options.
	Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error)
}

// CheckArity fails with a validation error when n inputs do not fit h.
func CheckArity(h Handler, n int) error {
	min, max := h.Arity()
	if n < min {
		return models.NewError(models.KindValidation, "%s needs at least %d input file(s), got %d", h.Type(), min, n)
	}
	if max > 0 && n > max {
		return models.NewError(models.KindValidation, "%s accepts at most %d input file(s), got %d", h.Type(), max, n)
	}
	return nil
}

// Validate runs h.ValidateOptions and forces any failure into a validation error.
func Validate(h Handler, raw models.Options) (opts models.Options, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic validating %s options: %v\n%s", h.Type(), r, debug.Stack())
			opts, err = nil, models.NewError(models.KindValidation, "invalid options")
		}
	}()
	opts, err = h.ValidateOptions(raw)
	if err != nil && models.KindOf(err) != models.KindValidation {
		err = models.WrapError(models.KindValidation, err, "invalid options")
	}
	return opts, err
}

// Execute runs h at the handler boundary: panics are recovered, non-execution
// error kinds become internal and an empty result is rejected.
func Execute(ctx context.Context, h Handler, inputs []Input, opts models.Options) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic in %s handler: %v\n%s", h.Type(), r, debug.Stack())
			out, err = Output{}, models.NewError(models.KindInternal, "%s handler crashed: %v", h.Type(), r)
		}
	}()

	out, err = h.Execute(ctx, inputs, opts)
	if err != nil {
		if !models.KindOf(err).IsExecutionKind() {
			err = models.WrapError(models.KindInternal, err, "%s failed", h.Type())
		}
		return Output{}, err
	}
	if len(out.Data) == 0 {
		return Output{}, models.NewError(models.KindInternal, "%s produced no output", h.Type())
	}
	if out.MimeType == "" {
		out.MimeType = MimeTypeFor(out.Ext)
	}
	return out, nil
}

func singleInput(inputs []Input) (Input, error) {
	if len(inputs) != 1 {
		return Input{}, models.NewError(models.KindInternal, "expected exactly one input, got %d", len(inputs))
	}
	return inputs[0], nil
}

func optionError(err error) error {
	return models.WrapError(models.KindValidation, err, "invalid option")
}

func unknownOptions(raw models.Options, allowed ...string) error {
	if unknown := raw.Unknown(allowed...); len(unknown) > 0 {
		return models.NewError(models.KindValidation, "unknown option(s): %v", unknown)
	}
	return nil
}

func describe(h Handler) string {
	min, max := h.Arity()
	if max == 0 {
		return fmt.Sprintf("%s (%d+ inputs)", h.Type(), min)
	}
	return fmt.Sprintf("%s (%d-%d inputs)", h.Type(), min, max)
}
