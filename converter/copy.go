package converter

import (
	"context"

	"fileflow/models"
)

// Copy returns the input unchanged. It is never sniffed and must be requested.
type Copy struct{}

func (Copy) Type() models.ConversionType { return models.ConversionCopy }

func (Copy) Accepts(models.UploadedFile) bool { return false }

func (Copy) Arity() (int, int) { return 1, 1 }

func (Copy) ValidateOptions(raw models.Options) (models.Options, error) {
	if err := unknownOptions(raw); err != nil {
		return nil, err
	}
	return models.Options{}, nil
}

func (Copy) Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error) {
	in, err := singleInput(inputs)
	if err != nil {
		return Output{}, err
	}
	ext := in.File.Extension()
	mimeType := in.File.DeclaredMimeType
	if mimeType == "" {
		mimeType = MimeTypeFor(ext)
	}
	return Output{Data: append([]byte(nil), in.Data...), Ext: ext, MimeType: mimeType}, nil
}
