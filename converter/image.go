package converter

import (
	"context"
	"slices"

	"fileflow/codec"
	"fileflow/models"
)

var rasterExts = []string{"jpg", "jpeg", "png", "webp", "gif", "bmp", "tiff", "tif", "heic", "heif"}

// ImageFormats are the targets of the generic raster handler.
var ImageFormats = []string{"jpg", "png", "webp", "gif", "bmp", "tiff"}

// HEICToJPG converts HEIC/HEIF photos to JPEG.
type HEICToJPG struct {
	Encoder codec.ImageEncoder
}

func (h *HEICToJPG) Type() models.ConversionType { return models.ConversionHEICToJPG }

func (h *HEICToJPG) Accepts(file models.UploadedFile) bool {
	return fileMatches(file, []string{"heic", "heif"}, "image/heic", "image/heif")
}

func (h *HEICToJPG) Arity() (int, int) { return 1, 1 }

func (h *HEICToJPG) ValidateOptions(raw models.Options) (models.Options, error) {
	if err := unknownOptions(raw, "quality"); err != nil {
		return nil, err
	}
	q, err := clampFraction(raw, "quality", 0.92)
	if err != nil {
		return nil, err
	}
	return models.Options{"quality": q}, nil
}

func (h *HEICToJPG) Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error) {
	in, err := singleInput(inputs)
	if err != nil {
		return Output{}, err
	}
	if err := requireContent(in, "a HEIC image", "image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence"); err != nil {
		return Output{}, err
	}
	q, _ := opts.Float("quality", 0.92)
	data, err := h.Encoder.Encode(ctx, in.Data, in.File.Extension(), "jpg", qualityPercent(q))
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, Ext: "jpg", MimeType: "image/jpeg"}, nil
}

// ImageConvert is the generic raster path and the router's fallback.
type ImageConvert struct {
	Encoder codec.ImageEncoder
}

func (h *ImageConvert) Type() models.ConversionType { return models.ConversionImageConvert }

func (h *ImageConvert) Accepts(file models.UploadedFile) bool {
	return fileMatches(file, rasterExts, "image/")
}

func (h *ImageConvert) Arity() (int, int) { return 1, 1 }

func (h *ImageConvert) ValidateOptions(raw models.Options) (models.Options, error) {
	if err := unknownOptions(raw, "format", "quality"); err != nil {
		return nil, err
	}
	format, err := raw.String("format", "jpg")
	if err != nil {
		return nil, optionError(err)
	}
	if format == "jpeg" {
		format = "jpg"
	}
	if format == "tif" {
		format = "tiff"
	}
	if !slices.Contains(ImageFormats, format) {
		return nil, models.NewError(models.KindValidation, "option \"format\" must be one of %v, got %q", ImageFormats, format)
	}
	q, err := clampFraction(raw, "quality", 0.85)
	if err != nil {
		return nil, err
	}
	return models.Options{"format": format, "quality": q}, nil
}

func (h *ImageConvert) Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error) {
	in, err := singleInput(inputs)
	if err != nil {
		return Output{}, err
	}
	if err := requireContent(in, "an image", "image/"); err != nil {
		return Output{}, err
	}
	format, _ := opts.String("format", "jpg")
	q, _ := opts.Float("quality", 0.85)
	data, err := h.Encoder.Encode(ctx, in.Data, in.File.Extension(), format, qualityPercent(q))
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, Ext: format}, nil
}

// pageSizes are portrait page dimensions in points.
var pageSizes = map[string][2]int{
	"A4":     {595, 842},
	"Letter": {612, 792},
	"Legal":  {612, 1008},
	"A3":     {842, 1191},
}

// PageSizeNames are the accepted page sizes.
var PageSizeNames = []string{"A4", "Letter", "Legal", "A3"}

// ImageLayouts are the accepted placements of an image on its page.
var ImageLayouts = []string{codec.FitContain, codec.FitFill, codec.FitStretch, codec.FitOriginal}

// JPGToPDF lays photos out one per page.
type JPGToPDF struct {
	Composer codec.PDFComposer
}

func (h *JPGToPDF) Type() models.ConversionType { return models.ConversionJPGToPDF }

func (h *JPGToPDF) Accepts(file models.UploadedFile) bool {
	return fileMatches(file, []string{"jpg", "jpeg", "png"}, "image/jpeg", "image/png")
}

func (h *JPGToPDF) Arity() (int, int) { return 1, 0 }

func (h *JPGToPDF) ValidateOptions(raw models.Options) (models.Options, error) {
	if err := unknownOptions(raw, "pageSize", "orientation", "imageLayout", "margin", "quality"); err != nil {
		return nil, err
	}
	size, err := oneOf(raw, "pageSize", "A4", PageSizeNames...)
	if err != nil {
		return nil, err
	}
	orientation, err := oneOf(raw, "orientation", "portrait", "portrait", "landscape")
	if err != nil {
		return nil, err
	}
	fit, err := oneOf(raw, "imageLayout", codec.FitContain, ImageLayouts...)
	if err != nil {
		return nil, err
	}
	dims := pageSizes[size]
	// leave at least one point of printable area in each direction
	maxMargin := (min(dims[0], dims[1]) - 1) / 2
	margin, err := intInRange(raw, "margin", 20, 0, maxMargin)
	if err != nil {
		return nil, err
	}
	q, err := clampFraction(raw, "quality", 0.85)
	if err != nil {
		return nil, err
	}
	return models.Options{"pageSize": size, "orientation": orientation, "imageLayout": fit, "margin": margin, "quality": q}, nil
}

// pageLayout turns validated options into a layout.
func pageLayout(opts models.Options) codec.PageLayout {
	size, _ := opts.String("pageSize", "A4")
	orientation, _ := opts.String("orientation", "portrait")
	fit, _ := opts.String("imageLayout", codec.FitContain)
	margin, _ := opts.Int("margin", 20)
	q, _ := opts.Float("quality", 0.85)

	dims := pageSizes[size]
	if orientation == "landscape" {
		dims[0], dims[1] = dims[1], dims[0]
	}
	return codec.PageLayout{Width: dims[0], Height: dims[1], Margin: margin, Fit: fit, Quality: qualityPercent(q)}
}

func (h *JPGToPDF) Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error) {
	if len(inputs) == 0 {
		return Output{}, models.NewError(models.KindInternal, "no images to place")
	}
	images := make([]codec.Source, len(inputs))
	for i, in := range inputs {
		if err := requireContent(in, "a JPEG or PNG image", "image/jpeg", "image/png"); err != nil {
			return Output{}, err
		}
		images[i] = codec.Source{Data: in.Data, Ext: in.File.Extension()}
	}
	data, err := h.Composer.Compose(ctx, images, pageLayout(opts))
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, Ext: "pdf", MimeType: "application/pdf"}, nil
}
