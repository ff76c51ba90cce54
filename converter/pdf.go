package converter

import (
	"context"

	"fileflow/codec"
	"fileflow/models"

	"golang.org/x/sync/errgroup"
)

func acceptsPDF(file models.UploadedFile) bool {
	return fileMatches(file, []string{"pdf"}, "application/pdf")
}

// PDFMerge concatenates two or more documents in caller order.
type PDFMerge struct {
	Merger codec.PDFMerger
	// Counter, when set, verifies the merged page count.
	Counter codec.PageCounter
}

func (h *PDFMerge) Type() models.ConversionType { return models.ConversionPDFMerge }

func (h *PDFMerge) Accepts(file models.UploadedFile) bool { return acceptsPDF(file) }

func (h *PDFMerge) Arity() (int, int) { return 2, 0 }

func (h *PDFMerge) ValidateOptions(raw models.Options) (models.Options, error) {
	if err := unknownOptions(raw, "metadata"); err != nil {
		return nil, err
	}
	mode, err := oneOf(raw, "metadata", string(codec.MetadataDefault),
		string(codec.MetadataStrip), string(codec.MetadataCopyFirst), string(codec.MetadataDefault))
	if err != nil {
		return nil, err
	}
	return models.Options{"metadata": mode}, nil
}

func (h *PDFMerge) Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error) {
	if len(inputs) < 2 {
		return Output{}, models.NewError(models.KindInternal, "merge needs at least two inputs, got %d", len(inputs))
	}
	docs := make([][]byte, len(inputs))
	for i, in := range inputs {
		if err := requireContent(in, "a PDF document", "application/pdf"); err != nil {
			return Output{}, err
		}
		docs[i] = in.Data
	}
	mode, _ := opts.String("metadata", string(codec.MetadataDefault))

	merged, err := h.Merger.Merge(ctx, docs, codec.MetadataMode(mode))
	if err != nil {
		return Output{}, err
	}
	if h.Counter != nil {
		if err := h.verifyPages(ctx, docs, merged); err != nil {
			return Output{}, err
		}
	}
	return Output{Data: merged, Ext: "pdf", MimeType: "application/pdf"}, nil
}

func (h *PDFMerge) verifyPages(ctx context.Context, docs [][]byte, merged []byte) error {
	counts := make([]int, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		g.Go(func() error {
			n, err := h.Counter.PageCount(gctx, doc)
			counts[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	want := 0
	for _, n := range counts {
		want += n
	}
	got, err := h.Counter.PageCount(ctx, merged)
	if err != nil {
		return err
	}
	if got != want {
		return models.NewError(models.KindInternal, "merged document has %d pages, expected %d", got, want)
	}
	return nil
}

// PDFCompress shrinks one document.
type PDFCompress struct {
	Compressor codec.PDFCompressor
}

// CompressLevelNames in increasing strength.
var CompressLevelNames = []string{"low", "medium", "high", "maximum"}

func (h *PDFCompress) Type() models.ConversionType { return models.ConversionPDFCompress }

func (h *PDFCompress) Accepts(file models.UploadedFile) bool { return acceptsPDF(file) }

func (h *PDFCompress) Arity() (int, int) { return 1, 1 }

func (h *PDFCompress) ValidateOptions(raw models.Options) (models.Options, error) {
	if err := unknownOptions(raw, "level", "imageQuality", "removeMetadata"); err != nil {
		return nil, err
	}
	level, err := oneOf(raw, "level", "medium", CompressLevelNames...)
	if err != nil {
		return nil, err
	}
	quality := codec.CompressLevels[level].JPEGQuality
	if raw.Has("imageQuality") {
		q, err := raw.Int("imageQuality", quality)
		if err != nil {
			return nil, optionError(err)
		}
		quality = clampInt(q, 10, 95)
	}
	removeMetadata, err := raw.Bool("removeMetadata", false)
	if err != nil {
		return nil, optionError(err)
	}
	return models.Options{"level": level, "imageQuality": quality, "removeMetadata": removeMetadata}, nil
}

func (h *PDFCompress) Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error) {
	in, err := singleInput(inputs)
	if err != nil {
		return Output{}, err
	}
	if err := requireContent(in, "a PDF document", "application/pdf"); err != nil {
		return Output{}, err
	}
	level, _ := opts.String("level", "medium")
	settings := codec.CompressLevels[level]
	if q, err := opts.Int("imageQuality", settings.JPEGQuality); err == nil {
		settings.JPEGQuality = q
	}
	removeMetadata, _ := opts.Bool("removeMetadata", false)

	data, err := h.Compressor.Compress(ctx, in.Data, settings, removeMetadata)
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, Ext: "pdf", MimeType: "application/pdf"}, nil
}

// PDFToImage renders one page of a document as an image.
type PDFToImage struct {
	Rasterizer codec.PDFRasterizer
	// Counter, when set, rejects pages past the end before rendering.
	Counter codec.PageCounter
}

func (h *PDFToImage) Type() models.ConversionType { return models.ConversionPDFToImage }

func (h *PDFToImage) Accepts(file models.UploadedFile) bool { return acceptsPDF(file) }

func (h *PDFToImage) Arity() (int, int) { return 1, 1 }

func (h *PDFToImage) ValidateOptions(raw models.Options) (models.Options, error) {
	if err := unknownOptions(raw, "format", "page", "dpi", "quality"); err != nil {
		return nil, err
	}
	format, err := raw.String("format", "png")
	if err != nil {
		return nil, optionError(err)
	}
	if format == "jpeg" {
		format = "jpg"
	}
	if format != "png" && format != "jpg" {
		return nil, models.NewError(models.KindValidation, "option \"format\" must be png or jpg, got %q", format)
	}
	page, err := intInRange(raw, "page", 1, 1, 100000)
	if err != nil {
		return nil, err
	}
	dpi, err := intInRange(raw, "dpi", 144, 36, 600)
	if err != nil {
		return nil, err
	}
	q, err := clampFraction(raw, "quality", 0.85)
	if err != nil {
		return nil, err
	}
	return models.Options{"format": format, "page": page, "dpi": dpi, "quality": q}, nil
}

func (h *PDFToImage) Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error) {
	in, err := singleInput(inputs)
	if err != nil {
		return Output{}, err
	}
	if err := requireContent(in, "a PDF document", "application/pdf"); err != nil {
		return Output{}, err
	}
	format, _ := opts.String("format", "png")
	page, _ := opts.Int("page", 1)
	dpi, _ := opts.Int("dpi", 144)
	q, _ := opts.Float("quality", 0.85)

	if h.Counter != nil {
		n, err := h.Counter.PageCount(ctx, in.Data)
		if err != nil {
			return Output{}, err
		}
		if page > n {
			return Output{}, models.NewError(models.KindInvalidInput, "page %d is beyond the end of the %d-page document", page, n)
		}
	}

	data, err := h.Rasterizer.Rasterize(ctx, in.Data, page, codec.RasterOptions{Format: format, DPI: dpi, Quality: qualityPercent(q)})
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, Ext: format}, nil
}
