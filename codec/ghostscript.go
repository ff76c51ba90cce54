package codec

import (
	"context"
	"fmt"

	"fileflow/logger"
	"fileflow/models"
)

// CompressLevels are the named compression presets.
var CompressLevels = map[string]CompressSettings{
	"low":     {ColorResolution: 300, GrayResolution: 300, MonoResolution: 600, JPEGQuality: 85},
	"medium":  {ColorResolution: 200, GrayResolution: 200, MonoResolution: 600, JPEGQuality: 70},
	"high":    {ColorResolution: 150, GrayResolution: 150, MonoResolution: 600, JPEGQuality: 60, UseJPX: true},
	"maximum": {ColorResolution: 120, GrayResolution: 120, MonoResolution: 600, JPEGQuality: 45, UseJPX: true},
}

// Ghostscript runs the lossy pass of PDF compression. The lossless qpdf pass
// runs first and the smaller of the two results is kept.
type Ghostscript struct {
	Bin    string
	QPDF   *QPDF
	Runner Runner
}

func (g *Ghostscript) Compress(ctx context.Context, doc []byte, s CompressSettings, removeMetadata bool) ([]byte, error) {
	lossless, err := g.QPDF.Optimize(ctx, doc, false)
	if err != nil {
		return nil, err
	}

	best := lossless
	lossy, err := g.lossy(ctx, lossless, s)
	switch {
	case err != nil:
		logger.Warnf("ghostscript pass failed, keeping lossless result: %v", err)
	case len(lossy) < len(lossless):
		best = lossy
	}

	if removeMetadata {
		return g.QPDF.Optimize(ctx, best, true)
	}
	return best, nil
}

func (g *Ghostscript) lossy(ctx context.Context, doc []byte, s CompressSettings) ([]byte, error) {
	ws, err := newWorkspace("gs")
	if err != nil {
		return nil, err
	}
	defer ws.close()

	in, err := ws.write("input.pdf", doc)
	if err != nil {
		return nil, err
	}

	filter := "/DCTEncode"
	if s.UseJPX {
		filter = "/JPXEncode"
	}
	args := []string{
		"-sDEVICE=pdfwrite", "-dCompatibilityLevel=1.6",
		"-dNOPAUSE", "-dBATCH", "-dSAFER", "-dQUIET",
		"-dDetectDuplicateImages=true",
		"-dEncodeColorImages=true", "-dEncodeGrayImages=true", "-dEncodeMonoImages=true",
		fmt.Sprintf("-dColorImageResolution=%d", s.ColorResolution),
		fmt.Sprintf("-dGrayImageResolution=%d", s.GrayResolution),
		fmt.Sprintf("-dMonoImageResolution=%d", s.MonoResolution),
		fmt.Sprintf("-dJPEGQ=%d", s.JPEGQuality),
		"-dColorImageDownsampleType=/Average",
		"-dGrayImageDownsampleType=/Average",
		"-dMonoImageDownsampleType=/Subsample",
		"-sColorImageFilter=" + filter,
		"-sGrayImageFilter=" + filter,
		"-sOutputFile=" + ws.path("output.pdf"),
		in,
	}
	if _, err := g.Runner.Run(ctx, g.Bin, args...); err != nil {
		return nil, err
	}
	return ws.read("output.pdf", g.Bin)
}

func (g *Ghostscript) Rasterize(ctx context.Context, doc []byte, page int, opts RasterOptions) ([]byte, error) {
	var device, outName string
	var extra []string
	switch opts.Format {
	case "png":
		device, outName = "png16m", "page.png"
	case "jpg", "jpeg":
		device, outName = "jpeg", "page.jpg"
		extra = append(extra, fmt.Sprintf("-dJPEGQ=%d", opts.Quality))
	default:
		return nil, models.NewError(models.KindInvalidInput, "unsupported raster format %q", opts.Format)
	}
	if page < 1 {
		return nil, models.NewError(models.KindInvalidInput, "page %d does not exist", page)
	}

	ws, err := newWorkspace("gs")
	if err != nil {
		return nil, err
	}
	defer ws.close()

	in, err := ws.write("input.pdf", doc)
	if err != nil {
		return nil, err
	}
	args := []string{
		"-sDEVICE=" + device,
		"-dNOPAUSE", "-dBATCH", "-dSAFER", "-dQUIET",
		fmt.Sprintf("-r%d", opts.DPI),
		fmt.Sprintf("-dFirstPage=%d", page),
		fmt.Sprintf("-dLastPage=%d", page),
		"-dTextAlphaBits=4", "-dGraphicsAlphaBits=4",
	}
	args = append(args, extra...)
	args = append(args, "-sOutputFile="+ws.path(outName), in)
	if _, err := g.Runner.Run(ctx, g.Bin, args...); err != nil {
		return nil, err
	}
	return ws.read(outName, g.Bin)
}
