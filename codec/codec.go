// Package codec wraps the external collaborators that do the actual format
// work. Everything here is bytes in, bytes out; callers never see temp paths.
package codec

import (
	"context"
)

// MetadataMode selects how a merged document's metadata is produced.
type MetadataMode string

const (
	MetadataStrip     MetadataMode = "strip"
	MetadataCopyFirst MetadataMode = "copy_first"
	MetadataDefault   MetadataMode = "default"
)

// Valid reports whether m is a known mode.
func (m MetadataMode) Valid() bool {
	switch m {
	case MetadataStrip, MetadataCopyFirst, MetadataDefault:
		return true
	}
	return false
}

// ImageEncoder converts a raster image to format at quality (1-100).
type ImageEncoder interface {
	Encode(ctx context.Context, input []byte, inputExt, format string, quality int) ([]byte, error)
}

// PDFMerger concatenates documents in the given order.
type PDFMerger interface {
	Merge(ctx context.Context, docs [][]byte, mode MetadataMode) ([]byte, error)
}

// PageCounter reports the number of pages in a document.
type PageCounter interface {
	PageCount(ctx context.Context, doc []byte) (int, error)
}

// CompressSettings is one compression level.
type CompressSettings struct {
	ColorResolution int
	GrayResolution  int
	MonoResolution  int
	JPEGQuality     int
	UseJPX          bool
}

// PDFCompressor shrinks a document.
type PDFCompressor interface {
	Compress(ctx context.Context, doc []byte, settings CompressSettings, removeMetadata bool) ([]byte, error)
}

// MediaProber reads the duration of a media file in seconds.
type MediaProber interface {
	Duration(ctx context.Context, media []byte, ext string) (float64, error)
}

// Clip is a time window in seconds.
type Clip struct {
	Start    float64
	Duration float64
}

// GIFOptions controls animated GIF rendering.
type GIFOptions struct {
	Clip
	FPS   int
	Width int
}

// AudioOptions controls audio encoding. Bitrate is in kbit/s and ignored for
// wav and flac. A zero SampleRate keeps the source rate.
type AudioOptions struct {
	Format     string
	Bitrate    int
	SampleRate int
}

// VideoCompressOptions controls an H.264 re-encode. Zero values keep the
// encoder default or the source property.
type VideoCompressOptions struct {
	CRF     int
	Preset  string
	Bitrate int
	Height  int
	FPS     int
}

// Source is one input payload with the extension it was uploaded under.
type Source struct {
	Data []byte
	Ext  string
}

// MediaTranscoder performs the ffmpeg-backed transforms.
type MediaTranscoder interface {
	Trim(ctx context.Context, media []byte, ext string, clip Clip) ([]byte, error)
	GIF(ctx context.Context, media []byte, ext string, opts GIFOptions) ([]byte, error)
	// ExtractAudio encodes the audio stream of a video or audio file.
	ExtractAudio(ctx context.Context, media []byte, ext string, opts AudioOptions) ([]byte, error)
	Compress(ctx context.Context, media []byte, ext string, opts VideoCompressOptions) ([]byte, error)
	// Concat joins clips in order without re-encoding. The result keeps the
	// container of the first clip.
	Concat(ctx context.Context, clips []Source) ([]byte, error)
}

// Image placement on a page.
const (
	FitContain  = "fit"
	FitFill     = "fill"
	FitStretch  = "stretch"
	FitOriginal = "original"
)

// PageLayout places one image per page. Width, Height and Margin are in points.
type PageLayout struct {
	Width   int
	Height  int
	Margin  int
	Fit     string
	Quality int
}

// PDFComposer builds a document with one page per image.
type PDFComposer interface {
	Compose(ctx context.Context, images []Source, layout PageLayout) ([]byte, error)
}

// RasterOptions selects how a page is rendered. Quality only applies to jpg.
type RasterOptions struct {
	Format  string
	DPI     int
	Quality int
}

// PDFRasterizer renders a single page, counted from 1.
type PDFRasterizer interface {
	Rasterize(ctx context.Context, doc []byte, page int, opts RasterOptions) ([]byte, error)
}
