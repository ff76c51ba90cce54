package converter

import (
	"fileflow/codec"
	"fileflow/config"
	"fileflow/logger"
	"fileflow/models"
)

// Collaborators bundles the codec implementations handlers call into.
type Collaborators struct {
	Images     codec.ImageEncoder
	Merger     codec.PDFMerger
	Pages      codec.PageCounter
	Compressor codec.PDFCompressor
	Prober     codec.MediaProber
	Media      codec.MediaTranscoder
	Composer   codec.PDFComposer
	Rasterizer codec.PDFRasterizer
}

// NewCollaborators wires the external tools named in cfg.
func NewCollaborators(cfg *config.Config) Collaborators {
	runner := codec.ExecRunner{Timeout: cfg.ExecTimeout}
	for _, bin := range []string{cfg.MagickBin, cfg.QPDFBin, cfg.GhostBin, cfg.FFmpegBin, cfg.FFprobeBin} {
		if !codec.Available(bin) {
			logger.Warnf("collaborator '%s' not found in PATH; conversions using it will fail", bin)
		}
	}

	qpdf := &codec.QPDF{Bin: cfg.QPDFBin, Runner: runner}
	magick := &codec.Magick{Bin: cfg.MagickBin, Runner: runner}
	gs := &codec.Ghostscript{Bin: cfg.GhostBin, QPDF: qpdf, Runner: runner}
	ffmpeg := &codec.FFmpeg{Bin: cfg.FFmpegBin, ProbeBin: cfg.FFprobeBin, Runner: runner}
	var merger codec.PDFMerger = qpdf
	if cfg.GotenbergURL != "" {
		merger = codec.NewGotenberg(cfg.GotenbergURL, cfg.ExecTimeout, qpdf)
		logger.Infof("PDF merges with default metadata go to Gotenberg at %s", cfg.GotenbergURL)
	}
	return Collaborators{
		Images:     magick,
		Merger:     merger,
		Pages:      qpdf,
		Compressor: gs,
		Prober:     ffmpeg,
		Media:      ffmpeg,
		Composer:   magick,
		Rasterizer: gs,
	}
}

// DefaultTable registers every handler in sniffing order and makes the
// generic raster path the fallback. Multi-input handlers sit after the
// single-input ones for the same files, so arity decides between them.
func DefaultTable(c Collaborators) (*Table, error) {
	t := NewTable()
	handlers := []Handler{
		&HEICToJPG{Encoder: c.Images},
		&PDFMerge{Merger: c.Merger, Counter: c.Pages},
		&PDFCompress{Compressor: c.Compressor},
		&PDFToImage{Rasterizer: c.Rasterizer, Counter: c.Pages},
		&VideoToGIF{Prober: c.Prober, Transcoder: c.Media},
		&VideoTrim{Prober: c.Prober, Transcoder: c.Media},
		&VideoToAudio{Transcoder: c.Media},
		&VideoCompress{Transcoder: c.Media},
		&VideoMerge{Transcoder: c.Media},
		&AudioConvert{Transcoder: c.Media},
		&ImageConvert{Encoder: c.Images},
		&JPGToPDF{Composer: c.Composer},
		Copy{},
	}
	for _, h := range handlers {
		if err := t.Register(h); err != nil {
			return nil, err
		}
	}
	if err := t.SetFallback(models.ConversionImageConvert); err != nil {
		return nil, err
	}
	return t, nil
}
