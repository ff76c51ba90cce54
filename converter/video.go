package converter

import (
	"context"
	"math"

	"fileflow/codec"
	"fileflow/models"
)

var videoExts = []string{"mp4", "mov", "mkv", "webm", "avi", "m4v", "3gp"}

func acceptsVideo(file models.UploadedFile) bool {
	return fileMatches(file, videoExts, "video/")
}

// ClampWindow fits a requested window into a source of the given length. A
// window running past the end is shortened to end there rather than rejected;
// a window starting at or after the end cannot be satisfied.
func ClampWindow(start, duration, source float64) (codec.Clip, error) {
	if start < 0 || duration <= 0 {
		return codec.Clip{}, models.NewError(models.KindValidation, "invalid window start=%v duration=%v", start, duration)
	}
	if start >= source {
		return codec.Clip{}, models.NewError(models.KindInvalidInput, "start %.3fs is beyond the end of the %.3fs source", start, source)
	}
	end := math.Min(start+duration, source)
	return codec.Clip{Start: start, Duration: end - start}, nil
}

// readWindow validates the start/duration options.
func readWindow(raw models.Options, defDuration float64) (float64, float64, error) {
	start, err := raw.Float("start", 0)
	if err != nil {
		return 0, 0, optionError(err)
	}
	duration, err := raw.Float("duration", defDuration)
	if err != nil {
		return 0, 0, optionError(err)
	}
	if math.IsNaN(start) || math.IsInf(start, 0) || start < 0 {
		return 0, 0, models.NewError(models.KindValidation, "option \"start\" must be >= 0")
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return 0, 0, models.NewError(models.KindValidation, "option \"duration\" must be > 0")
	}
	return start, duration, nil
}

// window probes the source and clamps the validated window against it.
func window(ctx context.Context, prober codec.MediaProber, in Input, opts models.Options) (codec.Clip, error) {
	start, _ := opts.Float("start", 0)
	duration, _ := opts.Float("duration", 0)
	source, err := prober.Duration(ctx, in.Data, in.File.Extension())
	if err != nil {
		return codec.Clip{}, err
	}
	return ClampWindow(start, duration, source)
}

// VideoTrim cuts a clip out of a video without re-encoding.
type VideoTrim struct {
	Prober     codec.MediaProber
	Transcoder codec.MediaTranscoder
}

func (h *VideoTrim) Type() models.ConversionType { return models.ConversionVideoTrim }

func (h *VideoTrim) Accepts(file models.UploadedFile) bool { return acceptsVideo(file) }

func (h *VideoTrim) Arity() (int, int) { return 1, 1 }

func (h *VideoTrim) ValidateOptions(raw models.Options) (models.Options, error) {
	if err := unknownOptions(raw, "start", "duration"); err != nil {
		return nil, err
	}
	start, duration, err := readWindow(raw, 10)
	if err != nil {
		return nil, err
	}
	return models.Options{"start": start, "duration": duration}, nil
}

func (h *VideoTrim) Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error) {
	in, err := singleInput(inputs)
	if err != nil {
		return Output{}, err
	}
	if err := requireContent(in, "a video", "video/"); err != nil {
		return Output{}, err
	}
	clip, err := window(ctx, h.Prober, in, opts)
	if err != nil {
		return Output{}, err
	}
	data, err := h.Transcoder.Trim(ctx, in.Data, in.File.Extension(), clip)
	if err != nil {
		return Output{}, err
	}
	ext := in.File.Extension()
	if ext == "" {
		ext = "mp4"
	}
	return Output{Data: data, Ext: ext}, nil
}

// VideoToGIF renders a clip as an animated GIF.
type VideoToGIF struct {
	Prober     codec.MediaProber
	Transcoder codec.MediaTranscoder
}

func (h *VideoToGIF) Type() models.ConversionType { return models.ConversionVideoToGIF }

func (h *VideoToGIF) Accepts(file models.UploadedFile) bool { return acceptsVideo(file) }

func (h *VideoToGIF) Arity() (int, int) { return 1, 1 }

func (h *VideoToGIF) ValidateOptions(raw models.Options) (models.Options, error) {
	if err := unknownOptions(raw, "start", "duration", "fps", "width"); err != nil {
		return nil, err
	}
	start, duration, err := readWindow(raw, 3)
	if err != nil {
		return nil, err
	}
	fps, err := intInRange(raw, "fps", 10, 1, 30)
	if err != nil {
		return nil, err
	}
	width, err := intInRange(raw, "width", 480, 16, 1920)
	if err != nil {
		return nil, err
	}
	return models.Options{"start": start, "duration": duration, "fps": fps, "width": width}, nil
}

func (h *VideoToGIF) Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error) {
	in, err := singleInput(inputs)
	if err != nil {
		return Output{}, err
	}
	if err := requireContent(in, "a video", "video/"); err != nil {
		return Output{}, err
	}
	clip, err := window(ctx, h.Prober, in, opts)
	if err != nil {
		return Output{}, err
	}
	fps, _ := opts.Int("fps", 10)
	width, _ := opts.Int("width", 480)
	data, err := h.Transcoder.GIF(ctx, in.Data, in.File.Extension(), codec.GIFOptions{Clip: clip, FPS: fps, Width: width})
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, Ext: "gif", MimeType: "image/gif"}, nil
}

// AudioFormats are the targets of audio extraction.
var AudioFormats = []string{"mp3", "wav", "aac"}

// VideoToAudio extracts the audio track.
type VideoToAudio struct {
	Transcoder codec.MediaTranscoder
}

func (h *VideoToAudio) Type() models.ConversionType { return models.ConversionVideoToAudio }

func (h *VideoToAudio) Accepts(file models.UploadedFile) bool { return acceptsVideo(file) }

func (h *VideoToAudio) Arity() (int, int) { return 1, 1 }

func (h *VideoToAudio) ValidateOptions(raw models.Options) (models.Options, error) {
	if err := unknownOptions(raw, "format", "bitrate"); err != nil {
		return nil, err
	}
	return readAudio(raw, AudioFormats)
}

func (h *VideoToAudio) Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error) {
	in, err := singleInput(inputs)
	if err != nil {
		return Output{}, err
	}
	if err := requireContent(in, "a video or audio file", "video/", "audio/"); err != nil {
		return Output{}, err
	}
	settings := audioSettings(opts)
	data, err := h.Transcoder.ExtractAudio(ctx, in.Data, in.File.Extension(), settings)
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, Ext: settings.Format}, nil
}
