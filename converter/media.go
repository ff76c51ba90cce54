package converter

import (
	"context"

	"fileflow/codec"
	"fileflow/models"
)

var audioExts = []string{"mp3", "wav", "flac", "aac", "m4a", "ogg", "opus"}

// AudioConvertFormats are the targets of audio re-encoding.
var AudioConvertFormats = []string{"mp3", "wav", "flac", "aac"}

// readAudio validates format and bitrate. Lossless formats carry no bitrate.
func readAudio(raw models.Options, formats []string) (models.Options, error) {
	format, err := oneOf(raw, "format", "mp3", formats...)
	if err != nil {
		return nil, err
	}
	def := 192
	if format == "aac" {
		def = 128
	}
	bitrate, err := intInRange(raw, "bitrate", def, 32, 320)
	if err != nil {
		return nil, err
	}
	out := models.Options{"format": format}
	if format != "wav" && format != "flac" {
		out["bitrate"] = bitrate
	}
	return out, nil
}

func audioSettings(opts models.Options) codec.AudioOptions {
	format, _ := opts.String("format", "mp3")
	bitrate, _ := opts.Int("bitrate", 0)
	rate, _ := opts.Int("sampleRate", 0)
	return codec.AudioOptions{Format: format, Bitrate: bitrate, SampleRate: rate}
}

// AudioConvert re-encodes an audio file.
type AudioConvert struct {
	Transcoder codec.MediaTranscoder
}

func (h *AudioConvert) Type() models.ConversionType { return models.ConversionAudioConvert }

func (h *AudioConvert) Accepts(file models.UploadedFile) bool {
	return fileMatches(file, audioExts, "audio/")
}

func (h *AudioConvert) Arity() (int, int) { return 1, 1 }

func (h *AudioConvert) ValidateOptions(raw models.Options) (models.Options, error) {
	if err := unknownOptions(raw, "format", "bitrate", "sampleRate"); err != nil {
		return nil, err
	}
	out, err := readAudio(raw, AudioConvertFormats)
	if err != nil {
		return nil, err
	}
	if s, err := raw.String("sampleRate", "keep"); err == nil && s == "keep" {
		return out, nil
	}
	rate, err := intInRange(raw, "sampleRate", 44100, 8000, 192000)
	if err != nil {
		return nil, err
	}
	out["sampleRate"] = rate
	return out, nil
}

func (h *AudioConvert) Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error) {
	in, err := singleInput(inputs)
	if err != nil {
		return Output{}, err
	}
	if err := requireContent(in, "an audio file", "audio/", "video/"); err != nil {
		return Output{}, err
	}
	settings := audioSettings(opts)
	data, err := h.Transcoder.ExtractAudio(ctx, in.Data, in.File.Extension(), settings)
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, Ext: settings.Format}, nil
}

// videoPreset is one named compression level.
type videoPreset struct {
	crf    int
	preset string
}

var videoPresets = map[string]videoPreset{
	"light":  {crf: 23, preset: "medium"},
	"medium": {crf: 28, preset: "medium"},
	"heavy":  {crf: 32, preset: "fast"},
}

// VideoCompressionNames lists the accepted compression levels. "custom" takes
// crf and bitrate from the options.
var VideoCompressionNames = []string{"light", "medium", "heavy", "custom"}

var resolutionHeights = map[string]int{"original": 0, "1080p": 1080, "720p": 720, "480p": 480}

// VideoResolutions are the accepted output heights.
var VideoResolutions = []string{"original", "1080p", "720p", "480p"}

// VideoCompress re-encodes a video at a lower rate, resolution or frame rate.
type VideoCompress struct {
	Transcoder codec.MediaTranscoder
}

func (h *VideoCompress) Type() models.ConversionType { return models.ConversionVideoCompress }

func (h *VideoCompress) Accepts(file models.UploadedFile) bool { return acceptsVideo(file) }

func (h *VideoCompress) Arity() (int, int) { return 1, 1 }

func (h *VideoCompress) ValidateOptions(raw models.Options) (models.Options, error) {
	if err := unknownOptions(raw, "compression", "crf", "bitrate", "resolution", "framerate"); err != nil {
		return nil, err
	}
	level, err := oneOf(raw, "compression", "medium", VideoCompressionNames...)
	if err != nil {
		return nil, err
	}
	out := models.Options{"compression": level}
	if p, ok := videoPresets[level]; ok {
		if raw.Has("crf") || raw.Has("bitrate") {
			return nil, models.NewError(models.KindValidation, "crf and bitrate only apply to custom compression")
		}
		out["crf"], out["preset"] = p.crf, p.preset
	} else {
		crf, err := intInRange(raw, "crf", 23, 1, 51)
		if err != nil {
			return nil, err
		}
		out["crf"], out["preset"] = crf, "medium"
		if raw.Has("bitrate") {
			bitrate, err := intInRange(raw, "bitrate", 0, 100, 50000)
			if err != nil {
				return nil, err
			}
			out["bitrate"] = bitrate
			if !raw.Has("crf") {
				delete(out, "crf")
			}
		}
	}

	resolution, err := oneOf(raw, "resolution", "original", VideoResolutions...)
	if err != nil {
		return nil, err
	}
	out["resolution"] = resolution

	if s, err := raw.String("framerate", "original"); err == nil && s == "original" {
		out["framerate"] = 0
	} else {
		fps, err := intInRange(raw, "framerate", 30, 1, 60)
		if err != nil {
			return nil, err
		}
		out["framerate"] = fps
	}
	return out, nil
}

func (h *VideoCompress) Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error) {
	in, err := singleInput(inputs)
	if err != nil {
		return Output{}, err
	}
	if err := requireContent(in, "a video", "video/"); err != nil {
		return Output{}, err
	}
	crf, _ := opts.Int("crf", 0)
	preset, _ := opts.String("preset", "")
	bitrate, _ := opts.Int("bitrate", 0)
	resolution, _ := opts.String("resolution", "original")
	fps, _ := opts.Int("framerate", 0)
	settings := codec.VideoCompressOptions{
		CRF:     crf,
		Preset:  preset,
		Bitrate: bitrate,
		Height:  resolutionHeights[resolution],
		FPS:     fps,
	}
	data, err := h.Transcoder.Compress(ctx, in.Data, in.File.Extension(), settings)
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, Ext: "mp4", MimeType: "video/mp4"}, nil
}

// VideoMerge joins two or more clips in caller order without re-encoding.
// The clips must share codecs.
type VideoMerge struct {
	Transcoder codec.MediaTranscoder
}

func (h *VideoMerge) Type() models.ConversionType { return models.ConversionVideoMerge }

func (h *VideoMerge) Accepts(file models.UploadedFile) bool { return acceptsVideo(file) }

func (h *VideoMerge) Arity() (int, int) { return 2, 0 }

func (h *VideoMerge) ValidateOptions(raw models.Options) (models.Options, error) {
	if err := unknownOptions(raw); err != nil {
		return nil, err
	}
	return models.Options{}, nil
}

func (h *VideoMerge) Execute(ctx context.Context, inputs []Input, opts models.Options) (Output, error) {
	if len(inputs) < 2 {
		return Output{}, models.NewError(models.KindInternal, "merge needs at least two inputs, got %d", len(inputs))
	}
	clips := make([]codec.Source, len(inputs))
	for i, in := range inputs {
		if err := requireContent(in, "a video", "video/"); err != nil {
			return Output{}, err
		}
		clips[i] = codec.Source{Data: in.Data, Ext: in.File.Extension()}
	}
	data, err := h.Transcoder.Concat(ctx, clips)
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, Ext: concatExt(clips)}, nil
}

func concatExt(clips []codec.Source) string {
	if clips[0].Ext == "" {
		return "mp4"
	}
	return clips[0].Ext
}
