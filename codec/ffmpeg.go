package codec

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fileflow/models"
)

// FFmpeg performs media transforms with ffmpeg and probes with ffprobe.
type FFmpeg struct {
	Bin      string
	ProbeBin string
	Runner   Runner
}

func seconds(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func (f *FFmpeg) Duration(ctx context.Context, media []byte, ext string) (float64, error) {
	ws, err := newWorkspace("ffprobe")
	if err != nil {
		return 0, err
	}
	defer ws.close()

	in, err := ws.write(inputName("input", ext), media)
	if err != nil {
		return 0, err
	}
	out, err := f.Runner.Run(ctx, f.ProbeBin, "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", in)
	if err != nil {
		return 0, err
	}
	value := strings.TrimSpace(string(out))
	d, err := strconv.ParseFloat(value, 64)
	if err != nil || d <= 0 {
		return 0, models.NewError(models.KindInvalidInput, "could not read media duration (%q)", value)
	}
	return d, nil
}

func (f *FFmpeg) Trim(ctx context.Context, media []byte, ext string, clip Clip) ([]byte, error) {
	ws, err := newWorkspace("ffmpeg")
	if err != nil {
		return nil, err
	}
	defer ws.close()

	in, err := ws.write(inputName("input", ext), media)
	if err != nil {
		return nil, err
	}
	outName := inputName("output", ext)
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", seconds(clip.Start),
		"-i", in,
		"-t", seconds(clip.Duration),
		"-c", "copy",
		"-y", ws.path(outName),
	}
	if _, err := f.Runner.Run(ctx, f.Bin, args...); err != nil {
		return nil, err
	}
	return ws.read(outName, f.Bin)
}

// GIF renders in two passes: a palette first, then the palette-mapped frames.
func (f *FFmpeg) GIF(ctx context.Context, media []byte, ext string, opts GIFOptions) ([]byte, error) {
	ws, err := newWorkspace("ffmpeg")
	if err != nil {
		return nil, err
	}
	defer ws.close()

	in, err := ws.write(inputName("input", ext), media)
	if err != nil {
		return nil, err
	}
	palette := ws.path("palette.png")
	filters := fmt.Sprintf("fps=%d,scale=%d:-1:flags=lanczos", opts.FPS, opts.Width)

	paletteArgs := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", seconds(opts.Start), "-t", seconds(opts.Duration),
		"-i", in,
		"-vf", filters + ",palettegen",
		"-y", palette,
	}
	if _, err := f.Runner.Run(ctx, f.Bin, paletteArgs...); err != nil {
		return nil, err
	}

	gifArgs := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", seconds(opts.Start), "-t", seconds(opts.Duration),
		"-i", in, "-i", palette,
		"-lavfi", filters + "[x];[x][1:v]paletteuse",
		"-y", ws.path("output.gif"),
	}
	if _, err := f.Runner.Run(ctx, f.Bin, gifArgs...); err != nil {
		return nil, err
	}
	return ws.read("output.gif", f.Bin)
}

func audioCodecArgs(opts AudioOptions) ([]string, error) {
	var args []string
	switch opts.Format {
	case "mp3":
		args = []string{"-acodec", "libmp3lame"}
	case "aac":
		args = []string{"-acodec", "aac"}
	case "wav":
		return []string{"-acodec", "pcm_s16le"}, nil
	case "flac":
		return []string{"-acodec", "flac"}, nil
	default:
		return nil, models.NewError(models.KindInvalidInput, "unsupported audio format %q", opts.Format)
	}
	if opts.Bitrate > 0 {
		args = append(args, "-b:a", fmt.Sprintf("%dk", opts.Bitrate))
	}
	return args, nil
}

func (f *FFmpeg) ExtractAudio(ctx context.Context, media []byte, ext string, opts AudioOptions) ([]byte, error) {
	codecArgs, err := audioCodecArgs(opts)
	if err != nil {
		return nil, err
	}

	ws, err := newWorkspace("ffmpeg")
	if err != nil {
		return nil, err
	}
	defer ws.close()

	in, err := ws.write(inputName("input", ext), media)
	if err != nil {
		return nil, err
	}
	outName := "output." + opts.Format
	args := []string{"-hide_banner", "-loglevel", "error", "-i", in, "-vn"}
	args = append(args, codecArgs...)
	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	args = append(args, "-y", ws.path(outName))
	if _, err := f.Runner.Run(ctx, f.Bin, args...); err != nil {
		return nil, err
	}
	return ws.read(outName, f.Bin)
}

// Compress re-encodes to H.264/AAC in an mp4 container.
func (f *FFmpeg) Compress(ctx context.Context, media []byte, ext string, opts VideoCompressOptions) ([]byte, error) {
	ws, err := newWorkspace("ffmpeg")
	if err != nil {
		return nil, err
	}
	defer ws.close()

	in, err := ws.write(inputName("input", ext), media)
	if err != nil {
		return nil, err
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-i", in, "-c:v", "libx264"}
	if opts.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(opts.CRF))
	}
	if opts.Bitrate > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", opts.Bitrate))
	}
	if opts.Preset != "" {
		args = append(args, "-preset", opts.Preset)
	}
	if opts.Height > 0 {
		// -2 keeps the aspect ratio with an even width
		args = append(args, "-vf", fmt.Sprintf("scale=-2:%d", opts.Height))
	}
	if opts.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(opts.FPS))
	}
	args = append(args, "-c:a", "aac", "-movflags", "+faststart", "-y", ws.path("output.mp4"))
	if _, err := f.Runner.Run(ctx, f.Bin, args...); err != nil {
		return nil, err
	}
	return ws.read("output.mp4", f.Bin)
}

func (f *FFmpeg) Concat(ctx context.Context, clips []Source) ([]byte, error) {
	if len(clips) == 0 {
		return nil, models.NewError(models.KindInvalidInput, "nothing to concatenate")
	}
	ws, err := newWorkspace("ffmpeg")
	if err != nil {
		return nil, err
	}
	defer ws.close()

	var list strings.Builder
	for i, clip := range clips {
		p, err := ws.write(inputName(fmt.Sprintf("clip%04d", i), clip.Ext), clip.Data)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&list, "file '%s'\n", concatQuote(p))
	}
	listPath, err := ws.write("clips.txt", []byte(list.String()))
	if err != nil {
		return nil, err
	}

	ext := clips[0].Ext
	if ext == "" {
		ext = "mp4"
	}
	outName := inputName("output", ext)
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y", ws.path(outName),
	}
	if _, err := f.Runner.Run(ctx, f.Bin, args...); err != nil {
		return nil, err
	}
	return ws.read(outName, f.Bin)
}

// concatQuote escapes a path for a single-quoted concat list entry.
func concatQuote(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
