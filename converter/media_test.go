package converter

import (
	"context"
	"errors"
	"testing"

	"fileflow/codec"
	"fileflow/codec/codectest"
	"fileflow/models"
)

func TestAudioConvert(t *testing.T) {
	table, f := newTestTable(t)
	h, _ := table.Lookup(models.ConversionAudioConvert)
	opts, err := Validate(h, models.Options{"format": "flac", "sampleRate": 48000})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	in := Input{File: file("song.mp3", "audio/mpeg"), Data: codectest.MP3("samples")}
	out, err := Execute(context.Background(), h, []Input{in}, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Ext != "flac" {
		t.Errorf("Expected flac output, got %s", out.Ext)
	}
	want := codec.AudioOptions{Format: "flac", SampleRate: 48000}
	if len(f.media.Audio) != 1 || f.media.Audio[0] != want {
		t.Errorf("Expected %+v, got %+v", want, f.media.Audio)
	}
}

func TestAudioConvertOptions(t *testing.T) {
	h := &AudioConvert{}
	opts, err := h.ValidateOptions(models.Options{"sampleRate": "keep"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts["format"] != "mp3" || opts["bitrate"] != 192 || opts.Has("sampleRate") {
		t.Errorf("unexpected defaults %v", opts)
	}
	for _, raw := range []models.Options{
		{"format": "ogg"},
		{"bitrate": 8},
		{"sampleRate": 100},
		{"sampleRate": "fast"},
		{"channels": 2},
	} {
		if _, err := h.ValidateOptions(raw); !errors.Is(err, models.ErrValidation) {
			t.Errorf("%v: expected validation error, got %v", raw, err)
		}
	}
}

func TestAudioConvertRejectsNonAudio(t *testing.T) {
	table, f := newTestTable(t)
	h, _ := table.Lookup(models.ConversionAudioConvert)
	in := Input{File: file("song.mp3", "audio/mpeg"), Data: codectest.PDF("p1")}
	if _, err := Execute(context.Background(), h, []Input{in}, models.Options{"format": "wav"}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("Expected invalid_input, got %v", err)
	}
	if len(f.media.Audio) != 0 {
		t.Error("collaborator must not run on mismatched content")
	}
}

func TestVideoCompressPresets(t *testing.T) {
	table, _ := newTestTable(t)
	h, _ := table.Lookup(models.ConversionVideoCompress)
	cases := []struct {
		raw  models.Options
		want string
	}{
		{nil, "h264:crf28:b0:h0:r0"},
		{models.Options{"compression": "heavy", "resolution": "480p"}, "h264:crf32:b0:h480:r0"},
		{models.Options{"compression": "light", "framerate": 24}, "h264:crf23:b0:h0:r24"},
		{models.Options{"compression": "custom", "bitrate": 800}, "h264:crf0:b800:h0:r0"},
		{models.Options{"compression": "custom", "crf": 20, "framerate": "original"}, "h264:crf20:b0:h0:r0"},
	}
	in := Input{File: file("clip.mov", "video/quicktime"), Data: codectest.MP4("frames")}
	for _, tc := range cases {
		opts, err := Validate(h, tc.raw)
		if err != nil {
			t.Fatalf("%v: Validate: %v", tc.raw, err)
		}
		out, err := Execute(context.Background(), h, []Input{in}, opts)
		if err != nil {
			t.Fatalf("%v: Execute: %v", tc.raw, err)
		}
		if string(out.Data) != tc.want {
			t.Errorf("%v: expected %s, got %s", tc.raw, tc.want, out.Data)
		}
		if out.Ext != "mp4" || out.MimeType != "video/mp4" {
			t.Errorf("%v: unexpected output type %s/%s", tc.raw, out.Ext, out.MimeType)
		}
	}
}

func TestVideoCompressOptionErrors(t *testing.T) {
	h := &VideoCompress{}
	for _, raw := range []models.Options{
		{"compression": "extreme"},
		{"compression": "medium", "crf": 20},
		{"compression": "custom", "crf": 60},
		{"compression": "custom", "bitrate": 10},
		{"resolution": "4k"},
		{"framerate": 240},
	} {
		if _, err := h.ValidateOptions(raw); !errors.Is(err, models.ErrValidation) {
			t.Errorf("%v: expected validation error, got %v", raw, err)
		}
	}
}

func TestVideoMergeKeepsOrder(t *testing.T) {
	table, _ := newTestTable(t)
	h, _ := table.Lookup(models.ConversionVideoMerge)
	a := Input{File: file("a.mp4", "video/mp4"), Data: codectest.MP4("A")}
	b := Input{File: file("b.mp4", "video/mp4"), Data: codectest.MP4("B")}

	ab, err := Execute(context.Background(), h, []Input{a, b, a}, models.Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := string(a.Data) + "+" + string(b.Data) + "+" + string(a.Data)
	if string(ab.Data) != want {
		t.Errorf("Expected clips in caller order, got %q", ab.Data)
	}
	if ab.Ext != "mp4" || ab.MimeType != "video/mp4" {
		t.Errorf("unexpected output type %s/%s", ab.Ext, ab.MimeType)
	}
	if err := CheckArity(h, 1); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error for a single clip, got %v", err)
	}

	notVideo := Input{File: file("c.mp4", "video/mp4"), Data: codectest.PNG("x")}
	if _, err := Execute(context.Background(), h, []Input{a, notVideo}, models.Options{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected invalid_input, got %v", err)
	}
}

func TestJPGToPDF(t *testing.T) {
	table, f := newTestTable(t)
	h, _ := table.Lookup(models.ConversionJPGToPDF)
	opts, err := Validate(h, models.Options{"pageSize": "Letter", "orientation": "landscape", "imageLayout": "fill", "margin": 36, "quality": 0.6})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	inputs := []Input{
		{File: file("one.jpg", "image/jpeg"), Data: codectest.JPEG("1")},
		{File: file("two.png", "image/png"), Data: codectest.PNG("2")},
	}
	out, err := Execute(context.Background(), h, inputs, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := codectest.Pages(out.Data); len(got) != 2 || got[0] != "jpg" || got[1] != "png" {
		t.Errorf("Expected one page per image in order, got %v", got)
	}
	want := codec.PageLayout{Width: 792, Height: 612, Margin: 36, Fit: codec.FitFill, Quality: 60}
	if len(f.images.Layouts) != 1 || f.images.Layouts[0] != want {
		t.Errorf("Expected layout %+v, got %+v", want, f.images.Layouts)
	}
	if out.Ext != "pdf" || out.MimeType != "application/pdf" {
		t.Errorf("unexpected output type %s/%s", out.Ext, out.MimeType)
	}
}

func TestJPGToPDFOptions(t *testing.T) {
	h := &JPGToPDF{}
	opts, err := h.ValidateOptions(nil)
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if opts["pageSize"] != "A4" || opts["orientation"] != "portrait" || opts["imageLayout"] != "fit" || opts["margin"] != 20 || opts["quality"] != 0.85 {
		t.Errorf("unexpected defaults %v", opts)
	}
	for _, raw := range []models.Options{
		{"pageSize": "B5"},
		{"orientation": "diagonal"},
		{"imageLayout": "tile"},
		{"margin": -1},
		{"margin": 400},
	} {
		if _, err := h.ValidateOptions(raw); !errors.Is(err, models.ErrValidation) {
			t.Errorf("%v: expected validation error, got %v", raw, err)
		}
	}
}

func TestJPGToPDFRejectsOtherImages(t *testing.T) {
	table, f := newTestTable(t)
	h, _ := table.Lookup(models.ConversionJPGToPDF)
	in := Input{File: file("photo.jpg", "image/jpeg"), Data: codectest.HEIC("x")}
	if _, err := Execute(context.Background(), h, []Input{in}, models.Options{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("Expected invalid_input, got %v", err)
	}
	if len(f.images.Layouts) != 0 {
		t.Error("collaborator must not run on mismatched content")
	}
}

func TestPDFToImage(t *testing.T) {
	table, _ := newTestTable(t)
	h, _ := table.Lookup(models.ConversionPDFToImage)
	opts, err := Validate(h, models.Options{"format": "jpeg", "page": 2, "dpi": 200})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	out, err := Execute(context.Background(), h, []Input{pdfInput("P1", "P2", "P3")}, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(out.Data) != "jpg:200dpi:P2" {
		t.Errorf("Expected the second page, got %q", out.Data)
	}
	if out.Ext != "jpg" || out.MimeType != "image/jpeg" {
		t.Errorf("unexpected output type %s/%s", out.Ext, out.MimeType)
	}
}

func TestPDFToImagePageOutOfRange(t *testing.T) {
	table, _ := newTestTable(t)
	h, _ := table.Lookup(models.ConversionPDFToImage)
	opts, _ := Validate(h, models.Options{"page": 4})
	if _, err := Execute(context.Background(), h, []Input{pdfInput("P1", "P2")}, opts); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("Expected invalid_input, got %v", err)
	}
	for _, raw := range []models.Options{{"page": 0}, {"format": "tiff"}, {"dpi": 5000}} {
		if _, err := h.ValidateOptions(raw); !errors.Is(err, models.ErrValidation) {
			t.Errorf("%v: expected validation error, got %v", raw, err)
		}
	}
}
