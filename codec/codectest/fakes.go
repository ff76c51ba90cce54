// Package codectest provides in-memory collaborators and sample payloads
// with real magic bytes for tests.
package codectest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"fileflow/codec"
	"fileflow/models"
)

const pdfHeader = "%PDF-1.4\n"

// PDF builds a fake document with one page per label.
func PDF(labels ...string) []byte {
	var b strings.Builder
	b.WriteString(pdfHeader)
	for _, l := range labels {
		b.WriteString("%%page " + l + "\n")
	}
	b.WriteString("%%EOF\n")
	return []byte(b.String())
}

// Pages returns the page labels of a document built by PDF.
func Pages(doc []byte) []string {
	var out []string
	for _, line := range strings.Split(string(doc), "\n") {
		if label, ok := strings.CutPrefix(line, "%%page "); ok {
			out = append(out, label)
		}
	}
	return out
}

// PNG returns a payload that sniffs as image/png.
func PNG(payload string) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), payload...)
}

// HEIC returns a payload that sniffs as image/heic.
func HEIC(payload string) []byte {
	return append([]byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00mif1heic"), payload...)
}

// MP4 returns a payload that sniffs as video/mp4.
func MP4(payload string) []byte {
	return append([]byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2"), payload...)
}

// JPEG returns a payload that sniffs as image/jpeg.
func JPEG(payload string) []byte {
	return append([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), payload...)
}

// MP3 returns a payload that sniffs as audio/mpeg.
func MP3(payload string) []byte {
	return append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), payload...)
}

// PDFTool merges and counts documents built by PDF.
type PDFTool struct {
	mu     sync.Mutex
	Modes  []codec.MetadataMode
	Err    error
	merges int
}

func (p *PDFTool) Merge(ctx context.Context, docs [][]byte, mode codec.MetadataMode) ([]byte, error) {
	p.mu.Lock()
	p.Modes = append(p.Modes, mode)
	p.merges++
	p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	var labels []string
	for _, d := range docs {
		if !bytes.HasPrefix(d, []byte("%PDF-")) {
			return nil, models.NewError(models.KindInvalidInput, "not a pdf")
		}
		labels = append(labels, Pages(d)...)
	}
	return PDF(labels...), nil
}

func (p *PDFTool) PageCount(ctx context.Context, doc []byte) (int, error) {
	if !bytes.HasPrefix(doc, []byte("%PDF-")) {
		return 0, models.NewError(models.KindInvalidInput, "not a pdf")
	}
	return len(Pages(doc)), nil
}

func (p *PDFTool) Compress(ctx context.Context, doc []byte, s codec.CompressSettings, removeMetadata bool) ([]byte, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return append([]byte(nil), doc...), nil
}

// Rasterize renders the label of the requested page.
func (p *PDFTool) Rasterize(ctx context.Context, doc []byte, page int, opts codec.RasterOptions) ([]byte, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	pages := Pages(doc)
	if page < 1 || page > len(pages) {
		return nil, models.NewError(models.KindInvalidInput, "no page %d", page)
	}
	return []byte(fmt.Sprintf("%s:%ddpi:%s", opts.Format, opts.DPI, pages[page-1])), nil
}

// Merges reports how many merges ran.
func (p *PDFTool) Merges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.merges
}

// Images encodes by tagging the input with the requested format and quality.
type Images struct {
	mu        sync.Mutex
	Qualities []int
	Layouts   []codec.PageLayout
	Err       error
	// Block, when set, is received from before encoding returns.
	Block chan struct{}
	// Started, when set, is signalled when an encode begins.
	Started chan struct{}
}

func (i *Images) Encode(ctx context.Context, input []byte, inputExt, format string, quality int) ([]byte, error) {
	if i.Started != nil {
		i.Started <- struct{}{}
	}
	if i.Block != nil {
		select {
		case <-i.Block:
		case <-ctx.Done():
			return nil, models.WrapError(models.KindTimeout, ctx.Err(), "blocked encode")
		}
	}
	i.mu.Lock()
	i.Qualities = append(i.Qualities, quality)
	i.mu.Unlock()
	if i.Err != nil {
		return nil, i.Err
	}
	return []byte(fmt.Sprintf("%s:q%d:%d", format, quality, len(input))), nil
}

// Compose returns a document with one page per image, labelled by extension.
func (i *Images) Compose(ctx context.Context, images []codec.Source, layout codec.PageLayout) ([]byte, error) {
	i.mu.Lock()
	i.Layouts = append(i.Layouts, layout)
	i.mu.Unlock()
	if i.Err != nil {
		return nil, i.Err
	}
	labels := make([]string, len(images))
	for n, img := range images {
		labels[n] = img.Ext
	}
	return PDF(labels...), nil
}

// Media pretends every source lasts Seconds.
type Media struct {
	mu      sync.Mutex
	Seconds float64
	Clips   []codec.Clip
	Audio   []codec.AudioOptions
	Err     error
}

func (m *Media) Duration(ctx context.Context, media []byte, ext string) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Seconds, nil
}

func (m *Media) record(c codec.Clip) {
	m.mu.Lock()
	m.Clips = append(m.Clips, c)
	m.mu.Unlock()
}

func (m *Media) Trim(ctx context.Context, media []byte, ext string, clip codec.Clip) ([]byte, error) {
	m.record(clip)
	return []byte(fmt.Sprintf("trim:%.3f+%.3f", clip.Start, clip.Duration)), nil
}

func (m *Media) GIF(ctx context.Context, media []byte, ext string, opts codec.GIFOptions) ([]byte, error) {
	m.record(opts.Clip)
	return []byte(fmt.Sprintf("GIF89a:%d:%d", opts.FPS, opts.Width)), nil
}

func (m *Media) ExtractAudio(ctx context.Context, media []byte, ext string, opts codec.AudioOptions) ([]byte, error) {
	m.mu.Lock()
	m.Audio = append(m.Audio, opts)
	m.mu.Unlock()
	return []byte(fmt.Sprintf("audio:%s:%d", opts.Format, opts.Bitrate)), nil
}

func (m *Media) Compress(ctx context.Context, media []byte, ext string, opts codec.VideoCompressOptions) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return []byte(fmt.Sprintf("h264:crf%d:b%d:h%d:r%d", opts.CRF, opts.Bitrate, opts.Height, opts.FPS)), nil
}

// Concat joins the clip payloads with "+".
func (m *Media) Concat(ctx context.Context, clips []codec.Source) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	parts := make([][]byte, len(clips))
	for i, c := range clips {
		parts[i] = c.Data
	}
	return bytes.Join(parts, []byte("+")), nil
}
