package codec

import (
	"context"
	"fmt"
	"strings"

	"fileflow/models"
)

// Magick encodes images with ImageMagick.
type Magick struct {
	Bin    string
	Runner Runner
}

func (m *Magick) Encode(ctx context.Context, input []byte, inputExt, format string, quality int) ([]byte, error) {
	ws, err := newWorkspace("magick")
	if err != nil {
		return nil, err
	}
	defer ws.close()

	in, err := ws.write(inputName("input", inputExt), input)
	if err != nil {
		return nil, err
	}
	format = strings.ToLower(format)
	outName := "output." + format

	// [0] takes the first frame of multi-image inputs such as HEIC sequences
	args := []string{
		in + "[0]",
		"-auto-orient",
		"-quality", fmt.Sprint(quality),
	}
	if format == "jpg" || format == "jpeg" {
		args = append(args, "-background", "white", "-flatten")
	}
	args = append(args, fmt.Sprintf("%s:%s", format, ws.path(outName)))

	if _, err := m.Runner.Run(ctx, m.Bin, args...); err != nil {
		return nil, err
	}
	return ws.read(outName, m.Bin)
}

// pixels per inch used when laying images onto pages
const composeDPI = 150

func pointsToPixels(pt int) int {
	return pt * composeDPI / 72
}

// Compose places each image centered on its own page of layout's size, on a
// white background.
func (m *Magick) Compose(ctx context.Context, images []Source, layout PageLayout) ([]byte, error) {
	if len(images) == 0 {
		return nil, models.NewError(models.KindInvalidInput, "no images to place")
	}
	ws, err := newWorkspace("magick")
	if err != nil {
		return nil, err
	}
	defer ws.close()

	args := make([]string, 0, len(images)+24)
	for i, img := range images {
		p, err := ws.write(inputName(fmt.Sprintf("page%04d", i), img.Ext), img.Data)
		if err != nil {
			return nil, err
		}
		args = append(args, p+"[0]")
	}

	box := fmt.Sprintf("%dx%d", pointsToPixels(layout.Width-2*layout.Margin), pointsToPixels(layout.Height-2*layout.Margin))
	page := fmt.Sprintf("%dx%d", pointsToPixels(layout.Width), pointsToPixels(layout.Height))
	args = append(args, "-auto-orient", "-background", "white", "-alpha", "remove", "-alpha", "off")
	switch layout.Fit {
	case FitFill:
		args = append(args, "-resize", box+"^", "-gravity", "center", "-extent", box)
	case FitStretch:
		args = append(args, "-resize", box+"!")
	case FitOriginal:
		args = append(args, "-resize", box+">")
	default:
		args = append(args, "-resize", box)
	}
	args = append(args,
		"-gravity", "center", "-extent", page,
		"-units", "PixelsPerInch", "-density", fmt.Sprint(composeDPI),
		"-compress", "jpeg", "-quality", fmt.Sprint(layout.Quality),
		"pdf:"+ws.path("output.pdf"),
	)
	if _, err := m.Runner.Run(ctx, m.Bin, args...); err != nil {
		return nil, err
	}
	return ws.read("output.pdf", m.Bin)
}
