package codec

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fileflow/models"
)

// QPDF merges, counts and losslessly compresses documents with qpdf.
type QPDF struct {
	Bin    string
	Runner Runner
}

// qpdf exits 3 on warnings; treat those as success.
const qpdfWarningFlag = "--warning-exit-0"

func (q *QPDF) Merge(ctx context.Context, docs [][]byte, mode MetadataMode) ([]byte, error) {
	if len(docs) == 0 {
		return nil, models.NewError(models.KindInvalidInput, "nothing to merge")
	}
	ws, err := newWorkspace("qpdf")
	if err != nil {
		return nil, err
	}
	defer ws.close()

	paths := make([]string, len(docs))
	for i, doc := range docs {
		p, err := ws.write(fmt.Sprintf("in%04d.pdf", i), doc)
		if err != nil {
			return nil, err
		}
		paths[i] = p
	}

	args := []string{qpdfWarningFlag}
	switch mode {
	case MetadataCopyFirst:
		// the primary input supplies document-level metadata
		args = append(args, paths[0])
	case MetadataStrip:
		args = append(args, "--empty", "--remove-info", "--remove-metadata")
	default:
		args = append(args, "--empty")
	}
	args = append(args, "--pages")
	args = append(args, paths...)
	args = append(args, "--", ws.path("merged.pdf"))

	if _, err := q.Runner.Run(ctx, q.Bin, args...); err != nil {
		return nil, err
	}
	return ws.read("merged.pdf", q.Bin)
}

func (q *QPDF) PageCount(ctx context.Context, doc []byte) (int, error) {
	ws, err := newWorkspace("qpdf")
	if err != nil {
		return 0, err
	}
	defer ws.close()

	in, err := ws.write("input.pdf", doc)
	if err != nil {
		return 0, err
	}
	out, err := q.Runner.Run(ctx, q.Bin, qpdfWarningFlag, "--show-npages", in)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, models.WrapError(models.KindInvalidInput, err, "unexpected page count %q", strings.TrimSpace(string(out)))
	}
	return n, nil
}

// Optimize rewrites doc with object streams and compressed, linearized data.
func (q *QPDF) Optimize(ctx context.Context, doc []byte, removeMetadata bool) ([]byte, error) {
	ws, err := newWorkspace("qpdf")
	if err != nil {
		return nil, err
	}
	defer ws.close()

	in, err := ws.write("input.pdf", doc)
	if err != nil {
		return nil, err
	}
	args := []string{qpdfWarningFlag, "--object-streams=generate", "--stream-data=compress", "--linearize"}
	if removeMetadata {
		args = append(args, "--remove-info", "--remove-metadata")
	}
	args = append(args, in, ws.path("optimized.pdf"))
	if _, err := q.Runner.Run(ctx, q.Bin, args...); err != nil {
		return nil, err
	}
	return ws.read("optimized.pdf", q.Bin)
}
