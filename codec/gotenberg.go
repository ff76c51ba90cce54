package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"fileflow/models"
)

// Gotenberg merges documents through a Gotenberg server. It only produces
// library-default metadata; other modes go to Fallback.
type Gotenberg struct {
	baseURL  string
	client   *http.Client
	timeout  time.Duration
	Fallback PDFMerger
}

// NewGotenberg bounds every merge request, body included, by timeout. Zero
// leaves the request to the caller's context.
func NewGotenberg(baseURL string, timeout time.Duration, fallback PDFMerger) *Gotenberg {
	return &Gotenberg{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{},
		timeout:  timeout,
		Fallback: fallback,
	}
}

func (g *Gotenberg) Merge(ctx context.Context, docs [][]byte, mode MetadataMode) ([]byte, error) {
	if mode != MetadataDefault && g.Fallback != nil {
		return g.Fallback.Merge(ctx, docs, mode)
	}
	if len(docs) == 0 {
		return nil, models.NewError(models.KindInvalidInput, "nothing to merge")
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for i, doc := range docs {
		// Gotenberg merges in alphanumeric filename order
		part, err := writer.CreateFormFile("files", fmt.Sprintf("%04d.pdf", i))
		if err != nil {
			return nil, models.WrapError(models.KindInternal, err, "create form file")
		}
		if _, err := part.Write(doc); err != nil {
			return nil, models.WrapError(models.KindInternal, err, "copy file")
		}
	}
	if err := writer.Close(); err != nil {
		return nil, models.WrapError(models.KindInternal, err, "close writer")
	}

	url := fmt.Sprintf("%s/forms/pdfengines/merge", g.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, models.WrapError(models.KindInternal, err, "create request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, models.WrapError(models.KindTimeout, err, "gotenberg did not answer in time")
		}
		return nil, models.WrapError(models.KindInternal, err, "gotenberg request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, stderrLimit))
		kind := models.KindInternal
		switch {
		case resp.StatusCode == http.StatusBadRequest:
			kind = models.KindInvalidInput
		case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
			kind = models.KindResourceExhausted
		case resp.StatusCode == http.StatusGatewayTimeout:
			kind = models.KindTimeout
		}
		return nil, models.NewError(kind, "gotenberg returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	merged, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, models.WrapError(models.KindTimeout, err, "gotenberg response did not finish in time")
		}
		return nil, models.WrapError(models.KindInternal, err, "read gotenberg response")
	}
	return merged, nil
}
