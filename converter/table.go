package converter

import (
	"fmt"
	"sync"

	"fileflow/logger"
	"fileflow/models"
)

// Table maps conversion types to handlers. It is built once at startup and
// injected wherever routing happens.
type Table struct {
	mu       sync.RWMutex
	handlers map[models.ConversionType]Handler
	order    []models.ConversionType
	fallback models.ConversionType
}

func NewTable() *Table {
	return &Table{handlers: make(map[models.ConversionType]Handler)}
}

// Register adds h. Registration order is the sniffing order.
func (t *Table) Register(h Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.handlers[h.Type()]; exists {
		return fmt.Errorf("handler %s already registered", h.Type())
	}
	t.handlers[h.Type()] = h
	t.order = append(t.order, h.Type())
	logger.Debugf("handler [%s] registered", describe(h))
	return nil
}

// SetFallback designates the handler used when sniffing finds no match.
func (t *Table) SetFallback(ct models.ConversionType) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handlers[ct]; !ok {
		return fmt.Errorf("fallback handler %s is not registered", ct)
	}
	t.fallback = ct
	return nil
}

// Lookup returns the handler registered for ct.
func (t *Table) Lookup(ct models.ConversionType) (Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[ct]
	return h, ok
}

// Types lists registered conversion types in registration order.
func (t *Table) Types() []models.ConversionType {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]models.ConversionType(nil), t.order...)
}

// Supported lists the types whose sniffing predicate accepts file.
func (t *Table) Supported(file models.UploadedFile) []models.ConversionType {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []models.ConversionType
	for _, ct := range t.order {
		if t.handlers[ct].Accepts(file) {
			out = append(out, ct)
		}
	}
	return out
}

// Router selects the handler for a job.
type Router struct {
	table *Table
}

func NewRouter(table *Table) *Router {
	return &Router{table: table}
}

// Route picks a handler for file. An explicit type is honored if registered.
// Otherwise the first handler whose predicate accepts the file and whose arity
// fits inputCount wins, then the fallback. No match fails with unsupported_format.
func (r *Router) Route(file models.UploadedFile, requested models.ConversionType, inputCount int) (Handler, error) {
	if requested != "" {
		h, ok := r.table.Lookup(requested)
		if !ok {
			return nil, models.NewError(models.KindUnsupportedFormat, "conversion type %q is not supported", requested)
		}
		return h, nil
	}

	r.table.mu.RLock()
	defer r.table.mu.RUnlock()
	for _, ct := range r.table.order {
		h := r.table.handlers[ct]
		if h.Accepts(file) && CheckArity(h, inputCount) == nil {
			logger.Debugf("routed %s (%s) to %s", file.ID, file.OriginalName, ct)
			return h, nil
		}
	}
	if r.table.fallback != "" {
		logger.Debugf("routed %s (%s) to fallback %s", file.ID, file.OriginalName, r.table.fallback)
		return r.table.handlers[r.table.fallback], nil
	}
	return nil, models.NewError(models.KindUnsupportedFormat, "no handler accepts %q", file.OriginalName)
}
