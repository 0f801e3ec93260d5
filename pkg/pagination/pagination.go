package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 50
	// MaxLimit caps how many rows any page query can request.
	MaxLimit = 200
)

// Params holds page pagination inputs from callers.
type Params struct {
	Page  int
	Limit int
}

// Meta describes the page returned alongside list results.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// Bounds configures the default and maximum page sizes.
type Bounds struct {
	Default int
	Max     int
}

// DefaultBounds returns the package defaults.
func DefaultBounds() Bounds {
	return Bounds{Default: DefaultLimit, Max: MaxLimit}
}

// NormalizeLimit enforces the configured default and maximum limits.
func (b Bounds) NormalizeLimit(limit int) int {
	def, max := b.Default, b.Max
	if def <= 0 {
		def = DefaultLimit
	}
	if max <= 0 {
		max = MaxLimit
	}
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// Normalize returns params with the page floored at 1 and the limit clamped.
func (b Bounds) Normalize(p Params) Params {
	page := p.Page
	if page < 1 {
		page = 1
	}
	return Params{Page: page, Limit: b.NormalizeLimit(p.Limit)}
}

// NormalizeLimit applies the package defaults.
func NormalizeLimit(limit int) int {
	return DefaultBounds().NormalizeLimit(limit)
}

// Offset returns the row offset of the page.
func (p Params) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// NewMeta builds response metadata. An empty result still reports one page.
func NewMeta(p Params, total int64) Meta {
	pages := 1
	if p.Limit > 0 && total > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
	}
}
