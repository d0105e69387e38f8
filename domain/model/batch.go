package model

// Batch is a bounded group of source rows processed as one ingestion unit.
type Batch struct {
	// Index is the zero-based position of the batch in the source.
	Index int
	// Schema describes the columns of every record in the batch.
	Schema Schema
	// Records holds the rows in source order.
	Records []Record
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}

// Projection maps selected column names onto header positions.
type Projection struct {
	indices []int
	header  Header
}

// NewProjection resolves the selected names against a source header.
// The kept columns follow header order, not selection order; duplicate
// selections collapse into one column. An empty selection keeps every column.
// The second return value lists selected names the header does not contain.
func NewProjection(header Header, selected []string) (*Projection, []string) {
	if len(selected) == 0 {
		indices := make([]int, len(header))
		for i := range header {
			indices[i] = i
		}
		return &Projection{indices: indices, header: header}, nil
	}

	want := make(map[string]bool, len(selected))
	for _, name := range selected {
		want[name] = true
	}

	var (
		indices []int
		kept    Header
		found   = make(map[string]bool, len(selected))
	)
	for i, name := range header {
		if want[name] && !found[name] {
			indices = append(indices, i)
			kept = append(kept, name)
			found[name] = true
		}
	}

	var missing []string
	for _, name := range selected {
		if !found[name] && !contains(missing, name) {
			missing = append(missing, name)
		}
	}
	return &Projection{indices: indices, header: kept}, missing
}

// Header returns the projected header.
func (p *Projection) Header() Header {
	return p.header
}

// Apply projects a single record.
func (p *Projection) Apply(r Record) Record {
	return r.Project(p.indices)
}

// IsIdentity reports whether the projection keeps every column in place.
func (p *Projection) IsIdentity(width int) bool {
	if len(p.indices) != width {
		return false
	}
	for i, idx := range p.indices {
		if i != idx {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
