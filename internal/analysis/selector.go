// Package analysis partitions table columns by type and computes the
// descriptive statistics that feed charts and report tables.
package analysis

import (
	"reportlab/internal/dataset"
)

// Selection holds the column names available for each analysis kind,
// in table order.
type Selection struct {
	Numeric     []string `json:"numeric"`
	Categorical []string `json:"categorical"`
	Temporal    []string `json:"temporal"`
}

// Partition groups the table's columns into numeric, categorical and
// temporal lists. Pure function over the table's classification.
func Partition(t *dataset.Table) Selection {
	var sel Selection
	for i, name := range t.Header {
		switch t.Types[i] {
		case dataset.TypeNumeric:
			sel.Numeric = append(sel.Numeric, name)
		case dataset.TypeCategorical:
			sel.Categorical = append(sel.Categorical, name)
		case dataset.TypeTemporal:
			sel.Temporal = append(sel.Temporal, name)
		}
	}
	return sel
}
