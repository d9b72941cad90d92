package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartition(t *testing.T) {
	table := loadCSV(t, `age,city,signup_date,revenue,notes
34,Berlin,2024-01-15,120.50,first
28,Paris,2024-01-20,99.90,second
`)

	sel := Partition(table)

	assert.Equal(t, []string{"age", "revenue"}, sel.Numeric)
	assert.Equal(t, []string{"city", "notes"}, sel.Categorical)
	assert.Equal(t, []string{"signup_date"}, sel.Temporal)
}

func TestPartitionEmptyCategories(t *testing.T) {
	table := loadCSV(t, "a,b\n1,2\n3,4\n")

	sel := Partition(table)
	assert.Equal(t, []string{"a", "b"}, sel.Numeric)
	assert.Empty(t, sel.Categorical)
	assert.Empty(t, sel.Temporal)
}
