package rules

import (
	"testing"

	"github.com/solatis/itemfilter/internal/types"
	"github.com/stretchr/testify/require"
)

func newItem(t *testing.T, id, folder, site string, attrs types.Attributes) *types.FilterItem {
	t.Helper()
	it, err := types.NewFilterItem(types.GUID(id), types.GUID(folder), types.GUID(site), attrs, nil)
	require.NoError(t, err)
	return it
}

func itemIDs(items []*types.FilterItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = string(it.ItemID)
	}
	return out
}
