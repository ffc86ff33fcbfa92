package rules

import (
	"context"
	"testing"
	"time"

	"github.com/solatis/itemfilter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptRule(t *testing.T) {
	items := []*types.FilterItem{
		newItem(t, "0-0-100", "3", "", types.Attributes{"locale": "en-us"}),
		newItem(t, "0-0-400", "", "", types.Attributes{"locale": "en-us"}),
		newItem(t, "0-0-500", "", "", types.Attributes{"locale": "de-de"}),
	}

	tests := []struct {
		name   string
		params types.Params
		want   []string
	}{
		{
			name:   "attributes",
			params: types.Params{"script": `return item.attrs.locale === "en-us";`},
			want:   []string{"0-0-100", "0-0-400"},
		},
		{
			name:   "content id",
			params: types.Params{"script": `return item.contentId >= 400;`},
			want:   []string{"0-0-400", "0-0-500"},
		},
		{
			name:   "params",
			params: types.Params{"script": `return item.folderId === params.folder;`, "folder": "3"},
			want:   []string{"0-0-100"},
		},
		{
			name:   "falsy result drops",
			params: types.Params{"script": `var x = 1;`},
			want:   []string{},
		},
	}

	rule := &ScriptRule{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rule.Filter(context.Background(), items, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, itemIDs(got))
		})
	}
}

func TestScriptRule_Errors(t *testing.T) {
	items := []*types.FilterItem{newItem(t, "1", "", "", nil)}
	rule := &ScriptRule{}

	_, err := rule.Filter(context.Background(), items, types.Params{})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = rule.Filter(context.Background(), items, types.Params{"script": "return (;"})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = rule.Filter(context.Background(), items, types.Params{"script": `throw new Error("boom");`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestScriptRule_Timeout(t *testing.T) {
	items := []*types.FilterItem{newItem(t, "1", "", "", nil)}
	rule := &ScriptRule{Timeout: time.Hour}

	start := time.Now()
	_, err := rule.Filter(context.Background(), items, types.Params{
		"script":  `while (true) {}`,
		"timeout": "20ms",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestScriptRule_TimeoutParamCapped(t *testing.T) {
	items := []*types.FilterItem{newItem(t, "1", "", "", nil)}
	rule := &ScriptRule{Timeout: 30 * time.Millisecond}

	start := time.Now()
	_, err := rule.Filter(context.Background(), items, types.Params{
		"script":  `while (true) {}`,
		"timeout": "1h",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out after 30ms")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestScriptRule_Cancelled(t *testing.T) {
	items := []*types.FilterItem{newItem(t, "1", "", "", nil)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&ScriptRule{Timeout: time.Hour}).Filter(ctx, items, types.Params{"script": `while (true) {}`})
	assert.ErrorIs(t, err, context.Canceled)
}
