package rules

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/solatis/itemfilter/internal/types"
)

// decodeParams maps string parameters onto a rule config struct.
// Fields are matched by their `param` tag. Weak typing turns "true"/"5"
// into bool/int; comma lists become slices; durations parse as "250ms".
func decodeParams(params types.Params, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "param",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]string(params)); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidArgument, err)
	}
	return nil
}

// trimAll trims each entry and drops empty ones.
func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
