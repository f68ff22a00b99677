package components

import (
	"net/url"
	"strings"

	"github.com/rubiojr/fedsearch/cmd/web/components/types"
	"github.com/rubiojr/fedsearch/pkg/render"
	"github.com/rubiojr/fedsearch/pkg/settings"
)

// OptionFields lists every option of opts in display order, labelled for
// the settings page.
func OptionFields(opts settings.Options) []types.OptionField {
	fields := make([]types.OptionField, 0, len(settings.Defaults))
	for _, opt := range settings.Defaults {
		fields = append(fields, types.OptionField{
			Key:   opt.Key,
			Label: render.OptionLabel(opt.Key),
			Value: opts.Value(opt.Key),
		})
	}
	return fields
}

// MountFields lists the mount prefix of every directory in dirs.
func MountFields(dirs []string, mounts map[string]string) []types.MountField {
	fields := make([]types.MountField, 0, len(dirs))
	for _, d := range dirs {
		fields = append(fields, types.MountField{
			Dir:   d,
			Key:   settings.MountKey(d),
			Value: mounts[d],
		})
	}
	return fields
}

// SearchURL is the absolute results URL template advertised to browsers.
// base is the scheme and host the page was requested from.
func SearchURL(base string) string {
	v := url.Values{}
	v.Set("page", "1")
	return strings.TrimSuffix(base, "/") + "/results?" + v.Encode() + "&query={searchTerms}"
}
