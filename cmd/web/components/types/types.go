package types

import (
	"github.com/rubiojr/fedsearch/pkg/query"
	"github.com/rubiojr/fedsearch/pkg/render"
)

// PageData represents data passed to templates
type PageData struct {
	Title   string
	Version string
	Backend string
	Request query.Request
	Tree    []string // Scope choices of the search form
	Sorts   []query.Sort
	View    *render.View // Results page only
	Options []OptionField
	Mounts  []MountField
	Error   string
	Success string
}

// OptionField is one editable option of the settings page.
type OptionField struct {
	Key   string
	Label string
	Value string
}

// MountField is the mount prefix of one top directory.
type MountField struct {
	Dir   string
	Key   string
	Value string
}
