// Package settings resolves the per-request configuration snapshot from
// built-in defaults, the server configuration file, the extra-index
// environment variable and client overrides.
package settings

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rubiojr/fedsearch/pkg/catalog"
	"github.com/rubiojr/fedsearch/pkg/config"
	"github.com/rubiojr/fedsearch/pkg/engine"
	"github.com/rubiojr/fedsearch/pkg/idxconf"
	"github.com/rubiojr/fedsearch/pkg/log"
)

// ExtraIndexesEnv lists extra index locations, colon separated.
const ExtraIndexesEnv = "FEDSEARCH_EXTRA_DBS"

// MountPrefix starts the override key of a directory's mount prefix.
const MountPrefix = "mount_"

// cookieMaxAge keeps settings for ten years.
const cookieMaxAge = 10 * 365 * 24 * time.Hour

// Option is a tunable with its built-in default, an int or a string.
type Option struct {
	Key     string
	Default any
}

// Defaults lists every option in display order.
var Defaults = []Option{
	{"context", 30},
	{"stem", 1},
	{"timefmt", "%c"},
	{"dirdepth", 2},
	{"maxchars", 500},
	{"maxresults", 0},
	{"perpage", 25},
	{"csvfields", "filename title author size time mtype url"},
	{"title_link", "download"},
}

// Options are the resolved option values.
type Options struct {
	Context    int      `json:"context"`
	Stem       int      `json:"stem"`
	TimeFmt    string   `json:"timefmt"`
	DirDepth   int      `json:"dirdepth"`
	MaxChars   int      `json:"maxchars"`
	MaxResults int      `json:"maxresults"`
	PerPage    int      `json:"perpage"`
	CSVFields  []string `json:"csvfields"`
	TitleLink  string   `json:"title_link"`
}

// Value returns the option named key formatted as an override string.
func (o Options) Value(key string) string {
	switch key {
	case "context":
		return strconv.Itoa(o.Context)
	case "stem":
		return strconv.Itoa(o.Stem)
	case "timefmt":
		return o.TimeFmt
	case "dirdepth":
		return strconv.Itoa(o.DirDepth)
	case "maxchars":
		return strconv.Itoa(o.MaxChars)
	case "maxresults":
		return strconv.Itoa(o.MaxResults)
	case "perpage":
		return strconv.Itoa(o.PerPage)
	case "csvfields":
		return strings.Join(o.CSVFields, " ")
	case "title_link":
		return o.TitleLink
	}
	return ""
}

// Snapshot is the configuration of one request. It is built fresh for
// every request and never mutated afterwards.
type Snapshot struct {
	Options      Options
	ConfDir      string
	Backend      string
	Primary      string
	ExtraIndexes []string
	Dirs         []catalog.Entry
	Mounts       map[string]string
	StemLangs    []string
}

// Locations returns the primary location followed by every extra one.
func (s *Snapshot) Locations() []string {
	return append([]string{s.Primary}, s.ExtraIndexes...)
}

// Overrides supplies per-client option values. An empty string means "not
// set".
type Overrides interface {
	Get(key string) string
}

// MapOverrides serves overrides from a map.
type MapOverrides map[string]string

func (m MapOverrides) Get(key string) string {
	return m[key]
}

// CookieOverrides reads overrides from request cookies.
type CookieOverrides struct {
	Request *http.Request
}

func (c CookieOverrides) Get(key string) string {
	if c.Request == nil {
		return ""
	}
	ck, err := c.Request.Cookie(key)
	if err != nil {
		return ""
	}
	v, err := url.QueryUnescape(ck.Value)
	if err != nil {
		return ck.Value
	}
	return v
}

// Resolver builds snapshots. It holds no per-request state.
type Resolver struct {
	Config *config.Config
	Engine engine.Engine
	Reader idxconf.Reader
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Resolve builds the snapshot for one request. It never fails: malformed
// values fall back to defaults and unreadable index configurations
// contribute no directories.
func (r *Resolver) Resolve(o Overrides) *Snapshot {
	if o == nil {
		o = MapOverrides{}
	}
	values := make(map[string]any, len(Defaults))
	fileDefaults := r.Config.DefaultOverrides()
	for _, opt := range Defaults {
		v := coerce(opt.Default, fileDefaults[opt.Key], opt.Default)
		values[opt.Key] = coerce(opt.Default, o.Get(opt.Key), v)
	}

	snap := &Snapshot{
		Options: Options{
			Context:    values["context"].(int),
			Stem:       values["stem"].(int),
			TimeFmt:    values["timefmt"].(string),
			DirDepth:   values["dirdepth"].(int),
			MaxChars:   values["maxchars"].(int),
			MaxResults: values["maxresults"].(int),
			PerPage:    values["perpage"].(int),
			CSVFields:  FilterFields(strings.Fields(values["csvfields"].(string))),
			TitleLink:  values["title_link"].(string),
		},
		ConfDir:      r.Config.ConfDir,
		Backend:      r.Engine.Name(),
		Primary:      r.Engine.Location(r.Config.ConfDir),
		ExtraIndexes: r.extraIndexes(),
	}

	sources := []catalog.Source{{ConfRoot: snap.ConfDir, Location: snap.Primary}}
	for _, loc := range snap.ExtraIndexes {
		sources = append(sources, catalog.Source{ConfRoot: ExtraConfRoot(loc), Location: loc})
	}
	snap.Dirs = catalog.Build(r.Reader, sources)

	if cfg, err := r.Reader.Load(snap.ConfDir); err == nil {
		snap.StemLangs = cfg.StemmingLanguages
	}

	snap.Mounts = make(map[string]string)
	for _, dir := range catalog.Dirs(snap.Dirs) {
		mount := o.Get(MountKey(dir))
		if mount == "" {
			mount = "file://" + dir
		}
		snap.Mounts[dir] = mount
	}
	return snap
}

func (r *Resolver) extraIndexes() []string {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	var extras []string
	for _, item := range strings.Split(getenv(ExtraIndexesEnv), ":") {
		if item = strings.TrimSpace(item); item != "" {
			extras = append(extras, config.ExpandHome(item))
		}
	}
	return extras
}

// ExtraConfRoot is the configuration root of an extra index location: the
// directory that contains it.
func ExtraConfRoot(location string) string {
	return filepath.Dir(filepath.Clean(location))
}

// MountKey is the override key holding the mount prefix of dir.
func MountKey(dir string) string {
	return MountPrefix + url.PathEscape(dir)
}

// coerce converts s to the type of def. Empty or malformed values, and
// negative numbers, yield fallback.
func coerce(def any, s string, fallback any) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	switch def.(type) {
	case int:
		n, err := strconv.Atoi(s)
		if err != nil {
			log.ForService("settings").Debugf("ignoring malformed value %q", s)
			return fallback
		}
		if n < 0 {
			log.ForService("settings").Debugf("ignoring negative value %d", n)
			return fallback
		}
		return n
	}
	return s
}

// FilterFields drops names that are not known result fields, keeping the
// order of the rest.
func FilterFields(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if engine.IsKnownField(n) {
			out = append(out, n)
		}
	}
	return out
}

// WriteCookies stores every option present in values, and the mount
// prefixes of dirs, as long-lived cookies.
func WriteCookies(w http.ResponseWriter, values url.Values, dirs []string) {
	set := func(name, value string) {
		http.SetCookie(w, &http.Cookie{
			Name:   name,
			Value:  url.QueryEscape(value),
			Path:   "/",
			MaxAge: int(cookieMaxAge.Seconds()),
		})
	}
	for _, opt := range Defaults {
		if _, ok := values[opt.Key]; ok {
			set(opt.Key, values.Get(opt.Key))
		}
	}
	for _, dir := range dirs {
		key := MountKey(dir)
		if _, ok := values[key]; ok {
			set(key, values.Get(key))
		}
	}
}
