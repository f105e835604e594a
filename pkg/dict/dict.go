package dict

import (
	"errors"
	"regexp"
	"strings"
)

var dictCodeRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

type Option struct {
	Code  string `yaml:"code" json:"code"`
	Label string `yaml:"label" json:"label"`
}

// Catalog maps dict_code to its ordered options. A Catalog is built once and
// treated as read-only afterwards.
type Catalog struct {
	entries map[string][]Option
}

func NewCatalog(raw map[string][]Option) (Catalog, error) {
	entries := make(map[string][]Option, len(raw))
	for code, opts := range raw {
		code = strings.TrimSpace(code)
		if !dictCodeRe.MatchString(code) {
			return Catalog{}, errors.New("dict: invalid dict_code " + code)
		}
		if len(opts) == 0 {
			return Catalog{}, errors.New("dict: " + code + " has no options")
		}
		seen := make(map[string]struct{}, len(opts))
		copied := make([]Option, 0, len(opts))
		for _, opt := range opts {
			if _, dup := seen[opt.Code]; dup {
				return Catalog{}, errors.New("dict: " + code + " duplicate option " + opt.Code)
			}
			seen[opt.Code] = struct{}{}
			label := strings.TrimSpace(opt.Label)
			if label == "" {
				label = opt.Code
			}
			copied = append(copied, Option{Code: opt.Code, Label: label})
		}
		entries[code] = copied
	}
	return Catalog{entries: entries}, nil
}

// Options returns a copy of the options registered under dictCode.
func (c Catalog) Options(dictCode string) ([]Option, bool) {
	opts, ok := c.entries[strings.TrimSpace(dictCode)]
	if !ok {
		return nil, false
	}
	out := make([]Option, len(opts))
	copy(out, opts)
	return out, true
}

func (c Catalog) Label(dictCode string, code string) (string, bool) {
	for _, opt := range c.entries[strings.TrimSpace(dictCode)] {
		if opt.Code == code {
			return opt.Label, true
		}
	}
	return "", false
}

func (c Catalog) Codes() []string {
	out := make([]string, 0, len(c.entries))
	for code := range c.entries {
		out = append(out, code)
	}
	return out
}
