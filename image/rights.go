package image

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Rights gathers the attribution, license and logo of an IIIF 2 image.
type Rights struct {
	License string
	Logo    string

	plain     []string
	localized map[string]string
}

// parseRights returns nil when the document declares none of them.
func parseRights(attribution, license, logo interface{}) *Rights {
	if attribution == nil && license == nil && logo == nil {
		return nil
	}

	r := &Rights{}

	switch v := attribution.(type) {
	case string:
		r.plain = []string{v}
	case []interface{}:
		for _, item := range v {
			r.addAttribution(item)
		}
	case map[string]interface{}:
		r.addAttribution(v)
	}

	switch v := logo.(type) {
	case string:
		r.Logo = v
	case map[string]interface{}:
		r.Logo, _ = v["@id"].(string)
	}

	switch v := license.(type) {
	case string:
		r.License = v
	case []interface{}:
		var values []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}
		r.License = strings.Join(values, "\n")
	}

	return r
}

func (r *Rights) addAttribution(item interface{}) {
	switch v := item.(type) {
	case string:
		r.plain = append(r.plain, v)
	case map[string]interface{}:
		lang, _ := v["@language"].(string)
		value, _ := v["@value"].(string)
		if lang == "" {
			if value != "" {
				r.plain = append(r.plain, value)
			}
			return
		}
		if r.localized == nil {
			r.localized = make(map[string]string)
		}
		r.localized[lang] = value
	}
}

// Attribution picks the attribution text for the preferred language. Values
// without a language are used when no language matches.
func (r *Rights) Attribution(lang string) string {
	if r == nil {
		return ""
	}

	plain := strings.Join(r.plain, "\n")
	if len(r.localized) == 0 {
		return plain
	}

	keys := make([]string, 0, len(r.localized))
	for k := range r.localized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]language.Tag, len(keys))
	for i, k := range keys {
		tags[i] = language.Make(k)
	}

	_, index, confidence := language.NewMatcher(tags).Match(language.Make(lang))
	if confidence == language.No && plain != "" {
		return plain
	}
	return r.localized[keys[index]]
}
