package importer

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/skelutten/studymaster-pwa-sub001/internal/apkg"
	"github.com/skelutten/studymaster-pwa-sub001/internal/entities"
	"github.com/skelutten/studymaster-pwa-sub001/internal/sanitize"
)

var (
	imageRefs  = regexp.MustCompile(`(?i)<img[^>]+src\s*=\s*["']?([^"'\s>]+)["']?`)
	cssURLRefs = regexp.MustCompile(`(?i)url\(\s*["']?([^"')]+)["']?\s*\)`)
	soundRefs  = regexp.MustCompile(`\[sound:([^\]]+)\]`)
)

// TransformModel converts one raw model into a normalized model record:
// it fingerprints the structural definition, sanitizes the stylesheet and
// every template, and collects media filename references. The second
// return value counts how many texts the sanitizer had to modify. The
// input is never mutated.
func TransformModel(raw apkg.RawModel) (entities.NormalizedModel, int) {
	hash := contentHash(raw)

	fields := make([]string, 0, len(raw.Fields))
	for _, field := range raw.Fields {
		fields = append(fields, field.Name)
	}

	securityIssues := 0
	clean := func(text string) string {
		cleaned := sanitize.Clean(text)
		if cleaned != text {
			securityIssues++
		}
		return cleaned
	}

	templates := make([]entities.CardTemplate, 0, len(raw.Templates))
	for _, tmpl := range raw.Templates {
		templates = append(templates, entities.CardTemplate{
			Name:     tmpl.Name,
			Ordinal:  tmpl.Ordinal,
			Question: clean(tmpl.Question),
			Answer:   clean(tmpl.Answer),
		})
	}

	stylesheet := clean(raw.Stylesheet)

	scanTargets := make([]string, 0, len(templates)*2+1)
	for _, tmpl := range templates {
		scanTargets = append(scanTargets, tmpl.Question, tmpl.Answer)
	}
	scanTargets = append(scanTargets, stylesheet)

	return entities.NormalizedModel{
		ID:          raw.ID,
		Name:        raw.Name,
		ContentHash: hash,
		Fields:      fields,
		Templates:   templates,
		Stylesheet:  stylesheet,
		MediaRefs:   scanMediaRefs(scanTargets),
		Sanitized:   true,
	}, securityIssues
}

// contentHash computes a deterministic fingerprint over a canonical
// serialization of the model's templates, field definitions, and
// stylesheet. Determinism is the only contract; the hash feeds downstream
// duplicate detection, not security decisions.
func contentHash(raw apkg.RawModel) string {
	h := fnv.New64a()
	for _, field := range raw.Fields {
		h.Write([]byte(field.Name))
		h.Write([]byte{0x1f})
		h.Write([]byte(strconv.Itoa(field.Ordinal)))
		h.Write([]byte{0x1e})
	}
	for _, tmpl := range raw.Templates {
		h.Write([]byte(tmpl.Name))
		h.Write([]byte{0x1f})
		h.Write([]byte(tmpl.Question))
		h.Write([]byte{0x1f})
		h.Write([]byte(tmpl.Answer))
		h.Write([]byte{0x1e})
	}
	h.Write([]byte(raw.Stylesheet))
	return fmt.Sprintf("%016x", h.Sum64())
}

// scanMediaRefs extracts media filename references (image sources, CSS
// url() targets, and sound tags) from the given texts as a de-duplicated,
// sorted set. Remote references are left out; only bare filenames matter
// for matching archive payloads.
func scanMediaRefs(texts []string) []string {
	seen := make(map[string]bool)
	for _, text := range texts {
		for _, pattern := range []*regexp.Regexp{imageRefs, cssURLRefs, soundRefs} {
			for _, match := range pattern.FindAllStringSubmatch(text, -1) {
				ref := strings.TrimSpace(match[1])
				if ref == "" || strings.Contains(ref, "://") {
					continue
				}
				seen[ref] = true
			}
		}
	}

	if len(seen) == 0 {
		return nil
	}
	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
