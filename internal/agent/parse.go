package agent

import (
	"regexp"
	"strings"

	"github.com/memory-service/memoryd/pkg/types"
)

var (
	observationTagRe = regexp.MustCompile(`(?s)<observation>(.*?)</observation>`)
	summaryTagRe     = regexp.MustCompile(`(?s)<summary>(.*?)</summary>`)
)

// parseObservations extracts every <observation> element from an extractor
// reply. A reply with no well-formed elements yields an empty slice rather
// than an error: a turn that produced nothing worth recording is not a
// failure, per spec.md §4.C.
func parseObservations(reply string) []*types.Observation {
	var out []*types.Observation
	for _, m := range observationTagRe.FindAllStringSubmatch(reply, -1) {
		body := m[1]
		o := &types.Observation{
			Type:      types.ObservationType(extractTag(body, "type")),
			Title:     truncateTitle(extractTag(body, "title")),
			Subtitle:  extractTag(body, "subtitle"),
			Narrative: extractTag(body, "narrative"),
			Facts:     extractList(body, "fact"),
			Concepts:  extractList(body, "concept"),
		}
		if fr := extractList(body, "file_read"); len(fr) > 0 {
			o.FilesRead = fr
		}
		if fm := extractList(body, "file_modified"); len(fm) > 0 {
			o.FilesModified = fm
		}
		if o.Type == "" {
			o.Type = types.ObsChange
		}
		if o.Title == "" {
			continue
		}
		out = append(out, o)
	}
	return out
}

// parseSummary extracts the single <summary> element from a session-stop
// reply. It returns nil when the reply carries none, which the caller
// treats as "nothing to roll up" rather than an error.
func parseSummary(reply string) *types.SessionSummary {
	m := summaryTagRe.FindStringSubmatch(reply)
	if m == nil {
		return nil
	}
	body := m[1]
	s := &types.SessionSummary{
		Request:      extractTag(body, "request"),
		Investigated: extractTag(body, "investigated"),
		Learned:      extractTag(body, "learned"),
		Completed:    extractTag(body, "completed"),
		NextSteps:    extractTag(body, "next_steps"),
		Notes:        extractTag(body, "notes"),
	}
	if s.Request == "" && s.Investigated == "" && s.Learned == "" && s.Completed == "" {
		return nil
	}
	return s
}

func extractTag(body, tag string) string {
	re := regexp.MustCompile(`(?s)<` + tag + `>(.*?)</` + tag + `>`)
	m := re.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// extractList returns the trimmed contents of every occurrence of tag
// within body, in document order.
func extractList(body, tag string) []string {
	re := regexp.MustCompile(`(?s)<` + tag + `>(.*?)</` + tag + `>`)
	matches := re.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		v := strings.TrimSpace(m[1])
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

const maxTitleLen = 80

// truncateTitle bounds a title to a single display line of at most
// maxTitleLen bytes; the store layer does not check title length, so this is
// the only bound, and it keeps malformed-looking titles out of the dedup key
// computed from them.
func truncateTitle(title string) string {
	title = strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	if len(title) <= maxTitleLen {
		return title
	}
	return title[:maxTitleLen]
}
