package usecase

import (
	"regexp"
	"strings"

	"github.com/hirewise/resume-matcher/internal/domain"
	"github.com/hirewise/resume-matcher/pkg/textx"
)

// maxChunkChars caps how much text a single embedding chunk may carry.
const maxChunkChars = 1000

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// Chunk is a section-labelled slice of resume text ready for embedding.
type Chunk struct {
	Content string
	Section domain.SectionType
}

var sectionKeywords = []struct {
	section  domain.SectionType
	keywords []string
}{
	{domain.SectionEducation, []string{"education", "degree", "university", "college"}},
	{domain.SectionExperience, []string{"experience", "worked", "position", "company"}},
	{domain.SectionSkills, []string{"skill", "proficient", "expertise"}},
	{domain.SectionProjects, []string{"project"}},
	{domain.SectionCertifications, []string{"certification", "certified"}},
}

// ChunkResumeText splits text into paragraphs, labels each by a keyword
// heuristic, and breaks oversize paragraphs at sentence boundaries so no
// chunk exceeds maxChunkChars.
func ChunkResumeText(text string) []Chunk {
	var out []Chunk
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		section := classifySection(para)
		for _, piece := range splitOversize(para) {
			out = append(out, Chunk{Content: piece, Section: section})
		}
	}
	return out
}

func classifySection(para string) domain.SectionType {
	lower := strings.ToLower(para)
	for _, sk := range sectionKeywords {
		for _, kw := range sk.keywords {
			if strings.Contains(lower, kw) {
				return sk.section
			}
		}
	}
	return domain.SectionGeneral
}

// splitOversize returns the paragraph whole when it fits, otherwise
// splits at ". " boundaries accumulating sentences until the next one
// would exceed the cap. A single sentence longer than the cap is
// hard-split at the cap on rune boundaries.
func splitOversize(para string) []string {
	if len(para) <= maxChunkChars {
		return []string{para}
	}
	sentences := strings.SplitAfter(para, ". ")
	var out []string
	var cur strings.Builder
	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			out = append(out, hardSplit(t)...)
		}
		cur.Reset()
	}
	for _, s := range sentences {
		if cur.Len() > 0 && cur.Len()+len(s) > maxChunkChars {
			flush()
		}
		cur.WriteString(s)
	}
	flush()
	return out
}

func hardSplit(s string) []string {
	var out []string
	for len(s) > maxChunkChars {
		cut := textx.Truncate(s, maxChunkChars)
		if cut == "" {
			cut = s[:maxChunkChars]
		}
		out = append(out, cut)
		s = s[len(cut):]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
