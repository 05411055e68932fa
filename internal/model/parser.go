package model

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrEmptyResume is returned when there is no text to parse.
var ErrEmptyResume = errors.New("invalid input: resume text is required")

// requiredSections must be present for a resume to be usable.
var requiredSections = []string{"CONTACT", "EXPERIENCE", "EDUCATION", "SKILLS"}

var sectionHeader = regexp.MustCompile(`^===\s*(.*?)\s*===$`)

// ParseResult is the outcome of ParseResume. Data is populated even when
// Errors is non-empty so callers can show what was recognized.
type ParseResult struct {
	Data    Resume   `json:"data"`
	Summary string   `json:"summary"`
	Errors  []string `json:"errors,omitempty"`
}

// OK reports whether all required sections were found.
func (p *ParseResult) OK() bool {
	return len(p.Errors) == 0
}

// Err folds the parse errors into a single error, or nil.
func (p *ParseResult) Err() error {
	if p.OK() {
		return nil
	}
	return fmt.Errorf("resume parse failed: %s", strings.Join(p.Errors, ", "))
}

// ParseResume parses sectioned resume text (`=== SECTION ===` headers).
func ParseResume(text string) (*ParseResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResume
	}

	var sections []Section
	index := map[string]int{}
	current := -1
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := sectionHeader.FindStringSubmatch(line); m != nil {
			name := strings.ToUpper(strings.TrimSpace(m[1]))
			i, ok := index[name]
			if !ok {
				sections = append(sections, Section{Name: name, Lines: []string{}})
				i = len(sections) - 1
				index[name] = i
			}
			current = i
			continue
		}
		if current >= 0 {
			sections[current].Lines = append(sections[current].Lines, line)
		}
	}

	lines := func(name string) []string {
		if i, ok := index[name]; ok {
			return sections[i].Lines
		}
		return nil
	}

	res := &ParseResult{
		Data: Resume{
			Contact:        parseContact(lines("CONTACT")),
			Experience:     parseExperience(lines("EXPERIENCE")),
			Education:      parseEducation(lines("EDUCATION")),
			Skills:         parseSkills(lines("SKILLS")),
			Certifications: parseCertifications(lines("CERTIFICATIONS")),
			Patents:        dashItems(lines("PATENTS")),
			Publications:   dashItems(lines("PUBLICATIONS")),
			TitlesHeld:     strings.TrimSpace(strings.Join(lines("TITLES I HAVE HELD"), ", ")),
			Sections:       sections,
		},
	}

	for _, name := range requiredSections {
		if _, ok := index[name]; !ok {
			res.Errors = append(res.Errors, "Missing "+name+" section")
		}
	}

	names := make([]string, 0, len(sections))
	for _, s := range sections {
		names = append(names, s.Name)
	}
	res.Summary = "Found: " + strings.Join(names, ", ")
	return res, nil
}

// splitKV splits "Key: value: with colons" into a lowercased key and the rest.
func splitKV(s string) (string, string, bool) {
	key, value, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

// pipeFields parses "Key: v | Key2: v2" into a map.
func pipeFields(line string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(line, "|") {
		if k, v, ok := splitKV(part); ok {
			out[k] = v
		}
	}
	return out
}

func parseContact(lines []string) Contact {
	fields := map[string]string{}
	for _, line := range lines {
		if k, v, ok := splitKV(line); ok {
			fields[k] = v
		}
	}
	c := Contact{
		Name:     fields["name"],
		Email:    fields["email"],
		Phone:    fields["phone"],
		LinkedIn: fields["linkedin"],
		GitHub:   fields["github"],
	}
	for _, kind := range []string{"linkedin", "github", "website", "portfolio"} {
		if v := fields[kind]; v != "" {
			c.Links = append(c.Links, profileLink(kind, v))
		}
	}
	return c
}

// profileLink normalizes a bare profile reference into an absolute URL and a
// short host label for display.
func profileLink(kind, raw string) Link {
	candidate := raw
	if !strings.HasPrefix(candidate, "http://") && !strings.HasPrefix(candidate, "https://") {
		candidate = "https://" + candidate
	}
	link := Link{Kind: kind, URL: candidate, Label: raw}
	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Hostname() == "" {
		return link
	}
	host := parsed.Hostname()
	if etld, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		link.Label = strings.TrimPrefix(etld, "www.")
	} else {
		link.Label = strings.TrimPrefix(host, "www.")
	}
	return link
}

func parseExperience(lines []string) []Experience {
	var jobs []Experience
	var cur *Experience
	for _, line := range lines {
		switch {
		case strings.HasPrefix(strings.ToLower(line), "company:"):
			if cur != nil {
				jobs = append(jobs, *cur)
			}
			f := pipeFields(line)
			cur = &Experience{
				Company:  f["company"],
				Title:    f["title"],
				Location: f["location"],
				Start:    f["start"],
				End:      f["end"],
				Bullets:  []string{},
			}
			for k, v := range f {
				switch k {
				case "company", "title", "location", "start", "end":
				default:
					if cur.Extra == nil {
						cur.Extra = map[string]string{}
					}
					cur.Extra[k] = v
				}
			}
		case strings.HasPrefix(line, "-") && cur != nil:
			cur.Bullets = append(cur.Bullets, strings.TrimSpace(line[1:]))
		}
	}
	if cur != nil {
		jobs = append(jobs, *cur)
	}
	return jobs
}

func parseEducation(lines []string) []Education {
	var out []Education
	var cur map[string]string
	flush := func() {
		if cur == nil {
			return
		}
		e := Education{
			Institution: cur["institution"],
			Degree:      cur["degree"],
			Field:       cur["field"],
			CGPA:        cur["cgpa"],
			Start:       cur["start"],
			End:         cur["end"],
			Thesis:      cur["thesis"],
			Coursework:  cur["coursework"],
		}
		for k, v := range cur {
			switch k {
			case "institution", "degree", "field", "cgpa", "start", "end", "thesis", "coursework":
			default:
				if e.Extra == nil {
					e.Extra = map[string]string{}
				}
				e.Extra[k] = v
			}
		}
		out = append(out, e)
	}
	for _, line := range lines {
		if strings.HasPrefix(strings.ToLower(line), "institution:") {
			flush()
			cur = pipeFields(line)
			continue
		}
		if cur == nil {
			continue
		}
		if k, v, ok := splitKV(line); ok {
			cur[k] = v
		}
	}
	flush()
	return out
}

func parseSkills(lines []string) []SkillCategory {
	var out []SkillCategory
	for _, line := range lines {
		name, rest, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		cat := SkillCategory{Name: name, Skills: []string{}}
		for _, s := range strings.Split(rest, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cat.Skills = append(cat.Skills, s)
			}
		}
		out = append(out, cat)
	}
	return out
}

func parseCertifications(lines []string) []Certification {
	var out []Certification
	for _, item := range dashItems(lines) {
		parts := strings.Split(item, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		c := Certification{Name: parts[0]}
		if len(parts) > 1 {
			c.Issuer = parts[1]
		}
		if len(parts) > 2 {
			c.Tags = parts[2]
		}
		out = append(out, c)
	}
	return out
}

func dashItems(lines []string) []string {
	var out []string
	for _, line := range lines {
		if strings.HasPrefix(line, "-") {
			out = append(out, strings.TrimSpace(line[1:]))
		}
	}
	return out
}
