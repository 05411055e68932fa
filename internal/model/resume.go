package model

// Structured resume data produced by ParseResume and consumed by the prompt builder.

type Link struct {
	Kind  string `json:"kind"`
	URL   string `json:"url"`
	Label string `json:"label"`
}

type Contact struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	LinkedIn string `json:"linkedin"`
	GitHub   string `json:"github"`
	Links    []Link `json:"links,omitempty"`
}

type Experience struct {
	Company  string            `json:"company"`
	Title    string            `json:"title"`
	Location string            `json:"location,omitempty"`
	Start    string            `json:"start,omitempty"`
	End      string            `json:"end,omitempty"`
	Bullets  []string          `json:"bullets"`
	Extra    map[string]string `json:"extra,omitempty"`
}

type Education struct {
	Institution string            `json:"institution"`
	Degree      string            `json:"degree,omitempty"`
	Field       string            `json:"field,omitempty"`
	CGPA        string            `json:"cgpa,omitempty"`
	Start       string            `json:"start,omitempty"`
	End         string            `json:"end,omitempty"`
	Thesis      string            `json:"thesis,omitempty"`
	Coursework  string            `json:"coursework,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

type SkillCategory struct {
	Name   string   `json:"name"`
	Skills []string `json:"skills"`
}

type Certification struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer,omitempty"`
	Tags   string `json:"tags,omitempty"`
}

// Section keeps a raw `=== NAME ===` block in the order it appeared.
type Section struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

type Resume struct {
	Contact        Contact         `json:"contact"`
	Experience     []Experience    `json:"experience"`
	Education      []Education     `json:"education"`
	Skills         []SkillCategory `json:"skills"`
	Certifications []Certification `json:"certifications,omitempty"`
	Patents        []string        `json:"patents,omitempty"`
	Publications   []string        `json:"publications,omitempty"`
	TitlesHeld     string          `json:"titles_held,omitempty"`
	Sections       []Section       `json:"sections"`
}

// Empty reports whether r carries nothing usable for prompt building.
func (r *Resume) Empty() bool {
	return r == nil || len(r.Sections) == 0
}

// Section returns the raw lines of the named section.
func (r *Resume) Section(name string) ([]string, bool) {
	if r == nil {
		return nil, false
	}
	for _, s := range r.Sections {
		if s.Name == name {
			return s.Lines, true
		}
	}
	return nil, false
}
