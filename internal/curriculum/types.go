package curriculum

// Topic is a unit of curriculum content. Topics are values; the graph hands out
// copies so callers cannot mutate the loaded catalog.
type Topic struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Skills        []string `yaml:"skills" json:"skills"`
	Prerequisites []string `yaml:"prerequisites" json:"prerequisites"`
	Difficulty    float64  `yaml:"difficulty" json:"difficulty"`

	// Location in the authored tree, filled in at load time.
	Stage  string `yaml:"-" json:"stage"`
	Grade  string `yaml:"-" json:"grade"`
	Period string `yaml:"-" json:"period"`
}

// HasSkill reports whether skill is one of the topic's required skills.
func (t Topic) HasSkill(skill string) bool {
	for _, s := range t.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

func (t Topic) clone() Topic {
	t.Skills = append([]string(nil), t.Skills...)
	t.Prerequisites = append([]string(nil), t.Prerequisites...)
	return t
}

// Document is one curriculum YAML file: stage -> grade -> period -> topics.
type Document struct {
	Stages []Stage `yaml:"stages"`
}

// Stage is a schooling stage (e.g. primary, secondary).
type Stage struct {
	Name   string  `yaml:"name"`
	Grades []Grade `yaml:"grades"`
}

// Grade is a year within a stage (e.g. Form 1).
type Grade struct {
	Name    string   `yaml:"name"`
	Periods []Period `yaml:"periods"`
}

// Period is a semester or module within a grade.
type Period struct {
	Name   string  `yaml:"name"`
	Topics []Topic `yaml:"topics"`
}
