// Package profile edits the comma separated fields of a stored profile.
package profile

import (
	"strings"

	"github.com/zdunecki/internnav/pkg/api"
)

const separator = ", "

func split(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Skills splits a stored skills string, dropping blanks.
func Skills(csv string) []string { return split(csv) }

func Join(skills []string) string { return strings.Join(skills, separator) }

// AddSkill appends skill unless it is blank or already present in any
// letter case. The second result reports whether the list changed.
func AddSkill(csv, skill string) (string, bool) {
	skill = strings.TrimSpace(skill)
	skills := Skills(csv)
	if skill == "" {
		return Join(skills), false
	}
	for _, s := range skills {
		if strings.EqualFold(s, skill) {
			return Join(skills), false
		}
	}
	return Join(append(skills, skill)), true
}

// RemoveSkill drops exact matches of skill.
func RemoveSkill(csv, skill string) (string, bool) {
	skill = strings.TrimSpace(skill)
	var kept []string
	removed := false
	for _, s := range Skills(csv) {
		if s == skill {
			removed = true
			continue
		}
		kept = append(kept, s)
	}
	return Join(kept), removed
}

// PreferenceTags renders the tags the backend derived from the quiz.
func PreferenceTags(csv string) []string {
	tags := split(csv)
	for i, t := range tags {
		tags[i] = strings.ReplaceAll(t, "-", " ")
	}
	return tags
}

// ApplyResume builds the update that replaces the profile's name and
// skills with what was extracted from a resume. A blank extracted name
// leaves the stored one alone.
func ApplyResume(email string, r *api.ResumeAnalysis) api.ProfileUpdate {
	update := api.ProfileUpdate{Email: email}
	if name := strings.TrimSpace(r.Name); name != "" {
		update.Name = &name
	}
	skills := r.SkillList()
	update.Skills = &skills
	return update
}
