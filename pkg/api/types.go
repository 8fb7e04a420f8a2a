package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token           string `json:"token"`
	Name            string `json:"name"`
	ProfileComplete bool   `json:"profile_complete"`
	QuizTaken       bool   `json:"quiz_taken"`
}

// PostingID accepts both numeric and string ids from the backend.
type PostingID string

func (id *PostingID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PostingID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = PostingID(n.String())
	return nil
}

// Internship is one posting as listed by the backend.
type Internship struct {
	ID                PostingID `json:"id"`
	Title             string    `json:"title"`
	Company           string    `json:"company"`
	MatchScore        float64   `json:"matchScore"`
	Stipend           string    `json:"stipend"`
	Location          string    `json:"location"`
	Logo              string    `json:"logo"`
	YourSkills        []string  `json:"yourSkills"`
	MissingSkills     []string  `json:"missingSkills"`
	Description       string    `json:"description"`
	Responsibilities  []string  `json:"responsibilities"`
	Qualifications    []string  `json:"qualifications"`
	ApplicationStatus string    `json:"applicationStatus,omitempty"`
}

// Profile is the stored user profile. PreferenceTags is computed by the
// backend and ignored on update.
type Profile struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	HighestQualification string `json:"highest_qualification"`
	FieldOfStudy         string `json:"field_of_study"`
	Skills               string `json:"skills"`
	PreferenceTags       string `json:"preference_tags,omitempty"`
}

// ProfileUpdate carries only the fields being changed; Email identifies
// the user.
type ProfileUpdate struct {
	Email                string  `json:"email"`
	Name                 *string `json:"name,omitempty"`
	HighestQualification *string `json:"highest_qualification,omitempty"`
	FieldOfStudy         *string `json:"field_of_study,omitempty"`
	Skills               *string `json:"skills,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.HighestQualification == nil && u.FieldOfStudy == nil && u.Skills == nil
}

type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Education struct {
	University string `json:"university"`
	Degree     string `json:"degree"`
	Major      string `json:"major"`
}

// ResumeAnalysis is what the backend extracted from an uploaded resume.
type ResumeAnalysis struct {
	Name      string      `json:"name"`
	Contact   Contact     `json:"contact"`
	Education []Education `json:"education"`
	Skills    []string    `json:"skills"`
}

func (r *ResumeAnalysis) UnmarshalJSON(data []byte) error {
	type plain ResumeAnalysis
	var aux struct {
		plain
		ExtractedSkills []string `json:"extracted_skills"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = ResumeAnalysis(aux.plain)
	if len(r.Skills) == 0 && len(aux.ExtractedSkills) > 0 {
		r.Skills = aux.ExtractedSkills
	}
	return nil
}

// SkillList joins the extracted skills the way the profile stores them.
func (r ResumeAnalysis) SkillList() string {
	return strings.Join(r.Skills, ", ")
}
