package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleKeepsSelectionOrderAndBound(t *testing.T) {
	s := NewAnswerStore()

	assert.True(t, s.Toggle("langs", "Hindi", 2))
	assert.True(t, s.Toggle("langs", "English", 2))
	assert.False(t, s.Toggle("langs", "Marathi", 2), "third selection is ignored")

	a, ok := s.Get("langs")
	require.True(t, ok)
	assert.Equal(t, []string{"Hindi", "English"}, a.Set)

	assert.True(t, s.Toggle("langs", "Hindi", 2))
	a, _ = s.Get("langs")
	assert.Equal(t, []string{"English"}, a.Set)

	assert.True(t, s.Toggle("langs", "English", 2))
	assert.False(t, s.Answered("langs"))
}

func TestAnswerEmpty(t *testing.T) {
	assert.True(t, Answer{}.Empty())
	assert.True(t, Answer{Text: "   "}.Empty())
	assert.False(t, Answer{Text: "x"}.Empty())
	assert.False(t, Answer{Set: []string{"x"}}.Empty())
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewAnswerStore()
	s.Toggle("m", "a", 2)
	s.SetDetails("q", "more")

	c := s.Clone()
	s.Toggle("m", "b", 2)
	s.SetDetails("q", "changed")

	a, _ := c.Get("m")
	assert.Equal(t, []string{"a"}, a.Set)
	d, _ := c.Details("q")
	assert.Equal(t, "more", d)
}

func TestFlatten(t *testing.T) {
	c, err := NewCatalog("flat", []StepDefinition{
		{ID: "level", Kind: KindSingleSpecify, Options: []Option{{Label: "School"}, {Label: "Other", Specify: true}}},
		{ID: "langs", Kind: KindMultiSelect, MaxSelections: 2, Options: []Option{{Label: "Hindi"}, {Label: "English"}}},
		{ID: "edu", Kind: KindGroup, Fields: []StepDefinition{single("education", "BA"), single("field", "Arts")}},
		{ID: "file", Kind: KindUpload, Local: true, Optional: true},
		{ID: "skills", Kind: KindText},
		{ID: "unanswered", Kind: KindText},
	})
	require.NoError(t, err)

	s := NewAnswerStore()
	s.Set("level", "Other")
	s.SetDetails("level", "Polytechnic")
	s.Toggle("langs", "English", 2)
	s.Toggle("langs", "Hindi", 2)
	s.Set("education", "BA")
	s.Set("field", "Arts")
	s.Set("file", "/tmp/cv.pdf")
	s.Set("skills", "Go, SQL")

	assert.Equal(t, map[string]any{
		"level":         "Other",
		"level_details": "Polytechnic",
		"langs":         []string{"English", "Hindi"},
		"education":     "BA",
		"field":         "Arts",
		"skills":        "Go, SQL",
	}, s.Flatten(c))
}

func TestFlattenKeepsDetailsWithoutMainAnswer(t *testing.T) {
	c, err := NewCatalog("flat", []StepDefinition{
		{ID: "level", Kind: KindSingleSpecify, Options: []Option{{Label: "Other", Specify: true}}},
	})
	require.NoError(t, err)

	s := NewAnswerStore()
	s.SetDetails("level", "typed first")
	assert.Equal(t, map[string]any{"level_details": "typed first"}, s.Flatten(c))
}
