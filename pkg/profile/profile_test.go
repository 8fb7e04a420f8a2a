package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdunecki/internnav/pkg/api"
)

func TestSkills(t *testing.T) {
	assert.Equal(t, []string{"Python", "SQL"}, Skills(" Python ,, SQL ,"))
	assert.Empty(t, Skills(""))
}

func TestAddSkill(t *testing.T) {
	got, changed := AddSkill("Python, SQL", "Excel")
	assert.True(t, changed)
	assert.Equal(t, "Python, SQL, Excel", got)

	got, changed = AddSkill("Python, SQL", "python")
	assert.False(t, changed)
	assert.Equal(t, "Python, SQL", got)

	_, changed = AddSkill("Python", "  ")
	assert.False(t, changed)

	got, _ = AddSkill("", "Go")
	assert.Equal(t, "Go", got)
}

func TestRemoveSkill(t *testing.T) {
	got, removed := RemoveSkill("Python, SQL, Excel", "SQL")
	assert.True(t, removed)
	assert.Equal(t, "Python, Excel", got)

	_, removed = RemoveSkill("Python", "python")
	assert.False(t, removed)
}

func TestPreferenceTags(t *testing.T) {
	assert.Equal(t, []string{"Work from Home", "Hybrid"}, PreferenceTags("Work-from-Home, Hybrid,"))
}

func TestApplyResume(t *testing.T) {
	u := ApplyResume("a@b.c", &api.ResumeAnalysis{Name: "Asha", Skills: []string{"Go", "SQL"}})
	require.NotNil(t, u.Name)
	require.NotNil(t, u.Skills)
	assert.Equal(t, "Asha", *u.Name)
	assert.Equal(t, "Go, SQL", *u.Skills)
	assert.False(t, u.Empty())

	u = ApplyResume("a@b.c", &api.ResumeAnalysis{})
	assert.Nil(t, u.Name)
	assert.Equal(t, "", *u.Skills)
}
