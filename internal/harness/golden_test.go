package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookmarkSchema = `
entity: Folder: attributes: name: string
entity: Bookmark: attributes: {
	url:    string
	title?: string
}
`

func TestRunWithGolden_FirstLaunchSeed(t *testing.T) {
	scenario := &Scenario{
		Name:        "first_launch_seed",
		Description: "Seed runs on the first launch only; unsaved work is dropped at exit",
		Schema:      bookmarkSchema,
		Launches: []Launch{
			{
				Seed: []Step{
					{Op: ActionInsert, Entity: "Folder", Attributes: map[string]any{"name": "Inbox"}},
				},
				Steps: []Step{
					{Op: ActionInsert, Entity: "Bookmark", Attributes: map[string]any{"url": "https://a.example", "title": "A"}},
					{Op: ActionSave},
				},
			},
			{
				Seed: []Step{
					{Op: ActionInsert, Entity: "Folder", Attributes: map[string]any{"name": "Ignored"}},
				},
				Steps: []Step{
					{Op: ActionUpdate, Entity: "Bookmark", Where: map[string]any{"url": "https://a.example"}, Attributes: map[string]any{"title": "A2"}},
					{Op: ActionSave},
					{Op: ActionInsert, Entity: "Bookmark", Attributes: map[string]any{"url": "https://b.example"}},
				},
			},
		},
	}

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_CorruptStore(t *testing.T) {
	scenario := &Scenario{
		Name:        "corrupt_store",
		Description: "An unreadable store file is reported and exits with status 3",
		Schema:      bookmarkSchema,
		Launches: []Launch{
			{Corrupt: true, Expect: &LaunchExpect{State: StateFailed}},
		},
	}

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestMarshalSnapshot_Deterministic(t *testing.T) {
	scenario := &Scenario{
		Name:        "deterministic",
		Description: "Two runs produce identical snapshots",
		Schema:      bookmarkSchema,
		Launches: []Launch{{
			Steps: []Step{
				{Op: ActionInsert, Entity: "Folder", Attributes: map[string]any{"name": "b"}},
				{Op: ActionInsert, Entity: "Folder", Attributes: map[string]any{"name": "a"}},
				{Op: ActionSave},
			},
		}},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalSnapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.NotContains(t, string(a), `"id"`)
}
