package history

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fentz26/autopilot/internal/models"
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func entry(id, taskID, taskName string, author models.AuthorType, text string, age time.Duration) Entry {
	return Entry{
		Message: models.ExecutionMessage{
			ID:         id,
			CreatedAt:  base.Add(-age),
			AuthorType: author,
			Message:    text,
		},
		TaskID:   taskID,
		TaskName: taskName,
	}
}

func sample() []Entry {
	return []Entry{
		entry("m1", "task-a", "Daily Digest", models.AuthorTrigger, "Run started", 1*time.Minute),
		entry("m2", "task-b", "Price Watch", models.AuthorAgent, "ETH is at 3000", 2*time.Minute),
		entry("m3", "task-a", "Daily Digest", models.AuthorSkill, "twitter_post ok", 3*time.Minute),
		entry("m4", "", "", models.AuthorSystem, "Channel created", 4*time.Minute),
		entry("m5", "task-b", "Price Watch", models.AuthorTrigger, "run STARTED", 5*time.Minute),
		entry("m6", "task-a", "Daily Digest", models.AuthorAgent, "Here is your digest", 6*time.Minute),
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message.ID
	}
	return out
}

func TestApply_EmptyCriteriaKeepsEverything(t *testing.T) {
	in := sample()
	res := Apply(in, Criteria{})

	if !reflect.DeepEqual(ids(res.Messages), ids(in)) {
		t.Errorf("Expected all messages in order, got %v", ids(res.Messages))
	}
}

func TestApply_TextSearchIsCaseInsensitive(t *testing.T) {
	res := Apply(sample(), Criteria{Search: "started", Type: TypeAll})

	want := []string{"m1", "m5"}
	if got := ids(res.Messages); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestApply_TextSearchMatchesTaskName(t *testing.T) {
	res := Apply(sample(), Criteria{Search: "price"})

	want := []string{"m2", "m5"}
	if got := ids(res.Messages); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestApply_TypeFilter(t *testing.T) {
	res := Apply(sample(), Criteria{Type: TypeTrigger})

	want := []string{"m1", "m5"}
	if got := ids(res.Messages); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestApply_TextAndTypeAreANDed(t *testing.T) {
	res := Apply(sample(), Criteria{Search: "digest", Type: TypeAgent})

	want := []string{"m6"}
	if got := ids(res.Messages); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestApply_EveryResultContainsSearch(t *testing.T) {
	for _, search := range []string{"a", "RUN", "digest", "zzz", "eth"} {
		res := Apply(sample(), Criteria{Search: search, Type: TypeAll})
		needle := strings.ToLower(search)
		for _, e := range res.Messages {
			if !strings.Contains(strings.ToLower(e.Message.Message), needle) &&
				!strings.Contains(strings.ToLower(e.TaskName), needle) {
				t.Errorf("search %q: %s does not contain the needle", search, e.Message.ID)
			}
		}
	}
}

func TestApply_Idempotent(t *testing.T) {
	for _, search := range []string{"", "run", "Price", "ok"} {
		once := Apply(sample(), Criteria{Search: search})
		twice := Apply(once.Messages, Criteria{Search: search})
		if !reflect.DeepEqual(ids(once.Messages), ids(twice.Messages)) {
			t.Errorf("search %q: not idempotent: %v vs %v", search, ids(once.Messages), ids(twice.Messages))
		}
	}
}

func TestApply_GroupingFirstAppearanceOrder(t *testing.T) {
	res := Apply(sample(), Criteria{})

	var keys []string
	for pair := res.Groups.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	want := []string{"task-a", "task-b", UnknownTask}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Expected group order %v, got %v", want, keys)
	}

	if got := ids(res.Group("task-a")); !reflect.DeepEqual(got, []string{"m1", "m3", "m6"}) {
		t.Errorf("Unexpected task-a group: %v", got)
	}
	if got := ids(res.Group(UnknownTask)); !reflect.DeepEqual(got, []string{"m4"}) {
		t.Errorf("Unexpected unknown group: %v", got)
	}
}

func TestApply_GroupEqualsFilteredSubset(t *testing.T) {
	criteria := []Criteria{
		{},
		{Search: "run"},
		{Type: TypeAgent},
		{Search: "digest", Type: TypeSkill},
	}
	for _, c := range criteria {
		res := Apply(sample(), c)
		filtered := Filter(sample(), c.Search, c.Type)
		for _, taskID := range []string{"task-a", "task-b", UnknownTask} {
			var want []string
			for _, e := range filtered {
				if e.GroupKey() == taskID {
					want = append(want, e.Message.ID)
				}
			}
			got := ids(res.Group(taskID))
			if len(want) == 0 && len(got) == 0 {
				continue
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("criteria %+v task %s: expected %v, got %v", c, taskID, want, got)
			}
		}
	}
}

func TestApply_TaskSelectorNarrowsListOnly(t *testing.T) {
	res := Apply(sample(), Criteria{TaskID: "task-b"})

	if got := ids(res.Messages); !reflect.DeepEqual(got, []string{"m2", "m5"}) {
		t.Errorf("Unexpected visible messages: %v", got)
	}
	if res.Groups.Len() != 3 {
		t.Errorf("Expected groups for all tasks, got %d", res.Groups.Len())
	}

	counts := res.Counts()
	if counts[0].TaskID != "task-a" || counts[0].Count != 3 || counts[0].TaskName != "Daily Digest" {
		t.Errorf("Unexpected first count row: %+v", counts[0])
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := sample()
	before := ids(in)
	Apply(in, Criteria{Search: "run", Type: TypeTrigger, TaskID: "task-a"})
	if !reflect.DeepEqual(ids(in), before) {
		t.Errorf("Input mutated: %v", ids(in))
	}
}

func TestApply_EmptyInput(t *testing.T) {
	res := Apply(nil, Criteria{Search: "x"})
	if len(res.Messages) != 0 || res.Groups.Len() != 0 {
		t.Errorf("Expected empty result, got %d messages, %d groups", len(res.Messages), res.Groups.Len())
	}
}

func TestSortNewestFirst(t *testing.T) {
	in := []Entry{
		entry("old", "t", "", models.AuthorAgent, "", 10*time.Minute),
		entry("new", "t", "", models.AuthorAgent, "", 0),
		entry("mid-1", "t", "", models.AuthorAgent, "", 5*time.Minute),
		entry("mid-2", "t", "", models.AuthorAgent, "", 5*time.Minute),
	}
	got := ids(SortNewestFirst(in))
	want := []string{"new", "mid-1", "mid-2", "old"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if in[0].Message.ID != "old" {
		t.Error("SortNewestFirst mutated its input")
	}
}

func TestParseTypeFilter(t *testing.T) {
	if f, err := ParseTypeFilter(""); err != nil || f != TypeAll {
		t.Errorf("Expected all for empty, got %q, %v", f, err)
	}
	if f, err := ParseTypeFilter("Skill"); err != nil || f != TypeSkill {
		t.Errorf("Expected skill, got %q, %v", f, err)
	}
	if _, err := ParseTypeFilter("other"); err == nil {
		t.Error("Expected error for unselectable type")
	}
}
