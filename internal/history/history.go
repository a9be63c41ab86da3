// Package history filters and groups the execution log of autonomous tasks.
//
// The engine is stateless: every call recomputes its result from the input
// slice and never mutates it. Inputs are expected to be sorted already (see
// SortNewestFirst); filtering preserves that order.
package history

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fentz26/autopilot/internal/models"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// UnknownTask is the group key for messages with no task association.
const UnknownTask = "unknown"

// TypeFilter selects messages by author type.
type TypeFilter string

const (
	TypeAll     TypeFilter = "all"
	TypeTrigger TypeFilter = TypeFilter(models.AuthorTrigger)
	TypeAgent   TypeFilter = TypeFilter(models.AuthorAgent)
	TypeSkill   TypeFilter = TypeFilter(models.AuthorSkill)
	TypeSystem  TypeFilter = TypeFilter(models.AuthorSystem)
)

// TypeFilters lists the selectable filters in display order.
var TypeFilters = []TypeFilter{TypeAll, TypeTrigger, TypeAgent, TypeSkill, TypeSystem}

// ParseTypeFilter validates a user-supplied filter name. Empty means all.
func ParseTypeFilter(s string) (TypeFilter, error) {
	if s == "" {
		return TypeAll, nil
	}
	for _, f := range TypeFilters {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown message type %q (want one of all, trigger, agent, skill, system)", s)
}

// Entry is an execution message tagged with the task it belongs to.
type Entry struct {
	Message  models.ExecutionMessage
	TaskID   string
	TaskName string
}

// GroupKey returns the task id, or UnknownTask when untagged.
func (e Entry) GroupKey() string {
	if e.TaskID == "" {
		return UnknownTask
	}
	return e.TaskID
}

// Criteria are the filters applied by Apply.
type Criteria struct {
	// Search is matched case-insensitively against the message text and
	// the task name. Empty matches everything.
	Search string
	// Type restricts author type. Empty behaves like TypeAll.
	Type TypeFilter
	// TaskID narrows the flat list to one task. It does not affect Groups.
	TaskID string
}

// Result is the output of Apply.
type Result struct {
	// Messages is the visible subset in input order.
	Messages []Entry
	// Groups maps task id to its text- and type-filtered messages, keyed in
	// first-appearance order.
	Groups *orderedmap.OrderedMap[string, []Entry]
}

// GroupCount is one row of per-task counts.
type GroupCount struct {
	TaskID   string
	TaskName string
	Count    int
}

// Apply runs the text filter, the type filter, the grouping, and finally the
// task selector.
func Apply(entries []Entry, c Criteria) Result {
	filtered := Filter(entries, c.Search, c.Type)

	visible := filtered
	if c.TaskID != "" {
		visible = make([]Entry, 0, len(filtered))
		for _, e := range filtered {
			if e.GroupKey() == c.TaskID {
				visible = append(visible, e)
			}
		}
	}

	return Result{
		Messages: visible,
		Groups:   Group(filtered),
	}
}

// Filter keeps entries that pass both the text and the type filter.
func Filter(entries []Entry, search string, typ TypeFilter) []Entry {
	needle := strings.ToLower(search)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if matchesText(e, needle) && matchesType(e, typ) {
			out = append(out, e)
		}
	}
	return out
}

func matchesText(e Entry, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message.Message), needle) ||
		strings.Contains(strings.ToLower(e.TaskName), needle)
}

func matchesType(e Entry, typ TypeFilter) bool {
	if typ == "" || typ == TypeAll {
		return true
	}
	return string(e.Message.AuthorType) == string(typ)
}

// Group buckets entries by task id, preserving order within each bucket.
func Group(entries []Entry) *orderedmap.OrderedMap[string, []Entry] {
	groups := orderedmap.New[string, []Entry]()
	for _, e := range entries {
		key := e.GroupKey()
		bucket, _ := groups.Get(key)
		groups.Set(key, append(bucket, e))
	}
	return groups
}

// Counts flattens Groups into display rows.
func (r Result) Counts() []GroupCount {
	if r.Groups == nil {
		return nil
	}
	counts := make([]GroupCount, 0, r.Groups.Len())
	for pair := r.Groups.Oldest(); pair != nil; pair = pair.Next() {
		gc := GroupCount{TaskID: pair.Key, Count: len(pair.Value)}
		if len(pair.Value) > 0 {
			gc.TaskName = pair.Value[0].TaskName
		}
		counts = append(counts, gc)
	}
	return counts
}

// Group returns the filtered messages of one task.
func (r Result) Group(taskID string) []Entry {
	if r.Groups == nil {
		return nil
	}
	bucket, _ := r.Groups.Get(taskID)
	return bucket
}

// SortNewestFirst returns a copy of entries ordered by descending
// created_at. Ties keep their input order.
func SortNewestFirst(entries []Entry) []Entry {
	out := append([]Entry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Message.CreatedAt.After(out[j].Message.CreatedAt)
	})
	return out
}
