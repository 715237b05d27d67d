package parser

import (
	"fmt"
	"regexp"
	"strings"

	"reqflow/internal/state"
)

// UserStoriesKey is the top-level key holding the story list.
const UserStoriesKey = "user_stories"

var (
	storyLabel    = regexp.MustCompile(`(?i)user story[ \t]*\*{0,2}[ \t]*:`)
	storyText     = regexp.MustCompile(`(?is)user story[ \t]*\*{0,2}[ \t]*:\s*\*{0,2}\s*(.*?)\s*(?:\*{0,2}\s*acceptance criteria|\z)`)
	criteriaBlock = regexp.MustCompile(`(?is)acceptance criteria[ \t]*:?[ \t]*(?:\*\*)?[ \t]*:?(.*)`)
	criteriaLine  = regexp.MustCompile(`(?m)^[ \t]*(?:\d+[.)]|[*-])[ \t]+(.+?)[ \t]*$`)
)

// UserStories parses a story response.
//
// A JSON object is read through its "user_stories" key; an object without
// that key but with a "user_story" field is taken as a single story. A single
// object under the key is wrapped into a one-element list. Every record must
// have a non-empty "user_story" string; "acceptance_criteria" may be missing
// or null, otherwise it must be a list of strings. One invalid record fails
// the whole response.
//
// Text that is not JSON but carries a "User Story:" label is read as one
// prose story. Malformed JSON is never read as prose.
func UserStories(raw any) Result[[]state.UserStory] {
	p := Classify(raw)

	switch p.Shape {
	case ShapeStructured:
		return storiesFromList(p.List)
	case ShapeSingleObject:
		return storiesFromObject(p.Object)
	case ShapeProse:
		return storiesFromProse(p.Text)
	default:
		return failed[[]state.UserStory](nil, p.Reason)
	}
}

func storiesFromObject(obj map[string]any) Result[[]state.UserStory] {
	v, found := obj[UserStoriesKey]
	if !found {
		if _, isStory := obj["user_story"]; isStory {
			return storiesFromList([]any{obj})
		}
		return empty[[]state.UserStory](nil, "response has no "+UserStoriesKey+" key")
	}

	switch list := v.(type) {
	case nil:
		return empty[[]state.UserStory](nil, UserStoriesKey+" is null")
	case []any:
		return storiesFromList(list)
	case map[string]any:
		return storiesFromList([]any{list})
	default:
		return failed[[]state.UserStory](nil, fmt.Sprintf("%s is %T, want list", UserStoriesKey, v))
	}
}

func storiesFromList(list []any) Result[[]state.UserStory] {
	if len(list) == 0 {
		return empty[[]state.UserStory](nil, "no user stories")
	}

	stories := make([]state.UserStory, 0, len(list))
	for i, item := range list {
		story, err := storyRecord(item)
		if err != nil {
			return failed[[]state.UserStory](nil, fmt.Sprintf("story %d: %v", i, err))
		}
		stories = append(stories, story)
	}
	return ok(stories)
}

func storyRecord(item any) (state.UserStory, error) {
	rec, isObj := item.(map[string]any)
	if !isObj {
		return state.UserStory{}, fmt.Errorf("record is %T, want object", item)
	}

	text, isStr := rec["user_story"].(string)
	if !isStr {
		return state.UserStory{}, fmt.Errorf("user_story missing or not a string")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return state.UserStory{}, fmt.Errorf("user_story is empty")
	}

	criteria := []string{}
	switch ac := rec["acceptance_criteria"].(type) {
	case nil:
	case []any:
		for j, c := range ac {
			s, isStr := c.(string)
			if !isStr {
				return state.UserStory{}, fmt.Errorf("acceptance_criteria[%d] is %T, want string", j, c)
			}
			criteria = append(criteria, s)
		}
	default:
		return state.UserStory{}, fmt.Errorf("acceptance_criteria is %T, want list", ac)
	}

	return state.UserStory{Text: text, AcceptanceCriteria: criteria}, nil
}

func storiesFromProse(text string) Result[[]state.UserStory] {
	if looksLikeJSON(text) {
		return failed[[]state.UserStory](nil, "response is malformed JSON")
	}
	if !storyLabel.MatchString(text) {
		return failed[[]state.UserStory](nil, "response is neither JSON nor a labeled user story")
	}

	m := storyText.FindStringSubmatch(text)
	if m == nil {
		return failed[[]state.UserStory](nil, "user story label without text")
	}
	story := strings.Trim(m[1], "* \t\r\n")
	if story == "" {
		return failed[[]state.UserStory](nil, "user story label without text")
	}

	criteria := []string{}
	if block := criteriaBlock.FindStringSubmatch(text); block != nil {
		for _, line := range criteriaLine.FindAllStringSubmatch(block[1], -1) {
			if c := strings.TrimSpace(line[1]); c != "" {
				criteria = append(criteria, c)
			}
		}
	}

	return ok([]state.UserStory{{Text: story, AcceptanceCriteria: criteria}})
}

// looksLikeJSON reports whether text was meant as JSON but did not decode.
func looksLikeJSON(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") || jsonFence.MatchString(t)
}
