package engine

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ActionKind enumerates the recognized decision outputs.
type ActionKind string

const (
	ActionSpeak     ActionKind = "speak"
	ActionMove      ActionKind = "move"
	ActionBroadcast ActionKind = "broadcast"
	ActionAct       ActionKind = "act"
	ActionThink     ActionKind = "think"
)

// Action is one parsed decision. Exactly one is recognized per generation
// result.
type Action struct {
	Kind    ActionKind `json:"action"`
	Target  string     `json:"target,omitempty"`
	Content string     `json:"content"`
}

var validKinds = map[ActionKind]bool{
	ActionSpeak: true, ActionMove: true, ActionBroadcast: true,
	ActionAct: true, ActionThink: true,
}

// Tagged-line fallback grammar. Precedence is the slice order: speak beats
// move beats broadcast beats act beats think, regardless of line order.
var tagPatterns = []struct {
	kind      ActionKind
	re        *regexp.Regexp
	hasTarget bool
}{
	{ActionSpeak, regexp.MustCompile(`(?i)\[SPEAK:([^\]]+)\]\s*(.*)`), true},
	{ActionMove, regexp.MustCompile(`(?i)\[MOVE:([^\]]+)\]\s*(.*)`), true},
	{ActionBroadcast, regexp.MustCompile(`(?i)\[BROADCAST\]\s*(.*)`), false},
	{ActionAct, regexp.MustCompile(`(?i)\[ACT\]\s*(.*)`), false},
	{ActionThink, regexp.MustCompile(`(?i)\[THINK\]\s*(.*)`), false},
}

// ParseDecision turns filtered generation output into an Action. The
// structured JSON form is preferred; the tagged-line grammar is the
// fallback for models that ignore the format instruction. Text matching
// neither becomes a free-form act, so no paid call ever vanishes silently.
func ParseDecision(text string) Action {
	if a, ok := parseStructured(text); ok {
		return a
	}
	if a, ok := parseTagged(text); ok {
		return a
	}
	return Action{Kind: ActionAct, Content: strings.TrimSpace(text)}
}

// parseStructured finds a JSON object in the response (the model may wrap
// it in prose) and accepts it when the action name is recognized.
func parseStructured(text string) (Action, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return Action{}, false
	}

	var a Action
	if err := json.Unmarshal([]byte(text[start:end+1]), &a); err != nil {
		return Action{}, false
	}
	a.Kind = ActionKind(strings.ToLower(string(a.Kind)))
	if !validKinds[a.Kind] {
		return Action{}, false
	}
	a.Target = strings.TrimSpace(a.Target)
	a.Content = strings.TrimSpace(a.Content)
	return a, true
}

func parseTagged(text string) (Action, bool) {
	for _, p := range tagPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		a := Action{Kind: p.kind}
		if p.hasTarget {
			a.Target = strings.TrimSpace(m[1])
			a.Content = strings.TrimSpace(m[2])
		} else {
			a.Content = strings.TrimSpace(m[1])
		}
		return a, true
	}
	return Action{}, false
}

// actionInstructions enumerates the allowed action forms inside every
// thinking prompt.
const actionInstructions = `Decide what you do next. Respond with a single JSON object:
{"action": "...", "target": "...", "content": "..."}

Allowed actions:
- "speak": say something to one person here (target = their name, content = your words)
- "move": walk to an adjacent place (target = the place)
- "broadcast": say something aloud to everyone here (content = your words)
- "act": do something freeform (content = what you do)
- "think": keep a thought to yourself (content = the thought)

Choose exactly one.`
