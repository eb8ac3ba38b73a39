package script

import (
	"strings"

	"github.com/leapstack-labs/leapscript/pkg/token"
)

// ConditionKind is the kind of a handler condition reference.
type ConditionKind uint8

const (
	// CondException is SQLEXCEPTION.
	CondException ConditionKind = iota
	// CondNotFound is NOT FOUND.
	CondNotFound
	// CondSQLState is SQLSTATE 'xxxxx'.
	CondSQLState
	// CondNamed is a condition name, either declared in the script or one of
	// the built-in condition names.
	CondNamed
)

// ConditionRef is one condition in a handler's FOR list.
type ConditionRef struct {
	Kind  ConditionKind
	Value string
	Pos   token.Position

	// state is set at build time for names declared with DECLARE ... CONDITION.
	state string
}

// Key returns the normalized condition class used for duplicate detection.
func (c ConditionRef) Key() string {
	switch c.Kind {
	case CondException:
		return "SQLEXCEPTION"
	case CondNotFound:
		return "NOT FOUND"
	case CondSQLState:
		return "SQLSTATE '" + strings.ToUpper(c.Value) + "'"
	default:
		return strings.ToUpper(c.Value)
	}
}

// specificity orders matching handlers inside one block.
func (c ConditionRef) specificity() int {
	switch c.Kind {
	case CondNamed:
		return 3
	case CondSQLState:
		return 2
	default:
		return 1
	}
}

// matches reports whether the reference covers e.
func (c ConditionRef) matches(e *Error) bool {
	state := strings.ToUpper(e.SQLState)
	switch c.Kind {
	case CondException:
		return !isCompletionClass(state) && !strings.HasPrefix(state, "02")
	case CondNotFound:
		return strings.HasPrefix(state, "02")
	case CondSQLState:
		return state == strings.ToUpper(c.Value)
	default:
		if c.state != "" {
			return state == c.state
		}
		name := strings.ToUpper(c.Value)
		return strings.EqualFold(e.Condition, name) || strings.EqualFold(e.Class(), name)
	}
}

// isCompletionClass reports success and warning classes, which are never
// exceptions.
func isCompletionClass(state string) bool {
	return strings.HasPrefix(state, "00") || strings.HasPrefix(state, "01")
}

// HandlerAction is what happens after a handler body completes.
type HandlerAction uint8

const (
	// HandlerExit leaves the declaring block.
	HandlerExit HandlerAction = iota
	// HandlerContinue resumes after the failing statement.
	HandlerContinue
)

func (a HandlerAction) String() string {
	if a == HandlerContinue {
		return "CONTINUE"
	}
	return "EXIT"
}

// Handler is a DECLARE ... HANDLER FOR declaration.
type Handler struct {
	Action     HandlerAction
	Conditions []ConditionRef
	Body       NodeID
	Pos        token.Position
}

// ConditionDecl is a DECLARE name CONDITION FOR SQLSTATE 'xxxxx' declaration.
type ConditionDecl struct {
	Name     string
	SQLState string
	Pos      token.Position
}

// HandlerTable holds the handlers declared by one block. It is immutable
// once built.
type HandlerTable struct {
	block    NodeID
	byKey    map[string]*Handler
	handlers []*Handler
}

func newHandlerTable(block NodeID) *HandlerTable {
	return &HandlerTable{block: block, byKey: make(map[string]*Handler)}
}

// add registers h under each of its conditions.
func (t *HandlerTable) add(h *Handler) error {
	for _, c := range h.Conditions {
		key := c.Key()
		if _, dup := t.byKey[key]; dup {
			return newError(CondDuplicateHandler, c.Pos,
				map[string]string{"condition": key},
				"found duplicate handlers for the same condition %s", key)
		}
		t.byKey[key] = h
	}
	t.handlers = append(t.handlers, h)
	return nil
}

// Block returns the node that declared the table.
func (t *HandlerTable) Block() NodeID {
	return t.block
}

// Len returns the number of handlers.
func (t *HandlerTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.handlers)
}

// Match returns the most specific handler covering e.
func (t *HandlerTable) Match(e *Error) (*Handler, bool) {
	if t == nil || e == nil {
		return nil, false
	}
	var best *Handler
	bestRank := 0
	for _, h := range t.handlers {
		for _, c := range h.Conditions {
			if r := c.specificity(); r > bestRank && c.matches(e) {
				best, bestRank = h, r
			}
		}
	}
	return best, best != nil
}
