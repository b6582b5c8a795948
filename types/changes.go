package types

import "fmt"

// ChangeOp discriminates the two operations a change log can carry.
type ChangeOp uint8

const (
	// OpAdd inserts a message into the pool.
	OpAdd ChangeOp = 1
	// OpDelete removes a message from the pool.
	OpDelete ChangeOp = 2
)

func (op ChangeOp) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(op))
	}
}

// Change is one entry of a change log.
type Change struct {
	ID MessageID `cramberry:"1"`
	Op ChangeOp  `cramberry:"2"`
	// Message is set for OpAdd and nil for OpDelete.
	Message *AsyncMessage `cramberry:"3"`
}

// Changes is an ordered diff log transforming one pool snapshot into the
// next: a sequence of (MessageID, Add|Delete) entries with unique keys.
//
// Change sets compose. Applying C1 then C2 is equivalent to applying
// Merge(C1, C2), where for any key present in both, C2's entry wins
// (last-writer-wins per key) and a Delete merged over an Add cancels the
// entry entirely, leaving no residual no-op. Because last-writer-wins is
// order-sensitive, change sets must be folded in the same order their
// mutations were produced.
//
// Speculative branches use Changes as a copy-on-write overlay over a
// base pool; see the pool subpackage.
type Changes struct {
	Entries []Change `cramberry:"1"`

	// byID maps each key to its position in Entries. Rebuilt lazily
	// after deserialization.
	byID map[MessageID]int
}

// NewChanges returns an empty change log.
func NewChanges() *Changes {
	return &Changes{byID: make(map[MessageID]int)}
}

// Len returns the number of entries.
func (c *Changes) Len() int { return len(c.Entries) }

func (c *Changes) ensureIndex() {
	if c.byID != nil {
		return
	}
	c.byID = make(map[MessageID]int, len(c.Entries))
	for i, e := range c.Entries {
		c.byID[e.ID] = i
	}
}

// Get returns the entry recorded for id, if any.
func (c *Changes) Get(id MessageID) (Change, bool) {
	c.ensureIndex()
	i, ok := c.byID[id]
	if !ok {
		return Change{}, false
	}
	return c.Entries[i], true
}

// PushAdd records an Add. A later entry for the same key overwrites an
// earlier one in place (last writer wins).
func (c *Changes) PushAdd(msg *AsyncMessage) {
	c.push(Change{ID: msg.ID(), Op: OpAdd, Message: msg})
}

// PushDelete records a Delete. When the log already holds an Add for the
// same key, the two cancel and the entry disappears entirely.
func (c *Changes) PushDelete(id MessageID) {
	c.push(Change{ID: id, Op: OpDelete})
}

func (c *Changes) push(e Change) {
	c.ensureIndex()
	if i, ok := c.byID[e.ID]; ok {
		if c.Entries[i].Op == OpAdd && e.Op == OpDelete {
			c.remove(i)
			return
		}
		c.Entries[i] = e
		return
	}
	c.byID[e.ID] = len(c.Entries)
	c.Entries = append(c.Entries, e)
}

// remove drops the entry at position i, preserving the order of the
// remaining entries.
func (c *Changes) remove(i int) {
	delete(c.byID, c.Entries[i].ID)
	c.Entries = append(c.Entries[:i], c.Entries[i+1:]...)
	for j := i; j < len(c.Entries); j++ {
		c.byID[c.Entries[j].ID] = j
	}
}

// Merge folds other into c, with other's entries taking precedence on
// key collision. Other must have been produced after c.
func (c *Changes) Merge(other *Changes) {
	for _, e := range other.Entries {
		c.push(e)
	}
}

// Clone returns an independent deep-enough copy of the log. Messages
// are shared: they are immutable once constructed.
func (c *Changes) Clone() *Changes {
	out := &Changes{
		Entries: make([]Change, len(c.Entries)),
		byID:    make(map[MessageID]int, len(c.Entries)),
	}
	copy(out.Entries, c.Entries)
	for i, e := range out.Entries {
		out.byID[e.ID] = i
	}
	return out
}
