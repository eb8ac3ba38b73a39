package script

// Frame is one running plan: the plan, its scope stack and its cursor.
type Frame struct {
	Plan *Plan
	Iter *Iterator
}

// NewFrame enters the plan's root scope and opens an iterator over it.
func NewFrame(plan *Plan) *Frame {
	return &Frame{Plan: plan, Iter: plan.Statements()}
}

// Scopes returns the frame's scope stack.
func (f *Frame) Scopes() *ScopeStack {
	return f.Iter.Scopes()
}

// Session is a stack of frames. A run owns one top-level frame; hosts that
// invoke scripts from scripts push more.
type Session struct {
	frames []*Frame
}

// Push makes f the current frame.
func (s *Session) Push(f *Frame) {
	s.frames = append(s.frames, f)
}

// Pop removes and returns the current frame.
func (s *Session) Pop() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f
}

// Current returns the current frame, or nil.
func (s *Session) Current() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Depth returns the number of frames.
func (s *Session) Depth() int {
	return len(s.frames)
}
