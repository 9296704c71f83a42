package core

// Position is an editor coordinate. The relay stores and forwards positions
// but never interprets them.
type Position struct {
	Line   int
	Column int
}

// Change is one atomic edit: replace the text between From and To with Text.
// Changes are transient. They are relayed verbatim to the other participants
// of a file and never stored server-side; concurrent edits at overlapping
// ranges are not reconciled (last writer wins at the range it names).
type Change struct {
	From   Position
	To     Position
	Text   string
	Origin string
}
