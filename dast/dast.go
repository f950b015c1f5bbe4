// Package dast implements the structured-text document model used by rich
// text fields: an ordered tree of nodes where most nodes carry text and some
// are opaque embedded block references.
//
// The package owns the pure tree operations the translation pipeline is built
// on: leaf-text extraction and reassembly, positional insertion, id stripping,
// and block/inline partitioning. All operations return new structures and
// never mutate their input.
package dast

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Node variants
// ---------------------------------------------------------------------------

// Kind discriminates the three node variants the pipeline cares about.
type Kind int

const (
	// KindText is a text-bearing node: it has a string value and/or nested
	// children that are themselves walked for text.
	KindText Kind = iota
	// KindBlock is an opaque embedded block (CMS-record-backed content).
	// Blocks are never string-extracted; they are translated recursively as
	// whole values.
	KindBlock
	// KindOther is a node with neither value nor children (thematic breaks,
	// void nodes). It is carried through untouched.
	KindOther
)

// BlockType is the type discriminator value that marks a block node.
const BlockType = "block"

// typeKey, valueKey etc. are the structural attribute names. Everything else
// on a node lives in the free-form Attrs bag and is round-tripped verbatim.
const (
	typeKey          = "type"
	valueKey         = "value"
	childrenKey      = "children"
	idKey            = "id"
	originalIndexKey = "originalIndex"
)

// Node is one node of a structured-text document. The attribute bag keeps
// whatever the host stored on the node (marks, levels, styles) so a document
// survives a round trip through the pipeline byte-for-byte in shape.
type Node struct {
	// Type is the node's type discriminator ("paragraph", "span", "block", ...).
	Type string
	// Value is the leaf text for text-bearing nodes. HasValue distinguishes
	// an empty string (preserved, position-relevant) from no value at all.
	Value    string
	HasValue bool
	// Children are nested nodes. Block nodes keep their payload opaque in
	// Attrs and have no parsed children.
	Children []*Node
	// OriginalIndex records the node's position in the pre-partition sequence.
	// Set only on block nodes between partitioning and re-insertion; nil
	// otherwise, and always stripped from final output.
	OriginalIndex *int
	// Attrs holds every other attribute, including "id" until stripped and
	// the full payload of block nodes.
	Attrs map[string]any
}

// Kind returns the variant of the node.
func (n *Node) Kind() Kind {
	switch {
	case n.Type == BlockType:
		return KindBlock
	case n.HasValue || len(n.Children) > 0:
		return KindText
	default:
		return KindOther
	}
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Type:     n.Type,
		Value:    n.Value,
		HasValue: n.HasValue,
	}
	if n.OriginalIndex != nil {
		idx := *n.OriginalIndex
		c.OriginalIndex = &idx
	}
	if n.Attrs != nil {
		c.Attrs = deepCopyMap(n.Attrs)
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, ch := range n.Children {
			c.Children[i] = ch.Clone()
		}
	}
	return c
}

// ---------------------------------------------------------------------------
// any <-> Node conversion
// ---------------------------------------------------------------------------

// NodeFromAny builds a Node from a decoded JSON map. Non-map input yields an
// empty Other node so malformed children degrade instead of panicking.
func NodeFromAny(v any) *Node {
	m, ok := v.(map[string]any)
	if !ok {
		return &Node{}
	}

	n := &Node{Attrs: map[string]any{}}
	for k, val := range m {
		switch k {
		case typeKey:
			if s, ok := val.(string); ok {
				n.Type = s
			}
		case valueKey:
			if s, ok := val.(string); ok {
				n.Value = s
				n.HasValue = true
			} else {
				n.Attrs[k] = deepCopyAny(val)
			}
		case originalIndexKey:
			if f, ok := val.(float64); ok {
				idx := int(f)
				n.OriginalIndex = &idx
			} else if i, ok := val.(int); ok {
				idx := i
				n.OriginalIndex = &idx
			}
		default:
			n.Attrs[k] = deepCopyAny(val)
		}
	}

	// Block payloads stay opaque: their children (if any) remain in Attrs.
	if n.Type != BlockType {
		if rawChildren, ok := n.Attrs[childrenKey].([]any); ok {
			delete(n.Attrs, childrenKey)
			n.Children = make([]*Node, len(rawChildren))
			for i, ch := range rawChildren {
				n.Children[i] = NodeFromAny(ch)
			}
		}
	}
	if len(n.Attrs) == 0 {
		n.Attrs = nil
	}
	return n
}

// NodesFromAny converts a decoded JSON array into nodes.
func NodesFromAny(items []any) []*Node {
	nodes := make([]*Node, len(items))
	for i, it := range items {
		nodes[i] = NodeFromAny(it)
	}
	return nodes
}

// ToAny re-emits the node as a plain map suitable for the host's field-write
// API or JSON serialization.
func (n *Node) ToAny() any {
	m := map[string]any{}
	for k, v := range n.Attrs {
		m[k] = deepCopyAny(v)
	}
	if n.Type != "" {
		m[typeKey] = n.Type
	}
	if n.HasValue {
		m[valueKey] = n.Value
	}
	if n.OriginalIndex != nil {
		m[originalIndexKey] = *n.OriginalIndex
	}
	if n.Children != nil {
		children := make([]any, len(n.Children))
		for i, ch := range n.Children {
			children[i] = ch.ToAny()
		}
		m[childrenKey] = children
	}
	return m
}

// NodesToAny converts nodes back into a plain array.
func NodesToAny(nodes []*Node) []any {
	items := make([]any, len(nodes))
	for i, n := range nodes {
		items[i] = n.ToAny()
	}
	return items
}

// MarshalJSON implements json.Marshaler via ToAny.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.ToAny())
}

// UnmarshalJSON implements json.Unmarshaler via NodeFromAny.
func (n *Node) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if _, ok := v.(map[string]any); !ok {
		return fmt.Errorf("dast: node must be a JSON object, got %T", v)
	}
	*n = *NodeFromAny(v)
	return nil
}

// ---------------------------------------------------------------------------
// Document envelope
// ---------------------------------------------------------------------------

// Document is an ordered node sequence, optionally wrapped in the
// {document:{children:[...]}, schema:...} envelope. Envelope presence is
// round-tripped: enveloped input produces enveloped output.
type Document struct {
	Nodes     []*Node
	Enveloped bool

	// envExtra and docExtra keep the non-structural envelope keys
	// ("schema" at the top level, anything else on the inner document).
	envExtra map[string]any
	docExtra map[string]any
}

// ParseValue interprets a raw field value as a structured-text document.
// It returns ok=false for values the pipeline must pass through unchanged:
// nil, non-document shapes, and empty node lists.
func ParseValue(v any) (*Document, bool) {
	if v == nil {
		return nil, false
	}

	switch val := v.(type) {
	case []any:
		if len(val) == 0 {
			return nil, false
		}
		return &Document{Nodes: NodesFromAny(val)}, true

	case map[string]any:
		inner, ok := val["document"].(map[string]any)
		if !ok {
			return nil, false
		}
		children, ok := inner[childrenKey].([]any)
		if !ok || len(children) == 0 {
			return nil, false
		}
		doc := &Document{
			Nodes:     NodesFromAny(children),
			Enveloped: true,
			envExtra:  map[string]any{},
			docExtra:  map[string]any{},
		}
		for k, ev := range val {
			if k != "document" {
				doc.envExtra[k] = deepCopyAny(ev)
			}
		}
		for k, dv := range inner {
			if k != childrenKey {
				doc.docExtra[k] = deepCopyAny(dv)
			}
		}
		return doc, true

	default:
		return nil, false
	}
}

// Value re-emits the document in the same shape it was parsed from.
func (d *Document) Value() any {
	items := NodesToAny(d.Nodes)
	if !d.Enveloped {
		return items
	}
	inner := map[string]any{}
	for k, v := range d.docExtra {
		inner[k] = deepCopyAny(v)
	}
	inner[childrenKey] = items
	env := map[string]any{}
	for k, v := range d.envExtra {
		env[k] = deepCopyAny(v)
	}
	env["document"] = inner
	return env
}

// WithNodes returns a copy of the document envelope around a new node list.
func (d *Document) WithNodes(nodes []*Node) *Document {
	return &Document{
		Nodes:     nodes,
		Enveloped: d.Enveloped,
		envExtra:  d.envExtra,
		docExtra:  d.docExtra,
	}
}

// ---------------------------------------------------------------------------
// Extraction and reassembly
// ---------------------------------------------------------------------------

// Extract walks the node sequence depth-first, left to right, and collects
// every text leaf in traversal order. Empty strings are preserved: the
// reassembly step aligns by count, not content. Block nodes contribute
// nothing; they are translated separately.
func Extract(nodes []*Node) []string {
	values := []string{}
	var walk func(ns []*Node)
	walk = func(ns []*Node) {
		for _, n := range ns {
			switch n.Kind() {
			case KindBlock:
				// opaque; handled by the block translation path
			case KindText:
				if n.HasValue {
					values = append(values, n.Value)
				}
				walk(n.Children)
			case KindOther:
				// nothing to extract
			}
		}
	}
	walk(nodes)
	return values
}

// Reassemble re-walks the structure in Extract order and substitutes the k-th
// visited text leaf with translated[k]. Input is not mutated. Callers must
// have reconciled lengths first; if the translated list still runs short, the
// remaining leaves keep their original text rather than corrupting the tree.
func Reassemble(nodes []*Node, translated []string) []*Node {
	cursor := 0
	var rebuild func(ns []*Node) []*Node
	rebuild = func(ns []*Node) []*Node {
		out := make([]*Node, len(ns))
		for i, n := range ns {
			c := n.Clone()
			if c.Kind() == KindText {
				if c.HasValue {
					if cursor < len(translated) {
						c.Value = translated[cursor]
					}
					cursor++
				}
				c.Children = rebuild(c.Children)
			}
			out[i] = c
		}
		return out
	}
	return rebuild(nodes)
}

// InsertAt returns a new sequence with node inserted so that it ends up at
// the given position. The index is clamped to the sequence bounds; all other
// elements keep their relative order.
func InsertAt(nodes []*Node, node *Node, index int) []*Node {
	if index < 0 {
		index = 0
	}
	if index > len(nodes) {
		index = len(nodes)
	}
	out := make([]*Node, 0, len(nodes)+1)
	out = append(out, nodes[:index]...)
	out = append(out, node)
	out = append(out, nodes[index:]...)
	return out
}

// ---------------------------------------------------------------------------
// Id stripping
// ---------------------------------------------------------------------------

// StripIDs deep-copies the nodes with the "id" attribute removed from every
// node and every nested structure, including opaque block payloads. Ids are
// CMS metadata and must never reach the remote model; they are dropped, not
// restored.
func StripIDs(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		c := n.Clone()
		stripNodeIDs(c)
		out[i] = c
	}
	return out
}

func stripNodeIDs(n *Node) {
	if n.Attrs != nil {
		delete(n.Attrs, idKey)
		for k, v := range n.Attrs {
			n.Attrs[k] = stripAnyIDs(v)
		}
		if len(n.Attrs) == 0 {
			n.Attrs = nil
		}
	}
	for _, ch := range n.Children {
		stripNodeIDs(ch)
	}
}

// stripAnyIDs removes "id" keys from arbitrarily nested maps and arrays
// (block payloads are free-form).
func stripAnyIDs(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, mv := range val {
			if k == idKey {
				continue
			}
			out[k] = stripAnyIDs(mv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, av := range val {
			out[i] = stripAnyIDs(av)
		}
		return out
	default:
		return v
	}
}

// ---------------------------------------------------------------------------
// Block partitioning
// ---------------------------------------------------------------------------

// SplitBlocks partitions the top-level sequence into block nodes and inline
// (non-block) nodes, preserving relative order within each partition. Each
// returned block carries its position in the original sequence so it can be
// re-inserted after inline text translation.
func SplitBlocks(nodes []*Node) (blocks []*Node, inline []*Node) {
	for i, n := range nodes {
		if n.Kind() == KindBlock {
			b := n.Clone()
			idx := i
			b.OriginalIndex = &idx
			blocks = append(blocks, b)
		} else {
			inline = append(inline, n.Clone())
		}
	}
	return blocks, inline
}

// ClearOriginalIndex removes the original-index annotation from every node in
// the sequence. It is called once the blocks are back in place.
func ClearOriginalIndex(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		c := n.Clone()
		c.OriginalIndex = nil
		out[i] = c
	}
	return out
}

// ---------------------------------------------------------------------------
// Deep-copy helpers
// ---------------------------------------------------------------------------

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyAny(v)
	}
	return out
}

func deepCopyAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, av := range val {
			out[i] = deepCopyAny(av)
		}
		return out
	default:
		return v
	}
}
