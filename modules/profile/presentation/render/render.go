// Package render turns a profile record into a presentation tree, either as a
// read-only card gated by the visibility policy or as an edit form.
package render

import (
	"fmt"

	"github.com/jacksonlee411/community-portal/modules/profile/domain/fieldmeta"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
	"github.com/jacksonlee411/community-portal/pkg/dict"
)

type Mode string

const (
	ModeDisplay Mode = "display"
	ModeEdit    Mode = "edit"
)

func (m Mode) Valid() bool { return m == ModeDisplay || m == ModeEdit }

type NodeKind string

const (
	NodeProfile NodeKind = "profile"
	NodeSection NodeKind = "section"
	NodeField   NodeKind = "field"
	NodeHidden  NodeKind = "hidden"
	NodeInput   NodeKind = "input"
)

// HiddenPlaceholder replaces every value the viewer may not see.
const HiddenPlaceholder = "Hidden"

type Control string

const (
	ControlText     Control = "text"
	ControlTextarea Control = "textarea"
	ControlSelect   Control = "select"
	ControlDate     Control = "date"
	ControlList     Control = "list"
)

// Node is one element of the presentation tree. It marshals to JSON as is.
type Node struct {
	Kind  NodeKind `json:"kind"`
	Key   string   `json:"key,omitempty"`
	Label string   `json:"label,omitempty"`
	Text  string   `json:"text,omitempty"`
	Items []string `json:"items,omitempty"`
	Empty bool     `json:"empty,omitempty"`

	// Edit-only.
	Control     Control       `json:"control,omitempty"`
	Options     []dict.Option `json:"options,omitempty"`
	FixedLength int           `json:"fixed_length,omitempty"`
	PolicyKey   string        `json:"policy_key,omitempty"`

	Children []Node `json:"children,omitempty"`
}

// SectionRenderer renders one section in either mode. Implementations must be
// pure functions of their arguments.
type SectionRenderer interface {
	Section() types.Section
	Render(record types.Record, policy types.Policy, mode Mode) Node
}

type tableRenderer struct {
	registry *fieldmeta.Registry
	section  types.Section
	title    string
	fields   []fieldmeta.FieldDescriptor
}

// NewSectionRenderer builds the renderer for section from the registry's
// field table.
func NewSectionRenderer(registry *fieldmeta.Registry, section types.Section) (SectionRenderer, error) {
	if !section.Valid() {
		return nil, fmt.Errorf("render: unknown section %q", section)
	}
	return tableRenderer{
		registry: registry,
		section:  section,
		title:    registry.SectionTitle(section),
		fields:   registry.FieldsOf(section),
	}, nil
}

// Renderers returns one renderer per section in layout order. The registry
// only holds valid sections, so a failure here panics.
func Renderers(registry *fieldmeta.Registry) []SectionRenderer {
	sections := registry.Sections()
	out := make([]SectionRenderer, 0, len(sections))
	for _, s := range sections {
		r, err := NewSectionRenderer(registry, s.ID)
		if err != nil {
			panic(err)
		}
		out = append(out, r)
	}
	return out
}

func (r tableRenderer) Section() types.Section { return r.section }

func (r tableRenderer) Render(record types.Record, policy types.Policy, mode Mode) Node {
	node := Node{Kind: NodeSection, Key: string(r.section), Label: r.title}
	node.Children = make([]Node, 0, len(r.fields))
	for _, f := range r.fields {
		v, ok := record.Value(f.Key)
		if !ok {
			v = f.Default
		}
		if mode == ModeEdit {
			node.Children = append(node.Children, editNode(f, v))
			continue
		}
		if !r.registry.Exposed(f.Key, policy) {
			node.Children = append(node.Children, hiddenNode(f))
			continue
		}
		node.Children = append(node.Children, displayNode(f, v))
	}
	return node
}

// Render renders a single section.
func Render(registry *fieldmeta.Registry, section types.Section, record types.Record, policy types.Policy, mode Mode) (Node, error) {
	if !mode.Valid() {
		return Node{}, fmt.Errorf("render: unknown mode %q", mode)
	}
	r, err := NewSectionRenderer(registry, section)
	if err != nil {
		return Node{}, err
	}
	return r.Render(record, policy, mode), nil
}

// RenderProfile renders every section under a profile root.
func RenderProfile(registry *fieldmeta.Registry, record types.Record, policy types.Policy, mode Mode) (Node, error) {
	if !mode.Valid() {
		return Node{}, fmt.Errorf("render: unknown mode %q", mode)
	}
	renderers := Renderers(registry)
	root := Node{Kind: NodeProfile, Text: string(mode), Children: make([]Node, 0, len(renderers))}
	for _, r := range renderers {
		root.Children = append(root.Children, r.Render(record, policy, mode))
	}
	return root, nil
}

// hiddenNode depends on the descriptor only, never on the value.
func hiddenNode(f fieldmeta.FieldDescriptor) Node {
	return Node{Kind: NodeHidden, Key: f.Key, Label: f.Label, Text: HiddenPlaceholder}
}

func displayNode(f fieldmeta.FieldDescriptor, v types.Value) Node {
	n := Node{Kind: NodeField, Key: f.Key, Label: f.Label}
	switch f.Kind {
	case types.KindListOfText:
		for _, item := range v.Items() {
			if item != "" {
				n.Items = append(n.Items, item)
			}
		}
		n.Empty = len(n.Items) == 0
	case types.KindEnum:
		if code := v.Text(); code != "" {
			n.Text = f.OptionLabel(code)
		}
		n.Empty = n.Text == ""
	default:
		n.Text = v.Display()
		n.Empty = n.Text == ""
	}
	return n
}

func editNode(f fieldmeta.FieldDescriptor, v types.Value) Node {
	n := Node{Kind: NodeInput, Key: f.Key, Label: f.Label, PolicyKey: f.PolicyKey}
	switch f.Kind {
	case types.KindText:
		n.Control = ControlText
		n.Text = v.Text()
	case types.KindLongText:
		n.Control = ControlTextarea
		n.Text = v.Text()
	case types.KindEnum:
		n.Control = ControlSelect
		n.Text = v.Text()
		n.Options = f.Options
	case types.KindDate:
		n.Control = ControlDate
		n.Text = v.Display()
	case types.KindListOfText:
		n.Control = ControlList
		n.Items = v.Items()
		n.FixedLength = f.FixedLength
	}
	return n
}
