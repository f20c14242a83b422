package parser

import (
	"regexp"
	"strings"

	"github.com/dgallion1/patgest/internal/patent"
)

// InstructionKind classifies a processing instruction inside a description.
type InstructionKind uint8

const (
	InstructionOther InstructionKind = iota
	InstructionOpen
	InstructionClose
)

func (k InstructionKind) String() string {
	switch k {
	case InstructionOpen:
		return "open"
	case InstructionClose:
		return "close"
	}
	return "other"
}

// Instruction is a lexed section boundary, e.g.
// <?BRFSUM description="Brief Summary" end="lead"?> is Open("BRFSUM").
type Instruction struct {
	Kind  InstructionKind
	Ident string
}

var endAttr = regexp.MustCompile(`(?:^|\s)end\s*=\s*["'](lead|tail)["']`)

// ClassifyInstruction lexes a processing instruction's target and payload.
// The target is the section identifier; the end attribute decides whether
// the instruction opens (lead) or closes (tail) the section. Anything else is
// InstructionOther.
func ClassifyInstruction(target string, payload []byte) Instruction {
	ident := strings.TrimSpace(target)
	m := endAttr.FindSubmatch(payload)
	if m == nil || ident == "" {
		return Instruction{Kind: InstructionOther, Ident: ident}
	}
	if string(m[1]) == "lead" {
		return Instruction{Kind: InstructionOpen, Ident: ident}
	}
	return Instruction{Kind: InstructionClose, Ident: ident}
}

type machineState uint8

const (
	stateOutside machineState = iota
	stateInside
)

// transitions[state][instruction] is the next state. Close always leaves the
// section regardless of which identifier opened it.
var transitions = [...][3]machineState{
	stateOutside: {
		InstructionOther: stateOutside,
		InstructionOpen:  stateInside,
		InstructionClose: stateOutside,
	},
	stateInside: {
		InstructionOther: stateInside,
		InstructionOpen:  stateInside,
		InstructionClose: stateOutside,
	},
}

// sectionMachine tracks which description section the scan is in.
type sectionMachine struct {
	state      machineState
	ident      string
	recognized map[patent.SectionKind]bool
}

func newSectionMachine(recognized map[patent.SectionKind]bool) *sectionMachine {
	return &sectionMachine{recognized: recognized}
}

func (m *sectionMachine) Feed(in Instruction) {
	m.state = transitions[m.state][in.Kind]
	switch in.Kind {
	case InstructionOpen:
		m.ident = in.Ident
	case InstructionClose:
		m.ident = ""
	}
}

// Target returns the section paragraphs are currently written to. Regions
// opened by an unrecognized identifier are no-ops.
func (m *sectionMachine) Target() (patent.SectionKind, bool) {
	if m.state != stateInside {
		return "", false
	}
	kind := patent.SectionKind(m.ident)
	if !m.recognized[kind] {
		return "", false
	}
	return kind, true
}
