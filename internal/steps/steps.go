// Package steps defines the scripted workflow of a measurement round and the
// sequencer that walks it.
//
// The workflow is an ordered list of step descriptors. Each descriptor names
// the interactions accepted at that step, the object the presentation should
// highlight, which controls are visible and what the orchestrator does when
// the step is performed. Everything here is static; the only state lives in
// Sequencer.
package steps

import (
	"fmt"
	"strings"

	"github.com/nvandessel/soillab/internal/models"
)

// Step identifies a stage of the round workflow.
type Step int

const (
	NotStarted Step = iota
	PlaceEmptyBoxOnBalance
	RecordEmptyWeight
	ReturnBoxToTray
	OpenBoxCap
	TakeSoil
	CloseBoxCap
	PlaceWetBoxOnBalance
	RecordWetWeight
	ReturnBoxToTrayAfterWet
	OpenBoxCapForDrying
	OpenOvenDoor
	PlaceBoxInOven
	CloseOvenDoor
	WaitForDrying
	OpenOvenDoorAfterDry
	RemoveBoxFromOven
	OpenDesiccatorCap
	PlaceBoxInDesiccator
	CloseDesiccatorCap
	WaitForCooling
	OpenDesiccatorCapAfterCool
	RemoveBoxFromDesiccator
	CloseBoxCapAfterDry
	PlaceBoxOnBalanceForDry
	RecordDryWeight
	ReturnBoxAfterDryWeight
	DisposeToTrash
	RoundComplete
)

// First is the step every round begins at.
const First = PlaceEmptyBoxOnBalance

// Op is what the orchestrator does when a step's action is accepted.
type Op int

const (
	OpNone Op = iota
	OpRelocate
	OpToggleCap
	OpToggleOvenDoor
	OpToggleDesiccatorCap
	OpTakeSample
	OpRecordEmpty
	OpRecordWet
	OpRecordDry
	OpSkipWait
	OpDispose
	OpFinishRound
)

var opNames = map[Op]string{
	OpNone:                "none",
	OpRelocate:            "relocate",
	OpToggleCap:           "toggle-cap",
	OpToggleOvenDoor:      "toggle-oven-door",
	OpToggleDesiccatorCap: "toggle-desiccator-cap",
	OpTakeSample:          "take-sample",
	OpRecordEmpty:         "record-empty",
	OpRecordWet:           "record-wet",
	OpRecordDry:           "record-dry",
	OpSkipWait:            "skip-wait",
	OpDispose:             "dispose",
	OpFinishRound:         "finish-round",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Interaction is a (subject, gesture) pair reported by the presentation.
type Interaction struct {
	Tag  models.SubjectTag `json:"tag"`
	Kind models.ActionKind `json:"kind"`
}

func (i Interaction) String() string {
	return fmt.Sprintf("(%s, %s)", i.Tag, i.Kind)
}

// Descriptor is the static definition of one step.
type Descriptor struct {
	Step        Step              `json:"-"`
	Name        string            `json:"name"`
	Instruction string            `json:"instruction"`
	Highlight   models.SubjectTag `json:"highlight,omitempty"`
	Accepts     []Interaction     `json:"accepts"`
	Op          Op                `json:"-"`
	Target      models.Location   `json:"target,omitempty"` // OpRelocate only
	Opens       bool              `json:"opens,omitempty"`  // toggle ops: the step opens rather than closes
	ShowsRecord bool              `json:"shows_record,omitempty"`
	ShowsSkip   bool              `json:"shows_skip,omitempty"`

	instructionZH string
}

var (
	dragContainer = []Interaction{{models.TagContainer, models.ActionDrag}}
	clickCap      = []Interaction{{models.TagContainerCap, models.ActionClick}}
	clickOvenDoor = []Interaction{{models.TagOvenDoor, models.ActionClick}}
	clickDesCap   = []Interaction{{models.TagDesiccatorCap, models.ActionClick}}
	clickRecord   = []Interaction{{models.TagRecordControl, models.ActionClick}}
	clickSkip     = []Interaction{{models.TagSkipControl, models.ActionClick}}
)

func relocate(step Step, name string, target models.Location, en, zh string) Descriptor {
	return Descriptor{
		Step:          step,
		Name:          name,
		Instruction:   en,
		instructionZH: zh,
		Highlight:     models.TagContainer,
		Accepts:       dragContainer,
		Op:            OpRelocate,
		Target:        target,
	}
}

func toggle(step Step, name string, op Op, opens bool, en, zh string) Descriptor {
	d := Descriptor{Step: step, Name: name, Instruction: en, instructionZH: zh, Op: op, Opens: opens}
	switch op {
	case OpToggleCap:
		d.Highlight, d.Accepts = models.TagContainerCap, clickCap
	case OpToggleOvenDoor:
		d.Highlight, d.Accepts = models.TagOvenDoor, clickOvenDoor
	case OpToggleDesiccatorCap:
		d.Highlight, d.Accepts = models.TagDesiccatorCap, clickDesCap
	}
	return d
}

func record(step Step, name string, op Op, en, zh string) Descriptor {
	return Descriptor{
		Step:          step,
		Name:          name,
		Instruction:   en,
		instructionZH: zh,
		Accepts:       clickRecord,
		Op:            op,
		ShowsRecord:   true,
	}
}

func skip(step Step, name, en, zh string) Descriptor {
	return Descriptor{
		Step:          step,
		Name:          name,
		Instruction:   en,
		instructionZH: zh,
		Accepts:       clickSkip,
		Op:            OpSkipWait,
		ShowsSkip:     true,
	}
}

// table is indexed by position, and position equals the Step value. The
// init check below keeps the two in lockstep.
var table = []Descriptor{
	{Step: NotStarted, Name: "NotStarted", Instruction: "Press start to begin the experiment", instructionZH: "点击开始实验"},
	relocate(PlaceEmptyBoxOnBalance, "PlaceEmptyBoxOnBalance", models.LocationBalance,
		"Drag the container onto the balance", "点击铝盒，放到天平上"),
	record(RecordEmptyWeight, "RecordEmptyWeight", OpRecordEmpty,
		"Press Record to log the empty container weight", "点击【称重】按钮记录空盒重量"),
	relocate(ReturnBoxToTray, "ReturnBoxToTray", models.LocationTray,
		"Drag the container back to the tray", "点击铝盒，放回托盘"),
	toggle(OpenBoxCap, "OpenBoxCap", OpToggleCap, true,
		"Click the container cap to open it", "点击铝盒盖打开"),
	{
		Step:          TakeSoil,
		Name:          "TakeSoil",
		Instruction:   "Click the spoon, then click the soil sample",
		instructionZH: "点击勺子，然后点击土样取土",
		Highlight:     models.TagTool,
		Accepts: []Interaction{
			{models.TagTool, models.ActionClick},
			{models.TagSampleSource, models.ActionClick},
		},
		Op: OpTakeSample,
	},
	toggle(CloseBoxCap, "CloseBoxCap", OpToggleCap, false,
		"Click the container cap to close it", "点击铝盒盖关闭"),
	relocate(PlaceWetBoxOnBalance, "PlaceWetBoxOnBalance", models.LocationBalance,
		"Drag the container onto the balance", "点击铝盒，放到天平上"),
	record(RecordWetWeight, "RecordWetWeight", OpRecordWet,
		"Press Record to log the wet sample weight", "点击【称重】按钮记录土样重量"),
	relocate(ReturnBoxToTrayAfterWet, "ReturnBoxToTrayAfterWet", models.LocationTray,
		"Drag the container back to the tray", "点击铝盒，放回托盘"),
	toggle(OpenBoxCapForDrying, "OpenBoxCapForDrying", OpToggleCap, true,
		"Click the container cap to open it (drying needs an open cap)", "点击铝盒盖打开（烘干需开盖）"),
	toggle(OpenOvenDoor, "OpenOvenDoor", OpToggleOvenDoor, true,
		"Click the oven door to open it", "点击烘箱门打开"),
	relocate(PlaceBoxInOven, "PlaceBoxInOven", models.LocationOven,
		"Drag the container into the oven", "点击铝盒，放入烘箱"),
	toggle(CloseOvenDoor, "CloseOvenDoor", OpToggleOvenDoor, false,
		"Click the oven door to close it", "点击烘箱门关闭"),
	skip(WaitForDrying, "WaitForDrying",
		"Press Skip to finish drying", "点击【烘烤】按钮跳过烘干等待"),
	toggle(OpenOvenDoorAfterDry, "OpenOvenDoorAfterDry", OpToggleOvenDoor, true,
		"Click the oven door to open it", "点击烘箱门打开"),
	relocate(RemoveBoxFromOven, "RemoveBoxFromOven", models.LocationTray,
		"Drag the container out of the oven", "点击铝盒，从烘箱中取出"),
	toggle(OpenDesiccatorCap, "OpenDesiccatorCap", OpToggleDesiccatorCap, true,
		"Click the desiccator lid to open it", "点击干燥器盖打开"),
	relocate(PlaceBoxInDesiccator, "PlaceBoxInDesiccator", models.LocationDesiccator,
		"Drag the container into the desiccator", "点击铝盒，放入干燥器"),
	toggle(CloseDesiccatorCap, "CloseDesiccatorCap", OpToggleDesiccatorCap, false,
		"Click the desiccator lid to close it", "点击干燥器盖关闭"),
	skip(WaitForCooling, "WaitForCooling",
		"Press Skip to finish cooling", "点击【冷却】按钮跳过冷却等待"),
	toggle(OpenDesiccatorCapAfterCool, "OpenDesiccatorCapAfterCool", OpToggleDesiccatorCap, true,
		"Click the desiccator lid to open it", "点击干燥器盖打开"),
	relocate(RemoveBoxFromDesiccator, "RemoveBoxFromDesiccator", models.LocationTray,
		"Drag the container out of the desiccator", "点击铝盒，从干燥器中取出"),
	toggle(CloseBoxCapAfterDry, "CloseBoxCapAfterDry", OpToggleCap, false,
		"Click the container cap to close it", "点击铝盒盖关闭"),
	relocate(PlaceBoxOnBalanceForDry, "PlaceBoxOnBalanceForDry", models.LocationBalance,
		"Drag the container onto the balance", "点击铝盒，放到天平上"),
	record(RecordDryWeight, "RecordDryWeight", OpRecordDry,
		"Press Record to log the dried sample weight", "点击【称重】按钮记录干土重量"),
	relocate(ReturnBoxAfterDryWeight, "ReturnBoxAfterDryWeight", models.LocationTray,
		"Drag the container back to the tray", "点击铝盒，放回托盘"),
	{
		Step:          DisposeToTrash,
		Name:          "DisposeToTrash",
		Instruction:   "Press Clean to discard the used soil",
		instructionZH: "点击【清理】按钮清理废土",
		Accepts:       []Interaction{{models.TagCleanControl, models.ActionClick}},
		Op:            OpDispose,
	},
	{
		Step:          RoundComplete,
		Name:          "RoundComplete",
		Instruction:   "Round complete",
		instructionZH: "本轮实验完成",
		Accepts:       []Interaction{{models.TagNextControl, models.ActionClick}},
		Op:            OpFinishRound,
	},
}

func init() {
	for i, d := range table {
		if int(d.Step) != i {
			panic(fmt.Sprintf("steps: descriptor %q at position %d has step %d", d.Name, i, d.Step))
		}
	}
}

// Count is the number of steps including NotStarted.
func Count() int {
	return len(table)
}

// Valid reports whether s is a defined step.
func (s Step) Valid() bool {
	return s >= NotStarted && int(s) < len(table)
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return table[s].Name
}

// MarshalText encodes the step by name.
func (s Step) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("undefined step %d", int(s))
	}
	return []byte(table[s].Name), nil
}

// UnmarshalText decodes a step name.
func (s *Step) UnmarshalText(b []byte) error {
	v, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStep looks a step up by name, case-insensitively.
func ParseStep(name string) (Step, error) {
	for _, d := range table {
		if strings.EqualFold(d.Name, name) {
			return d.Step, nil
		}
	}
	return NotStarted, fmt.Errorf("unknown step: %q", name)
}

// Describe returns the descriptor of s.
func Describe(s Step) (Descriptor, bool) {
	if !s.Valid() {
		return Descriptor{}, false
	}
	return table[s], true
}

// All returns every descriptor in workflow order.
func All() []Descriptor {
	return append([]Descriptor(nil), table...)
}

// Accepts reports whether the interaction (tag, kind) performs step s.
// Undefined steps accept nothing.
func Accepts(s Step, tag models.SubjectTag, kind models.ActionKind) bool {
	if !s.Valid() {
		return false
	}
	for _, in := range table[s].Accepts {
		if in.Tag == tag && in.Kind == kind {
			return true
		}
	}
	return false
}

// Instruction returns the instruction text of s in lang ("en" or "zh").
func Instruction(s Step, lang string) string {
	if !s.Valid() {
		return ""
	}
	if strings.EqualFold(lang, "zh") {
		return table[s].instructionZH
	}
	return table[s].Instruction
}
