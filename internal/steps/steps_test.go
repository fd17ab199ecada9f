package steps

import (
	"testing"

	"github.com/nvandessel/soillab/internal/models"
)

func TestTable_Count(t *testing.T) {
	if got := Count(); got != 29 {
		t.Fatalf("Count() = %d, want 29 (NotStarted + 28 active)", got)
	}
	if RoundComplete != Step(Count()-1) {
		t.Errorf("RoundComplete = %d, want last step %d", RoundComplete, Count()-1)
	}
}

// canonical is the accepted interaction table written out independently of
// the descriptor helpers.
func canonical() map[Step][]Interaction {
	drag := []Interaction{{models.TagContainer, models.ActionDrag}}
	click := func(tag models.SubjectTag) []Interaction {
		return []Interaction{{tag, models.ActionClick}}
	}
	return map[Step][]Interaction{
		PlaceEmptyBoxOnBalance:     drag,
		RecordEmptyWeight:          click(models.TagRecordControl),
		ReturnBoxToTray:            drag,
		OpenBoxCap:                 click(models.TagContainerCap),
		TakeSoil:                   {{models.TagTool, models.ActionClick}, {models.TagSampleSource, models.ActionClick}},
		CloseBoxCap:                click(models.TagContainerCap),
		PlaceWetBoxOnBalance:       drag,
		RecordWetWeight:            click(models.TagRecordControl),
		ReturnBoxToTrayAfterWet:    drag,
		OpenBoxCapForDrying:        click(models.TagContainerCap),
		OpenOvenDoor:               click(models.TagOvenDoor),
		PlaceBoxInOven:             drag,
		CloseOvenDoor:              click(models.TagOvenDoor),
		WaitForDrying:              click(models.TagSkipControl),
		OpenOvenDoorAfterDry:       click(models.TagOvenDoor),
		RemoveBoxFromOven:          drag,
		OpenDesiccatorCap:          click(models.TagDesiccatorCap),
		PlaceBoxInDesiccator:       drag,
		CloseDesiccatorCap:         click(models.TagDesiccatorCap),
		WaitForCooling:             click(models.TagSkipControl),
		OpenDesiccatorCapAfterCool: click(models.TagDesiccatorCap),
		RemoveBoxFromDesiccator:    drag,
		CloseBoxCapAfterDry:        click(models.TagContainerCap),
		PlaceBoxOnBalanceForDry:    drag,
		RecordDryWeight:            click(models.TagRecordControl),
		ReturnBoxAfterDryWeight:    drag,
		DisposeToTrash:             click(models.TagCleanControl),
		RoundComplete:              click(models.TagNextControl),
	}
}

func TestAccepts_TotalOverAllInputs(t *testing.T) {
	want := canonical()
	tags := append([]models.SubjectTag{models.TagNone, "AluminumBox"}, models.SubjectTags...)
	kinds := []models.ActionKind{models.ActionClick, models.ActionDrag, models.ActionDrop, ""}

	for s := Step(-1); s <= Step(Count()); s++ {
		for _, tag := range tags {
			for _, kind := range kinds {
				expected := false
				for _, in := range want[s] {
					if in.Tag == tag && in.Kind == kind {
						expected = true
					}
				}
				if got := Accepts(s, tag, kind); got != expected {
					t.Errorf("Accepts(%s, %q, %q) = %v, want %v", s, tag, kind, got, expected)
				}
			}
		}
	}
}

func TestAdvance_RejectedValidationDoesNotMove(t *testing.T) {
	seq := NewSequencer("en")
	seq.SetStep(First)

	if seq.Validate(seq.Current(), models.TagContainerCap, models.ActionClick) {
		t.Fatal("(ContainerCap, Click) accepted at PlaceEmptyBoxOnBalance")
	}
	if seq.Current() != PlaceEmptyBoxOnBalance {
		t.Errorf("Current() = %s after rejected validation", seq.Current())
	}
}

func TestAdvance_WalksRoundThenSignalsTerminal(t *testing.T) {
	seq := NewSequencer("en")
	var seen []Step
	seq.OnStepChanged(func(s Step) { seen = append(seen, s) })

	seq.SetStep(First)
	for i := 0; i < 27; i++ {
		if seq.Advance() {
			t.Fatalf("Advance() signalled terminal at %s", seq.Current())
		}
	}
	if seq.Current() != RoundComplete {
		t.Fatalf("Current() = %s, want RoundComplete", seq.Current())
	}
	if !seq.Advance() {
		t.Error("Advance() at RoundComplete did not signal terminal")
	}
	if seq.Current() != RoundComplete {
		t.Errorf("Current() = %s after terminal advance, want RoundComplete", seq.Current())
	}
	if len(seen) != 28 {
		t.Errorf("StepChanged fired %d times, want 28", len(seen))
	}
	for i, s := range seen {
		if s != First+Step(i) {
			t.Errorf("event %d = %s, want %s", i, s, First+Step(i))
		}
	}
}

func TestSetStep_EventOrder(t *testing.T) {
	seq := NewSequencer("zh")
	var events []string
	seq.OnStepChanged(func(s Step) { events = append(events, "step:"+s.String()) })
	seq.OnInstructionChanged(func(text string) { events = append(events, "text:"+text) })

	seq.SetStep(OpenOvenDoor)
	seq.SetStep(Step(99))

	want := []string{"step:OpenOvenDoor", "text:点击烘箱门打开"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestProjections(t *testing.T) {
	seq := NewSequencer("en")
	highlight := map[Step]models.SubjectTag{
		PlaceEmptyBoxOnBalance:     models.TagContainer,
		PlaceWetBoxOnBalance:       models.TagContainer,
		ReturnBoxToTray:            models.TagContainer,
		ReturnBoxToTrayAfterWet:    models.TagContainer,
		PlaceBoxInOven:             models.TagContainer,
		RemoveBoxFromOven:          models.TagContainer,
		PlaceBoxInDesiccator:       models.TagContainer,
		RemoveBoxFromDesiccator:    models.TagContainer,
		PlaceBoxOnBalanceForDry:    models.TagContainer,
		ReturnBoxAfterDryWeight:    models.TagContainer,
		OpenBoxCap:                 models.TagContainerCap,
		CloseBoxCap:                models.TagContainerCap,
		OpenBoxCapForDrying:        models.TagContainerCap,
		CloseBoxCapAfterDry:        models.TagContainerCap,
		TakeSoil:                   models.TagTool,
		OpenOvenDoor:               models.TagOvenDoor,
		CloseOvenDoor:              models.TagOvenDoor,
		OpenOvenDoorAfterDry:       models.TagOvenDoor,
		OpenDesiccatorCap:          models.TagDesiccatorCap,
		CloseDesiccatorCap:         models.TagDesiccatorCap,
		OpenDesiccatorCapAfterCool: models.TagDesiccatorCap,
	}
	record := map[Step]bool{RecordEmptyWeight: true, RecordWetWeight: true, RecordDryWeight: true}
	skipping := map[Step]bool{WaitForDrying: true, WaitForCooling: true}

	for _, d := range All() {
		s := d.Step
		if got := seq.HighlightTargetFor(s); got != highlight[s] {
			t.Errorf("HighlightTargetFor(%s) = %q, want %q", s, got, highlight[s])
		}
		if got := seq.ShowsRecordControl(s); got != record[s] {
			t.Errorf("ShowsRecordControl(%s) = %v, want %v", s, got, record[s])
		}
		if got := seq.ShowsSkipControl(s); got != skipping[s] {
			t.Errorf("ShowsSkipControl(%s) = %v, want %v", s, got, skipping[s])
		}
		if seq.InstructionFor(s) == "" || Instruction(s, "zh") == "" {
			t.Errorf("step %s has no instruction", s)
		}
	}
	if seq.HighlightTargetFor(Step(-3)) != models.TagNone || seq.InstructionFor(Step(40)) != "" {
		t.Error("undefined step projected a value")
	}
}

func TestRelocationTargets(t *testing.T) {
	want := map[Step]models.Location{
		PlaceEmptyBoxOnBalance:  models.LocationBalance,
		PlaceWetBoxOnBalance:    models.LocationBalance,
		PlaceBoxOnBalanceForDry: models.LocationBalance,
		ReturnBoxToTray:         models.LocationTray,
		ReturnBoxToTrayAfterWet: models.LocationTray,
		ReturnBoxAfterDryWeight: models.LocationTray,
		RemoveBoxFromOven:       models.LocationTray,
		RemoveBoxFromDesiccator: models.LocationTray,
		PlaceBoxInOven:          models.LocationOven,
		PlaceBoxInDesiccator:    models.LocationDesiccator,
	}
	for _, d := range All() {
		if d.Op != OpRelocate {
			if d.Target != "" {
				t.Errorf("%s: non-relocation step has target %s", d.Name, d.Target)
			}
			continue
		}
		if d.Target != want[d.Step] {
			t.Errorf("%s: target = %s, want %s", d.Name, d.Target, want[d.Step])
		}
	}
}

func TestParseStep(t *testing.T) {
	for _, d := range All() {
		got, err := ParseStep(d.Name)
		if err != nil || got != d.Step {
			t.Errorf("ParseStep(%q) = %v, %v; want %v", d.Name, got, err, d.Step)
		}
	}
	if got, err := ParseStep("waitfordrying"); err != nil || got != WaitForDrying {
		t.Errorf("ParseStep(lowercase) = %v, %v", got, err)
	}
	if _, err := ParseStep("Bake"); err == nil {
		t.Error("ParseStep(Bake) succeeded")
	}
}
