package ledger

import (
	"fmt"
	"strings"

	"github.com/nvandessel/soillab/internal/models"
)

// Labels holds the wording of the record board.
type Labels struct {
	EmptyContainer string // followed by the container id
	DrySoil        string
	WetSoil        string
	Container      string // "<soil> container"
	AfterDrying    string // "<soil> after drying"
	Moisture       string // "<soil> moisture content"
	Separator      string // between label and value
}

// EnglishLabels is the default record board wording.
var EnglishLabels = Labels{
	EmptyContainer: "Empty container ",
	DrySoil:        "Dry soil",
	WetSoil:        "Wet soil",
	Container:      " container",
	AfterDrying:    " after drying",
	Moisture:       " moisture content",
	Separator:      ": ",
}

// ChineseLabels reproduces the record board of the classroom edition.
var ChineseLabels = Labels{
	EmptyContainer: "空铝罐",
	DrySoil:        "干土",
	WetSoil:        "湿土",
	Container:      "罐子",
	AfterDrying:    "烘干后",
	Moisture:       "含水率",
	Separator:      "：",
}

// LabelsFor returns the labels for a language code ("en" or "zh").
// Unknown codes fall back to English.
func LabelsFor(lang string) Labels {
	if strings.EqualFold(lang, "zh") {
		return ChineseLabels
	}
	return EnglishLabels
}

// RenderRecordText renders the record board for both rounds with English
// labels.
func RenderRecordText(round1, round2 RoundRecord) string {
	return EnglishLabels.Render(round1, round2)
}

// Render builds the two-block record board. A weight line appears once its
// value has been recorded (> 0) and the moisture line once the round is
// complete. Weights and percentages use two decimals. Round 2 is separated
// from round 1 by a blank line and its moisture line closes the board
// without a newline.
func (lb Labels) Render(round1, round2 RoundRecord) string {
	var b strings.Builder
	lb.writeRound(&b, round1, "A", "", "\n")
	lb.writeRound(&b, round2, "B", "\n", "")
	return b.String()
}

func (lb Labels) writeRound(b *strings.Builder, r RoundRecord, fallbackID, lead, tail string) {
	id := r.ContainerID
	if id == "" {
		id = fallbackID
	}
	soil := lb.DrySoil
	if r.SoilType == models.SoilWet {
		soil = lb.WetSoil
	}

	if r.EmptyWeight > 0 {
		fmt.Fprintf(b, "%s%s%s%s%.2fg\n", lead, lb.EmptyContainer, id, lb.Separator, r.EmptyWeight)
	}
	if r.WetWeight > 0 {
		fmt.Fprintf(b, "%s%s%s%.2fg\n", soil, lb.Container, lb.Separator, r.WetWeight)
	}
	if r.DryWeight > 0 {
		fmt.Fprintf(b, "%s%s%s%.2fg\n", soil, lb.AfterDrying, lb.Separator, r.DryWeight)
	}
	if r.Complete {
		fmt.Fprintf(b, "%s%s%s%.2f%%%s", soil, lb.Moisture, lb.Separator, r.MoistureContent, tail)
	}
}
