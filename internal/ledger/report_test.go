package ledger

import (
	"strings"
	"testing"

	"github.com/nvandessel/soillab/internal/models"
)

func TestRenderRecordText(t *testing.T) {
	full1 := RoundRecord{
		EmptyWeight: 25.0, WetWeight: 75.0, DryWeight: 48.5,
		SoilType: models.SoilDry, ContainerID: "A",
	}
	ComputeMoisture(&full1)
	full2 := RoundRecord{
		EmptyWeight: 24.87, WetWeight: 85.5, DryWeight: 75.25,
		SoilType: models.SoilWet, ContainerID: "B",
	}
	ComputeMoisture(&full2)

	tests := []struct {
		name string
		r1   RoundRecord
		r2   RoundRecord
		want string
	}{
		{
			name: "nothing recorded",
			want: "",
		},
		{
			name: "empty weight only falls back to container A",
			r1:   RoundRecord{EmptyWeight: 25.123},
			want: "Empty container A: 25.12g\n",
		},
		{
			name: "round one complete",
			r1:   full1,
			want: "Empty container A: 25.00g\n" +
				"Dry soil container: 75.00g\n" +
				"Dry soil after drying: 48.50g\n" +
				"Dry soil moisture content: 112.77%\n",
		},
		{
			name: "both rounds complete",
			r1:   full1,
			r2:   full2,
			want: "Empty container A: 25.00g\n" +
				"Dry soil container: 75.00g\n" +
				"Dry soil after drying: 48.50g\n" +
				"Dry soil moisture content: 112.77%\n" +
				"\nEmpty container B: 24.87g\n" +
				"Wet soil container: 85.50g\n" +
				"Wet soil after drying: 75.25g\n" +
				"Wet soil moisture content: 20.35%",
		},
		{
			name: "round two in progress without id",
			r1:   full1,
			r2:   RoundRecord{EmptyWeight: 25.4, SoilType: models.SoilWet},
			want: "Empty container A: 25.00g\n" +
				"Dry soil container: 75.00g\n" +
				"Dry soil after drying: 48.50g\n" +
				"Dry soil moisture content: 112.77%\n" +
				"\nEmpty container B: 25.40g\n",
		},
		{
			name: "invalid dry weight shows weight but no moisture",
			r1:   RoundRecord{EmptyWeight: 25, WetWeight: 75, DryWeight: 20, ContainerID: "B"},
			want: "Empty container B: 25.00g\n" +
				"Dry soil container: 75.00g\n" +
				"Dry soil after drying: 20.00g\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderRecordText(tt.r1, tt.r2); got != tt.want {
				t.Errorf("RenderRecordText() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestChineseLabels(t *testing.T) {
	r := RoundRecord{EmptyWeight: 25.0, WetWeight: 85.0, DryWeight: 75.0, SoilType: models.SoilWet, ContainerID: "B"}
	ComputeMoisture(&r)

	got := LabelsFor("zh").Render(r, RoundRecord{})
	want := "空铝罐B：25.00g\n湿土罐子：85.00g\n湿土烘干后：75.00g\n湿土含水率：20.00%\n"
	if got != want {
		t.Errorf("Render() =\n%q\nwant\n%q", got, want)
	}
}

func TestLabelsFor_Fallback(t *testing.T) {
	if LabelsFor("fr") != EnglishLabels {
		t.Error("unknown language should fall back to English")
	}
	if !strings.Contains(LabelsFor("EN").EmptyContainer, "Empty") {
		t.Error("EN should map to English labels")
	}
}
