package simulation

import (
	"fmt"
	"os"

	"github.com/nvandessel/soillab/internal/experiment"
	"github.com/nvandessel/soillab/internal/models"
	"github.com/nvandessel/soillab/internal/sanitize"
	"gopkg.in/yaml.v3"
)

// Script is a replayable session.
type Script struct {
	Name string `json:"name" yaml:"name"`
	// Seed seeds the simulated balance. 0 leaves the choice to the caller's
	// options.
	Seed       uint64              `json:"seed,omitempty" yaml:"seed,omitempty"`
	Language   string              `json:"language,omitempty" yaml:"language,omitempty"`
	Containers []string            `json:"containers,omitempty" yaml:"containers,omitempty"`
	RoundSoils []models.SoilType   `json:"round_soils,omitempty" yaml:"round_soils,omitempty"`
	Actions    []experiment.Action `json:"actions" yaml:"actions"`
}

func click(tag models.SubjectTag) experiment.Action {
	return experiment.Action{Tag: tag, Kind: models.ActionClick}
}

func drag() experiment.Action {
	return experiment.Action{Tag: models.TagContainer, Kind: models.ActionDrag}
}

// RoundActions is the interaction sequence of one correctly performed round
// with container id. The desiccator hands the container back on its own, so
// there is no action for taking it out.
func RoundActions(id string) []experiment.Action {
	first := drag()
	first.ContainerID = id
	return []experiment.Action{
		first,
		click(models.TagRecordControl),
		drag(),
		click(models.TagContainerCap),
		click(models.TagTool),
		click(models.TagSampleSource),
		click(models.TagContainerCap),
		drag(),
		click(models.TagRecordControl),
		drag(),
		click(models.TagContainerCap),
		click(models.TagOvenDoor),
		drag(),
		click(models.TagOvenDoor),
		click(models.TagSkipControl),
		click(models.TagOvenDoor),
		drag(),
		click(models.TagDesiccatorCap),
		drag(),
		click(models.TagDesiccatorCap),
		click(models.TagSkipControl),
		click(models.TagDesiccatorCap),
		click(models.TagContainerCap),
		drag(),
		click(models.TagRecordControl),
		drag(),
		click(models.TagCleanControl),
		click(models.TagNextControl),
	}
}

// StandardScript performs both rounds correctly, round 1 with first and
// round 2 with second.
func StandardScript(first, second string) Script {
	actions := append(RoundActions(first), RoundActions(second)...)
	return Script{
		Name:       "standard",
		Containers: []string{first, second},
		Actions:    actions,
	}
}

// LoadScript reads a YAML script from path.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("reading script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes and normalizes a YAML script. Tag and kind names are
// matched case-insensitively.
func ParseScript(data []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("parsing script: %w", err)
	}
	if err := s.normalize(); err != nil {
		return Script{}, err
	}
	return s, nil
}

func (s *Script) normalize() error {
	s.Name = sanitize.Name(s.Name)
	if len(s.Actions) == 0 {
		return fmt.Errorf("script %q has no actions", s.Name)
	}
	for _, id := range s.Containers {
		if !sanitize.ValidContainerID(id) {
			return fmt.Errorf("script %q: invalid container id %q", s.Name, id)
		}
	}
	for i, a := range s.Actions {
		tag, err := models.ParseSubjectTag(string(a.Tag))
		if err != nil {
			return fmt.Errorf("action %d: %w", i+1, err)
		}
		kind, err := models.ParseActionKind(string(a.Kind))
		if err != nil {
			return fmt.Errorf("action %d: %w", i+1, err)
		}
		if a.Soil != "" {
			soil, err := models.ParseSoilType(string(a.Soil))
			if err != nil {
				return fmt.Errorf("action %d: %w", i+1, err)
			}
			s.Actions[i].Soil = soil
		}
		s.Actions[i].Tag = tag
		s.Actions[i].Kind = kind
		s.Actions[i].ContainerID = sanitize.ContainerID(a.ContainerID)
	}
	return nil
}
