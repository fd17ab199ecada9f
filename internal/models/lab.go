// Package models defines the shared vocabulary of the soil moisture lab:
// soil types, apparatus locations, interaction subjects and action kinds.
package models

import (
	"fmt"
	"strings"
)

// SoilType identifies the sample a container carries.
type SoilType string

const (
	SoilNone SoilType = "none"
	SoilDry  SoilType = "dry"
	SoilWet  SoilType = "wet"
)

// Valid returns true if the soil type is a recognized value.
func (s SoilType) Valid() bool {
	switch s {
	case SoilNone, SoilDry, SoilWet:
		return true
	}
	return false
}

// String returns the string representation of the soil type.
func (s SoilType) String() string {
	return string(s)
}

// ParseSoilType parses a soil type name (case-insensitive).
// An empty string parses as SoilNone.
func ParseSoilType(v string) (SoilType, error) {
	if v == "" {
		return SoilNone, nil
	}
	s := SoilType(strings.ToLower(v))
	if !s.Valid() {
		return SoilNone, fmt.Errorf("invalid soil type: %q (valid: dry, wet)", v)
	}
	return s, nil
}

// Location is where a container currently rests.
type Location string

const (
	LocationTray       Location = "tray"
	LocationBalance    Location = "balance"
	LocationOven       Location = "oven"
	LocationDesiccator Location = "desiccator"
	LocationTrash      Location = "trash"
)

// Valid returns true if the location is a recognized value.
func (l Location) Valid() bool {
	switch l {
	case LocationTray, LocationBalance, LocationOven, LocationDesiccator, LocationTrash:
		return true
	}
	return false
}

// String returns the string representation of the location.
func (l Location) String() string {
	return string(l)
}

// SubjectTag names the scene object an action was performed on.
type SubjectTag string

const (
	TagNone          SubjectTag = ""
	TagContainer     SubjectTag = "Container"
	TagContainerCap  SubjectTag = "ContainerCap"
	TagOvenDoor      SubjectTag = "OvenDoor"
	TagDesiccatorCap SubjectTag = "DesiccatorCap"
	TagRecordControl SubjectTag = "RecordControl"
	TagSkipControl   SubjectTag = "SkipControl"
	TagTool          SubjectTag = "Tool"
	TagSampleSource  SubjectTag = "SampleSource"
	TagCleanControl  SubjectTag = "CleanControl"
	TagNextControl   SubjectTag = "NextControl"
)

// SubjectTags lists every known subject tag in display order.
var SubjectTags = []SubjectTag{
	TagContainer,
	TagContainerCap,
	TagOvenDoor,
	TagDesiccatorCap,
	TagRecordControl,
	TagSkipControl,
	TagTool,
	TagSampleSource,
	TagCleanControl,
	TagNextControl,
}

// String returns the string representation of the tag.
func (t SubjectTag) String() string {
	return string(t)
}

// ParseSubjectTag matches a tag name case-insensitively against SubjectTags.
func ParseSubjectTag(v string) (SubjectTag, error) {
	for _, t := range SubjectTags {
		if strings.EqualFold(string(t), v) {
			return t, nil
		}
	}
	return TagNone, fmt.Errorf("unknown subject tag: %q", v)
}

// ActionKind is the gesture the learner used.
type ActionKind string

const (
	ActionClick ActionKind = "click"
	ActionDrag  ActionKind = "drag"
	ActionDrop  ActionKind = "drop"
)

// Valid returns true if the action kind is a recognized value.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionClick, ActionDrag, ActionDrop:
		return true
	}
	return false
}

// String returns the string representation of the action kind.
func (k ActionKind) String() string {
	return string(k)
}

// ParseActionKind parses an action kind name (case-insensitive).
func ParseActionKind(v string) (ActionKind, error) {
	k := ActionKind(strings.ToLower(v))
	if !k.Valid() {
		return "", fmt.Errorf("invalid action kind: %q (valid: click, drag, drop)", v)
	}
	return k, nil
}
