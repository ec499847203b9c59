package floodmap

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sfas-observations/floodload/mapslicehelp"
)

// MergeStrategy decides which bounds a depth class keeps when features
// disagree on them.
type MergeStrategy string

const (
	FirstWins       MergeStrategy = "first-wins"
	LastWins        MergeStrategy = "last-wins"
	RejectConflicts MergeStrategy = "reject"
)

func ParseMergeStrategy(s string) (MergeStrategy, error) {
	switch m := MergeStrategy(strings.ToLower(strings.TrimSpace(s))); m {
	case FirstWins, LastWins, RejectConflicts:
		return m, nil
	case "":
		return FirstWins, nil
	default:
		return "", fmt.Errorf("unknown merge strategy %q", s)
	}
}

// Conflict records a feature whose bounds differ from the ones already seen
// for its depth class.
type Conflict struct {
	Index    int
	Existing DepthClass
	Incoming DepthClass
}

func (c Conflict) String() string {
	return fmt.Sprintf("depth_class %d: feature %d has [%v, %v], already seen [%v, %v]",
		c.Existing.Class, c.Index, c.Incoming.Min, c.Incoming.Max, c.Existing.Min, c.Existing.Max)
}

type Extraction struct {
	// Classes are in order of first appearance.
	Classes   []DepthClass
	Conflicts []Conflict
}

// ExtractDepthClasses walks the features once and collects one DepthClass per
// distinct depth_class. Features that failed to decode or carry no
// depth_class are ignored.
func ExtractDepthClasses(features []Feature, strategy MergeStrategy) (Extraction, error) {
	seen := orderedmap.New[int64, DepthClass]()
	var conflicts []Conflict

	for _, f := range features {
		if f.Err != nil || !f.Properties.DepthClass.Valid {
			continue
		}
		incoming := DepthClass{
			Class: f.Properties.DepthClass.Int64,
			Min:   f.Properties.DepthMin,
			Max:   f.Properties.DepthMax,
		}
		existing, present := seen.Get(incoming.Class)
		if !present {
			seen.Set(incoming.Class, incoming)
			continue
		}
		if existing == incoming {
			continue
		}
		conflicts = append(conflicts, Conflict{Index: f.Index, Existing: existing, Incoming: incoming})
		if strategy == LastWins {
			// Set keeps the original position of the key
			seen.Set(incoming.Class, incoming)
		}
	}

	extraction := Extraction{
		Classes:   mapslicehelp.OrderedMapValues(seen),
		Conflicts: conflicts,
	}
	if strategy == RejectConflicts && len(conflicts) > 0 {
		return extraction, fmt.Errorf("%w: %d feature(s), first: %s", ErrDepthClassConflict, len(conflicts), conflicts[0])
	}
	return extraction, nil
}
