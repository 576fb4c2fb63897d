package branches

import (
	"fmt"

	"github.com/linguahub/linguahub/backend/internal/domain"
)

// ResolutionKind selects how a single merge conflict is settled.
type ResolutionKind string

const (
	// ResolutionUseSource applies the source branch's translation map onto
	// the target key.
	ResolutionUseSource ResolutionKind = "source"
	// ResolutionUseTarget keeps the target branch's existing values.
	ResolutionUseTarget ResolutionKind = "target"
	// ResolutionExplicit applies the caller's hand-merged translation map,
	// which need not match either side.
	ResolutionExplicit ResolutionKind = "explicit"
)

// ConflictResolution settles one conflicting key. Translations is consulted
// only for ResolutionExplicit.
type ConflictResolution struct {
	Key          string
	Kind         ResolutionKind
	Translations TranslationMap
}

// ResolveWithSource settles a conflict by taking the source branch's values.
func ResolveWithSource(key string) ConflictResolution {
	return ConflictResolution{Key: key, Kind: ResolutionUseSource}
}

// ResolveWithTarget settles a conflict by keeping the target branch's values.
func ResolveWithTarget(key string) ConflictResolution {
	return ConflictResolution{Key: key, Kind: ResolutionUseTarget}
}

// ResolveWithTranslations settles a conflict with an explicit hand-merged map.
func ResolveWithTranslations(key string, translations TranslationMap) ConflictResolution {
	return ConflictResolution{Key: key, Kind: ResolutionExplicit, Translations: translations.Clone()}
}

func (r ConflictResolution) validate() error {
	if r.Key == "" {
		return domain.Validation("conflict resolution requires a key name")
	}
	switch r.Kind {
	case ResolutionUseSource, ResolutionUseTarget:
		return nil
	case ResolutionExplicit:
		if r.Translations == nil {
			return domain.Validation(fmt.Sprintf("explicit resolution for %q requires a translation map", r.Key))
		}
		return nil
	default:
		return domain.Validation(fmt.Sprintf("unknown resolution kind %q for key %q", string(r.Kind), r.Key))
	}
}

// MergeOptions describes a merge request against a target branch. Resolutions
// may be empty on a first call; the result then reports the outstanding
// conflicts without mutating anything.
type MergeOptions struct {
	TargetBranchID string
	Resolutions    []ConflictResolution
	ActorID        string
}

// MergeResult reports the outcome of a merge. Success false with a non-empty
// Conflicts list is the normal resolve-and-retry signal, not an error.
type MergeResult struct {
	Success   bool
	Merged    int
	Conflicts []ConflictEntry
	Events    []Event
}

// partitionConflicts pairs every conflict with its caller-supplied resolution
// and collects the conflicts left unresolved. Resolutions naming keys that
// are not in conflict are ignored. Pure.
func partitionConflicts(conflicts []ConflictEntry, resolutions []ConflictResolution) (map[string]ConflictResolution, []ConflictEntry, error) {
	byKey := make(map[string]ConflictResolution, len(resolutions))
	for _, resolution := range resolutions {
		if err := resolution.validate(); err != nil {
			return nil, nil, err
		}
		byKey[resolution.Key] = resolution
	}

	resolved := make(map[string]ConflictResolution, len(conflicts))
	var unresolved []ConflictEntry
	for _, conflict := range conflicts {
		resolution, present := byKey[conflict.Key]
		if !present {
			unresolved = append(unresolved, conflict)
			continue
		}
		resolved[conflict.Key] = resolution
	}
	return resolved, unresolved, nil
}
