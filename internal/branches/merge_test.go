package branches

import (
	"testing"

	"github.com/linguahub/linguahub/backend/internal/domain"
)

func TestPartitionConflictsSeparatesUnresolved(t *testing.T) {
	conflicts := []ConflictEntry{
		{Key: "greeting", Source: TranslationMap{"en": "Hello"}, Target: TranslationMap{"en": "Hi"}},
		{Key: "title", Source: TranslationMap{"en": "New"}, Target: TranslationMap{"en": "Old"}},
	}
	resolutions := []ConflictResolution{
		ResolveWithSource("greeting"),
		ResolveWithTarget("unrelated-key"),
	}

	resolved, unresolved, err := partitionConflicts(conflicts, resolutions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("expected 1 resolved conflict, got %d", len(resolved))
	}
	if resolved["greeting"].Kind != ResolutionUseSource {
		t.Fatalf("unexpected resolution: %+v", resolved["greeting"])
	}
	if len(unresolved) != 1 || unresolved[0].Key != "title" {
		t.Fatalf("unexpected unresolved set: %+v", unresolved)
	}
}

func TestPartitionConflictsRejectsUnknownKind(t *testing.T) {
	conflicts := []ConflictEntry{{Key: "greeting"}}
	resolutions := []ConflictResolution{{Key: "greeting", Kind: ResolutionKind("both")}}

	_, _, err := partitionConflicts(conflicts, resolutions)
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPartitionConflictsRejectsExplicitWithoutMap(t *testing.T) {
	conflicts := []ConflictEntry{{Key: "greeting"}}
	resolutions := []ConflictResolution{{Key: "greeting", Kind: ResolutionExplicit}}

	_, _, err := partitionConflicts(conflicts, resolutions)
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPartitionConflictsRejectsMissingKey(t *testing.T) {
	_, _, err := partitionConflicts(nil, []ConflictResolution{{Kind: ResolutionUseSource}})
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveWithTranslationsClonesInput(t *testing.T) {
	values := TranslationMap{"en": "Howdy"}
	resolution := ResolveWithTranslations("greeting", values)

	values["en"] = "mutated"
	if resolution.Translations["en"] != "Howdy" {
		t.Fatalf("explicit resolution must not alias the caller's map")
	}
}
