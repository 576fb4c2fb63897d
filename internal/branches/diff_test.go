package branches

import "testing"

func strPtr(value string) *string {
	return &value
}

func TestComputeDiffEmptyForIdenticalSets(t *testing.T) {
	parent := &Branch{ID: "main", Name: "main"}
	child := &Branch{ID: "feature", Name: "feature", SourceBranchID: strPtr("main")}
	keys := map[string]TranslationMap{
		"greeting": {"en": "Hi", "de": "Hallo"},
	}

	diff := computeDiff(child, parent, keys, keys)
	if !diff.Empty() {
		t.Fatalf("expected empty diff, got %+v", diff)
	}
	if diff.Source.ID != "feature" || diff.Target.ID != "main" {
		t.Fatalf("unexpected branch refs: %+v", diff)
	}
}

func TestComputeDiffClassifiesAddedModifiedDeleted(t *testing.T) {
	// Unrelated branches: differences classify as modified, never conflict.
	left := &Branch{ID: "left", Name: "left"}
	right := &Branch{ID: "right", Name: "right"}
	sourceKeys := map[string]TranslationMap{
		"farewell": {"en": "Bye"},
		"greeting": {"en": "Hello"},
		"shared":   {"en": "Same"},
	}
	targetKeys := map[string]TranslationMap{
		"greeting": {"en": "Hi"},
		"legacy":   {"en": "Old"},
		"shared":   {"en": "Same"},
	}

	diff := computeDiff(left, right, sourceKeys, targetKeys)

	if len(diff.Added) != 1 || diff.Added[0].Key != "farewell" {
		t.Fatalf("unexpected added set: %+v", diff.Added)
	}
	if diff.Added[0].Translations["en"] != "Bye" {
		t.Fatalf("added entry should carry source translations: %+v", diff.Added[0])
	}
	if len(diff.Modified) != 1 || diff.Modified[0].Key != "greeting" {
		t.Fatalf("unexpected modified set: %+v", diff.Modified)
	}
	if diff.Modified[0].Source["en"] != "Hello" || diff.Modified[0].Target["en"] != "Hi" {
		t.Fatalf("modified entry should carry both sides: %+v", diff.Modified[0])
	}
	if len(diff.Deleted) != 1 || diff.Deleted[0].Key != "legacy" {
		t.Fatalf("unexpected deleted set: %+v", diff.Deleted)
	}
	if diff.Deleted[0].Translations["en"] != "Old" {
		t.Fatalf("deleted entry should carry target translations: %+v", diff.Deleted[0])
	}
	if len(diff.Conflicts) != 0 {
		t.Fatalf("unrelated branches must never conflict: %+v", diff.Conflicts)
	}
}

func TestComputeDiffConflictRequiresDirectLineage(t *testing.T) {
	parent := &Branch{ID: "main", Name: "main"}
	child := &Branch{ID: "feature", Name: "feature", SourceBranchID: strPtr("main")}
	grandchild := &Branch{ID: "hotfix", Name: "hotfix", SourceBranchID: strPtr("feature")}

	sourceKeys := map[string]TranslationMap{"greeting": {"en": "Hello"}}
	targetKeys := map[string]TranslationMap{"greeting": {"en": "Hi"}}

	childDiff := computeDiff(child, parent, sourceKeys, targetKeys)
	if len(childDiff.Conflicts) != 1 || childDiff.Conflicts[0].Key != "greeting" {
		t.Fatalf("direct child divergence must classify as conflict: %+v", childDiff)
	}
	if len(childDiff.Modified) != 0 {
		t.Fatalf("conflict entry must not double as modified: %+v", childDiff.Modified)
	}

	// One hop too far: the grandchild's pointer names feature, not main.
	grandchildDiff := computeDiff(grandchild, parent, sourceKeys, targetKeys)
	if len(grandchildDiff.Conflicts) != 0 {
		t.Fatalf("grandparent lineage must not conflict: %+v", grandchildDiff.Conflicts)
	}
	if len(grandchildDiff.Modified) != 1 {
		t.Fatalf("grandparent divergence must classify as modified: %+v", grandchildDiff)
	}

	// Reverse direction: the parent is not a child of its child.
	reverseDiff := computeDiff(parent, child, targetKeys, sourceKeys)
	if len(reverseDiff.Conflicts) != 0 {
		t.Fatalf("parent-to-child diff must not conflict: %+v", reverseDiff.Conflicts)
	}
}

func TestComputeDiffPartitionIsDisjoint(t *testing.T) {
	parent := &Branch{ID: "main", Name: "main"}
	child := &Branch{ID: "feature", Name: "feature", SourceBranchID: strPtr("main")}
	sourceKeys := map[string]TranslationMap{
		"added-1":    {"en": "a"},
		"added-2":    {},
		"conflict-1": {"en": "new"},
		"equal-1":    {"en": "same"},
		"equal-2":    {},
	}
	targetKeys := map[string]TranslationMap{
		"conflict-1": {"en": "old"},
		"deleted-1":  {"en": "gone"},
		"equal-1":    {"en": "same"},
		"equal-2":    {},
	}

	diff := computeDiff(child, parent, sourceKeys, targetKeys)

	seen := map[string]int{}
	for _, entry := range diff.Added {
		seen[entry.Key]++
	}
	for _, entry := range diff.Modified {
		seen[entry.Key]++
	}
	for _, entry := range diff.Deleted {
		seen[entry.Key]++
	}
	for _, entry := range diff.Conflicts {
		seen[entry.Key]++
	}
	for name, count := range seen {
		if count != 1 {
			t.Fatalf("key %s appears in %d sets", name, count)
		}
	}
	for _, equalName := range []string{"equal-1", "equal-2"} {
		if _, present := seen[equalName]; present {
			t.Fatalf("translation-equal key %s must be omitted", equalName)
		}
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 classified keys, got %d: %v", len(seen), seen)
	}
}

func TestComputeDiffDistinguishesEmptyValueFromAbsence(t *testing.T) {
	left := &Branch{ID: "left", Name: "left"}
	right := &Branch{ID: "right", Name: "right"}
	sourceKeys := map[string]TranslationMap{"greeting": {"en": ""}}
	targetKeys := map[string]TranslationMap{"greeting": {}}

	diff := computeDiff(left, right, sourceKeys, targetKeys)
	if len(diff.Modified) != 1 {
		t.Fatalf("empty-string value must differ from missing language: %+v", diff)
	}
}

func TestComputeDiffOrdersEntriesByKeyName(t *testing.T) {
	left := &Branch{ID: "left", Name: "left"}
	right := &Branch{ID: "right", Name: "right"}
	sourceKeys := map[string]TranslationMap{
		"zebra": {"en": "z"},
		"apple": {"en": "a"},
		"mango": {"en": "m"},
	}

	diff := computeDiff(left, right, sourceKeys, map[string]TranslationMap{})
	if len(diff.Added) != 3 {
		t.Fatalf("expected 3 added entries, got %d", len(diff.Added))
	}
	expected := []string{"apple", "mango", "zebra"}
	for i, entry := range diff.Added {
		if entry.Key != expected[i] {
			t.Fatalf("unexpected order at %d: got %s, expected %s", i, entry.Key, expected[i])
		}
	}
}

func TestComputeDiffDoesNotAliasInputMaps(t *testing.T) {
	left := &Branch{ID: "left", Name: "left"}
	right := &Branch{ID: "right", Name: "right"}
	sourceKeys := map[string]TranslationMap{"greeting": {"en": "Hello"}}

	diff := computeDiff(left, right, sourceKeys, map[string]TranslationMap{})
	sourceKeys["greeting"]["en"] = "mutated"
	if diff.Added[0].Translations["en"] != "Hello" {
		t.Fatalf("diff entries must not alias caller maps")
	}
}
