package branches

import "sort"

// BranchRef carries the minimal branch identity a diff reports for display.
type BranchRef struct {
	ID   string
	Name string
}

// DiffEntry describes a key present on only one side of a diff, together
// with that side's full translation map.
type DiffEntry struct {
	Key          string
	Translations TranslationMap
}

// ModifiedEntry describes a key whose translation maps differ between two
// unrelated branches.
type ModifiedEntry struct {
	Key    string
	Source TranslationMap
	Target TranslationMap
}

// ConflictEntry describes a key that diverged between a branch and its
// direct parent since branching.
type ConflictEntry struct {
	Key    string
	Source TranslationMap
	Target TranslationMap
}

// BranchDiff classifies every key-name difference between two branches into
// exactly one of four disjoint sets. Keys with equal translation maps are
// omitted entirely.
type BranchDiff struct {
	Source    BranchRef
	Target    BranchRef
	Added     []DiffEntry
	Modified  []ModifiedEntry
	Deleted   []DiffEntry
	Conflicts []ConflictEntry
}

// Empty reports whether the diff carries no differences at all.
func (d BranchDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Deleted) == 0 && len(d.Conflicts) == 0
}

// lineage tags the ancestry relationship between the two branches of a diff.
// A single SourceBranchID pointer can only express one hop, so the only
// relationship the model can detect is direct parent/child; grandparent
// chains classify as unrelated.
type lineage int

const (
	lineageUnrelated lineage = iota
	lineageDirectChild
)

// classifyLineage computes the ancestry tag once per diff: the source branch
// is a direct child of the target iff its SourceBranchID points at the
// target.
func classifyLineage(source, target *Branch) lineage {
	if source.SourceBranchID != nil && *source.SourceBranchID == target.ID {
		return lineageDirectChild
	}
	return lineageUnrelated
}

// computeDiff classifies the differences between two fully loaded key sets.
// Pure: no storage access, no mutation of the inputs. Entries are emitted in
// ascending key-name order so repeated calls over the same state are
// byte-identical.
func computeDiff(source, target *Branch, sourceKeys, targetKeys map[string]TranslationMap) BranchDiff {
	diff := BranchDiff{
		Source: BranchRef{ID: source.ID, Name: source.Name},
		Target: BranchRef{ID: target.ID, Name: target.Name},
	}
	relationship := classifyLineage(source, target)

	for _, name := range sortedKeyNames(sourceKeys) {
		sourceMap := sourceKeys[name]
		targetMap, present := targetKeys[name]
		if !present {
			diff.Added = append(diff.Added, DiffEntry{Key: name, Translations: sourceMap.Clone()})
			continue
		}
		if sourceMap.Equal(targetMap) {
			continue
		}
		if relationship == lineageDirectChild {
			diff.Conflicts = append(diff.Conflicts, ConflictEntry{
				Key:    name,
				Source: sourceMap.Clone(),
				Target: targetMap.Clone(),
			})
			continue
		}
		diff.Modified = append(diff.Modified, ModifiedEntry{
			Key:    name,
			Source: sourceMap.Clone(),
			Target: targetMap.Clone(),
		})
	}

	for _, name := range sortedKeyNames(targetKeys) {
		if _, present := sourceKeys[name]; present {
			continue
		}
		diff.Deleted = append(diff.Deleted, DiffEntry{Key: name, Translations: targetKeys[name].Clone()})
	}

	return diff
}

func sortedKeyNames(keys map[string]TranslationMap) []string {
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
