package usecase

import "github.com/semmidev/dbvault/internal/config"

// SelectDatabases decides which of the databases reported by the server are
// backed up. With the wildcard export every server database except the
// forgotten ones is selected, in server order. Otherwise the exports that
// exist on the server are selected in export order and forgets are ignored.
// Names compare case-sensitively and the result holds no duplicates.
func SelectDatabases(available, exports, forgets []string) []string {
	if contains(exports, config.WildcardExport) {
		forgotten := toSet(forgets)
		return distinct(available, func(name string) bool {
			_, skip := forgotten[name]
			return !skip
		})
	}

	present := toSet(available)
	return distinct(exports, func(name string) bool {
		_, ok := present[name]
		return ok
	})
}

func distinct(names []string, keep func(string) bool) []string {
	seen := make(map[string]struct{}, len(names))
	selected := make([]string, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup || !keep(name) {
			continue
		}
		seen[name] = struct{}{}
		selected = append(selected, name)
	}
	return selected
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func contains(names []string, target string) bool {
	for _, name := range names {
		if name == target {
			return true
		}
	}
	return false
}
