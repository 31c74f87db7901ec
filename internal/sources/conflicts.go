package sources

import "log/slog"

// MarkRevConflicts flags the sources whose revision differs from the most
// common revision of their repository.
//
// When several catalog entries point at one repository at different revisions,
// the majority revision keeps the plain checkout path and every other entry is
// marked so that RepoPath gives it a revision-suffixed directory. Ties between
// equally common revisions go to the lexicographically greatest revision.
func MarkRevConflicts(srcs []FontSource) {
	counts := make(map[string]map[string]int)
	for _, s := range srcs {
		revs, ok := counts[s.repoURL]
		if !ok {
			revs = make(map[string]int)
			counts[s.repoURL] = revs
		}
		revs[s.rev]++
	}

	majority := make(map[string]string, len(counts))
	for repoURL, revs := range counts {
		if len(revs) < 2 {
			continue
		}
		var best string
		bestCount := 0
		for rev, n := range revs {
			if n > bestCount || (n == bestCount && rev > best) {
				best, bestCount = rev, n
			}
		}
		majority[repoURL] = best
		slog.Debug("Repository pinned at several revisions",
			"repo_url", repoURL,
			"revisions", len(revs),
			"majority_rev", best)
	}

	for i := range srcs {
		best, ok := majority[srcs[i].repoURL]
		if ok && srcs[i].rev != best {
			srcs[i].hasRevConflict = true
		}
	}
}
