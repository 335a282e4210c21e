package normalize

// UniqueResults drops results whose link was already seen, keeping the first
// occurrence. Results without a link are always kept.
func UniqueResults(in []Result) []Result {
	return uniqueBy(in, func(r Result) string { return r.Link }, true)
}

// UniqueSources drops sources without a URI and repeats of a URI.
func UniqueSources(in []Source) []Source {
	return uniqueBy(in, func(s Source) string { return s.URI }, false)
}

func uniqueBy[T any](in []T, key func(T) string, keepKeyless bool) []T {
	seen := make(map[string]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, item := range in {
		k := key(item)
		if k == "" {
			if keepKeyless {
				out = append(out, item)
			}
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
