package taskgraph

// damerauLevenshtein computes the Damerau-Levenshtein edit distance
// between a and b, counting single-character insertions, deletions,
// substitutions, and adjacent transpositions as one edit each. Used
// by Resolve to suggest a near-miss task name (specification §4.2).
func damerauLevenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	// d[i][j] = distance between ra[:i] and rb[:j].
	d := make([][]int, la+1)
	for i := range d {
		d[i] = make([]int, lb+1)
		d[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j] = j
	}

	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := d[i-1][j] + 1
			ins := d[i][j-1] + 1
			sub := d[i-1][j-1] + cost
			best := min3(del, ins, sub)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				if t := d[i-2][j-2] + cost; t < best {
					best = t
				}
			}
			d[i][j] = best
		}
	}
	return d[la][lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// closestMatch returns the candidate closest to target (by
// Damerau-Levenshtein distance), if one is within maxDist, preferring
// the first encountered on ties for determinism.
func closestMatch(target string, candidates []string, maxDist int) (string, bool) {
	best := ""
	bestDist := maxDist + 1
	for _, c := range candidates {
		dist := damerauLevenshtein(target, c)
		if dist < bestDist {
			bestDist = dist
			best = c
		}
	}
	return best, bestDist <= maxDist
}
