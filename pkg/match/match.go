// Package match scores a canonical tree against baseline templates.
package match

import (
	"github.com/greywatch/driftwatch/pkg/canon"
	"github.com/greywatch/driftwatch/pkg/template"
)

// DefaultThreshold is the score a template must meet to count as a match.
const DefaultThreshold = 0.80

// Score computes the weighted similarity score in [0,1] of tree against
// tmpl: 0.4*requiredNodeCoverage + 0.4*structuralProximity + 0.2*roleOverlap.
func Score(tree *canon.Tree, tmpl *template.Template) float64 {
	r := requiredNodeCoverage(tree, tmpl)
	s := structuralProximity(tree, tmpl)
	o := roleSetOverlap(tree, tmpl)
	return 0.4*r + 0.4*s + 0.2*o
}

// Match reports whether tree meets threshold against tmpl.
func Match(tree *canon.Tree, tmpl *template.Template, threshold float64) bool {
	return Score(tree, tmpl) >= threshold
}

// Best is the outcome of FindBestMatch.
type Best struct {
	Template *template.Template
	Score    float64
}

// FindBestMatch returns the maximum-scoring template if it meets threshold,
// ties broken by first-encountered order; ok is false if none qualify.
func FindBestMatch(tree *canon.Tree, templates []*template.Template, threshold float64) (best Best, ok bool) {
	bestScore := -1.0
	var bestTmpl *template.Template
	for _, t := range templates {
		s := Score(tree, t)
		if s > bestScore {
			bestScore = s
			bestTmpl = t
		}
	}
	if bestTmpl == nil || bestScore < threshold {
		return Best{}, false
	}
	return Best{Template: bestTmpl, Score: bestScore}, true
}

func requiredNodeCoverage(tree *canon.Tree, tmpl *template.Template) float64 {
	if len(tmpl.RequiredNodes) == 0 {
		return 1.0
	}
	names := namesIn(tree)
	hit := 0
	for _, req := range tmpl.RequiredNodes {
		if names[req] {
			hit++
		}
	}
	return float64(hit) / float64(len(tmpl.RequiredNodes))
}

func namesIn(tree *canon.Tree) map[string]bool {
	out := map[string]bool{}
	var walk func(n *canon.Node)
	walk = func(n *canon.Node) {
		if n == nil {
			return
		}
		if n.Name != "" {
			out[n.Name] = true
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(tree.Root)
	return out
}

// structuralProximity is the mean of depth-similarity and
// node-count-similarity against the template's expected depth and node
// count.
//
// template.Template has no expected_depth/expected_node_count fields:
// it carries only a StructureSignature hash, which is one-way and
// cannot be inverted back into a depth or count to compare against.
// Per the rule that an omitted expectation is treated as "met", both
// terms permanently collapse to 1 for every template built from this
// schema, so structuralProximity is permanently 1.0 and S contributes
// nothing beyond a fixed 0.4 to Score. This is intentional, not a
// placeholder: fixing it would mean widening template.Template's
// schema (and every template file on disk) to carry expected_depth and
// expected_node_count, which is out of scope here.
func structuralProximity(tree *canon.Tree, tmpl *template.Template) float64 {
	depth := treeDepth(tree.Root)
	count := nodeCount(tree.Root)

	expectedDepth, haveDepth := expectedDepthFromSignature(tmpl)
	expectedCount, haveCount := expectedCountFromSignature(tmpl)

	depthSim := 1.0
	if haveDepth {
		depthSim = ratioSimilarity(depth, expectedDepth)
	}
	countSim := 1.0
	if haveCount {
		countSim = ratioSimilarity(count, expectedCount)
	}
	return (depthSim + countSim) / 2.0
}

// expectedDepthFromSignature and expectedCountFromSignature always
// report "no expectation": template.Template has no expected_depth or
// expected_node_count field to read one from (see structuralProximity).
func expectedDepthFromSignature(tmpl *template.Template) (int, bool) { return 0, false }
func expectedCountFromSignature(tmpl *template.Template) (int, bool) { return 0, false }

func ratioSimilarity(a, b int) float64 {
	delta := a - b
	if delta < 0 {
		delta = -delta
	}
	maxAB := a
	if b > maxAB {
		maxAB = b
	}
	if maxAB == 0 {
		return 1.0
	}
	return 1.0 - float64(delta)/float64(maxAB)
}

func treeDepth(n *canon.Node) int {
	if n == nil {
		return 0
	}
	maxChild := 0
	for _, c := range n.Children {
		if d := treeDepth(c); d > maxChild {
			maxChild = d
		}
	}
	return 1 + maxChild
}

func nodeCount(n *canon.Node) int {
	if n == nil {
		return 0
	}
	count := 1
	for _, c := range n.Children {
		count += nodeCount(c)
	}
	return count
}

// roleSetOverlap is the Jaccard index of the tree's role set against
// the template's expected role set.
//
// template.Template carries no expected_roles field either (only
// required_nodes, which are names, not roles), so expectedRoles always
// reports an empty set and O permanently collapses to 1, same as S
// above. Score is therefore permanently 0.4*R + 0.6 for every template
// built from this schema. Widening the schema to carry expected_roles
// would let O do real work; that's out of scope here.
func roleSetOverlap(tree *canon.Tree, tmpl *template.Template) float64 {
	expected := expectedRoles(tmpl)
	if len(expected) == 0 {
		return 1.0
	}
	actual := rolesIn(tree)
	if len(actual) == 0 {
		return 0.0
	}
	inter := 0
	union := map[string]bool{}
	for r := range expected {
		union[r] = true
	}
	for r := range actual {
		union[r] = true
		if expected[r] {
			inter++
		}
	}
	return float64(inter) / float64(len(union))
}

// expectedRoles always reports none: template.Template has no
// dedicated expected-roles field (see roleSetOverlap).
func expectedRoles(tmpl *template.Template) map[string]bool { return nil }

func rolesIn(tree *canon.Tree) map[string]bool {
	out := map[string]bool{}
	var walk func(n *canon.Node)
	walk = func(n *canon.Node) {
		if n == nil {
			return
		}
		if n.Role != "" {
			out[n.Role] = true
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(tree.Root)
	return out
}
