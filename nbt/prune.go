package nbt

import (
	"fmt"
	"strings"
)

// Path identifies a subtree by compound key at each level, with "*"
// matching every element of a list. Matching is case-sensitive.
type Path []string

// Wildcard matches any list index in a prune path.
const Wildcard = "*"

// ParsePath parses a dotted path such as "sections.*.SkyLight".
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("empty prune path")
	}
	parts := strings.Split(s, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("prune path %q has an empty segment", s)
		}
	}
	return Path(parts), nil
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// RuleSet is a static list of prunable subtree paths.
type RuleSet []Path

// ParseRules parses a list of dotted paths into a RuleSet.
func ParseRules(paths []string) (RuleSet, error) {
	rules := make(RuleSet, 0, len(paths))
	for _, s := range paths {
		p, err := ParsePath(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, p)
	}
	return rules, nil
}

// DefaultRuleStrings names the derivable per-chunk caches the game
// rebuilds on load: the heightmap set, the light-populated flag and the
// per-section light arrays. Block, biome and entity data are never
// listed here.
var DefaultRuleStrings = []string{
	"Heightmaps",
	"isLightOn",
	"sections.*.SkyLight",
	"sections.*.BlockLight",
}

// DefaultRules returns the built-in rule set. The set is world-format
// dependent and normally comes from configuration; this is the fallback.
func DefaultRules() RuleSet {
	rules, err := ParseRules(DefaultRuleStrings)
	if err != nil {
		panic(err)
	}
	return rules
}

// Prune removes every subtree of root matching one of the rules and
// returns the number of removed subtrees. Paths that match nothing are
// a no-op, so pruning is idempotent.
func Prune(root *Node, rules RuleSet) int {
	if root == nil || root.Type != TagCompound {
		return 0
	}
	removed := 0
	for _, rule := range rules {
		removed += pruneNode(root, rule)
	}
	return removed
}

func pruneNode(n *Node, path Path) int {
	if n == nil || len(path) == 0 {
		return 0
	}
	seg := path[0]

	switch n.Type {
	case TagCompound:
		if seg == Wildcard {
			// Wildcards address list elements only.
			return 0
		}
		if len(path) == 1 {
			if n.Remove(seg) {
				return 1
			}
			return 0
		}
		return pruneNode(n.Get(seg), path[1:])

	case TagList:
		if seg != Wildcard {
			return 0
		}
		removed := 0
		for _, child := range n.List {
			removed += pruneNode(child, path[1:])
		}
		return removed

	default:
		return 0
	}
}
