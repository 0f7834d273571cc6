package player

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/ivlev/frameplayer/internal/node"
)

// GetNodeByID finds nodes below the root. A plain id returns at most the
// first match; an id containing '*' is a glob over the whole id and
// returns every match in tree order.
func (p *Player) GetNodeByID(id string) []node.Node {
	p.mu.Lock()
	root := p.root
	p.mu.Unlock()
	if root == nil {
		return nil
	}

	if !strings.Contains(id, "*") {
		for _, n := range root.AllNodes() {
			if n.ID() == id {
				return []node.Node{n}
			}
		}
		return nil
	}

	g, err := glob.Compile(id)
	if err != nil {
		p.log.Debug("bad node pattern", "pattern", id, "error", err)
		return nil
	}
	var out []node.Node
	for _, n := range root.AllNodes() {
		if g.Match(n.ID()) {
			out = append(out, n)
		}
	}
	return out
}
