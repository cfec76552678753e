package network

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/google/uuid"
)

// EdgeRef addresses one edge of the multigraph.
type EdgeRef struct {
	From         string `json:"from"`
	To           string `json:"to"`
	MultiEdgeIdx int    `json:"multi_edge_idx"`
}

// LinkIDMapping resolves a link id to its multigraph address. It is the only way links
// are looked up by id.
type LinkIDMapping map[string]EdgeRef

// IDStrategy is the tier of the id generator that produced an id.
type IDStrategy int

const (
	// AllNumeric: every existing id is an integer of any size, the next id is max+1.
	AllNumeric IDStrategy = iota
	// Mixed: some id is not an integer, the next id is len+1.
	Mixed
	// Collision: the sequential candidate is taken, fall back to a random uuid.
	Collision
)

func (s IDStrategy) String() string {
	switch s {
	case AllNumeric:
		return "all_numeric"
	case Mixed:
		return "mixed"
	case Collision:
		return "collision"
	default:
		return fmt.Sprintf("IDStrategy(%d)", int(s))
	}
}

// IDDecision is the outcome of one id generation.
type IDDecision struct {
	Strategy IDStrategy
	ID       string
}

// classify picks the sequential tier and its candidate id. An empty mapping is Mixed,
// so the first generated id is "1".
func (m LinkIDMapping) classify() (IDStrategy, string) {
	if len(m) == 0 {
		return Mixed, strconv.Itoa(len(m) + 1)
	}
	var maxID *big.Int
	for id := range m {
		n, ok := new(big.Int).SetString(id, 10)
		if !ok {
			return Mixed, strconv.Itoa(len(m) + 1)
		}
		if maxID == nil || n.Cmp(maxID) > 0 {
			maxID = n
		}
	}
	return AllNumeric, maxID.Add(maxID, big.NewInt(1)).String()
}

// NextID generates an id not present in the mapping nor in avoid.
func (m LinkIDMapping) NextID(avoid map[string]struct{}) IDDecision {
	strategy, candidate := m.classify()
	_, taken := m[candidate]
	_, avoided := avoid[candidate]
	if taken || avoided {
		return IDDecision{Strategy: Collision, ID: uuid.NewString()}
	}
	return IDDecision{Strategy: strategy, ID: candidate}
}
