// SPDX-License-Identifier: MPL-2.0

package initializer

// Module states during a run.
const (
	Unvisited State = iota
	InChain
	Done
	Failed
)

// State is the initialization state of one module.
type State int

func (s State) String() string {
	switch s {
	case Unvisited:
		return "unvisited"
	case InChain:
		return "in-chain"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
