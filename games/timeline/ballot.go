/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

import (
	"encoding/json"
	"slices"
)

// Ballot holds a team's pending position votes, one per voter. Voters keep
// the slot of their first vote when they change their mind, so iteration
// order is the order in which voters first voted.
type Ballot struct {
	voters    []string
	positions map[string]int
}

// Cast records or overwrites voter's position.
func (b *Ballot) Cast(voter string, pos int) {
	if b.positions == nil {
		b.positions = make(map[string]int)
	}
	if _, ok := b.positions[voter]; !ok {
		b.voters = append(b.voters, voter)
	}
	b.positions[voter] = pos
}

// Position returns voter's current vote.
func (b *Ballot) Position(voter string) (int, bool) {
	pos, ok := b.positions[voter]
	return pos, ok
}

// Withdraw drops voter's vote, if any.
func (b *Ballot) Withdraw(voter string) {
	if _, ok := b.positions[voter]; !ok {
		return
	}
	delete(b.positions, voter)
	b.voters = slices.DeleteFunc(b.voters, func(v string) bool { return v == voter })
}

func (b *Ballot) Len() int {
	return len(b.voters)
}

func (b *Ballot) Clear() {
	b.voters = nil
	b.positions = nil
}

// Each calls fn for every vote in ballot order.
func (b *Ballot) Each(fn func(voter string, pos int)) {
	for _, v := range b.voters {
		fn(v, b.positions[v])
	}
}

func (b Ballot) MarshalJSON() ([]byte, error) {
	if b.positions == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b.positions)
}

// ResolveVotes picks the winning position of a ballot. The most voted
// position wins. On a tie the oracle's vote wins if it is one of the tied
// positions; otherwise the tied position that was voted for first wins.
//
// The first-voted fallback depends on vote order and is not a fair draw.
func ResolveVotes(b *Ballot, oracle string) (int, error) {
	if b == nil || b.Len() == 0 {
		return 0, ErrNoVotes
	}

	var order []int
	counts := make(map[int]int)
	b.Each(func(_ string, pos int) {
		if _, seen := counts[pos]; !seen {
			order = append(order, pos)
		}
		counts[pos]++
	})

	best := 0
	for _, n := range counts {
		if n > best {
			best = n
		}
	}

	top := make([]int, 0, len(order))
	for _, pos := range order {
		if counts[pos] == best {
			top = append(top, pos)
		}
	}

	if len(top) > 1 && oracle != "" {
		if pos, ok := b.Position(oracle); ok && counts[pos] == best {
			return pos, nil
		}
	}

	return top[0], nil
}
