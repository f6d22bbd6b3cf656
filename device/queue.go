// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Role is a functional use of a queue family.
type Role int

// Queue roles.
const (
	RoleGraphics Role = iota
	RoleCompute
	RoleTransfer
	RoleSparse
)

// Roles lists every role in display order.
var Roles = []Role{RoleGraphics, RoleCompute, RoleTransfer, RoleSparse}

func (r Role) String() string {
	switch r {
	case RoleGraphics:
		return "graphics"
	case RoleCompute:
		return "compute"
	case RoleTransfer:
		return "transfer"
	case RoleSparse:
		return "sparse"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Assignment maps each role to an ordered list of family indices.
// A family shows up under every role its flags satisfy.
type Assignment map[Role][]uint32

// Families returns the family indices for role, best first.
func (a Assignment) Families(role Role) []uint32 {
	return a[role]
}

// Referenced returns every family index used by any role, ascending,
// without duplicates.
func (a Assignment) Referenced() []uint32 {
	var all []uint32
	for _, role := range Roles {
		all = append(all, a[role]...)
	}
	slices.Sort(all)
	return slices.Compact(all)
}

// Priority scores a family by its best capability: graphics 4, compute 3,
// transfer 2, sparse binding 1, otherwise 0. The score is the same no
// matter which role list the family is sorted into, so multi purpose
// families sort ahead of dedicated ones.
func Priority(flags QueueFlags) int {
	switch {
	case flags.Has(QueueGraphics):
		return 4
	case flags.Has(QueueCompute):
		return 3
	case flags.Has(QueueTransfer):
		return 2
	case flags.Has(QueueSparseBinding):
		return 1
	}
	return 0
}

func byPriority(a, b QueueFamily) int {
	if c := Priority(b.Flags) - Priority(a.Flags); c != 0 {
		return c
	}
	return cmpUint64(uint64(a.Index), uint64(b.Index))
}

func indices(families []QueueFamily) []uint32 {
	out := make([]uint32, len(families))
	for i, f := range families {
		out[i] = f.Index
	}
	return out
}

func collect(families []QueueFamily, keep func(QueueFamily) bool) []QueueFamily {
	var out []QueueFamily
	for _, f := range families {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// Classify partitions a device's queue families into role lists.
//
// Graphics holds presentable graphics families in index order. Compute,
// transfer and sparse hold every family with the matching flag, sorted by
// descending Priority then ascending index. Empty lists are valid.
func Classify(families []QueueFamily) Assignment {
	graphics := collect(families, QueueFamily.PresentableGraphics)
	compute := collect(families, func(f QueueFamily) bool { return f.Flags.Has(QueueCompute) })
	transfer := collect(families, func(f QueueFamily) bool { return f.Flags.Has(QueueTransfer) })
	sparse := collect(families, func(f QueueFamily) bool { return f.Flags.Has(QueueSparseBinding) })

	slices.SortStableFunc(compute, byPriority)
	slices.SortStableFunc(transfer, byPriority)
	slices.SortStableFunc(sparse, byPriority)

	return Assignment{
		RoleGraphics: indices(graphics),
		RoleCompute:  indices(compute),
		RoleTransfer: indices(transfer),
		RoleSparse:   indices(sparse),
	}
}

// QueueSet holds the materialized queue handles of a device, per family.
type QueueSet[Q any] struct {
	assignment Assignment
	families   map[uint32][]Q
}

// Materialize requests Count handles from get for every family referenced
// by a, keyed by (family index, sequence number). Families missing from
// families contribute no handles.
func Materialize[Q any](a Assignment, families []QueueFamily, get func(family, sequence uint32) Q) *QueueSet[Q] {
	set := &QueueSet[Q]{
		assignment: a,
		families:   make(map[uint32][]Q),
	}
	for _, idx := range a.Referenced() {
		pos := slices.IndexFunc(families, func(f QueueFamily) bool { return f.Index == idx })
		if pos < 0 {
			continue
		}
		count := families[pos].Count
		handles := make([]Q, count)
		for seq := uint32(0); seq < count; seq++ {
			handles[seq] = get(idx, seq)
		}
		set.families[idx] = handles
	}
	return set
}

// Family returns the handles of one family in sequence order.
func (s *QueueSet[Q]) Family(index uint32) []Q {
	return s.families[index]
}

// Role returns the handles of every family in role order.
func (s *QueueSet[Q]) Role(role Role) [][]Q {
	var out [][]Q
	for _, idx := range s.assignment.Families(role) {
		out = append(out, s.families[idx])
	}
	return out
}

// First returns the first handle of the best family for role.
func (s *QueueSet[Q]) First(role Role) (q Q, ok bool) {
	for _, idx := range s.assignment.Families(role) {
		if handles := s.families[idx]; len(handles) > 0 {
			return handles[0], true
		}
	}
	return q, false
}

// Len is the total number of materialized handles.
func (s *QueueSet[Q]) Len() int {
	var n int
	for _, handles := range s.families {
		n += len(handles)
	}
	return n
}
