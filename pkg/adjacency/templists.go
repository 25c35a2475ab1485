package adjacency

import "iter"

const nilNode = -1

// tempLists holds one singly linked list per vertex and kind. Nodes live in
// a shared pool; removed nodes go on a free list.
type tempLists struct {
	head, tail [kindCount][]int32
	next       []int32
	value      []uint32
	free       int32
}

func newTempLists(estimate int) *tempLists {
	t := &tempLists{free: nilNode}
	for k := range t.head {
		t.head[k] = make([]int32, 0, estimate)
		t.tail[k] = make([]int32, 0, estimate)
	}
	return t
}

func (t *tempLists) ensure(vertex uint32) {
	for k := range t.head {
		for uint32(len(t.head[k])) <= vertex {
			t.head[k] = append(t.head[k], nilNode)
			t.tail[k] = append(t.tail[k], nilNode)
		}
	}
}

func (t *tempLists) alloc(v uint32) int32 {
	if t.free != nilNode {
		n := t.free
		t.free = t.next[n]
		t.next[n] = nilNode
		t.value[n] = v
		return n
	}
	t.next = append(t.next, nilNode)
	t.value = append(t.value, v)
	return int32(len(t.value) - 1)
}

// push appends v to the tail of the vertex's list.
func (t *tempLists) push(k listKind, vertex, v uint32) {
	t.ensure(vertex)
	n := t.alloc(v)
	if tail := t.tail[k][vertex]; tail == nilNode {
		t.head[k][vertex] = n
	} else {
		t.next[tail] = n
	}
	t.tail[k][vertex] = n
}

// remove unlinks the first node holding v.
func (t *tempLists) remove(k listKind, vertex, v uint32) bool {
	if uint32(len(t.head[k])) <= vertex {
		return false
	}
	prev := int32(nilNode)
	for n := t.head[k][vertex]; n != nilNode; prev, n = n, t.next[n] {
		if t.value[n] != v {
			continue
		}
		if prev == nilNode {
			t.head[k][vertex] = t.next[n]
		} else {
			t.next[prev] = t.next[n]
		}
		if t.tail[k][vertex] == n {
			t.tail[k][vertex] = prev
		}
		t.next[n] = t.free
		t.free = n
		return true
	}
	return false
}

func (t *tempLists) values(k listKind, vertex uint32) iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		if uint32(len(t.head[k])) <= vertex {
			return
		}
		for n := t.head[k][vertex]; n != nilNode; n = t.next[n] {
			if !yield(t.value[n]) {
				return
			}
		}
	}
}
