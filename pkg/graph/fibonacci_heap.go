package graph

import (
	"math"

	"github.com/arup-group/genet-sub002/pkg/util"
)

// heapEntry is a node of the Fibonacci heap. Callers keep the handle returned by Insert
// to decrease its key later.
type heapEntry[T any] struct {
	degree   int
	isMarked bool

	next   *heapEntry[T]
	prev   *heapEntry[T]
	child  *heapEntry[T]
	parent *heapEntry[T]

	elem     T
	priority float64
}

func newHeapEntry[T any](elem T, priority float64) *heapEntry[T] {
	e := &heapEntry[T]{
		elem:     elem,
		priority: priority,
	}
	e.next = e
	e.prev = e
	return e
}

func (e *heapEntry[T]) Priority() float64 {
	return e.priority
}

func (e *heapEntry[T]) Elem() T {
	return e.elem
}

/*
fibonacciHeap is the priority queue behind Dijkstra.

amortized analysis ref: https://www.utsc.utoronto.ca/~atafliovich/cscb63/content/week10/clrs_fibonacci_chapter.pdf
potential function: pot(H) = t(H) + 2m(H), t = trees in root list, m = marked nodes.

Insert O(1), DecreaseKey O(1), ExtractMin O(log n) amortized.
*/
type fibonacciHeap[T any] struct {
	min  *heapEntry[T]
	size int
}

func newFibonacciHeap[T any]() *fibonacciHeap[T] {
	return &fibonacciHeap[T]{}
}

func (f *fibonacciHeap[T]) Min() *heapEntry[T] {
	return f.min
}

func (f *fibonacciHeap[T]) MinPriority() float64 {
	if f.min == nil {
		return math.MaxFloat64
	}
	return f.min.priority
}

func (f *fibonacciHeap[T]) Len() int {
	return f.size
}

func (f *fibonacciHeap[T]) Insert(value T, priority float64) *heapEntry[T] {
	result := newHeapEntry(value, priority)
	f.min = mergeLists(f.min, result)
	f.size++
	return result
}

// mergeLists splices two circular root lists and returns the smaller head.
func mergeLists[T any](one, two *heapEntry[T]) *heapEntry[T] {
	switch {
	case one == nil && two == nil:
		return nil
	case two == nil:
		return one
	case one == nil:
		return two
	}

	oneNext := one.next
	one.next = two.next
	one.next.prev = one
	two.next = oneNext
	two.next.prev = two

	if one.priority < two.priority {
		return one
	}
	return two
}

func (f *fibonacciHeap[T]) DecreaseKey(entry *heapEntry[T], newPriority float64) {
	util.AssertPanic(newPriority <= entry.priority, "new priority %f must not exceed old priority %f",
		newPriority, entry.priority)

	entry.priority = newPriority
	if entry.parent != nil && entry.priority <= entry.parent.priority {
		f.cutNode(entry)
	}
	if entry.priority < f.min.priority {
		f.min = entry
	}
}

// cutNode moves entry to the root list, cascading up through marked parents.
func (f *fibonacciHeap[T]) cutNode(entry *heapEntry[T]) {
	entry.isMarked = false

	parent := entry.parent
	if parent == nil {
		return
	}

	if entry.next != entry {
		entry.next.prev = entry.prev
		entry.prev.next = entry.next
	}
	if parent.child == entry {
		if entry.next != entry {
			parent.child = entry.next
		} else {
			parent.child = nil
		}
	}
	parent.degree--

	entry.prev = entry
	entry.next = entry
	entry.parent = nil
	f.min = mergeLists(f.min, entry)

	if parent.isMarked {
		f.cutNode(parent)
	} else {
		parent.isMarked = true
	}
}

func (f *fibonacciHeap[T]) ExtractMin() *heapEntry[T] {
	util.AssertPanic(f.min != nil, "extract from empty heap")

	f.size--
	minElem := f.min

	if f.min.next == f.min {
		f.min = nil
	} else {
		f.min.prev.next = f.min.next
		f.min.next.prev = f.min.prev
		f.min = f.min.next
	}

	if minElem.child != nil {
		curr := minElem.child
		for {
			curr.parent = nil
			curr = curr.next
			if curr == minElem.child {
				break
			}
		}
	}

	f.min = mergeLists(f.min, minElem.child)
	minElem.child = nil
	minElem.next, minElem.prev = minElem, minElem
	if f.min == nil {
		return minElem
	}

	f.consolidate()
	return minElem
}

// consolidate links roots of equal degree until every root has a distinct degree.
func (f *fibonacciHeap[T]) consolidate() {
	treeTable := make([]*heapEntry[T], 0)

	toVisit := make([]*heapEntry[T], 0)
	for curr := f.min; len(toVisit) == 0 || toVisit[0] != curr; curr = curr.next {
		toVisit = append(toVisit, curr)
	}

	for _, curr := range toVisit {
		for {
			for curr.degree >= len(treeTable) {
				treeTable = append(treeTable, nil)
			}

			if treeTable[curr.degree] == nil {
				treeTable[curr.degree] = curr
				break
			}

			other := treeTable[curr.degree]
			treeTable[curr.degree] = nil

			lo, hi := curr, other
			if other.priority < curr.priority {
				lo, hi = other, curr
			}

			hi.next.prev = hi.prev
			hi.prev.next = hi.next

			hi.next = hi
			hi.prev = hi
			lo.child = mergeLists(lo.child, hi)
			hi.parent = lo
			hi.isMarked = false
			lo.degree++

			curr = lo
		}

		if curr.priority <= f.min.priority {
			f.min = curr
		}
	}
}
