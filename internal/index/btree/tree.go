package btree

import (
	"fmt"
	"sort"
	"sync"

	"btreedb/internal/dberr"
	"btreedb/internal/storage/pager"
	"btreedb/internal/storage/wal"

	"github.com/spf13/afero"
)

// OpenOptions mirrors the root package's public Options, trimmed to what
// the engine itself needs.
type OpenOptions struct {
	CreateIfMissing bool
	ReadOnly        bool
}

// Tree is the engine: a pager.Device for the main file, a wal.WAL sidecar,
// and the bookkeeping (next free page index) needed to allocate new pages.
// A single mutex serializes every call, matching the handle-level
// cooperative concurrency the format assumes — callers that need
// concurrent readers and writers must coordinate above this layer.
type Tree struct {
	mu         sync.Mutex
	dev        *pager.Device
	wal        *wal.WAL
	nextPageID uint32
	readOnly   bool
}

// rootPageIndex is the fixed location of the initial root leaf, chosen so
// page 0 (the header) never doubles as a node page.
const rootPageIndex = 1

// Open opens or creates the database at path.
func Open(fs afero.Fs, path string, opts OpenOptions) (*Tree, error) {
	const op = "btree.Open"

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, dberr.New(dberr.KindIO, op, err)
	}
	if !exists && !opts.CreateIfMissing {
		return nil, dberr.New(dberr.KindIO, op, fmt.Errorf("database %q does not exist", path))
	}

	dev, err := pager.Open(fs, path, false)
	if err != nil {
		return nil, err
	}
	w, err := wal.Open(fs, path)
	if err != nil {
		dev.Close()
		return nil, err
	}
	if err := wal.Recover(w, dev); err != nil {
		dev.Close()
		w.Close()
		return nil, err
	}

	count, err := dev.PageCount()
	if err != nil {
		dev.Close()
		w.Close()
		return nil, err
	}

	var nextPageID uint32
	if count == 0 {
		if opts.ReadOnly {
			dev.Close()
			w.Close()
			return nil, dberr.New(dberr.KindInvalidArgument, op,
				fmt.Errorf("cannot create database %q in read-only mode", path))
		}
		leaf, err := EncodeLeaf(nil, nil)
		if err != nil {
			dev.Close()
			w.Close()
			return nil, err
		}
		if err := dev.WritePage(rootPageIndex, leaf); err != nil {
			dev.Close()
			w.Close()
			return nil, err
		}
		hdrPage := make([]byte, pager.PageSize)
		if err := pager.EncodeHeader(pager.Header{RootPageID: rootPageIndex}, hdrPage); err != nil {
			dev.Close()
			w.Close()
			return nil, err
		}
		if err := dev.WritePage(0, hdrPage); err != nil {
			dev.Close()
			w.Close()
			return nil, err
		}
		if err := dev.Sync(); err != nil {
			dev.Close()
			w.Close()
			return nil, err
		}
		nextPageID = rootPageIndex + 1
	} else {
		if _, err := pager.ReadHeader(dev); err != nil {
			dev.Close()
			w.Close()
			return nil, err
		}
		nextPageID = count
		if nextPageID < 2 {
			nextPageID = 2
		}
	}

	return &Tree{dev: dev, wal: w, nextPageID: nextPageID, readOnly: opts.ReadOnly}, nil
}

// Sync fsyncs the main file and checkpoints the WAL. A read-only tree
// skips the checkpoint.
func (t *Tree) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.dev.Sync(); err != nil {
		return err
	}
	if t.readOnly {
		return nil
	}
	return t.wal.Checkpoint()
}

// Close performs a final checkpoint and releases both file handles.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.readOnly {
		if err := t.dev.Sync(); err != nil {
			t.dev.Close()
			t.wal.Close()
			return err
		}
		if err := t.wal.Checkpoint(); err != nil {
			t.dev.Close()
			t.wal.Close()
			return err
		}
	}
	if err := t.dev.Close(); err != nil {
		t.wal.Close()
		return err
	}
	return t.wal.Close()
}

// dirtySet accumulates page mutations for one top-level operation so they
// can be committed as a batch: every touched page is appended to the WAL
// and fsynced before any of them reach the main file.
type dirtySet struct {
	pages map[uint32][]byte
	order []uint32
}

func newDirtySet() *dirtySet {
	return &dirtySet{pages: make(map[uint32][]byte)}
}

func (d *dirtySet) set(id uint32, data []byte) {
	if _, ok := d.pages[id]; !ok {
		d.order = append(d.order, id)
	}
	d.pages[id] = data
}

// commit appends and syncs the WAL record for every dirty page, then
// writes each page to the main file. A successful Insert/Delete call
// returns only once this completes, so the WAL record is always durable
// before the caller sees success; the main-file write may still be
// unflushed until the next Sync.
func (t *Tree) commit(dirty *dirtySet) error {
	for _, id := range dirty.order {
		if err := t.wal.Append(id, dirty.pages[id]); err != nil {
			return err
		}
	}
	if len(dirty.order) > 0 {
		if err := t.wal.Sync(); err != nil {
			return err
		}
	}
	for _, id := range dirty.order {
		if err := t.dev.WritePage(id, dirty.pages[id]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) allocPage() uint32 {
	id := t.nextPageID
	t.nextPageID++
	return id
}

func (t *Tree) loadNode(pageID uint32, dirty *dirtySet) (*Node, error) {
	if dirty != nil {
		if data, ok := dirty.pages[pageID]; ok {
			return Decode(data)
		}
	}
	data, err := t.dev.GetPage(pageID)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (t *Tree) stageHeader(dirty *dirtySet, rootID uint32) error {
	page, ok := dirty.pages[0]
	if !ok {
		p, err := t.dev.GetPage(0)
		if err != nil {
			return err
		}
		page = p
	}
	if err := pager.EncodeHeader(pager.Header{RootPageID: rootID}, page); err != nil {
		return err
	}
	dirty.set(0, page)
	return nil
}

// chooseChild implements the separator rule: the smallest i such that
// key < keys[i], or len(keys) if key is at or beyond every separator.
func chooseChild(keys []string, key string) int {
	return sort.Search(len(keys), func(i int) bool { return key < keys[i] })
}

// lowerBound returns the smallest i such that keys[i] >= key, or
// len(keys) if no such index exists.
func lowerBound(keys []string, key string) int {
	return sort.Search(len(keys), func(i int) bool { return keys[i] >= key })
}

// searchLeaf returns the position of key in a sorted leaf's keys, and
// whether it was found.
func searchLeaf(keys []string, key string) (int, bool) {
	i := lowerBound(keys, key)
	return i, i < len(keys) && keys[i] == key
}

// Get performs a point lookup, descending from the root.
func (t *Tree) Get(key string) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	header, err := pager.ReadHeader(t.dev)
	if err != nil {
		return "", false, err
	}
	pageID := header.RootPageID
	for {
		n, err := t.loadNode(pageID, nil)
		if err != nil {
			return "", false, err
		}
		if n.IsLeaf {
			idx, found := searchLeaf(n.Keys, key)
			if !found {
				return "", false, nil
			}
			return n.Values[idx], true, nil
		}
		pageID = n.Children[chooseChild(n.Keys, key)]
	}
}

// splitResult is returned by insert when the visited node split: the
// caller must link in (sep, rightID) at its own level.
type splitResult struct {
	Sep     string
	RightID uint32
}

// Insert adds or overwrites a (key, value) pair.
func (t *Tree) Insert(key, value string) error {
	const op = "btree.Insert"
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.readOnly {
		return dberr.New(dberr.KindStateViolation, op, fmt.Errorf("database is read-only"))
	}

	header, err := pager.ReadHeader(t.dev)
	if err != nil {
		return err
	}

	dirty := newDirtySet()
	sres, err := t.insert(header.RootPageID, key, value, dirty)
	if err != nil {
		return err
	}
	if sres != nil {
		newRootID := t.allocPage()
		buf, err := EncodeInternal([]string{sres.Sep}, []uint32{header.RootPageID, sres.RightID})
		if err != nil {
			return err
		}
		dirty.set(newRootID, buf)
		if err := t.stageHeader(dirty, newRootID); err != nil {
			return err
		}
	}
	return t.commit(dirty)
}

func (t *Tree) insert(pageID uint32, key, value string, dirty *dirtySet) (*splitResult, error) {
	n, err := t.loadNode(pageID, dirty)
	if err != nil {
		return nil, err
	}

	if n.IsLeaf {
		idx, found := searchLeaf(n.Keys, key)
		if found {
			n.Values[idx] = value
		} else {
			n.Keys = insertStringAt(n.Keys, idx, key)
			n.Values = insertStringAt(n.Values, idx, value)
		}
		if len(n.Keys) <= MaxLeafKeys {
			buf, err := EncodeLeaf(n.Keys, n.Values)
			if err != nil {
				return nil, err
			}
			dirty.set(pageID, buf)
			return nil, nil
		}
		return t.splitLeaf(pageID, n, dirty)
	}

	childIdx := chooseChild(n.Keys, key)
	childID := n.Children[childIdx]
	sres, err := t.insert(childID, key, value, dirty)
	if err != nil {
		return nil, err
	}
	if sres == nil {
		return nil, nil
	}

	n.Keys = insertStringAt(n.Keys, childIdx, sres.Sep)
	n.Children = insertUint32At(n.Children, childIdx+1, sres.RightID)

	if len(n.Keys) <= MaxInternalKeys {
		buf, err := EncodeInternal(n.Keys, n.Children)
		if err != nil {
			return nil, err
		}
		dirty.set(pageID, buf)
		return nil, nil
	}
	return t.splitInternal(pageID, n, dirty)
}

func (t *Tree) splitLeaf(pageID uint32, n *Node, dirty *dirtySet) (*splitResult, error) {
	mid := len(n.Keys) / 2
	leftKeys, rightKeys := n.Keys[:mid], n.Keys[mid:]
	leftValues, rightValues := n.Values[:mid], n.Values[mid:]

	rightID := t.allocPage()
	rightBuf, err := EncodeLeaf(rightKeys, rightValues)
	if err != nil {
		return nil, err
	}
	dirty.set(rightID, rightBuf)

	leftBuf, err := EncodeLeaf(leftKeys, leftValues)
	if err != nil {
		return nil, err
	}
	dirty.set(pageID, leftBuf)

	return &splitResult{Sep: rightKeys[0], RightID: rightID}, nil
}

func (t *Tree) splitInternal(pageID uint32, n *Node, dirty *dirtySet) (*splitResult, error) {
	m := len(n.Keys) / 2
	leftKeys, leftChildren := n.Keys[:m], n.Children[:m+1]
	promoted := n.Keys[m]
	rightKeys, rightChildren := n.Keys[m+1:], n.Children[m+1:]

	rightID := t.allocPage()
	rightBuf, err := EncodeInternal(rightKeys, rightChildren)
	if err != nil {
		return nil, err
	}
	dirty.set(rightID, rightBuf)

	leftBuf, err := EncodeInternal(leftKeys, leftChildren)
	if err != nil {
		return nil, err
	}
	dirty.set(pageID, leftBuf)

	return &splitResult{Sep: promoted, RightID: rightID}, nil
}

// deleteResult tells a caller whether the key was found anywhere below,
// and (for non-root nodes) whether this node is now underfull and needs
// repair from its parent.
type deleteResult struct {
	found     bool
	underflow bool
}

// Delete removes key if present, reporting whether it was found.
func (t *Tree) Delete(key string) (bool, error) {
	const op = "btree.Delete"
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.readOnly {
		return false, dberr.New(dberr.KindStateViolation, op, fmt.Errorf("database is read-only"))
	}

	header, err := pager.ReadHeader(t.dev)
	if err != nil {
		return false, err
	}

	dirty := newDirtySet()
	res, err := t.delete(header.RootPageID, key, dirty, true)
	if err != nil {
		return false, err
	}
	if !res.found {
		return false, nil
	}

	root, err := t.loadNode(header.RootPageID, dirty)
	if err != nil {
		return false, err
	}
	if !root.IsLeaf && len(root.Keys) == 0 {
		newRootID := root.Children[0]
		if err := t.stageHeader(dirty, newRootID); err != nil {
			return false, err
		}
	}

	if err := t.commit(dirty); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Tree) delete(pageID uint32, key string, dirty *dirtySet, isRoot bool) (deleteResult, error) {
	n, err := t.loadNode(pageID, dirty)
	if err != nil {
		return deleteResult{}, err
	}

	if n.IsLeaf {
		idx, found := searchLeaf(n.Keys, key)
		if !found {
			return deleteResult{found: false}, nil
		}
		n.Keys = removeStringAt(n.Keys, idx)
		n.Values = removeStringAt(n.Values, idx)
		buf, err := EncodeLeaf(n.Keys, n.Values)
		if err != nil {
			return deleteResult{}, err
		}
		dirty.set(pageID, buf)
		return deleteResult{found: true, underflow: !isRoot && len(n.Keys) < MinLeafKeys}, nil
	}

	childIdx := chooseChild(n.Keys, key)
	childRes, err := t.delete(n.Children[childIdx], key, dirty, false)
	if err != nil {
		return deleteResult{}, err
	}
	if !childRes.found {
		return deleteResult{found: false}, nil
	}

	selfChanged := false
	if childRes.underflow {
		if err := t.repairChild(n, childIdx, dirty); err != nil {
			return deleteResult{}, err
		}
		selfChanged = true
	}
	if selfChanged {
		buf, err := EncodeInternal(n.Keys, n.Children)
		if err != nil {
			return deleteResult{}, err
		}
		dirty.set(pageID, buf)
	}
	return deleteResult{found: true, underflow: !isRoot && len(n.Keys) < MinInternalKeys}, nil
}

// repairChild restores minimum occupancy for parent.Children[childIdx] by
// borrowing from, or merging with, its immediate sibling (the left one
// when present, else the right). It mutates parent.Keys/Children in
// place to reflect the repair and stages every page it rewrites.
func (t *Tree) repairChild(parent *Node, childIdx int, dirty *dirtySet) error {
	childID := parent.Children[childIdx]
	child, err := t.loadNode(childID, dirty)
	if err != nil {
		return err
	}

	if childIdx > 0 {
		siblingIdx := childIdx - 1
		siblingID := parent.Children[siblingIdx]
		sibling, err := t.loadNode(siblingID, dirty)
		if err != nil {
			return err
		}
		if siblingCount(sibling) > minFor(sibling) {
			borrowFromLeft(parent, childIdx, sibling, child)
			return t.stageSplitPages(dirty, siblingID, sibling, childID, child)
		}
		merged := mergeNodes(sibling, parent.Keys[siblingIdx], child)
		buf, err := Encode(merged)
		if err != nil {
			return err
		}
		dirty.set(siblingID, buf)
		parent.Keys = removeStringAt(parent.Keys, siblingIdx)
		parent.Children = removeUint32At(parent.Children, childIdx)
		return nil
	}

	siblingIdx := childIdx + 1
	siblingID := parent.Children[siblingIdx]
	sibling, err := t.loadNode(siblingID, dirty)
	if err != nil {
		return err
	}
	if siblingCount(sibling) > minFor(sibling) {
		borrowFromRight(parent, childIdx, child, sibling)
		return t.stageSplitPages(dirty, childID, child, siblingID, sibling)
	}
	merged := mergeNodes(child, parent.Keys[childIdx], sibling)
	buf, err := Encode(merged)
	if err != nil {
		return err
	}
	dirty.set(siblingID, buf)
	parent.Keys = removeStringAt(parent.Keys, childIdx)
	parent.Children = removeUint32At(parent.Children, childIdx)
	return nil
}

func (t *Tree) stageSplitPages(dirty *dirtySet, idA uint32, a *Node, idB uint32, b *Node) error {
	bufA, err := Encode(a)
	if err != nil {
		return err
	}
	dirty.set(idA, bufA)
	bufB, err := Encode(b)
	if err != nil {
		return err
	}
	dirty.set(idB, bufB)
	return nil
}

func siblingCount(n *Node) int {
	return len(n.Keys)
}

func minFor(n *Node) int {
	if n.IsLeaf {
		return MinLeafKeys
	}
	return MinInternalKeys
}

// borrowFromLeft moves sibling's last entry into child's front, rotating
// the separator at parent.Keys[childIdx-1] through the parent.
func borrowFromLeft(parent *Node, childIdx int, sibling, child *Node) {
	sepIdx := childIdx - 1
	if child.IsLeaf {
		last := len(sibling.Keys) - 1
		k, v := sibling.Keys[last], sibling.Values[last]
		sibling.Keys = sibling.Keys[:last]
		sibling.Values = sibling.Values[:last]
		child.Keys = append([]string{k}, child.Keys...)
		child.Values = append([]string{v}, child.Values...)
		parent.Keys[sepIdx] = child.Keys[0]
		return
	}
	lastChild := len(sibling.Children) - 1
	lastKey := len(sibling.Keys) - 1
	movedChild := sibling.Children[lastChild]
	movedKey := sibling.Keys[lastKey]
	sibling.Children = sibling.Children[:lastChild]
	sibling.Keys = sibling.Keys[:lastKey]
	child.Children = append([]uint32{movedChild}, child.Children...)
	child.Keys = append([]string{parent.Keys[sepIdx]}, child.Keys...)
	parent.Keys[sepIdx] = movedKey
}

// borrowFromRight moves sibling's first entry into child's back, rotating
// the separator at parent.Keys[childIdx] through the parent.
func borrowFromRight(parent *Node, childIdx int, child, sibling *Node) {
	if child.IsLeaf {
		k, v := sibling.Keys[0], sibling.Values[0]
		sibling.Keys = sibling.Keys[1:]
		sibling.Values = sibling.Values[1:]
		child.Keys = append(child.Keys, k)
		child.Values = append(child.Values, v)
		parent.Keys[childIdx] = sibling.Keys[0]
		return
	}
	movedChild := sibling.Children[0]
	movedKey := sibling.Keys[0]
	sibling.Children = sibling.Children[1:]
	sibling.Keys = sibling.Keys[1:]
	child.Children = append(child.Children, movedChild)
	child.Keys = append(child.Keys, parent.Keys[childIdx])
	parent.Keys[childIdx] = movedKey
}

// mergeNodes concatenates left and right (left's separator, sep, included
// only for internal nodes) into one node with left's bytes discarded: the
// caller writes the result to the sibling's page and the other page is
// simply left unreferenced, per the no-reuse policy.
func mergeNodes(left *Node, sep string, right *Node) *Node {
	if left.IsLeaf {
		return &Node{
			IsLeaf: true,
			Keys:   append(append([]string{}, left.Keys...), right.Keys...),
			Values: append(append([]string{}, left.Values...), right.Values...),
		}
	}
	keys := append(append([]string{}, left.Keys...), sep)
	keys = append(keys, right.Keys...)
	children := append(append([]uint32{}, left.Children...), right.Children...)
	return &Node{IsLeaf: false, Keys: keys, Children: children}
}

func insertStringAt(s []string, i int, v string) []string {
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertUint32At(s []uint32, i int, v uint32) []uint32 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeStringAt(s []string, i int) []string {
	return append(s[:i], s[i+1:]...)
}

func removeUint32At(s []uint32, i int) []uint32 {
	return append(s[:i], s[i+1:]...)
}
