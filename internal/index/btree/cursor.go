package btree

import "btreedb/internal/storage/pager"

// frame is one step of a cursor's root-to-leaf path: the page visited and
// either the child slot taken (internal frames) or the entry position
// within the leaf (the final frame).
type frame struct {
	pageID uint32
	node   *Node
	index  int
}

// Cursor walks the tree in key order. There is no on-disk parent pointer,
// so the path is reconstructed by descent and held in memory for the
// cursor's lifetime, the way the public API's single-handle-at-a-time
// contract assumes.
type Cursor struct {
	t     *Tree
	path  []frame
	valid bool
}

// NewCursor returns a cursor over t, not yet positioned.
func (t *Tree) NewCursor() *Cursor {
	return &Cursor{t: t}
}

// SeekFirst positions the cursor at the smallest key in the tree.
func (c *Cursor) SeekFirst() error {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()

	header, err := pager.ReadHeader(c.t.dev)
	if err != nil {
		return err
	}
	c.path = nil
	return c.descendLeftmost(header.RootPageID)
}

// Seek positions the cursor at the smallest key >= key, invalidating it
// if no such key exists.
func (c *Cursor) Seek(key string) error {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()

	header, err := pager.ReadHeader(c.t.dev)
	if err != nil {
		return err
	}

	c.path = nil
	pageID := header.RootPageID
	for {
		n, err := c.t.loadNode(pageID, nil)
		if err != nil {
			return err
		}
		if n.IsLeaf {
			idx := lowerBound(n.Keys, key)
			c.path = append(c.path, frame{pageID: pageID, node: n, index: idx})
			if idx < len(n.Keys) {
				c.valid = true
				return nil
			}
			// Every key in this leaf is < key: the answer, if any, is the
			// first key of the next leaf to the right.
			c.path = c.path[:len(c.path)-1]
			for len(c.path) > 0 {
				top := &c.path[len(c.path)-1]
				top.index++
				if top.index < len(top.node.Children) {
					return c.descendLeftmost(top.node.Children[top.index])
				}
				c.path = c.path[:len(c.path)-1]
			}
			c.valid = false
			return nil
		}
		childIdx := chooseChild(n.Keys, key)
		c.path = append(c.path, frame{pageID: pageID, node: n, index: childIdx})
		pageID = n.Children[childIdx]
	}
}

func (c *Cursor) descendLeftmost(pageID uint32) error {
	for {
		n, err := c.t.loadNode(pageID, nil)
		if err != nil {
			return err
		}
		c.path = append(c.path, frame{pageID: pageID, node: n, index: 0})
		if n.IsLeaf {
			c.valid = len(n.Keys) > 0
			return nil
		}
		pageID = n.Children[0]
	}
}

// Valid reports whether the cursor is positioned at a (key, value) pair.
func (c *Cursor) Valid() bool {
	return c.valid
}

// Key returns the key at the cursor's current position. Only valid to
// call when Valid reports true.
func (c *Cursor) Key() string {
	last := c.path[len(c.path)-1]
	return last.node.Keys[last.index]
}

// Value returns the value at the cursor's current position. Only valid
// to call when Valid reports true.
func (c *Cursor) Value() string {
	last := c.path[len(c.path)-1]
	return last.node.Values[last.index]
}

// Next advances the cursor to the next key in order, invalidating it once
// the end of the tree is reached.
func (c *Cursor) Next() error {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()

	if !c.valid || len(c.path) == 0 {
		c.valid = false
		return nil
	}

	last := &c.path[len(c.path)-1]
	last.index++
	if last.index < len(last.node.Keys) {
		c.valid = true
		return nil
	}

	c.path = c.path[:len(c.path)-1]
	for len(c.path) > 0 {
		top := &c.path[len(c.path)-1]
		top.index++
		if top.index < len(top.node.Children) {
			return c.descendLeftmost(top.node.Children[top.index])
		}
		c.path = c.path[:len(c.path)-1]
	}
	c.valid = false
	return nil
}
