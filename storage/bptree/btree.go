// Package bptree implements the persistent B+ tree over an index file.
// Keys live in order inside the leaves, which chain left to right, so
// range scans walk the chain without touching internal nodes.
package bptree

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xtabledb/common"
	"github.com/zhukovaskychina/xtabledb/logger"
	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/storage/pages"
	"github.com/zhukovaskychina/xtabledb/storage/store"
)

// Iterator yields one (key, locator) pair per call in key order. The
// returned Iterator resumes after that pair; a nil Iterator with nil
// error means the scan is exhausted.
type Iterator func() (key basic.Value, loc basic.RowLocator, err error, it Iterator)

// BTree reads and grows one tree. Every mutated node goes back through
// the store before the operation returns, so the cache can evict at
// will between operations.
//
// Write operations are not safe for concurrent mutation by multiple
// goroutines, but read operations are.
type BTree struct {
	store *store.IndexFile
	order int
}

func NewBTree(f *store.IndexFile) *BTree {
	return &BTree{
		store: f,
		order: f.Order(),
	}
}

func (self *BTree) Order() int {
	return self.order
}

// Search 精确查找，返回键所在行的定位器
func (self *BTree) Search(key basic.Value) (basic.RowLocator, bool, error) {
	if err := self.checkKey(key); err != nil {
		return basic.RowLocator{}, false, err
	}
	root := self.store.RootPageNo()
	if root == common.PAGE_NONE {
		return basic.RowLocator{}, false, nil
	}
	a, i, err := self._getStart(root, &key)
	if err != nil {
		return basic.RowLocator{}, false, err
	}

	var loc basic.RowLocator
	var found bool
	err = self.doLeaf(a, func(n *pages.IndexPage) error {
		if i >= len(n.Keys) {
			return nil
		}
		equal, cmpErr := n.Keys[i].Equal(key)
		if cmpErr != nil {
			return cmpErr
		}
		if equal {
			found = true
			loc = n.Locators[i]
		}
		return nil
	})
	if err != nil {
		return basic.RowLocator{}, false, err
	}
	return loc, found, nil
}

// Insert adds one (key, locator) pair. A key equal to a stored key is
// refused with ErrDuplicateKey and the tree is left untouched.
func (self *BTree) Insert(key basic.Value, loc basic.RowLocator) error {
	if err := self.checkKey(key); err != nil {
		return err
	}
	root := self.store.RootPageNo()
	if root == common.PAGE_NONE {
		return self.createRootLeaf(key, loc)
	}

	a, i, err := self._getStart(root, &key)
	if err != nil {
		return err
	}
	leaf, err := self.store.LoadNode(a)
	if err != nil {
		return err
	}
	if i < len(leaf.Keys) {
		equal, cmpErr := leaf.Keys[i].Equal(key)
		if cmpErr != nil {
			return cmpErr
		}
		if equal {
			return errors.Wrapf(basic.ErrDuplicateKey, "key %s already stored", key.String())
		}
	}

	leaf.Keys = append(leaf.Keys, basic.Value{})
	copy(leaf.Keys[i+1:], leaf.Keys[i:])
	leaf.Keys[i] = key
	leaf.Locators = append(leaf.Locators, basic.RowLocator{})
	copy(leaf.Locators[i+1:], leaf.Locators[i:])
	leaf.Locators[i] = loc

	if len(leaf.Keys) > self.order {
		return self.splitLeaf(leaf)
	}
	return self.store.StoreNode(leaf)
}

// Range scans keys in [from, to], both ends inclusive.
func (self *BTree) Range(from, to basic.Value) (Iterator, error) {
	if err := self.checkKey(from); err != nil {
		return nil, err
	}
	if err := self.checkKey(to); err != nil {
		return nil, err
	}
	return self.forward(&from, &to)
}

// Forward scans the whole tree in ascending key order.
func (self *BTree) Forward() (Iterator, error) {
	return self.forward(nil, nil)
}

// Delete 引擎只追加，不支持删除
func (self *BTree) Delete(key basic.Value) error {
	return errors.Wrapf(basic.ErrUnsupported, "tree does not delete keys")
}

// Update 引擎只追加，不支持原地更新
func (self *BTree) Update(key basic.Value, loc basic.RowLocator) error {
	return errors.Wrapf(basic.ErrUnsupported, "tree does not update keys in place")
}

// Height counts levels from root to leaf; an empty tree has height 0.
func (self *BTree) Height() (int, error) {
	pageNo := self.store.RootPageNo()
	if pageNo == common.PAGE_NONE {
		return 0, nil
	}
	height := 0
	for {
		node, err := self.store.LoadNode(pageNo)
		if err != nil {
			return 0, err
		}
		height++
		if node.IsLeaf() {
			return height, nil
		}
		pageNo = node.Children[0]
	}
}

func (self *BTree) checkKey(key basic.Value) error {
	if key.Type() != self.store.KeyType() {
		return errors.Wrapf(basic.ErrTypeMismatch, "tree is keyed by type %d, got type %d", byte(self.store.KeyType()), byte(key.Type()))
	}
	if key.Type() == basic.TypeString && key.Capacity() != self.store.KeyCapacity() {
		return errors.Wrapf(basic.ErrTypeMismatch, "tree takes strings of capacity %d, got capacity %d", self.store.KeyCapacity(), key.Capacity())
	}
	return nil
}

func (self *BTree) do(pageNo uint32, internalDo func(n *pages.IndexPage) error, leafDo func(n *pages.IndexPage) error) error {
	node, err := self.store.LoadNode(pageNo)
	if err != nil {
		return err
	}
	if node.IsLeaf() {
		return leafDo(node)
	}
	return internalDo(node)
}

func (self *BTree) doLeaf(pageNo uint32, do func(n *pages.IndexPage) error) error {
	return self.do(pageNo, func(n *pages.IndexPage) error {
		return errors.Errorf("unexpected internal node at page %d", pageNo)
	}, do)
}

func (self *BTree) doInternal(pageNo uint32, do func(n *pages.IndexPage) error) error {
	return self.do(pageNo, do, func(n *pages.IndexPage) error {
		return errors.Errorf("unexpected leaf node at page %d", pageNo)
	})
}

/* returns the (pageNo, idx) of the leaf block and the index of the
* first key greater or equal to the search key; idx may point one past
* the last key of that leaf, nextLoc normalizes it onto the chain.
 */
func (self *BTree) _getStart(n uint32, from *basic.Value) (pageNo uint32, i int, err error) {
	err = self.do(n,
		func(internal *pages.IndexPage) error {
			kid := internal.Children[0]
			if from != nil {
				idx, ubErr := upperBound(internal.Keys, *from)
				if ubErr != nil {
					return ubErr
				}
				kid = internal.Children[idx]
			}
			var doErr error
			pageNo, i, doErr = self._getStart(kid, from)
			return doErr
		},
		func(leaf *pages.IndexPage) error {
			pageNo = leaf.PageNo
			if from == nil {
				i = 0
				return nil
			}
			idx, lbErr := lowerBound(leaf.Keys, *from)
			if lbErr != nil {
				return lbErr
			}
			i = idx
			return nil
		})
	return pageNo, i, err
}

func (self *BTree) forward(from, to *basic.Value) (Iterator, error) {
	root := self.store.RootPageNo()
	if root == common.PAGE_NONE {
		var bi Iterator
		bi = func() (basic.Value, basic.RowLocator, error, Iterator) {
			return basic.Value{}, basic.RowLocator{}, nil, nil
		}
		return bi, nil
	}
	a, i, err := self._getStart(root, from)
	if err != nil {
		return nil, err
	}
	return self.forwardFrom(a, i, to)
}

func (self *BTree) forwardFrom(a uint32, i int, to *basic.Value) (Iterator, error) {
	i--
	var bi Iterator
	bi = func() (basic.Value, basic.RowLocator, error, Iterator) {
		var err error
		var end bool
		a, i, end, err = self.nextLoc(a, i)
		if err != nil {
			return basic.Value{}, basic.RowLocator{}, err, nil
		}
		if end {
			return basic.Value{}, basic.RowLocator{}, nil, nil
		}
		var key basic.Value
		var loc basic.RowLocator
		err = self.doLeaf(a, func(n *pages.IndexPage) error {
			key = n.Keys[i]
			loc = n.Locators[i]
			return nil
		})
		if err != nil {
			return basic.Value{}, basic.RowLocator{}, err, nil
		}
		if to != nil {
			cmp, cmpErr := key.Compare(*to)
			if cmpErr != nil {
				return basic.Value{}, basic.RowLocator{}, cmpErr, nil
			}
			if cmp > 0 {
				return basic.Value{}, basic.RowLocator{}, nil, nil
			}
		}
		return key, loc, nil, bi
	}
	return bi, nil
}

// 顺着叶子链取下一个位置，越过空隙直到落在合法键上
func (self *BTree) nextLoc(pageNo uint32, i int) (uint32, int, bool, error) {
	j := i + 1
	nextBlk := func(pageNo uint32, j int) (uint32, int, bool, error) {
		changed := false
		err := self.doLeaf(pageNo, func(n *pages.IndexPage) error {
			if j >= len(n.Keys) && n.Next != common.PAGE_NONE {
				pageNo = n.Next
				j = 0
				changed = true
			}
			return nil
		})
		if err != nil {
			return 0, 0, false, err
		}
		return pageNo, j, changed, nil
	}
	var changed bool = true
	var err error = nil
	for changed {
		pageNo, j, changed, err = nextBlk(pageNo, j)
		if err != nil {
			return 0, 0, false, err
		}
	}
	var end bool = false
	err = self.doLeaf(pageNo, func(n *pages.IndexPage) error {
		if j >= len(n.Keys) {
			end = true
		}
		return nil
	})
	if err != nil {
		return 0, 0, false, err
	}
	return pageNo, j, end, nil
}

func (self *BTree) createRootLeaf(key basic.Value, loc basic.RowLocator) error {
	pageNo, err := self.store.AllocatePage()
	if err != nil {
		return err
	}
	leaf := pages.NewLeafPage(pageNo, self.store.KeyType(), self.store.KeyCapacity())
	leaf.Keys = []basic.Value{key}
	leaf.Locators = []basic.RowLocator{loc}
	if err := self.store.StoreNode(leaf); err != nil {
		return err
	}
	return self.store.SetRootPageNo(pageNo)
}

// splitLeaf cuts an overflowing leaf in two. The right sibling keeps
// the upper half, its first key is copied up as the separator and
// remains in the sibling.
func (self *BTree) splitLeaf(leaf *pages.IndexPage) error {
	mid := (len(leaf.Keys) + 1) / 2

	rightNo, err := self.store.AllocatePage()
	if err != nil {
		return err
	}
	right := pages.NewLeafPage(rightNo, leaf.KeyType, leaf.KeyCapacity)
	right.Keys = append([]basic.Value(nil), leaf.Keys[mid:]...)
	right.Locators = append([]basic.RowLocator(nil), leaf.Locators[mid:]...)
	right.Prev = leaf.PageNo
	right.Next = leaf.Next
	right.Parent = leaf.Parent

	leaf.Keys = append([]basic.Value(nil), leaf.Keys[:mid]...)
	leaf.Locators = append([]basic.RowLocator(nil), leaf.Locators[:mid]...)
	oldNextNo := right.Next
	leaf.Next = rightNo

	if oldNextNo != common.PAGE_NONE {
		oldNext, loadErr := self.store.LoadNode(oldNextNo)
		if loadErr != nil {
			return loadErr
		}
		oldNext.Prev = rightNo
		if storeErr := self.store.StoreNode(oldNext); storeErr != nil {
			return storeErr
		}
	}

	return self.insertIntoParent(leaf, right, right.Keys[0])
}

// splitInternal cuts an overflowing internal node in two. The middle
// key moves up as the separator and is kept by neither half.
func (self *BTree) splitInternal(node *pages.IndexPage) error {
	midIdx := len(node.Keys) / 2
	sep := node.Keys[midIdx]

	rightNo, err := self.store.AllocatePage()
	if err != nil {
		return err
	}
	right := pages.NewInternalPage(rightNo, node.KeyType, node.KeyCapacity)
	right.Keys = append([]basic.Value(nil), node.Keys[midIdx+1:]...)
	right.Children = append([]uint32(nil), node.Children[midIdx+1:]...)
	right.Parent = node.Parent

	node.Keys = append([]basic.Value(nil), node.Keys[:midIdx]...)
	node.Children = append([]uint32(nil), node.Children[:midIdx+1]...)

	for _, childNo := range right.Children {
		child, loadErr := self.store.LoadNode(childNo)
		if loadErr != nil {
			return loadErr
		}
		child.Parent = rightNo
		if storeErr := self.store.StoreNode(child); storeErr != nil {
			return storeErr
		}
	}

	return self.insertIntoParent(node, right, sep)
}

// insertIntoParent hangs a freshly split pair under its parent, growing
// a new root when the split reached the top. Both halves are stored
// here, after their parent links settle.
func (self *BTree) insertIntoParent(left, right *pages.IndexPage, sep basic.Value) error {
	if left.Parent == common.PAGE_NONE {
		rootNo, err := self.store.AllocatePage()
		if err != nil {
			return err
		}
		left.Parent = rootNo
		right.Parent = rootNo
		if err := self.store.StoreNode(left); err != nil {
			return err
		}
		if err := self.store.StoreNode(right); err != nil {
			return err
		}
		root := pages.NewInternalPage(rootNo, left.KeyType, left.KeyCapacity)
		root.Keys = []basic.Value{sep}
		root.Children = []uint32{left.PageNo, right.PageNo}
		if err := self.store.StoreNode(root); err != nil {
			return err
		}
		logger.Debugf("根节点分裂, 新根页面 %d", rootNo)
		return self.store.SetRootPageNo(rootNo)
	}

	if err := self.store.StoreNode(left); err != nil {
		return err
	}
	if err := self.store.StoreNode(right); err != nil {
		return err
	}
	parent, err := self.store.LoadNode(left.Parent)
	if err != nil {
		return err
	}
	idx, err := upperBound(parent.Keys, sep)
	if err != nil {
		return err
	}
	parent.Keys = append(parent.Keys, basic.Value{})
	copy(parent.Keys[idx+1:], parent.Keys[idx:])
	parent.Keys[idx] = sep
	parent.Children = append(parent.Children, 0)
	copy(parent.Children[idx+2:], parent.Children[idx+1:])
	parent.Children[idx+1] = right.PageNo

	if len(parent.Children) > self.order {
		return self.splitInternal(parent)
	}
	return self.store.StoreNode(parent)
}

// lowerBound 第一个不小于key的下标
func lowerBound(keys []basic.Value, key basic.Value) (int, error) {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		cmp, err := keys[mid].Compare(key)
		if err != nil {
			return 0, err
		}
		if cmp < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// upperBound 第一个严格大于key的下标
func upperBound(keys []basic.Value, key basic.Value) (int, error) {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		cmp, err := keys[mid].Compare(key)
		if err != nil {
			return 0, err
		}
		if cmp <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}
