// Package btree implements the chunk directory: the version 1 "TREE"
// B-tree that maps chunk coordinates to the file address, stored size and
// filter mask of each written chunk.
//
// # Node Format
//
// Every node starts with the signature "TREE", a node type (always 1 for
// chunk trees), a level (0 for leaves), the number of children in use and
// two sibling addresses. It is followed by entriesUsed+1 keys interleaved
// with entriesUsed child addresses:
//
//	key0 child0 key1 child1 ... keyN
//
// A key holds the stored chunk size, the filter mask and rank+1 element
// offsets; the trailing offset is always zero. In a leaf, key i describes
// the chunk stored at child i. In an internal node, key i is the smallest
// key reachable through child i and the final key bounds the subtree.
//
// # Lookup
//
// [Directory.Lookup] descends from the root one node at a time, picking the
// last child whose key is not greater than the target. Parsed nodes are kept
// in an arena keyed by file offset and lookup results, including misses, are
// cached by coordinate, so repeated lookups cost no I/O. A structurally
// inconsistent tree yields [ErrCorruptDirectory].
//
// [Write] builds a multi-level tree from a set of entries and is used to
// produce synthetic files.
package btree
