package btree

import "github.com/gerald-lindsly/nub/pkg/nuberr"

// errNoCursor is returned by Change when there is no current key, and
// by the path-stack helpers frameAt and pop when the stack is empty.
var errNoCursor = nuberr.New(nuberr.KindLogic, "btree", "no current key: stack underflow")
