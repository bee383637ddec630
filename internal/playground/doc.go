// Package playground runs small ownership scripts against the rc package
// and reports how counts and control blocks evolve.
//
// A script is one command per line; # starts a comment:
//
//	new a 1          # a = Make(Object{a, 1})
//	adopt b 2        # b = Adopt(&Object{b, 2})
//	clone c a        # c = a.Clone()
//	move d c         # d = c.Move()
//	weak w a         # w = a.Weak()
//	lock l w         # l = w.Lock(), unbound if expired
//	alias v a        # v = Alias(a, &a.Value)
//	self s a         # s = a.Get().Self()
//	set v 10         # write through a handle
//	borrow a         # table borrow, blocks release of a
//	return a
//	release a        # also: reset a
//	reset a b        # a = another owner of b's object
//	try self s x     # expect the command to fail
//	show             # render the bindings
//	expect a use 2   # properties: use, weak, value, alive, expired
//	expect destroyed 1
//	expect blocks 0
//	expect frees 2
//
// Rebinding a name releases what it held. Strong names live in a
// resource.Table, so borrows and handles behave like a host table.
package playground
