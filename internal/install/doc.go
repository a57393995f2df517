// Package install commits validated transcodes into the tree. The invariant
// it exists to defend: an original is never deleted, renamed, or replaced
// until its candidate has been fully written, validated, and staged, and any
// observer of the original path sees either the old or the new file in full.
package install
