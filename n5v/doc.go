/*
	Package n5v provides types, constants, and functions that have no other dependencies
	and can be used by all packages within the viewer.  This includes leveled logging,
	pixel types, and the 3D affine transforms that place every scale level of an
	image pyramid into a common physical space.
*/
package n5v
