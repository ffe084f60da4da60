package utils

const (
	FEWER_THAN_TWO_BLOCKS = "fewer than two successful blocks"
	DISTANCE_DISABLED     = "distance computation disabled"
)

const (
	SLOT_MISMATCH     = "blocks are for different slots"
	TX_DECODE_FAILED  = "transaction list could not be decoded"
	MISSING_BLOCK     = "block missing from fetch result"
	NOT_ALL_BLOCKS    = "not all nodes returned a block"
	DIFFERENT_PARENTS = "not all blocks build on the same parent"
)
