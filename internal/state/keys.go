package state

import "encoding/binary"

// Keys for the embedded backends are <table>\x00<big-endian id>, so a table is
// one contiguous, id-ordered key range.

func tablePrefix(name string) []byte {
	return append([]byte(name), 0x00)
}

func tableUpperBound(name string) []byte {
	return append([]byte(name), 0x01)
}

func recordKey(prefix []byte, id int64) []byte {
	k := make([]byte, len(prefix)+8)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], uint64(id))
	return k
}

func recordID(prefix []byte, key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key[len(prefix):]))
}
