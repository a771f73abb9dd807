package workspace

import "io/fs"

// blockUnit is the block size used for the disk accounting figures in
// Action.storage / Schedule.storage (spec §4.2, §3 "storage" field).
const blockUnit = 512

// blockSize rounds a regular file's apparent size up to the nearest
// blockUnit, which is portable across the platforms gopsutil already
// supports without reaching into syscall.Stat_t.
func blockSize(info fs.FileInfo) int64 {
	size := info.Size()
	if size == 0 {
		return 0
	}
	blocks := (size + blockUnit - 1) / blockUnit
	return blocks * blockUnit
}
