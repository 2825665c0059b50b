// First-fit sector allocator

package dos2

import (
	"fmt"

	"github.com/dargueta/atrdisk"
	c "github.com/dargueta/atrdisk/file_systems/common"
)

// Allocate finds the first `count` free sectors in ascending order and marks
// them allocated. If there aren't enough free sectors it fails with
// [atrdisk.ErrNoSpaceOnDevice] and the bitmap is *not* modified.
//
// Sector 0 is never returned, even if the bitmap claims it's free.
func Allocate(bm *Bitmap, count uint) ([]c.Sector, error) {
	sectors := make([]c.Sector, 0, count)
	for i := uint(1); i < bm.Len() && uint(len(sectors)) < count; i++ {
		if bm.IsFree(c.Sector(i)) {
			sectors = append(sectors, c.Sector(i))
		}
	}

	if uint(len(sectors)) < count {
		msg := fmt.Sprintf(
			"need %d sectors, only %d are free", count, len(sectors))
		return nil, atrdisk.ErrNoSpaceOnDevice.WithMessage(msg)
	}

	// Only mark the sectors once we know we have enough of them.
	for _, sector := range sectors {
		bm.Mark(sector, true)
	}
	return sectors, nil
}

// Release marks the given sectors free again. Trying to release a sector that
// isn't allocated fails immediately, and the bitmap is *not* modified.
func Release(bm *Bitmap, sectors []c.Sector) error {
	for _, sector := range sectors {
		if uint(sector) == 0 || uint(sector) >= bm.Len() {
			msg := fmt.Sprintf(
				"invalid sector: %d not in [1, %d)", sector, bm.Len())
			return atrdisk.ErrInvalidSector.WithMessage(msg)
		}
		if bm.IsFree(sector) {
			msg := fmt.Sprintf("sector %d is already free", sector)
			return atrdisk.ErrInvalidArgument.WithMessage(msg)
		}
	}

	for _, sector := range sectors {
		bm.Mark(sector, false)
	}
	return nil
}
