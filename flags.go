package atrdisk

// MountFlags controls what a session is allowed to do to an image.
type MountFlags int

const (
	MountFlagsAllowRead  = MountFlags(1 << iota)
	MountFlagsAllowWrite = MountFlags(1 << iota)
)

const MountFlagsReadOnly = MountFlagsAllowRead
const MountFlagsAllowAll = MountFlagsAllowRead | MountFlagsAllowWrite

func (flags MountFlags) CanRead() bool {
	return flags&MountFlagsAllowRead != 0
}

func (flags MountFlags) CanWrite() bool {
	return flags&MountFlagsAllowWrite != 0
}
