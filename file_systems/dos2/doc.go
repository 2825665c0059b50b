/*
Package dos2 implements the file system used by Atari DOS 2.0S and 2.5 on ATR
disk images.

All three standard layouts are supported: single density (720 sectors of 128
bytes), enhanced density (1040 sectors of 128 bytes, of which 1024 can be
addressed), and double density (720 sectors of 256 bytes, except for the three
boot sectors which are always 128 bytes).

The disk has no directory hierarchy. Sixty-four 16-byte entries live in eight
fixed sectors starting at 361, and each file is a singly linked list of data
sectors. The last three bytes of every data sector hold the owning entry's
index, the next sector in the chain, and the number of valid bytes in the
sector. Free space is tracked by a bitmap in the VTOC at sector 360; enhanced
density extends it with a second VTOC at sector 1024.

There is no caching. Every operation reads the sectors it needs from the image
and writes its changes back before returning, so nothing is lost if the
process exits between operations.

A [Session] assumes it is the only writer to its image. Nothing stops two
processes (or two sessions in one process) from opening the same image, but
the results of doing so are undefined.

Layout details were taken from the Atari DOS 2.0S and 2.5 manuals and Mapping
the Atari, and checked against images written by real hardware.
*/
package dos2
