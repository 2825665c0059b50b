// Package compression provides tools to compress disk images, used for the
// checker's pre-repair snapshots and for test fixtures.
//
// Disk images are broken up into fixed-size sectors of 128 or 256 bytes. The
// emptier an image is, the more sectors consisting of entirely null bytes there
// will be, so a freshly formatted 90 KiB single-density image is almost all
// dead space. The best compression comes from run-length encoding the raw image
// first, then using gzip on the result.
//
// There are a variety of run-length encodings; this document refers strictly to
// the algorithm used by the Microsoft BMP file format, also known as RLE8. A
// brief explanation: if a byte B occurs N times where N >= 2, B is written twice,
// followed by a third (unsigned) byte indicating how many additional times B
// occurred. For example:
//
// 		WXXXXXXXXXXXXXXXYZZ
//		W XX 13 Y ZZ 0
//
// This scheme lets us represent runs of up to 257 bytes with three bytes. For
// runs longer than 257 bytes, they are treated as separate runs. For example,
// a run of 300 "X" is represented as `XX 255 XX 41`. Unfortunately, using a byte
// as its own escape sequence means that occurrences of the same byte exactly
// twice are stored as three bytes: the two bytes followed by a null byte
// indicating no further repetition.
package compression
