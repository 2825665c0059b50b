package main

// AtariEOL is the ATASCII end-of-line character.
const AtariEOL = 0x9b

// toHostText converts Atari line endings to "\n". The input isn't modified.
func toHostText(data []byte, eol byte) []byte {
	return swapByte(data, eol, '\n')
}

// toAtariText converts "\n" line endings to the Atari's. Every other byte,
// including "\r", is left as it is.
func toAtariText(data []byte, eol byte) []byte {
	return swapByte(data, '\n', eol)
}

func swapByte(data []byte, from, to byte) []byte {
	result := make([]byte, len(data))
	for i, b := range data {
		if b == from {
			result[i] = to
		} else {
			result[i] = b
		}
	}
	return result
}
