package packet

import "errors"

// ErrTruncated is returned when a read runs past the end of the buffer.
var ErrTruncated = errors.New("packet: truncated")

// ErrNameLoop is returned when a compressed name exceeds maxNameJumps,
// the signature of a crafted pointer cycle.
var ErrNameLoop = errors.New("packet: name compression loop")
