//go:build s390x

package bo

import "encoding/binary"

// Native returns the native byte order on s390x, the one big-endian
// port this client is still built for (IBM Z hosts running alongside
// mainframe-adjacent map servers).
func Native() binary.ByteOrder { return binary.BigEndian }
