//go:build amd64 || arm64 || 386 || arm

package bo

import "encoding/binary"

// Native returns the native byte order for this client's supported
// deployment targets: amd64/arm64 cloud and container hosts, plus
// 386/arm for edge builds. All four are little-endian.
func Native() binary.ByteOrder { return binary.LittleEndian }
