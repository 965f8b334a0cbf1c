// Package wire holds the request encoding shared by the protocol extensions.
package wire

import "github.com/rajveermalviya/go-wayland/wayland/client"

// PaddedLen rounds l up to the 32-bit word size.
func PaddedLen(l int) int {
	if l&0x3 != 0 {
		return l + (4 - (l & 0x3))
	}
	return l
}

// StringLen is the encoded size of s without its length prefix.
func StringLen(s string) int {
	return PaddedLen(len(s) + 1)
}

// PutString writes the length prefix, s and its NUL terminator. dst must be
// 4+StringLen(s) bytes long.
func PutString(dst []byte, s string) {
	client.PutUint32(dst[:4], uint32(len(s)+1))
	copy(dst[4:], s)
	for i := 4 + len(s); i < len(dst); i++ {
		dst[i] = 0
	}
}

// Send writes a request whose arguments are all 32-bit words.
func Send(p client.Proxy, opcode uint32, args ...uint32) error {
	_reqBufLen := 8 + 4*len(args)
	_reqBuf := make([]byte, _reqBufLen)
	l := 0
	client.PutUint32(_reqBuf[l:4], p.ID())
	l += 4
	client.PutUint32(_reqBuf[l:l+4], uint32(_reqBufLen<<16|int(opcode)&0x0000ffff))
	l += 4
	for _, arg := range args {
		client.PutUint32(_reqBuf[l:l+4], arg)
		l += 4
	}
	return p.Context().WriteMsg(_reqBuf, nil)
}
