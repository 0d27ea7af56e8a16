package util

func ReadBytes(buff []byte, cursor int, offset int) (int, []byte) {
	if offset <= 0 {
		return cursor, nil
	}
	return cursor + offset, buff[cursor : cursor+offset]
}

func ReadByte(buff []byte, cursor int) (int, byte) {
	return cursor + 1, buff[cursor]
}

func ReadUB2(buff []byte, cursor int) (int, uint16) {
	i := uint16(buff[cursor])
	i |= uint16(buff[cursor+1]) << 8
	return cursor + 2, i
}

func ReadUB4(buff []byte, cursor int) (int, uint32) {
	i := uint32(buff[cursor])
	i |= uint32(buff[cursor+1]) << 8
	i |= uint32(buff[cursor+2]) << 16
	i |= uint32(buff[cursor+3]) << 24
	return cursor + 4, i
}

func ReadUB8(buff []byte, cursor int) (int, uint64) {
	i := uint64(buff[cursor])
	i |= uint64(buff[cursor+1]) << 8
	i |= uint64(buff[cursor+2]) << 16
	i |= uint64(buff[cursor+3]) << 24
	i |= uint64(buff[cursor+4]) << 32
	i |= uint64(buff[cursor+5]) << 40
	i |= uint64(buff[cursor+6]) << 48
	i |= uint64(buff[cursor+7]) << 56
	return cursor + 8, i
}

func ReadUB8Long(buff []byte, cursor int) (int, int64) {
	cursor, u := ReadUB8(buff, cursor)
	return cursor, int64(u)
}

func ReadUB2Byte2UInt16(buff []byte) uint16 {
	_, rs := ReadUB2(buff, 0)
	return rs
}

func ReadUB4Byte2UInt32(buff []byte) uint32 {
	_, rs := ReadUB4(buff, 0)
	return rs
}

func ReadUB4Byte2Int32(buff []byte) int32 {
	_, rs := ReadUB4(buff, 0)
	return int32(rs)
}

func ReadUB8Byte2UInt64(buff []byte) uint64 {
	_, rs := ReadUB8(buff, 0)
	return rs
}

func ReadUB8Bytes2Long(buff []byte) int64 {
	_, rs := ReadUB8Long(buff, 0)
	return rs
}
