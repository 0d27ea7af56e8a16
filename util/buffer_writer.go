package util

func WriteByte(buf []byte, b byte) []byte {
	buf = append(buf, b)
	return buf
}

func WriteBytes(buf []byte, from []byte) []byte {
	for _, v := range from {
		buf = append(buf, v)
	}
	return buf
}

func WriteUB2(buf []byte, i uint16) []byte {
	buf = append(buf, byte(i&0xFF))
	buf = append(buf, byte((i>>8)&0xFF))
	return buf
}

func WriteUB4(buf []byte, i uint32) []byte {
	buf = append(buf, byte(i&0xFF))
	buf = append(buf, byte((i>>8)&0xFF))
	buf = append(buf, byte((i>>16)&0xFF))
	buf = append(buf, byte((i>>24)&0xFF))
	return buf
}

func WriteUB8(buf []byte, i uint64) []byte {
	buf = append(buf, byte(i&0xFF))
	buf = append(buf, byte((i>>8)&0xFF))
	buf = append(buf, byte((i>>16)&0xFF))
	buf = append(buf, byte((i>>24)&0xFF))
	buf = append(buf, byte((i>>32)&0xFF))
	buf = append(buf, byte((i>>40)&0xFF))
	buf = append(buf, byte((i>>48)&0xFF))
	buf = append(buf, byte((i>>56)&0xFF))
	return buf
}

func ConvertInt4Bytes(i int32) []byte {
	buff := make([]byte, 0)
	rs := WriteUB4(buff, uint32(i))
	return rs
}

func ConvertLong8Bytes(i int64) []byte {
	buff := make([]byte, 0)
	rs := WriteUB8(buff, uint64(i))
	return rs
}

func ConvertULong8Bytes(i uint64) []byte {
	buff := make([]byte, 0)
	rs := WriteUB8(buff, i)
	return rs
}

func ConvertUInt4Bytes(i uint32) []byte {
	buff := make([]byte, 0)
	rs := WriteUB4(buff, i)
	return rs
}

func ConvertUInt2Bytes(i uint16) []byte {
	buff := make([]byte, 0)
	rs := WriteUB2(buff, i)
	return rs
}

func ConvertBool2Byte(boolValue bool) byte {
	if boolValue {
		return 1
	}
	return 0
}
