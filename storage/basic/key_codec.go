package basic

import (
	"math"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xtabledb/util"
)

// 字符串键编码为4字节实际长度+容量字节内容(零填充)
const stringKeyLenSize = 4

// KeyWidth returns the fixed encoded width of a key of the given type.
// Every key of one tree encodes to exactly this many bytes.
func KeyWidth(t ValueType, capacity uint32) (int, error) {
	switch t {
	case TypeInteger, TypeFloat:
		return 4, nil
	case TypeBigInt, TypeDouble:
		return 8, nil
	case TypeString:
		return stringKeyLenSize + int(capacity), nil
	default:
		return 0, errors.Errorf("unknown key type %d", byte(t))
	}
}

// EncodeKey 按变体定宽编码，与DecodeKey严格互逆
func EncodeKey(v Value) ([]byte, error) {
	switch v.vtype {
	case TypeInteger:
		return util.ConvertInt4Bytes(int32(v.i)), nil
	case TypeFloat:
		return util.ConvertUInt4Bytes(math.Float32bits(float32(v.f))), nil
	case TypeDouble:
		return util.ConvertULong8Bytes(math.Float64bits(v.f)), nil
	case TypeBigInt:
		return util.ConvertLong8Bytes(v.i), nil
	case TypeString:
		buf := make([]byte, 0, stringKeyLenSize+int(v.cap))
		buf = util.WriteUB4(buf, uint32(len(v.str)))
		buf = util.WriteBytes(buf, v.str)
		for i := len(v.str); i < int(v.cap); i++ {
			buf = util.WriteByte(buf, 0)
		}
		return buf, nil
	default:
		return nil, errors.Errorf("cannot encode key of unknown type %d", byte(v.vtype))
	}
}

// DecodeKey decodes one fixed-width key of the given type from buf.
// buf must hold exactly KeyWidth bytes.
func DecodeKey(buf []byte, t ValueType, capacity uint32) (Value, error) {
	width, err := KeyWidth(t, capacity)
	if err != nil {
		return Value{}, err
	}
	if len(buf) < width {
		return Value{}, errors.Errorf("key buffer too short: need %d bytes, have %d", width, len(buf))
	}
	switch t {
	case TypeInteger:
		return NewIntegerValue(util.ReadUB4Byte2Int32(buf)), nil
	case TypeFloat:
		return NewFloatValue(math.Float32frombits(util.ReadUB4Byte2UInt32(buf))), nil
	case TypeDouble:
		return NewDoubleValue(math.Float64frombits(util.ReadUB8Byte2UInt64(buf))), nil
	case TypeBigInt:
		return NewBigIntValue(util.ReadUB8Bytes2Long(buf)), nil
	case TypeString:
		strLen := util.ReadUB4Byte2UInt32(buf)
		if strLen > capacity {
			return Value{}, errors.Errorf("string key length %d exceeds capacity %d", strLen, capacity)
		}
		content := make([]byte, strLen)
		copy(content, buf[stringKeyLenSize:stringKeyLenSize+int(strLen)])
		return Value{vtype: TypeString, str: content, cap: capacity}, nil
	default:
		return Value{}, errors.Errorf("cannot decode key of unknown type %d", byte(t))
	}
}
