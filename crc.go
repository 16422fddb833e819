package si7021

// CRC8 computes the Si7021 checksum: polynomial x^8+x^5+x^4+1 (0x31),
// initial value 0x00.
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for range 8 {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func CheckCRC(data []byte, expected byte) bool {
	return CRC8(data) == expected
}
