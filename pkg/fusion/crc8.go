package fusion

// CRCPolynomial is the CRC-8 generator polynomial, applied MSB first.
const CRCPolynomial = 0x1D

var crcTable = makeCRCTable(CRCPolynomial)

func makeCRCTable(poly byte) *[256]byte {
	t := new([256]byte)
	for i := 0; i < 256; i++ {
		t[i] = crcBitwise(0, []byte{byte(i)}, poly)
	}
	return t
}

// crcBitwise is the reference bit-at-a-time form the table is built from.
func crcBitwise(crc byte, p []byte, poly byte) byte {
	for _, b := range p {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// UpdateCRC8 returns the result of adding the bytes in p to crc.
func UpdateCRC8(crc byte, p []byte) byte {
	for _, b := range p {
		crc = crcTable[crc^b]
	}
	return crc
}

// ChecksumCRC8 returns the CRC-8 of data with a zero initial register.
func ChecksumCRC8(data []byte) byte {
	return UpdateCRC8(0, data)
}
