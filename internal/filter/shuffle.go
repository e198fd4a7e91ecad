package filter

// Shuffle implements the byte shuffle filter, which stores byte j of every
// element contiguously: [all byte 0s][all byte 1s]...
type Shuffle struct {
	elemSize int
}

// NewShuffle creates a new shuffle filter.
// Client data: [0] = element size in bytes.
func NewShuffle(clientData []uint32) *Shuffle {
	elemSize := 1
	if len(clientData) > 0 && clientData[0] > 0 {
		elemSize = int(clientData[0])
	}
	return &Shuffle{elemSize: elemSize}
}

func (f *Shuffle) ID() uint16 {
	return IDShuffle
}

// SetElementSize sets the element size when the client data omits it.
func (f *Shuffle) SetElementSize(size int) {
	f.elemSize = size
}

// Decode reverses the shuffle. Trailing bytes that do not form a whole
// element are left in place.
func (f *Shuffle) Decode(input []byte) ([]byte, error) {
	return f.permute(input, true), nil
}

func (f *Shuffle) Encode(input []byte) ([]byte, error) {
	return f.permute(input, false), nil
}

func (f *Shuffle) permute(input []byte, unshuffle bool) []byte {
	numElems := len(input) / max(f.elemSize, 1)
	if f.elemSize <= 1 || numElems <= 1 {
		return input
	}

	output := make([]byte, len(input))
	for i := 0; i < numElems; i++ {
		for j := 0; j < f.elemSize; j++ {
			if unshuffle {
				output[i*f.elemSize+j] = input[j*numElems+i]
			} else {
				output[j*numElems+i] = input[i*f.elemSize+j]
			}
		}
	}
	tail := numElems * f.elemSize
	copy(output[tail:], input[tail:])
	return output
}
