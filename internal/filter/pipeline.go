package filter

import (
	"fmt"
	"math"
)

type stage struct {
	info   Info
	filter Filter
	err    error
}

// Pipeline decodes chunks written through an ordered filter list.
// A Pipeline is immutable after construction and safe for concurrent use.
type Pipeline struct {
	stages []stage
}

// elementSizer is implemented by filters whose client data may omit the
// element size.
type elementSizer interface {
	SetElementSize(size int)
}

// NewPipeline builds a pipeline for infos, in write order. Filters that
// cannot be constructed are kept and fail on first use.
func NewPipeline(infos []Info, elemSize int) *Pipeline {
	p := &Pipeline{stages: make([]stage, 0, len(infos))}
	for _, info := range infos {
		f, err := New(info)
		if es, ok := f.(elementSizer); ok && len(info.ClientData) == 0 && elemSize > 0 {
			es.SetElementSize(elemSize)
		}
		p.stages = append(p.stages, stage{info: info, filter: f, err: err})
	}
	return p
}

// Decode applies the pipeline in reverse order to encoded data.
// Bit i of mask set means filter i is skipped.
func (p *Pipeline) Decode(input []byte, mask uint32) ([]byte, error) {
	return p.DecodeLimit(input, mask, 0)
}

// DecodeLimit is Decode for a chunk that must decode to at most limit
// bytes. Filters that support it stop as soon as their output passes the
// bound; stages decoded before the last get room for one encoding's
// overhead per filter still to run. A non-positive limit means no bound.
func (p *Pipeline) DecodeLimit(input []byte, mask uint32, limit int) ([]byte, error) {
	remaining := 0
	for i := range p.stages {
		if !skipped(mask, i) {
			remaining++
		}
	}

	data := input
	for i := len(p.stages) - 1; i >= 0; i-- {
		if skipped(mask, i) {
			continue
		}
		remaining--
		s := p.stages[i]
		if s.err != nil {
			return nil, s.err
		}
		var err error
		if ld, ok := s.filter.(LimitedDecoder); ok && limit > 0 {
			data, err = ld.DecodeLimit(data, stageLimit(limit, remaining))
		} else {
			data, err = s.filter.Decode(data)
		}
		if err != nil {
			return nil, fmt.Errorf("%s decode: %w", s.info, err)
		}
	}
	return data, nil
}

// stageLimit grows limit by an encoding overhead margin for each of n
// filters that still have to decode.
func stageLimit(limit, n int) int {
	for i := 0; i < n; i++ {
		if limit > math.MaxInt/2 {
			return math.MaxInt - 1
		}
		limit += limit/64 + 64
	}
	return limit
}

// Encode applies the pipeline in write order, honoring the same mask
// convention as Decode.
func (p *Pipeline) Encode(input []byte, mask uint32) ([]byte, error) {
	data := input
	for i, s := range p.stages {
		if skipped(mask, i) {
			continue
		}
		if s.err != nil {
			return nil, s.err
		}
		enc, ok := s.filter.(Encoder)
		if !ok {
			return nil, fmt.Errorf("%s cannot encode", s.info)
		}
		var err error
		data, err = enc.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("%s encode: %w", s.info, err)
		}
	}
	return data, nil
}

// Supported reports whether every filter in the pipeline has a decoder.
func (p *Pipeline) Supported() error {
	for _, s := range p.stages {
		if s.err != nil {
			return s.err
		}
	}
	return nil
}

// Infos returns the filter list in write order.
func (p *Pipeline) Infos() []Info {
	out := make([]Info, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.info
	}
	return out
}

// Empty returns true if the pipeline has no filters.
func (p *Pipeline) Empty() bool {
	return len(p.stages) == 0
}

// Len returns the number of filters in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.stages)
}

func skipped(mask uint32, i int) bool {
	return i < 32 && mask&(1<<uint(i)) != 0
}
