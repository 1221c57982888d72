package protocol

const milestoneIndexSize = 4

var MilestoneRequestRange = Range{Min: milestoneIndexSize, Max: milestoneIndexSize}

// MilestoneRequest asks a peer for the milestone at Index. Index 0 asks for the latest one.
type MilestoneRequest struct {
	Index uint32
}

func (MilestoneRequest) ID() uint8 { return MilestoneRequestID }

func (MilestoneRequest) Size() int { return milestoneIndexSize }

func (m MilestoneRequest) Encode() []byte {
	return appendUint32(make([]byte, 0, milestoneIndexSize), m.Index)
}

func DecodeMilestoneRequest(b []byte) (MilestoneRequest, error) {
	if err := checkLength(MilestoneRequestID, MilestoneRequestRange, b); err != nil {
		return MilestoneRequest{}, err
	}
	index, err := newFieldReader(MilestoneRequestID, b).uint32("index")
	if err != nil {
		return MilestoneRequest{}, err
	}
	return MilestoneRequest{Index: index}, nil
}
